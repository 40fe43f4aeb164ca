package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buidlcat/friendrekt/analyzer"
	"github.com/buidlcat/friendrekt/models"
	"github.com/buidlcat/friendrekt/storage"
	"github.com/buidlcat/friendrekt/syncer"
)

const subjectA = "0x00000000000000000000000000000000000000A1"

func setup(t *testing.T) (*gin.Engine, *storage.MockStore) {
	t.Helper()
	t.Setenv("AUTH_USERNAME", "")
	t.Setenv("AUTH_PASSWORD", "")
	gin.SetMode(gin.TestMode)

	store := storage.NewMockStore()
	ctx := context.Background()
	require.NoError(t, store.SaveSnipe(ctx, &models.SnipeRecord{TriggerHash: "0x01", Subject: subjectA, Success: true, TxHash: "0xaa"}))
	require.NoError(t, store.SaveSnipe(ctx, &models.SnipeRecord{TriggerHash: "0x02", Subject: "0xbb", Success: false}))
	require.NoError(t, store.SaveSnipe(ctx, &models.SnipeRecord{TriggerHash: "0x03", Subject: subjectA, Success: false}))

	h := NewHandler(store, syncer.NewMetrics(), analyzer.BondingCurve{}, 5, zaptest.NewLogger(t))
	r := gin.New()
	h.Register(r)
	return r, store
}

func get(t *testing.T, r http.Handler, path string, out interface{}) int {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestHealth(t *testing.T) {
	r, _ := setup(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, get(t, r, "/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetStats(t *testing.T) {
	r, _ := setup(t)
	var body struct {
		Pipeline syncer.PipelineStats `json:"pipeline"`
		Snipes   storage.SnipeSummary `json:"snipes"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/api/stats", &body))
	assert.Equal(t, storage.SnipeSummary{Total: 3, Succeeded: 1, Failed: 2}, body.Snipes)
}

func TestGetStats_StoreError(t *testing.T) {
	r, store := setup(t)
	store.FailNext("GetSnipeSummary", errors.New("db gone"))
	assert.Equal(t, http.StatusInternalServerError, get(t, r, "/api/stats", nil))
}

func TestListSnipes(t *testing.T) {
	r, _ := setup(t)
	var body struct {
		Snipes []models.SnipeRecord `json:"snipes"`
		Count  int                  `json:"count"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/api/snipes?limit=2", &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "0x03", body.Snipes[0].TriggerHash)

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/snipes?limit=0", nil))
}

func TestListSnipesForSubject(t *testing.T) {
	r, _ := setup(t)
	var body struct {
		Subject string               `json:"subject"`
		Snipes  []models.SnipeRecord `json:"snipes"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/api/snipes/"+subjectA, &body))
	assert.Equal(t, strings.ToLower(subjectA), body.Subject)
	require.Len(t, body.Snipes, 2)
	for _, s := range body.Snipes {
		assert.Equal(t, subjectA, s.Subject)
	}

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/snipes/nope", nil))
}

func TestGetPrice(t *testing.T) {
	r, _ := setup(t)
	var body struct {
		Supply   uint64 `json:"supply"`
		Amount   uint64 `json:"amount"`
		PriceWei string `json:"price_wei"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/api/price?supply=1", &body))
	assert.Equal(t, uint64(5), body.Amount)
	assert.Equal(t, "3437500000000000", body.PriceWei)

	require.Equal(t, http.StatusOK, get(t, r, "/api/price?supply=1&amount=1", &body))
	assert.Equal(t, "62500000000000", body.PriceWei)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setup(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "friendrekt_")
}
