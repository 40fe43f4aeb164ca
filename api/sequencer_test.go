package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sequencerServer(t *testing.T, status int, body string, seen *rpcRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendRawTransaction_Result(t *testing.T) {
	var req rpcRequest
	srv := sequencerServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"0xABC"}`, &req)
	c := NewSequencerClient(srv.URL, time.Second, zaptest.NewLogger(t))

	hash, ok := c.SendRawTransaction(context.Background(), "0x02f8")
	require.True(t, ok)
	assert.Equal(t, "0xABC", hash)

	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, "eth_sendRawTransaction", req.Method)
	assert.Equal(t, []string{"0x02f8"}, req.Params)
	assert.Equal(t, 1, req.ID)
}

func TestSendRawTransaction_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"error envelope", http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"nonce too low"}}`},
		{"neither result nor error", http.StatusOK, `{"jsonrpc":"2.0","id":1}`},
		{"empty result", http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":""}`},
		{"malformed json", http.StatusOK, `{"jsonrpc":`},
		{"non-2xx", http.StatusBadGateway, `{"jsonrpc":"2.0","id":1,"result":"0xABC"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := sequencerServer(t, tt.status, tt.body, nil)
			c := NewSequencerClient(srv.URL, time.Second, zaptest.NewLogger(t))

			hash, ok := c.SendRawTransaction(context.Background(), "0x02")
			assert.False(t, ok)
			assert.Empty(t, hash)
		})
	}
}

func TestSendRawTransaction_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewSequencerClient(url, time.Second, zaptest.NewLogger(t))
	hash, ok := c.SendRawTransaction(context.Background(), "0x02")
	assert.False(t, ok)
	assert.Empty(t, hash)
}
