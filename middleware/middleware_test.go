package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"address": c.GetString("validatedAddress")})
	})
	r.GET("/x", handlers...)
	r.GET("/x/:address", handlers...)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBasicAuthWith(t *testing.T) {
	r := newRouter(BasicAuthWith("admin", "secret"))

	w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.SetBasicAuth("admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.SetBasicAuth("admin", "secret")
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestBasicAuthWith_DisabledWithoutCredentials(t *testing.T) {
	r := newRouter(BasicAuthWith("", ""))
	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestValidateAddress(t *testing.T) {
	r := newRouter(ValidateAddress())

	w := do(r, httptest.NewRequest(http.MethodGet, "/x/0x00000000000000000000000000000000000000AB", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0x00000000000000000000000000000000000000ab")

	w = do(r, httptest.NewRequest(http.MethodGet, "/x/0x1234", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateQueryParams(t *testing.T) {
	r := newRouter(ValidateQueryParams())

	tests := []struct {
		query string
		code  int
	}{
		{"", http.StatusOK},
		{"?limit=10", http.StatusOK},
		{"?limit=0", http.StatusBadRequest},
		{"?limit=abc", http.StatusBadRequest},
		{"?limit=1001", http.StatusBadRequest},
		{"?supply=40&amount=5", http.StatusOK},
		{"?supply=-1", http.StatusBadRequest},
		{"?amount=2000000", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(r, httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil))
			assert.Equal(t, tt.code, w.Code)
		})
	}
}
