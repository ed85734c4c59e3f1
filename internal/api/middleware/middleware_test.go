package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET("/guests", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"guests": []any{}})
	})
	return router
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := newRouter(CORS(DefaultCORSConfig()))

	tests := []struct {
		name       string
		method     string
		origin     string
		reqHeaders string
		wantStatus int
		wantAllow  bool
	}{
		{"embedder origin", http.MethodGet, "http://localhost:3000", "", http.StatusOK, true},
		{"preflight", http.MethodOptions, "app://embedder", "", http.StatusNoContent, true},
		{"preflight websocket protocol", http.MethodOptions, "app://embedder", "Sec-WebSocket-Protocol", http.StatusNoContent, true},
		{"same origin", http.MethodGet, "", "", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/guests", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			if tt.reqHeaders != "" {
				req.Header.Set("Access-Control-Request-Headers", tt.reqHeaders)
			}

			w := serve(router, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin") != "")
		})
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://embedder.example"}
	router := newRouter(CORS(cfg))

	req := httptest.NewRequest(http.MethodGet, "/guests", nil)
	req.Header.Set("Origin", "https://embedder.example")
	w := serve(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://embedder.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/guests", nil)
	req.Header.Set("Origin", "https://intruder.example")
	assert.Equal(t, http.StatusForbidden, serve(router, req).Code)
}

func TestRateLimit(t *testing.T) {
	router := newRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	from := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/guests", nil)
		req.RemoteAddr = addr
		return serve(router, req).Code
	}

	assert.Equal(t, http.StatusOK, from("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, from("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1:5002"))

	// Limits are per client address, not per connection.
	assert.Equal(t, http.StatusOK, from("10.0.0.2:5000"))
}

func TestRateLimitForgetsIdleClients(t *testing.T) {
	router := newRouter(RateLimit(RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             1,
		IdleTTL:           20 * time.Millisecond,
	}))

	from := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/guests", nil)
		req.RemoteAddr = addr
		return serve(router, req).Code
	}

	assert.Equal(t, http.StatusOK, from("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1:5000"))

	// After the sweep the client starts over with a full bucket.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, http.StatusOK, from("10.0.0.2:5000"))
	assert.Equal(t, http.StatusOK, from("10.0.0.1:5000"))
}

func TestDefaults(t *testing.T) {
	cors := DefaultCORSConfig()
	assert.Equal(t, []string{"*"}, cors.AllowOrigins)
	assert.Contains(t, cors.AllowHeaders, "Sec-WebSocket-Protocol")

	rl := DefaultRateLimitConfig()
	assert.Equal(t, 100, rl.RequestsPerSecond)
	assert.Equal(t, 200, rl.Burst)
	assert.Equal(t, 10*time.Minute, rl.IdleTTL)
}
