package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}

func TestRequestSizeLimiter(t *testing.T) {
	handler := RequestSizeLimiter(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("small body passes", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader("a=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader("a="+strings.Repeat("x", 100)))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows within burst then throttles", func(t *testing.T) {
		rl := NewRateLimiter(1, 2)
		handler := rl.Middleware()(okHandler())

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("limits are per client", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		handler := rl.Middleware()(okHandler())

		first := httptest.NewRequest("GET", "/", nil)
		first.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, first)
		assert.Equal(t, http.StatusOK, w.Code)

		second := httptest.NewRequest("GET", "/", nil)
		second.RemoteAddr = "10.0.0.2:1234"
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, second)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("forwarded header identifies the client", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		handler := rl.Middleware()(okHandler())

		for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			req.Header.Set("X-Forwarded-For", "203.0.113.5")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, want, w.Code, "request %d", i)
		}
	})
}
