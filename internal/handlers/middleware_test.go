package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validateSSE(target string) *httptest.ResponseRecorder {
	handler := ValidateSSERequest(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestValidateSSERequest(t *testing.T) {
	t.Run("no params", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, validateSSE("/sse/solo").Code)
	})

	t.Run("valid datastar signals", func(t *testing.T) {
		signals := url.QueryEscape(`{"remaining": 7, "theme": "dark"}`)
		assert.Equal(t, http.StatusOK, validateSSE("/sse/solo?datastar="+signals).Code)
	})

	t.Run("empty datastar value", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, validateSSE("/sse/solo?datastar=").Code)
	})

	t.Run("unknown parameter", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, validateSSE("/sse/solo?evil=1").Code)
	})

	t.Run("unknown signal name", func(t *testing.T) {
		signals := url.QueryEscape(`{"__proto__": {}}`)
		assert.Equal(t, http.StatusBadRequest, validateSSE("/sse/solo?datastar="+signals).Code)
	})

	t.Run("invalid datastar JSON", func(t *testing.T) {
		signals := url.QueryEscape(`{not json`)
		assert.Equal(t, http.StatusBadRequest, validateSSE("/sse/solo?datastar="+signals).Code)
	})

	t.Run("repeated datastar parameter", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, validateSSE("/sse/solo?datastar=%7B%7D&datastar=%7B%7D").Code)
	})

	t.Run("oversized datastar state", func(t *testing.T) {
		big := url.QueryEscape(`{"theme": "` + strings.Repeat("x", 9000) + `"}`)
		assert.Equal(t, http.StatusBadRequest, validateSSE("/sse/solo?datastar="+big).Code)
	})

	t.Run("oversized query string", func(t *testing.T) {
		long := strings.Repeat("a", 11000)
		assert.Equal(t, http.StatusRequestURITooLong, validateSSE("/sse/solo?datastar="+long).Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestHandler(t)
	router := newTestRouter(t, h)

	t.Run("liveness", func(t *testing.T) {
		w := get(router, "/health/live")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})

	t.Run("readiness", func(t *testing.T) {
		w := get(router, "/health/ready")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
