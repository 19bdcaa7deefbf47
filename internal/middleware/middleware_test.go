package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bucketstream/internal/transport/httpdto"
	relay_errors "bucketstream/pkg/errors"
	"bucketstream/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), CORSMiddleware(), LoggingMiddleware(logger.NewNop()), ErrorHandler(logger.NewNop()))
	r.GET("/x", handlers...)
	return r
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen any
	r := newEngine(func(c *gin.Context) {
		seen = c.Request.Context().Value(logger.RequestIdKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 32)
	assert.Equal(t, id, seen)
}

func TestRequestIDHonoursIncomingHeader(t *testing.T) {
	r := newEngine(func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   httpdto.Code
	}{
		{fmt.Errorf("%w: bad secret", relay_errors.ErrAuthentication), http.StatusUnauthorized, "UNAUTHORIZED"},
		{fmt.Errorf("%w: size", relay_errors.ErrSchema), http.StatusBadRequest, "INVALID_REQUEST"},
		{relay_errors.ErrInvalidInput, http.StatusBadRequest, "INVALID_REQUEST"},
		{relay_errors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{relay_errors.ErrServiceUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{fmt.Errorf("%w: conn reset", relay_errors.ErrStoreFailure), http.StatusInternalServerError, "STORE_FAILURE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			status, code := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("%w: event e1", relay_errors.ErrNotFound))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"not found: event e1","code":"NOT_FOUND"}`, w.Body.String())
}

func TestErrorHandlerHidesInternalDetails(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("%w: password=hunter2", relay_errors.ErrStoreFailure))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "hunter2")
	assert.Contains(t, w.Body.String(), "STORE_FAILURE")
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
