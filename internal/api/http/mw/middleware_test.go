package mw

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"walletbot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== Gzip Tests ==========

func TestGzip_CompressesWhenAccepted(t *testing.T) {
	body := strings.Repeat("03/17  $200.00 (>=2^7)\n", 50)
	h := NewGzip(0, newTestLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, body)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))
}

func TestGzip_PassThrough(t *testing.T) {
	h := NewGzip(gzip.BestCompression, newTestLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGzip_NoContent(t *testing.T) {
	h := NewGzip(99, newTestLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}

// ========== CORS Tests ==========

func TestCORS(t *testing.T) {
	_, err := NewCORS(nil)
	assert.Error(t, err)

	c, err := NewCORS(&config.CORSConfig{Origins: []string{"https://a.example", "", "https://b.example"}})
	require.NoError(t, err)

	h := c.Handler()(okHandler)

	pre := httptest.NewRecorder()
	h.ServeHTTP(pre, httptest.NewRequest(http.MethodOptions, "/api/x", nil))
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Equal(t, "https://a.example, https://b.example", pre.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", pre.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization, Content-Type", pre.Header().Get("Access-Control-Allow-Headers"))

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusOK, get.Code)
}

// ========== Logging Tests ==========

func TestLogging_CapturesStatusAndSize(t *testing.T) {
	var lrw *loggingRW
	h := NewLogging(newTestLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		lrw = w.(*loggingRW)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "bad gateway")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, lrw)
	assert.Equal(t, http.StatusBadGateway, lrw.status)
	assert.Equal(t, len("bad gateway"), lrw.size)
}
