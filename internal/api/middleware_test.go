package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLogMiddleware_KeepsFlusherAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	flushed := false
	h := AccessLogMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("busy"))
		f, ok := w.(http.Flusher)
		require.True(t, ok, "wrapped writer must expose http.Flusher")
		f.Flush()
		flushed = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil))

	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	assert.Equal(t, "error", line["level"])
	assert.EqualValues(t, http.StatusServiceUnavailable, line["status"])
	assert.EqualValues(t, 4, line["bytes"])
}

func TestAccessLogMiddleware_DefaultsToOK(t *testing.T) {
	var buf bytes.Buffer
	h := AccessLogMiddleware(zerolog.New(&buf), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	assert.EqualValues(t, http.StatusOK, line["status"])
	assert.Equal(t, "unmatched", line["route"])
}
