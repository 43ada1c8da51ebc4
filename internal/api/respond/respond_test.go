package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/buzzwatch/internal/cache"
)

func TestWritePayload(t *testing.T) {
	data := []byte(`{"source":"yahoo"}`)
	p := Payload{Data: data, ETag: cache.ComputeETag(data), TTL: time.Minute}

	rec := httptest.NewRecorder()
	WritePayload(rec, httptest.NewRequest(http.MethodGet, "/", nil), p)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=60, stale-while-revalidate=30", rec.Header().Get("Cache-Control"))
	assert.Equal(t, p.ETag, rec.Header().Get("ETag"))
	assert.JSONEq(t, string(data), rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", `"stale", `+p.ETag)
	rec = httptest.NewRecorder()
	p.Hit = true
	WritePayload(rec, req, p)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestWriteStoreError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteStoreError(rec, "espn", "Could not read history", errors.New("connection refused"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, APIError{
		Code:    CodeStoreError,
		Message: "Could not read history",
		Source:  "espn",
		Detail:  "connection refused",
	}, body.Error)
}

func TestWriteUnknownSource(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteUnknownSource(rec, "nba")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t,
		`{"error":{"code":"UNKNOWN_SOURCE","message":"Unknown source nba","source":"nba"}}`,
		rec.Body.String())
}
