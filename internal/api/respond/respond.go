// Package respond writes the status API's JSON bodies: cached snapshot
// payloads with ETags, and the {"error": {...}} envelope.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/albapepper/buzzwatch/internal/cache"
)

// Error codes returned by the status API.
const (
	CodeUnknownSource = "UNKNOWN_SOURCE"
	CodeInvalidLimit  = "INVALID_LIMIT"
	CodeStoreError    = "STORE_ERROR"
	CodeEncodeError   = "ENCODE_ERROR"
	CodeRateLimited   = "RATE_LIMITED"
)

// APIError describes one failed request. Source is set when the failure
// concerns a single snapshot source.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Payload is a marshalled snapshot body and its cache entry.
type Payload struct {
	Data []byte
	ETag string
	TTL  time.Duration
	// Hit is true when Data came from the cache rather than the store.
	Hit bool
}

// WritePayload writes p with ETag and Cache-Control headers, or a bare 304
// when If-None-Match already names p.ETag.
func WritePayload(w http.ResponseWriter, r *http.Request, p Payload) {
	w.Header().Set("ETag", p.ETag)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), p.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Vary", "Accept-Encoding")
	setCacheHeaders(w, p.TTL, p.Hit)
	w.WriteHeader(http.StatusOK)
	w.Write(p.Data)
}

// WriteError sends an error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, APIError{Code: code, Message: message})
}

// WriteUnknownSource reports a source with no configured store.
func WriteUnknownSource(w http.ResponseWriter, source string) {
	writeError(w, http.StatusNotFound, APIError{
		Code:    CodeUnknownSource,
		Message: "Unknown source " + source,
		Source:  source,
	})
}

// WriteStoreError reports a failed store read as 503.
func WriteStoreError(w http.ResponseWriter, source, message string, err error) {
	writeError(w, http.StatusServiceUnavailable, APIError{
		Code:    CodeStoreError,
		Message: message,
		Source:  source,
		Detail:  err.Error(),
	})
}

func writeError(w http.ResponseWriter, status int, e APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: e})
}

// WriteJSONObject writes v without cache headers. Health endpoints use it.
func WriteJSONObject(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func setCacheHeaders(w http.ResponseWriter, ttl time.Duration, hit bool) {
	maxAge := int(ttl.Seconds())
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge/2))
}
