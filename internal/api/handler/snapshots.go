package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/buzzwatch/internal/api/respond"
	"github.com/albapepper/buzzwatch/internal/cache"
	"github.com/albapepper/buzzwatch/internal/provider"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// HistoryResponse is the body of the history endpoint.
type HistoryResponse struct {
	Source  string            `json:"source"`
	Count   int               `json:"count"`
	Total   int               `json:"total"`
	Records []provider.Record `json:"records"`
}

// GetLatest returns the most recent stored snapshot of a source.
// @Summary Latest snapshot
// @Description Returns the rows sharing the newest time_fetched for a source. Cached with ETag support.
// @Tags snapshots
// @Produce json
// @Param source path string true "Source" Enums(yahoo, espn)
// @Success 200 {object} provider.Snapshot
// @Failure 404 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /snapshots/{source}/latest [get]
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	st, ok := h.stores[source]
	if !ok {
		respond.WriteUnknownSource(w, source)
		return
	}

	cacheKey := cache.SnapshotKey(source, "latest")
	if h.serveCached(w, r, cacheKey, cache.TTLLatest) {
		return
	}

	snap, err := st.Latest(r.Context())
	if err != nil {
		respond.WriteStoreError(w, source, "Could not read latest snapshot", err)
		return
	}
	if snap.Source == "" {
		snap.Source = source
	}
	if snap.Records == nil {
		snap.Records = []provider.Record{}
	}
	h.writeFresh(w, r, cacheKey, snap, cache.TTLLatest)
}

// GetHistory returns the newest stored records of a source.
// @Summary Record history
// @Description Returns up to limit of the most recently stored records, oldest first.
// @Tags snapshots
// @Produce json
// @Param source path string true "Source" Enums(yahoo, espn)
// @Param limit query int false "Maximum records (1-1000)" default(100)
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /snapshots/{source}/history [get]
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	st, ok := h.stores[source]
	if !ok {
		respond.WriteUnknownSource(w, source)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respond.WriteError(w, http.StatusBadRequest, respond.CodeInvalidLimit, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	cacheKey := cache.SnapshotKey(source, "history", strconv.Itoa(limit))
	if h.serveCached(w, r, cacheKey, cache.TTLHistory) {
		return
	}

	records, err := st.Records(r.Context())
	if err != nil {
		respond.WriteStoreError(w, source, "Could not read history", err)
		return
	}
	total := len(records)
	if total > limit {
		records = records[total-limit:]
	}
	if records == nil {
		records = []provider.Record{}
	}
	h.writeFresh(w, r, cacheKey, HistoryResponse{
		Source:  source,
		Count:   len(records),
		Total:   total,
		Records: records,
	}, cache.TTLHistory)
}

// serveCached writes a cache hit (or 304) and reports whether it did.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration) bool {
	data, etag, ok := h.cache.Get(key)
	if !ok {
		return false
	}
	respond.WritePayload(w, r, respond.Payload{Data: data, ETag: etag, TTL: ttl, Hit: true})
	return true
}

func (h *Handler) writeFresh(w http.ResponseWriter, r *http.Request, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, respond.CodeEncodeError, "Could not encode response")
		return
	}
	etag := h.cache.Set(key, data, ttl)
	respond.WritePayload(w, r, respond.Payload{Data: data, ETag: etag, TTL: ttl})
}
