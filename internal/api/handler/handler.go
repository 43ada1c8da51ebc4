// Package handler provides HTTP handlers for all API endpoints.
// Handlers read the stores directly; there is no service layer.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/albapepper/buzzwatch/internal/api/respond"
	"github.com/albapepper/buzzwatch/internal/cache"
	"github.com/albapepper/buzzwatch/internal/config"
	"github.com/albapepper/buzzwatch/internal/store"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	stores map[string]store.Store
	cache  *cache.Cache
	cfg    *config.Config
}

// New creates a Handler with shared dependencies. stores maps a source
// name ("yahoo", "espn") to its store.
func New(stores map[string]store.Store, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{
		stores: stores,
		cache:  c,
		cfg:    cfg,
	}
}

func (h *Handler) sources() []string {
	out := make([]string, 0, len(h.stores))
	for name := range h.stores {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status and the sources it serves.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":        "Buzzwatch Status API",
		"version":     "1.0.0",
		"status":      "running",
		"docs":        "/docs",
		"environment": h.cfg.Environment,
		"sources":     h.sources(),
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckStore pings every store.
// @Summary Store health check
// @Description Pings each configured snapshot store.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/store [get]
func (h *Handler) HealthCheckStore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	stores := map[string]string{}
	for _, name := range h.sources() {
		if err := h.stores[name].Ping(ctx); err != nil {
			stores[name] = "disconnected"
			status = http.StatusServiceUnavailable
			continue
		}
		stores[name] = "connected"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	respond.WriteJSONObject(w, status, map[string]any{
		"status":    overall,
		"stores":    stores,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys, hits).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
