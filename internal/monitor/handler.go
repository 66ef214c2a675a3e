package monitor

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/web"
	"github.com/opsarch/admin-core/pkg/cache"
)

// Handler exposes the monitoring endpoints.
type Handler struct {
	caches   *CacheService
	recorder *Recorder
	logger   *zap.SugaredLogger
}

func NewHandler(caches *CacheService, recorder *Recorder, logger *zap.SugaredLogger) *Handler {
	return &Handler{caches: caches, recorder: recorder, logger: logger}
}

// CacheOverview handles GET /monitor/cache.
func (h *Handler) CacheOverview(w http.ResponseWriter, r *http.Request) {
	out, err := h.caches.Overview(r.Context())
	if err != nil {
		h.logger.Errorw("cache overview failed", "err", err)
		web.Error(w, "failed to query cache info")
		return
	}
	web.OK(w, out)
}

// CacheNames handles GET /monitor/cache/getNames.
func (h *Handler) CacheNames(w http.ResponseWriter, r *http.Request) {
	web.OK(w, h.caches.Names())
}

// CacheKeys handles GET /monitor/cache/getKeys/{cacheName}.
func (h *Handler) CacheKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.caches.KeysByName(r.Context(), r.PathValue("cacheName"))
	if err != nil {
		h.logger.Errorw("list cache keys failed", "err", err)
		web.Error(w, "failed to list cache keys")
		return
	}
	web.OK(w, keys)
}

// CacheValue handles GET /monitor/cache/getValue/{cacheName}/{cacheKey}.
func (h *Handler) CacheValue(w http.ResponseWriter, r *http.Request) {
	kv, err := h.caches.GetValue(r.Context(), r.PathValue("cacheKey"))
	if err != nil {
		switch {
		case errors.Is(err, cache.ErrMiss):
			web.NotFound(w, "cache key not found")
		case errors.Is(err, cache.ErrUnavailable):
			web.Fail(w, "cache unavailable")
		default:
			h.logger.Errorw("get cache value failed", "err", err)
			web.Error(w, "failed to read cache value")
		}
		return
	}
	web.OK(w, kv)
}

// ClearCacheName handles DELETE /monitor/cache/clearCacheName/{cacheName}.
func (h *Handler) ClearCacheName(w http.ResponseWriter, r *http.Request) {
	n, err := h.caches.ClearByName(r.Context(), r.PathValue("cacheName"))
	if err != nil {
		h.logger.Errorw("clear cache name failed", "err", err)
		web.Error(w, "failed to clear cache")
		return
	}
	web.OK(w, map[string]int{"cleared": n})
}

// ClearCacheKey handles DELETE /monitor/cache/clearCacheKey/{cacheKey}.
func (h *Handler) ClearCacheKey(w http.ResponseWriter, r *http.Request) {
	if err := h.caches.ClearKey(r.Context(), r.PathValue("cacheKey")); err != nil {
		h.logger.Errorw("clear cache key failed", "err", err)
		web.Error(w, "failed to clear cache key")
		return
	}
	web.OKWithMsg(w, "cache key cleared", nil)
}

// ClearCacheAll handles DELETE /monitor/cache/clearCacheAll.
func (h *Handler) ClearCacheAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.caches.ClearAll(r.Context())
	if err != nil {
		h.logger.Errorw("clear all caches failed", "err", err)
		web.Error(w, "failed to clear caches")
		return
	}
	web.OK(w, map[string]int{"cleared": n})
}

// Server handles GET /monitor/server.
func (h *Handler) Server(w http.ResponseWriter, r *http.Request) {
	web.OK(w, CollectServerInfo())
}

// Metrics handles GET /monitor/metrics?name=...&days=7.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		web.BadRequest(w, "metric name required")
		return
	}
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 30 {
			days = n
		}
	}
	counters, err := h.recorder.Counters(r.Context(), name, days)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			web.OK(w, map[string]int64{})
			return
		}
		h.logger.Errorw("read metrics failed", "metric", name, "err", err)
		web.Error(w, "failed to read metrics")
		return
	}
	web.OK(w, counters)
}
