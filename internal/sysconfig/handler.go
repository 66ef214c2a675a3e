package sysconfig

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/web"
)

// Handler exposes the system configuration endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /system/config/list.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Errorw("list configs failed", "err", err)
		web.Error(w, "failed to query configs")
		return
	}
	web.OK(w, rows)
}

// Get handles GET /system/config/{key}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			web.NotFound(w, "config not found")
			return
		}
		h.logger.Errorw("get config failed", "err", err)
		web.Error(w, "failed to query config")
		return
	}
	web.OK(w, c)
}

// CreateRequest is the POST /system/config payload.
type CreateRequest struct {
	ConfigKey   string `json:"configKey"`
	ConfigValue string `json:"configValue"`
	Remark      string `json:"remark"`
}

// Create handles POST /system/config.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConfigKey == "" {
		web.BadRequest(w, "invalid payload")
		return
	}
	if err := h.svc.Create(r.Context(), req.ConfigKey, req.ConfigValue, req.Remark); err != nil {
		h.logger.Errorw("create config failed", "key", req.ConfigKey, "err", err)
		web.Error(w, "failed to create config")
		return
	}
	web.OK(w, nil)
}

// UpdateRequest is the PUT /system/config payload.
type UpdateRequest struct {
	ConfigKey   string `json:"configKey"`
	ConfigValue string `json:"configValue"`
	Version     int64  `json:"version"`
}

// Update handles PUT /system/config.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConfigKey == "" {
		web.BadRequest(w, "invalid payload")
		return
	}
	if err := h.svc.Set(r.Context(), req.ConfigKey, req.ConfigValue, req.Version); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			web.NotFound(w, "config not found")
		case errors.Is(err, ErrVersionConflict):
			web.Fail(w, "config was modified concurrently, reload and retry")
		default:
			h.logger.Errorw("update config failed", "key", req.ConfigKey, "err", err)
			web.Error(w, "failed to update config")
		}
		return
	}
	web.OK(w, nil)
}

// Refresh handles POST /system/config/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		h.logger.Errorw("refresh config cache failed", "err", err)
		web.Error(w, "failed to refresh config cache")
		return
	}
	web.OK(w, nil)
}
