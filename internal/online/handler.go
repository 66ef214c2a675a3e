package online

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/web"
	"github.com/opsarch/admin-core/pkg/cache"
)

// Handler exposes the online session endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /monitor/online/list. The full set is small enough to
// page in memory after the Redis scan.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessions, err := h.svc.List(r.Context(), ListQuery{
		UserName: q.Get("userName"),
		IPAddr:   q.Get("ipaddr"),
	})
	if err != nil {
		h.logger.Errorw("list online sessions failed", "err", err)
		web.Error(w, "failed to query online sessions")
		return
	}
	total := int64(len(sessions))
	page := web.ParsePage(r)
	start := page.Offset()
	if start > len(sessions) {
		start = len(sessions)
	}
	end := start + page.PageSize
	if end > len(sessions) {
		end = len(sessions)
	}
	web.Page(w, sessions[start:end], total)
}

// ForceLogout handles DELETE /monitor/online/{tokenIds}.
func (h *Handler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	ids := strings.Split(r.PathValue("tokenIds"), ",")
	if err := h.svc.ForceLogout(r.Context(), ids); err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			web.Fail(w, "session store unavailable")
			return
		}
		h.logger.Errorw("force logout failed", "err", err)
		web.Error(w, "failed to force logout")
		return
	}
	web.OKWithMsg(w, "sessions terminated", nil)
}
