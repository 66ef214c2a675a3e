package loginlog

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/loginlog/entity"
	"github.com/opsarch/admin-core/internal/web"
)

// Handler exposes the login log endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /app/login-log/list.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := web.ParsePage(r)
	q := r.URL.Query()
	lq := entity.ListQuery{
		UserName: q.Get("userName"),
		IPAddr:   q.Get("ipaddr"),
		Status:   q.Get("status"),
		Limit:    page.PageSize,
		Offset:   page.Offset(),
	}
	if t, ok := parseTime(q.Get("beginTime")); ok {
		lq.BeginTime = &t
	}
	if t, ok := parseTime(q.Get("endTime")); ok {
		lq.EndTime = &t
	}
	rows, total, err := h.svc.List(r.Context(), lq)
	if err != nil {
		h.logger.Errorw("list login logs failed", "err", err)
		web.Error(w, "failed to query login logs")
		return
	}
	web.Page(w, rows, total)
}

// Clear handles DELETE /app/login-log/clear.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		h.logger.Errorw("clear login logs failed", "err", err)
		web.Error(w, "failed to clear login logs")
		return
	}
	web.OK(w, nil)
}

func parseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
