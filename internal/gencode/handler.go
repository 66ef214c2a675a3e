package gencode

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/gencode/entity"
	"github.com/opsarch/admin-core/internal/gencode/repo"
	"github.com/opsarch/admin-core/internal/web"
)

// Handler exposes the code generation endpoints.
type Handler struct {
	meta   *repo.MetaRepo
	logger *zap.SugaredLogger
}

func NewHandler(meta *repo.MetaRepo, logger *zap.SugaredLogger) *Handler {
	return &Handler{meta: meta, logger: logger}
}

// Tables handles GET /tool/gen/tables.
func (h *Handler) Tables(w http.ResponseWriter, r *http.Request) {
	page := web.ParsePage(r)
	q := entity.ListQuery{
		TableName: r.URL.Query().Get("tableName"),
		Limit:     page.PageSize,
		Offset:    page.Offset(),
	}
	tables, err := h.meta.ListTables(r.Context(), q)
	if err != nil {
		h.logger.Errorw("list tables failed", "err", err)
		web.Error(w, "failed to query tables")
		return
	}
	total, err := h.meta.CountTables(r.Context(), q)
	if err != nil {
		h.logger.Errorw("count tables failed", "err", err)
		web.Error(w, "failed to query tables")
		return
	}
	web.Page(w, tables, total)
}

// Columns handles GET /tool/gen/columns/{table}.
func (h *Handler) Columns(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	cols, err := h.meta.GetColumns(r.Context(), table)
	if err != nil {
		h.logger.Errorw("get columns failed", "table", table, "err", err)
		web.Error(w, "failed to query columns")
		return
	}
	if len(cols) == 0 {
		web.NotFound(w, "table not found")
		return
	}
	web.OK(w, cols)
}

// Preview handles GET /tool/gen/preview/{table}, rendering the generated
// sources without writing anything to disk.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	cols, err := h.meta.GetColumns(r.Context(), table)
	if err != nil {
		h.logger.Errorw("get columns failed", "table", table, "err", err)
		web.Error(w, "failed to query columns")
		return
	}
	if len(cols) == 0 {
		web.NotFound(w, "table not found")
		return
	}
	files, err := Generate(table, cols)
	if err != nil {
		h.logger.Errorw("generate preview failed", "table", table, "err", err)
		web.Error(w, "failed to generate preview")
		return
	}
	web.OK(w, files)
}
