package gencode

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/opsarch/admin-core/internal/gencode/entity"
)

// File is one generated source file.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// tableModel is the template input built from one table's metadata.
type tableModel struct {
	TableName  string
	StructName string
	Package    string
	PrimaryKey fieldModel
	Fields     []fieldModel
	HasTime    bool
	HasJSON    bool
}

type fieldModel struct {
	Name     string // Go field name
	Column   string // db column name
	JSONName string
	GoType   string
	Primary  bool
	Comment  string
}

// BuildModel maps the table metadata to Go naming and types. The first
// primary key column wins; tables without one fall back to the first
// column.
func BuildModel(table string, cols []entity.Column) (*tableModel, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}
	m := &tableModel{
		TableName:  table,
		StructName: camelCase(table, true),
		Package:    packageName(table),
	}
	for _, c := range cols {
		f := fieldModel{
			Name:     camelCase(c.Name, true),
			Column:   c.Name,
			JSONName: camelCase(c.Name, false),
			GoType:   goType(c),
			Primary:  c.IsPrimary,
			Comment:  c.Comment,
		}
		m.Fields = append(m.Fields, f)
		if strings.Contains(f.GoType, "time.Time") {
			m.HasTime = true
		}
		if strings.Contains(f.GoType, "json.RawMessage") {
			m.HasJSON = true
		}
		if c.IsPrimary && m.PrimaryKey.Name == "" {
			m.PrimaryKey = f
		}
	}
	if m.PrimaryKey.Name == "" {
		m.PrimaryKey = m.Fields[0]
	}
	return m, nil
}

// Generate renders the four-layer skeleton for one table.
func Generate(table string, cols []entity.Column) ([]File, error) {
	m, err := BuildModel(table, cols)
	if err != nil {
		return nil, err
	}
	files := []File{}
	for _, t := range []struct {
		path string
		tmpl *template.Template
	}{
		{fmt.Sprintf("internal/%s/entity/%s.go", m.Package, m.Package), entityTmpl},
		{fmt.Sprintf("internal/%s/repo/%s_repo.go", m.Package, m.Package), repoTmpl},
		{fmt.Sprintf("internal/%s/service.go", m.Package), serviceTmpl},
		{fmt.Sprintf("internal/%s/handler.go", m.Package), handlerTmpl},
	} {
		var buf bytes.Buffer
		if err := t.tmpl.Execute(&buf, m); err != nil {
			return nil, fmt.Errorf("render %s: %w", t.path, err)
		}
		files = append(files, File{Path: t.path, Content: buf.String()})
	}
	return files, nil
}

// goType maps a postgres data type to the Go type used in this codebase.
// Nullable columns become pointers, except primary keys.
func goType(c entity.Column) string {
	var t string
	switch c.DataType {
	case "bigint", "bigserial":
		t = "int64"
	case "integer", "serial", "smallint":
		t = "int"
	case "boolean":
		t = "bool"
	case "numeric", "double precision", "real":
		t = "float64"
	case "timestamp without time zone", "timestamp with time zone", "date":
		t = "time.Time"
	case "bytea":
		return "[]byte"
	case "jsonb", "json":
		return "json.RawMessage"
	default:
		t = "string"
	}
	if c.Nullable && !c.IsPrimary {
		return "*" + t
	}
	return t
}

// camelCase converts snake_case to CamelCase (exported) or camelCase.
// Common initialisms keep their conventional casing.
func camelCase(s string, exported bool) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 && !exported {
			b.WriteString(strings.ToLower(p))
			continue
		}
		if up, ok := initialisms[p]; ok {
			b.WriteString(up)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

var initialisms = map[string]string{
	"id":   "ID",
	"ip":   "IP",
	"url":  "URL",
	"uuid": "UUID",
	"api":  "API",
	"os":   "OS",
}

// packageName strips the conventional app_/sys_ prefix and underscores.
func packageName(table string) string {
	name := table
	for _, prefix := range []string{"app_", "sys_", "tbl_"} {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}
	return strings.ReplaceAll(name, "_", "")
}

var entityTmpl = template.Must(template.New("entity").Parse(`package entity
{{- if or .HasTime .HasJSON}}

import (
{{- if .HasJSON}}
	"encoding/json"
{{- end}}
{{- if .HasTime}}
	"time"
{{- end}}
)
{{- end}}

// {{.StructName}} represents a row in the {{.TableName}} table.
type {{.StructName}} struct {
{{- range .Fields}}
	{{.Name}} {{.GoType}} ` + "`db:\"{{.Column}}\" json:\"{{.JSONName}}\"`" + `{{if .Comment}} // {{.Comment}}{{end}}
{{- end}}
}

// ListQuery carries the {{.TableName}} list filters.
type ListQuery struct {
	Limit  int
	Offset int
}
`))

var repoTmpl = template.Must(template.New("repo").Parse(`package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opsarch/admin-core/internal/{{.Package}}/entity"
)

// {{.StructName}}Repo persists {{.TableName}} rows.
type {{.StructName}}Repo struct {
	db *sqlx.DB
}

func New{{.StructName}}Repo(db *sqlx.DB) *{{.StructName}}Repo {
	return &{{.StructName}}Repo{db: db}
}

// GetByID loads one row by primary key.
func (r *{{.StructName}}Repo) GetByID(ctx context.Context, id {{.PrimaryKey.GoType}}) (*entity.{{.StructName}}, error) {
	var row entity.{{.StructName}}
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM {{.TableName}} WHERE {{.PrimaryKey.Column}} = $1", id)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns one page ordered by primary key.
func (r *{{.StructName}}Repo) List(ctx context.Context, q entity.ListQuery) ([]entity.{{.StructName}}, error) {
	rows := []entity.{{.StructName}}{}
	query := fmt.Sprintf(
		"SELECT * FROM {{.TableName}} ORDER BY {{.PrimaryKey.Column}} DESC LIMIT %d OFFSET %d",
		q.Limit, q.Offset)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list {{.TableName}}: %w", err)
	}
	return rows, nil
}

// Count returns the number of rows.
func (r *{{.StructName}}Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, "SELECT count(*) FROM {{.TableName}}"); err != nil {
		return 0, fmt.Errorf("count {{.TableName}}: %w", err)
	}
	return n, nil
}

// Delete removes rows by primary key.
func (r *{{.StructName}}Repo) Delete(ctx context.Context, ids []{{.PrimaryKey.GoType}}) (int64, error) {
	query, args, err := sqlx.In("DELETE FROM {{.TableName}} WHERE {{.PrimaryKey.Column}} IN (?)", ids)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete {{.TableName}}: %w", err)
	}
	return res.RowsAffected()
}
`))

var serviceTmpl = template.Must(template.New("service").Parse(`package {{.Package}}

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/{{.Package}}/entity"
	"github.com/opsarch/admin-core/internal/{{.Package}}/repo"
)

var ErrNotFound = errors.New("{{.TableName}}: not found")

// Service wraps the {{.TableName}} repository with business rules.
type Service struct {
	repo   *repo.{{.StructName}}Repo
	logger *zap.SugaredLogger
}

func NewService(r *repo.{{.StructName}}Repo, logger *zap.SugaredLogger) *Service {
	return &Service{repo: r, logger: logger}
}

func (s *Service) Get(ctx context.Context, id {{.PrimaryKey.GoType}}) (*entity.{{.StructName}}, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row, nil
}

func (s *Service) List(ctx context.Context, q entity.ListQuery) ([]entity.{{.StructName}}, int64, error) {
	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *Service) Delete(ctx context.Context, ids []{{.PrimaryKey.GoType}}) error {
	_, err := s.repo.Delete(ctx, ids)
	return err
}
`))

var handlerTmpl = template.Must(template.New("handler").Parse(`package {{.Package}}

import (
	"errors"
	"net/http"
{{- if ne .PrimaryKey.GoType "string"}}
	"strconv"
{{- end}}
	"strings"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/{{.Package}}/entity"
	"github.com/opsarch/admin-core/internal/web"
)

// Handler exposes the {{.TableName}} endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /{{.Package}}/list.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := web.ParsePage(r)
	rows, total, err := h.svc.List(r.Context(), entity.ListQuery{
		Limit:  page.PageSize,
		Offset: page.Offset(),
	})
	if err != nil {
		h.logger.Errorw("list {{.TableName}} failed", "err", err)
		web.Error(w, "failed to query {{.TableName}}")
		return
	}
	web.Page(w, rows, total)
}

// Get handles GET /{{.Package}}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
{{- if eq .PrimaryKey.GoType "string"}}
	id := r.PathValue("id")
	if id == "" {
		web.BadRequest(w, "invalid id")
		return
	}
{{- else if eq .PrimaryKey.GoType "int"}}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		web.BadRequest(w, "invalid id")
		return
	}
{{- else}}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		web.BadRequest(w, "invalid id")
		return
	}
{{- end}}
	row, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			web.NotFound(w, "{{.TableName}} not found")
			return
		}
		h.logger.Errorw("get {{.TableName}} failed", "id", id, "err", err)
		web.Error(w, "failed to query {{.TableName}}")
		return
	}
	web.OK(w, row)
}

// Delete handles DELETE /{{.Package}}/{ids}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.PathValue("ids"), ",")
	ids := make([]{{.PrimaryKey.GoType}}, 0, len(parts))
	for _, p := range parts {
{{- if eq .PrimaryKey.GoType "string"}}
		ids = append(ids, strings.TrimSpace(p))
{{- else if eq .PrimaryKey.GoType "int"}}
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			web.BadRequest(w, "invalid id list")
			return
		}
		ids = append(ids, id)
{{- else}}
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			web.BadRequest(w, "invalid id list")
			return
		}
		ids = append(ids, id)
{{- end}}
	}
	if err := h.svc.Delete(r.Context(), ids); err != nil {
		h.logger.Errorw("delete {{.TableName}} failed", "err", err)
		web.Error(w, "failed to delete {{.TableName}}")
		return
	}
	web.OKWithMsg(w, "deleted", nil)
}
`))
