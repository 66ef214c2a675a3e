package web

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Envelope is the uniform response wrapper used by every endpoint.
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// PageEnvelope wraps paginated list responses.
type PageEnvelope struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Rows  any    `json:"rows"`
	Total int64  `json:"total"`
}

const (
	CodeSuccess      = 200
	CodeError        = 500
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeBadRequest   = 400
)

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a success envelope with optional data.
func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, Envelope{Code: CodeSuccess, Msg: "success", Data: data})
}

// OKWithMsg writes a success envelope with a custom message.
func OKWithMsg(w http.ResponseWriter, msg string, data any) {
	write(w, http.StatusOK, Envelope{Code: CodeSuccess, Msg: msg, Data: data})
}

// Page writes a paginated success envelope.
func Page(w http.ResponseWriter, rows any, total int64) {
	write(w, http.StatusOK, PageEnvelope{Code: CodeSuccess, Msg: "success", Rows: rows, Total: total})
}

// Fail writes a soft business failure: HTTP 200 with a non-success code so
// clients distinguish rule violations from transport errors.
func Fail(w http.ResponseWriter, msg string) {
	write(w, http.StatusOK, Envelope{Code: CodeError, Msg: msg})
}

// BadRequest writes a validation failure.
func BadRequest(w http.ResponseWriter, msg string) {
	write(w, http.StatusBadRequest, Envelope{Code: CodeBadRequest, Msg: msg})
}

// Unauthorized writes an authentication failure.
func Unauthorized(w http.ResponseWriter, msg string) {
	write(w, http.StatusUnauthorized, Envelope{Code: CodeUnauthorized, Msg: msg})
}

// Forbidden writes an authorization failure.
func Forbidden(w http.ResponseWriter, msg string) {
	write(w, http.StatusForbidden, Envelope{Code: CodeForbidden, Msg: msg})
}

// NotFound writes a missing-entity failure.
func NotFound(w http.ResponseWriter, msg string) {
	write(w, http.StatusNotFound, Envelope{Code: CodeNotFound, Msg: msg})
}

// Error writes an unexpected internal failure.
func Error(w http.ResponseWriter, msg string) {
	write(w, http.StatusInternalServerError, Envelope{Code: CodeError, Msg: msg})
}

// PageQuery carries the normalized pagination parameters.
type PageQuery struct {
	PageNum  int
	PageSize int
}

// Offset converts the page parameters to a SQL OFFSET.
func (p PageQuery) Offset() int { return (p.PageNum - 1) * p.PageSize }

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ParsePage reads pageNum/pageSize query parameters with clamping:
// pageNum >= 1, 1 <= pageSize <= 100 (default 10).
func ParsePage(r *http.Request) PageQuery {
	q := r.URL.Query()
	num, _ := strconv.Atoi(q.Get("pageNum"))
	if num < 1 {
		num = 1
	}
	size, _ := strconv.Atoi(q.Get("pageSize"))
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}
	return PageQuery{PageNum: num, PageSize: size}
}
