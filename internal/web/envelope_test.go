package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url      string
		wantNum  int
		wantSize int
	}{
		{"/list", 1, 10},
		{"/list?pageNum=3&pageSize=20", 3, 20},
		{"/list?pageNum=0&pageSize=0", 1, 10},
		{"/list?pageNum=-5&pageSize=-1", 1, 10},
		{"/list?pageNum=2&pageSize=1000", 2, 10},
		{"/list?pageNum=abc&pageSize=xyz", 1, 10},
		{"/list?pageSize=100", 1, 100},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, tc.url, nil)
		got := ParsePage(r)
		if got.PageNum != tc.wantNum || got.PageSize != tc.wantSize {
			t.Errorf("ParsePage(%q) = %+v, want num=%d size=%d", tc.url, got, tc.wantNum, tc.wantSize)
		}
	}
}

func TestPageQueryOffset(t *testing.T) {
	t.Parallel()

	if got := (PageQuery{PageNum: 1, PageSize: 10}).Offset(); got != 0 {
		t.Fatalf("Offset() = %d, want 0", got)
	}
	if got := (PageQuery{PageNum: 3, PageSize: 25}).Offset(); got != 50 {
		t.Fatalf("Offset() = %d, want 50", got)
	}
}

func TestOKEnvelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"n": 1})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != CodeSuccess || env.Msg != "success" {
		t.Fatalf("envelope mismatch: %+v", env)
	}
}

func TestFailIsSoftFailure(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Fail(rec, "rule violated")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a soft failure", rec.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != CodeError || env.Msg != "rule violated" {
		t.Fatalf("envelope mismatch: %+v", env)
	}
}

func TestPageEnvelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Page(rec, []string{"a", "b"}, 42)

	var env PageEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Total != 42 || env.Code != CodeSuccess {
		t.Fatalf("envelope mismatch: %+v", env)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		fn   func(http.ResponseWriter, string)
		want int
	}{
		{"BadRequest", BadRequest, http.StatusBadRequest},
		{"Unauthorized", Unauthorized, http.StatusUnauthorized},
		{"Forbidden", Forbidden, http.StatusForbidden},
		{"NotFound", NotFound, http.StatusNotFound},
		{"Error", Error, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		tc.fn(rec, "msg")
		if rec.Code != tc.want {
			t.Errorf("%s wrote status %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}
