package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/web"
)

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig(time.Hour)
	store := seedUser(t, "alice", "secret1", "0")
	svc, _ := newTestService(t, store, &fakeLogs{}, &fakeSwitches{})

	tok, err := IssueToken(cfg, 7, "alice", "sess-9", LoginMeta{})
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	var gotIdentity web.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = web.IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireAuth(svc, cfg, zap.NewNop().Sugar())(next)

	// valid token; session check passes through while redis is down
	r := httptest.NewRequest(http.MethodGet, "/getInfo", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if gotIdentity.UserID != 7 || gotIdentity.UserName != "alice" || gotIdentity.SessionID != "sess-9" {
		t.Fatalf("identity mismatch: %+v", gotIdentity)
	}

	// missing header
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/getInfo", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for missing token", rec.Code)
	}

	// malformed token
	r = httptest.NewRequest(http.MethodGet, "/getInfo", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for bad token", rec.Code)
	}

	// wrong scheme
	r = httptest.NewRequest(http.MethodGet, "/getInfo", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for wrong scheme", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Token abc", ""},
		{"Bearer", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(r); got != tc.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
