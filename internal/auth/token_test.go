package auth

import (
	"testing"
	"time"
)

func testTokenConfig(ttl time.Duration) TokenConfig {
	return TokenConfig{Secret: []byte("unit-test-secret"), TTL: ttl, Issuer: "admin-core"}
}

func TestIssueAndParseToken(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig(time.Hour)
	meta := LoginMeta{
		IPAddr:    "203.0.113.9",
		Browser:   "Chrome",
		OS:        "Linux",
		LoginTime: "2026-01-02 03:04:05",
	}

	tok, err := IssueToken(cfg, 42, "alice", "sess-1", meta)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	claims, err := ParseToken(cfg, tok)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("userID mismatch: got %d want 42", claims.UserID)
	}
	if claims.UserName != "alice" {
		t.Fatalf("userName mismatch: got %q want %q", claims.UserName, "alice")
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("sessionID mismatch: got %q want %q", claims.SessionID, "sess-1")
	}
	if claims.Login.IPAddr != meta.IPAddr || claims.Login.Browser != meta.Browser {
		t.Fatalf("login meta mismatch: got %+v", claims.Login)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken(testTokenConfig(time.Hour), 1, "bob", "sess-2", LoginMeta{})
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	other := TokenConfig{Secret: []byte("different-secret"), TTL: time.Hour, Issuer: "admin-core"}
	if _, err := ParseToken(other, tok); err == nil {
		t.Fatal("expected error for wrong secret, got nil")
	}
}

func TestParseTokenExpired(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken(testTokenConfig(-time.Minute), 1, "bob", "sess-3", LoginMeta{})
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if _, err := ParseToken(testTokenConfig(time.Hour), tok); err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
}

func TestParseTokenGarbage(t *testing.T) {
	t.Parallel()

	if _, err := ParseToken(testTokenConfig(time.Hour), "not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token, got nil")
	}
}
