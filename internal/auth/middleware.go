package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/web"
)

// RequireAuth rejects requests without a valid bearer token. The token must
// parse and its session key must still exist, so a logout or force-logout
// takes effect immediately.
func RequireAuth(svc *Service, cfg TokenConfig, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				web.Unauthorized(w, "missing token")
				return
			}
			claims, err := ParseToken(cfg, raw)
			if err != nil {
				web.Unauthorized(w, "invalid token")
				return
			}
			if !svc.SessionAlive(r.Context(), claims.SessionID) {
				web.Unauthorized(w, "session expired")
				return
			}
			ctx := web.WithIdentity(r.Context(), web.Identity{
				UserID:    claims.UserID,
				UserName:  claims.UserName,
				SessionID: claims.SessionID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
