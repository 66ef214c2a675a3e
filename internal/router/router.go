package router

import (
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/internal/appuser"
	"github.com/opsarch/admin-core/internal/auth"
	"github.com/opsarch/admin-core/internal/gencode"
	"github.com/opsarch/admin-core/internal/loginlog"
	"github.com/opsarch/admin-core/internal/monitor"
	"github.com/opsarch/admin-core/internal/online"
	"github.com/opsarch/admin-core/internal/sysconfig"
	"github.com/opsarch/admin-core/internal/web"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// slowThreshold marks requests worth a warning instead of a debug line.
const slowThreshold = time.Second

// LoggingMiddleware logs each request and bumps the request counter. Slow
// requests are promoted to warn level.
func LoggingMiddleware(logger *zap.SugaredLogger, rec *monitor.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds()) / 1000.0,
				"size", lrw.size,
			}
			if dur >= slowThreshold {
				logger.Warnw("slow http request", fields...)
			} else {
				logger.Debugw("http request", fields...)
			}
			rec.Incr(r.Context(), "http_request")
		})
	}
}

// RecoveryMiddleware turns handler panics into a 500 envelope.
func RecoveryMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorw("panic recovered",
						"path", r.URL.Path,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					web.Error(w, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
// It is intentionally simple and conservative so it works with most setups.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps bundles the wired handlers and the auth pieces the router needs.
type Deps struct {
	Auth      *auth.Handler
	AuthSvc   *auth.Service
	TokenCfg  auth.TokenConfig
	Users     *appuser.Handler
	LoginLogs *loginlog.Handler
	Online    *online.Handler
	Configs   *sysconfig.Handler
	Monitor   *monitor.Handler
	Gen       *gencode.Handler
	Recorder  *monitor.Recorder
	Logger    *zap.SugaredLogger
}

// RegisterRoutes mounts all endpoints on the standard library's
// http.ServeMux. Authenticated routes sit behind the bearer-token
// middleware; login, register, captcha and health stay public.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// public auth endpoints
	mux.HandleFunc("POST /login", d.Auth.Login)
	mux.HandleFunc("POST /register", d.Auth.Register)
	mux.HandleFunc("POST /logout", d.Auth.Logout)
	mux.HandleFunc("GET /captchaImage", d.Auth.CaptchaImage)

	// everything below requires a live session
	protected := http.NewServeMux()

	protected.HandleFunc("GET /getInfo", d.Auth.GetInfo)

	protected.HandleFunc("GET /app/user/list", d.Users.List)
	protected.HandleFunc("GET /app/user/profile", d.Users.GetProfile)
	protected.HandleFunc("PUT /app/user/profile", d.Users.SaveProfile)
	protected.HandleFunc("PUT /app/user/password", d.Users.ChangePassword)
	protected.HandleFunc("PUT /app/user/status", d.Users.ChangeStatus)
	protected.HandleFunc("PUT /app/user/reset-password", d.Users.ResetPassword)
	protected.HandleFunc("GET /app/user/{id}", d.Users.Get)
	protected.HandleFunc("POST /app/user", d.Users.Create)
	protected.HandleFunc("PUT /app/user", d.Users.Update)
	protected.HandleFunc("DELETE /app/user/{ids}", d.Users.Delete)
	protected.HandleFunc("GET /app/stats/overview", d.Users.Stats)

	protected.HandleFunc("GET /app/login-log/list", d.LoginLogs.List)
	protected.HandleFunc("DELETE /app/login-log/clear", d.LoginLogs.Clear)

	protected.HandleFunc("GET /monitor/online/list", d.Online.List)
	protected.HandleFunc("DELETE /monitor/online/{tokenIds}", d.Online.ForceLogout)

	protected.HandleFunc("GET /system/config/list", d.Configs.List)
	protected.HandleFunc("GET /system/config/{key}", d.Configs.Get)
	protected.HandleFunc("POST /system/config", d.Configs.Create)
	protected.HandleFunc("PUT /system/config", d.Configs.Update)
	protected.HandleFunc("POST /system/config/refresh", d.Configs.Refresh)

	protected.HandleFunc("GET /monitor/cache", d.Monitor.CacheOverview)
	protected.HandleFunc("GET /monitor/cache/getNames", d.Monitor.CacheNames)
	protected.HandleFunc("GET /monitor/cache/getKeys/{cacheName}", d.Monitor.CacheKeys)
	protected.HandleFunc("GET /monitor/cache/getValue/{cacheName}/{cacheKey}", d.Monitor.CacheValue)
	protected.HandleFunc("DELETE /monitor/cache/clearCacheName/{cacheName}", d.Monitor.ClearCacheName)
	protected.HandleFunc("DELETE /monitor/cache/clearCacheKey/{cacheKey}", d.Monitor.ClearCacheKey)
	protected.HandleFunc("DELETE /monitor/cache/clearCacheAll", d.Monitor.ClearCacheAll)
	protected.HandleFunc("GET /monitor/server", d.Monitor.Server)
	protected.HandleFunc("GET /monitor/metrics", d.Monitor.Metrics)

	protected.HandleFunc("GET /tool/gen/tables", d.Gen.Tables)
	protected.HandleFunc("GET /tool/gen/columns/{table}", d.Gen.Columns)
	protected.HandleFunc("GET /tool/gen/preview/{table}", d.Gen.Preview)

	requireAuth := auth.RequireAuth(d.AuthSvc, d.TokenCfg, d.Logger)
	mux.Handle("/", requireAuth(protected))

	handler := RecoveryMiddleware(d.Logger)(
		LoggingMiddleware(d.Logger, d.Recorder)(
			SecurityHeadersMiddleware()(mux)))
	return handler
}
