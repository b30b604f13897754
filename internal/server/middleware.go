package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"shifttime/internal/config"
	"shifttime/internal/security"
)

// MaxBodyBytes caps JSON request bodies
const MaxBodyBytes = 1 << 20 // 1 MB

// securityHeaders are sent on every response. No Content-Security-Policy
// and no Cross-Origin-Resource-Policy are set.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-DNS-Prefetch-Control", "off"},
	{"X-Download-Options", "noopen"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "no-referrer"},
	{"Strict-Transport-Security", "max-age=15552000; includeSubDomains"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Origin-Agent-Cluster", "?1"},
}

// SecurityHeaders sets securityHeaders before the handler runs
func SecurityHeaders(next http.Handler) http.Handler {
	for i := len(securityHeaders) - 1; i >= 0; i-- {
		next = middleware.SetHeader(securityHeaders[i][0], securityHeaders[i][1])(next)
	}
	return next
}

// NewCORSMiddleware accepts any origin when cfg allows all, otherwise only
// origins in the allow-list. Requests without an Origin header (curl,
// server to server) are never blocked.
func NewCORSMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}

	if cfg.AllowAll() {
		opts.AllowedOrigins = []string{"*"}
	} else {
		allowed := make(map[string]bool, len(cfg.AllowList))
		for _, origin := range cfg.AllowList {
			allowed[origin] = true
		}
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool {
			return allowed[origin]
		}
	}

	return cors.Handler(opts)
}

// NewRequestLogger logs one http_request line per request
func NewRequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// NewRecoverer turns a handler panic into a JSON 500 carrying the panic
// value. It sits inside the request logger and metrics so both record the
// 500. http.ErrAbortHandler is re-panicked for net/http to handle.
func NewRecoverer(logger *slog.Logger, redactor *security.Redactor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				message := redactor.Redact(fmt.Sprint(rec))
				logger.Error("Panic recovered",
					"path", r.URL.Path,
					"error", message,
					"request_id", middleware.GetReqID(r.Context()),
					"stack", redactor.Redact(string(debug.Stack())))
				respondJSON(w, logger, http.StatusInternalServerError, map[string]string{"error": message})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
