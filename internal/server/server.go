package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"shifttime/internal/config"
	"shifttime/internal/deployment"
	"shifttime/internal/dns"
	"shifttime/internal/kv"
	"shifttime/internal/metrics"
	"shifttime/internal/netlify"
	"shifttime/internal/project"
	"shifttime/internal/security"
	"shifttime/internal/sheets"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 90 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware. Deploys wait on the provider upload.
	RequestTimeout = 75 * time.Second

	// ServiceName is reported by the health endpoint
	ServiceName = "shifttime_api"
)

// Server represents the HTTP server
type Server struct {
	Config   *config.Config
	Sheets   *sheets.Client
	KV       *kv.Store
	Projects *project.Repository
	Netlify  *netlify.Client
	Pipeline *deployment.Pipeline
	Linker   *dns.Linker
	Limiter  RateLimiter
	Logger   *slog.Logger

	httpServer *http.Server
	redactor   *security.Redactor
	now        func() time.Time
}

// NewServer wires every component from cfg
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	metrics.Init()

	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}
	sheetsClient := sheets.NewClient(cfg.SheetsURL, upstream, logger)
	store := kv.NewStore(sheetsClient)
	repo := project.NewRepository(sheetsClient)

	host := netlify.NewClient(netlify.Options{
		Token:   cfg.Netlify.Token,
		Team:    cfg.Netlify.Team,
		APIURL:  cfg.Netlify.APIURL,
		Timeout: cfg.UpstreamTimeout,
		Logger:  logger,
	})

	var linker *dns.Linker
	if cfg.Cloudflare.Enabled() {
		var err error
		linker, err = dns.NewLinker(cfg.Cloudflare.APIToken, cfg.Cloudflare.ZoneID, cfg.Cloudflare.Proxied, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("DNS linking enabled", "zone_id", cfg.Cloudflare.ZoneID)
	}

	limiter, err := NewRateLimiter(cfg.RateLimit, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Config:   cfg,
		Sheets:   sheetsClient,
		KV:       store,
		Projects: repo,
		Netlify:  host,
		Pipeline: deployment.NewPipeline(repo, store, host, linker, cfg.Netlify.SitePrefix, logger),
		Linker:   linker,
		Limiter:  limiter,
		Logger:   logger,
		redactor: security.NewRedactor(cfg.SheetsURL, cfg.Netlify.Token, cfg.Cloudflare.APIToken, cfg.RateLimit.RedisPassword),
		now:      time.Now,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}
	return s, nil
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewRequestLogger(s.Logger))
	r.Use(metrics.Middleware)
	r.Use(NewRecoverer(s.Logger, s.redactor))
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(SecurityHeaders)
	r.Use(NewCORSMiddleware(s.Config.CORS))
	r.Use(middleware.RequestSize(MaxBodyBytes))

	// Browser UI and metrics live outside the throttled API
	r.Get("/", s.HandleIndex)
	r.Get("/app.js", s.HandleIndex)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(NewRateLimitMiddleware(s.Limiter, s.Config.RateLimit.Requests, s.Config.RateLimit.Window, s.Logger))

		r.Get("/health", s.HandleHealth)
		r.Get("/templates", s.HandleTemplates)

		r.Get("/kv", s.HandleKVList)
		r.Post("/kv", s.HandleKVUpsert)

		r.Get("/projects", s.HandleProjectsList)
		r.Post("/projects", s.HandleProjectsCreate)
		r.Get("/projects/{id}", s.HandleProjectGet)

		r.Post("/netlify/site", s.HandleProvisionSite)
		r.Post("/publish", s.HandlePublish)
		r.Post("/deploy", s.HandleDeploy)

		r.NotFound(s.HandleUnknownAPI)
		r.MethodNotAllowed(s.HandleUnknownAPI)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := s.httpServer.Addr
	s.Logger.Info("Starting server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if s.Limiter != nil {
		s.Limiter.Close()
	}
	return err
}
