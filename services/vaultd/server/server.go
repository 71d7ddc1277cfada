// Package server exposes the vault and strategy over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptvault/core/state"
	"cryptvault/deploy"
	"cryptvault/observability"
	"cryptvault/observability/logging"
	"cryptvault/services/indexer"
)

// HistorySource serves archived harvests.
type HistorySource interface {
	History(ctx context.Context, filter indexer.HistoryFilter) ([]indexer.HarvestRecord, error)
}

// Config captures the dependencies of the HTTP server.
type Config struct {
	Journal    *state.Journal
	Deployment *deploy.Deployment
	// History is optional; /strategy/history answers 404 without it.
	History   HistorySource
	RateLimit RateLimit

	// Auth guards the POST routes; without a secret they answer 401.
	Auth   AuthConfig
	Logger *slog.Logger
}

// Server routes HTTP requests onto the vault and strategy. Reads run under
// Journal.View and writes under Journal.Exec.
type Server struct {
	journal    *state.Journal
	deployment *deploy.Deployment
	history    HistorySource
	limiter    *RateLimiter
	auth       *Authenticator
	logger     *slog.Logger
	router     http.Handler
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.Journal == nil || cfg.Deployment == nil || cfg.Deployment.Vault == nil {
		return nil, fmt.Errorf("server: journal and deployment required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		journal:    cfg.Journal,
		deployment: cfg.Deployment,
		history:    cfg.History,
		limiter:    NewRateLimiter(cfg.RateLimit),
		logger:     logger.With("component", "http"),
	}
	s.auth = NewAuthenticator(cfg.Auth, s.logger)
	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Use(s.observe)

		r.Get("/vault", s.handleVault)
		r.Get("/vault/holders/{address}", s.handleHolder)
		r.Get("/strategy", s.handleStrategy)
		r.Get("/strategy/estimate", s.handleEstimate)
		r.Get("/strategy/apr", s.handleAPR)
		r.Get("/strategy/history", s.handleHistory)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Post("/vault/deposit", s.handleDeposit)
			r.Post("/vault/withdraw", s.handleWithdraw)
			r.Post("/strategy/harvest", s.handleHarvest)
			r.Post("/strategy/{action:(pause|unpause|panic|retire)}", s.handleLifecycle)
		})
	})
	return r
}

// observe records per-route metrics and an access log line.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(recorder, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		status := recorder.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.Endpoints().Observe(route, r.Method, status, time.Since(start))
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"durationMs", time.Since(start).Milliseconds(),
			"requestId", chimw.GetReqID(r.Context()))
	})
}
