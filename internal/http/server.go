// Package http exposes the billing services as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dormbill/internal/auth"
	"dormbill/internal/log"
	"dormbill/internal/metrics"
	"dormbill/internal/middleware/ratelimit"
	"dormbill/internal/middleware/security"
	"dormbill/internal/middleware/trace"
	"dormbill/internal/services"
)

// Services are the operations the API delegates to.
type Services struct {
	Ledgers   *services.LedgerService
	Payments  *services.PaymentService
	Summaries *services.SummaryService
}

// Options configure the server.
type Options struct {
	Addr               string
	Auth               auth.Validator
	Metrics            *metrics.Metrics
	Logger             *log.Logger
	RateLimitPerMinute int
	CurrencySymbol     string
	// Ready reports whether dependencies (the database) are usable.
	Ready func(ctx context.Context) error
	Now   func() time.Time
}

type Server struct {
	http.Server
	svc      Services
	opts     Options
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	resolver *security.Resolver

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "₱"
	}

	s := &Server{
		svc:      svc,
		opts:     opts,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		resolver: security.DefaultResolver(),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	var observe trace.ObserveFunc
	if s.opts.Metrics != nil {
		observe = s.opts.Metrics.ObserveHTTP
	}
	tracer := trace.NewMiddleware(s.opts.Logger, s.resolver.ClientIP, observe)

	r := chi.NewRouter()
	r.Use(tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	limitWrites := s.limiter.Middleware(s.resolver.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later")
	})
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.opts.Auth))

		r.Get("/payment-methods", s.handleListMethods)
		r.With(adminOnly).Get("/summaries", s.handleListSummaries)

		r.Route("/dormers", func(r chi.Router) {
			r.With(adminOnly).Get("/", s.handleListDormers)
			r.With(adminOnly, limitWrites).Post("/", s.handleCreateDormer)

			r.Route("/{dormerID}", func(r chi.Router) {
				r.Use(auth.RequireOwnerOrRole(dormerOwner, auth.RoleAdmin))
				r.Get("/", s.handleGetDormer)
				r.Get("/ledgers", s.handleListLedgers)
				r.With(adminOnly, limitWrites).Post("/ledgers", s.handleCreateLedger)
				r.Get("/summary", s.handleDormerSummary)
				r.Get("/export.csv", s.handleExportCSV)
			})
		})

		r.Route("/ledgers/{ledgerID}", func(r chi.Router) {
			r.Use(auth.RequireOwnerOrRole(s.ledgerOwner, auth.RoleAdmin))
			r.Get("/", s.handleGetLedger)
			r.Get("/payments", s.handleListPayments)
			r.With(adminOnly, limitWrites).Post("/payments", s.handleRecordPayment)
		})
	})
	return r
}

func dormerOwner(r *http.Request) (string, error) {
	return chi.URLParam(r, "dormerID"), nil
}

func (s *Server) ledgerOwner(r *http.Request) (string, error) {
	l, err := s.svc.Ledgers.GetLedger(r.Context(), chi.URLParam(r, "ledgerID"))
	if err != nil {
		return "", err
	}
	return l.DormerID, nil
}

// Shutdown stops the limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeProblem(w, http.StatusServiceUnavailable, "not_ready", "storage unavailable")
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
