// Package api is the REST surface the sync engine talks to.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
	"github.com/prudhvinik1/ledgersync/internal/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Deps is everything the handlers need.
type Deps struct {
	Repositories services.RepositoryResolver
	Accounts     *services.AccountService
	Loans        *services.LoanService
	Tokens       *services.TokenService
	Idempotency  repositories.IdempotencyRepository
	Logger       zerolog.Logger
	// Registry receives the HTTP metrics and is served on /metrics.
	Registry       *prometheus.Registry
	RequestTimeout time.Duration
}

type Server struct {
	repos    services.RepositoryResolver
	accounts *services.AccountService
	loans    *services.LoanService
	tokens   *services.TokenService
	idem     repositories.IdempotencyRepository
	logger   zerolog.Logger
	requests *prometheus.CounterVec
}

// NewHandler builds the chi router with all routes and middleware.
func NewHandler(d Deps) http.Handler {
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	if d.RequestTimeout == 0 {
		d.RequestTimeout = 15 * time.Second
	}
	s := &Server{
		repos:    d.Repositories,
		accounts: d.Accounts,
		loans:    d.Loans,
		tokens:   d.Tokens,
		idem:     d.Idempotency,
		logger:   d.Logger,
		requests: promauto.With(d.Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledgersync_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"method", "route", "status"}),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(hlog.NewHandler(d.Logger))
	router.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	router.Use(s.accessLog)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(d.RequestTimeout))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	router.Route("/api", func(r chi.Router) {
		r.Post("/accounts", s.createAccount)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/accounts/me", s.currentAccount)
			r.Get("/{collection}", s.list)
			r.Post("/{collection}", s.create)
			r.Get("/{collection}/{id}", s.get)
			r.Put("/{collection}/{id}", s.update)
			r.Delete("/{collection}/{id}", s.delete)
		})
	})

	return router
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		route := chi.RouteContext(r.Context()).RoutePattern()
		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(next)
}
