package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/flags"
	"github.com/hamed0406/opsboard/internal/health"
	apimw "github.com/hamed0406/opsboard/internal/httpapi/middleware"
	"github.com/hamed0406/opsboard/internal/repo"
	"github.com/hamed0406/opsboard/internal/sla"
)

type Server struct {
	Logger   *zap.Logger
	Flags    *flags.Store
	FlagRepo repo.FlagRepo
	Health   *health.Aggregator
	SLA      *sla.Service
	Gatherer prometheus.Gatherer // nil disables /metrics
	Clock    clock.Clock         // stamps flag writes
}

func NewServer(l *zap.Logger, fs *flags.Store, fr repo.FlagRepo, h *health.Aggregator, s *sla.Service, g prometheus.Gatherer, clk clock.Clock) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Server{Logger: l, Flags: fs, FlagRepo: fr, Health: h, SLA: s, Gatherer: g, Clock: clk}
}

// Router wires the public and admin groups. Empty allowedOrigins allows any
// origin; a non-positive rpm disables that group's rate limit.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	// public (public or admin key)
	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/health/sla", s.handleListSLA)
		r.Post("/health/errors", s.handleReportError)
		r.Get("/api/flags", s.handleListFlags)
		r.Get("/api/flags/{key}", s.handleGetFlag)
	})

	// admin only
	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(adminRPM, adminBurst))
		r.Use(apimw.RequireAdmin(keys))

		r.Post("/health/run", s.handleRun)
		r.Get("/health/errors", s.handleRecentErrors)
		r.Post("/health/sla", s.handleUpsertSLA)
		r.Put("/api/flags/{key}", s.handlePutFlag)
		r.Post("/api/flags/invalidate", s.handleInvalidateFlags)
	})

	return r
}
