package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/bleu-ims/ims-gateway/api/controllers"
	"github.com/bleu-ims/ims-gateway/api/middleware"
	"github.com/bleu-ims/ims-gateway/internal/catalog"
	"github.com/bleu-ims/ims-gateway/internal/mutations"
	"github.com/bleu-ims/ims-gateway/internal/session"
	"github.com/bleu-ims/ims-gateway/internal/views"
	"github.com/bleu-ims/ims-gateway/pkg/config"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
	"github.com/bleu-ims/ims-gateway/pkg/redis"
)

type sessionManager interface {
	middleware.SessionResolver
	Establish(ctx context.Context, token, username string) (*session.Session, error)
	Logout(ctx context.Context, id, reason string) error
}

type viewRegistry interface {
	Mount(s *session.Session, name views.Name) (*views.View, error)
	Unmount(sessionID string, name views.Name) bool
	Mounted(sessionID string) []*views.View
}

type mutationSubmitter interface {
	Submit(ctx context.Context, s *session.Session, req mutations.Request) (*mutations.Result, error)
}

// Observability carries the exporters shared with the rest of the process.
// Zero values fall back to the Prometheus default registry and no tracing.
type Observability struct {
	Gatherer       prometheus.Gatherer
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	obs Observability,
	redisPinger redis.Pinger,
	sessions sessionManager,
	registry viewRegistry,
	coordinator mutationSubmitter,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.SecureHeaders(cfg.App.IsProd()),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)
	if obs.TracerProvider != nil {
		propagator := obs.Propagator
		if propagator == nil {
			propagator = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
		}
		r.Use(middleware.Tracing(obs.TracerProvider, propagator))
	}

	gatherer := obs.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, redisPinger))
	})

	perPage := cfg.Views.DefaultPerPage

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.LimitBody(cfg.Limits.MaxBodyBytes))

		r.With(middleware.RateLimitByIP("session", cfg.Limits.SessionPerMinute, time.Minute, logg)).
			Post("/session", controllers.SessionCreate(sessions, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(sessions, logg))

			r.Get("/session", controllers.SessionShow(registry, logg))
			r.Delete("/session", controllers.SessionDelete(sessions, logg))

			r.Route("/views", func(r chi.Router) {
				r.Get("/", controllers.ViewIndex(registry, logg))
				r.Get("/{view}", controllers.ViewShow(registry, perPage, logg))
				r.Delete("/{view}", controllers.ViewDelete(registry, logg))
			})

			r.Route("/resources/{kind}", func(r chi.Router) {
				r.Post("/", controllers.ResourceMutation(catalog.OpCreate, coordinator, perPage, logg))
				r.Put("/{id}", controllers.ResourceMutation(catalog.OpUpdate, coordinator, perPage, logg))
				r.Delete("/{id}", controllers.ResourceMutation(catalog.OpDelete, coordinator, perPage, logg))
			})
		})
	})

	return r
}
