// Package http serves the unified cloud API as hypermedia XML.
package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/cloudgate/adapters/metrics"
	"github.com/artpar/cloudgate/app"
	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// APIVersion is advertised on the entry point.
const APIVersion = "1.0"

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // served at MetricsPath; defaults to promhttp.Handler()
	MetricsPath    string       // default "/metrics"
	PublicURL      string       // base for hrefs; derived from the request when empty
	Timeout        time.Duration
}

// Handler serves the API collections of a CloudService.
type Handler struct {
	service   *app.CloudService
	logger    zerolog.Logger
	publicURL string
}

// NewHandler creates an API handler.
func NewHandler(service *app.CloudService, logger zerolog.Logger, publicURL string) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// NewRouter creates the main HTTP router.
func NewRouter(service *app.CloudService, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	h := NewHandler(service, logger, cfg.PublicURL)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, metricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, metricsPath))
	}

	r.Get("/health", Liveness)

	if cfg.Metrics != nil || cfg.MetricsHandler != nil {
		mh := cfg.MetricsHandler
		if mh == nil {
			mh = promhttp.Handler()
		}
		r.Handle(metricsPath, mh)
	}

	r.Route("/api", func(r chi.Router) {
		r.With(h.optionalAuth).Get("/", h.entryPoint)
		r.With(h.optionalAuth).Get("/docs", h.docsIndex)
		r.With(h.optionalAuth).Get("/docs/{collection}", h.docsCollection)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/instance_states", h.instanceStates)
			r.Get("/{collection}", h.list)
			r.Get("/{collection}/{id}", h.show)

			r.Post("/instances", h.createInstance)
			r.Post("/instances/{id}/{action}", h.instanceAction)
			r.Delete("/instances/{id}", h.destroyInstance)

			r.Post("/keys", h.createKey)
			r.Delete("/keys/{id}", h.destroyKey)

			r.Post("/storage_volumes", h.createStorageVolume)
			r.Delete("/storage_volumes/{id}", h.destroyStorageVolume)
		})
	})

	return r
}

// Liveness returns a simple liveness check.
func Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

type credentialsKey struct{}

func credentialsFrom(ctx context.Context) cloud.Credentials {
	creds, _ := ctx.Value(credentialsKey{}).(cloud.Credentials)
	return creds
}

// requireAuth checks HTTP basic credentials against the backend.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.authenticate(w, r, next)
	})
}

// optionalAuth lets anonymous requests through unless force_auth is set.
// Credentials that are presented are always checked.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, presented := r.BasicAuth()
		if !presented && r.URL.Query().Get("force_auth") == "" {
			next.ServeHTTP(w, r)
			return
		}
		h.authenticate(w, r, next)
	})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, next http.Handler) {
	user, pass, _ := r.BasicAuth()
	creds := cloud.Credentials{User: user, Password: pass}
	if err := h.service.Authenticate(r.Context(), creds); err != nil {
		h.logger.Debug().Str("user", user).Str("path", r.URL.Path).Msg("authentication failed")
		h.writeError(w, r, err)
		return
	}
	ctx := context.WithValue(r.Context(), credentialsKey{}, creds)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// unobserved reports whether a request is a health check or a metrics scrape.
func unobserved(path, metricsPath string) bool {
	return strings.HasPrefix(path, "/health") || path == metricsPath
}

// NewMetricsMiddleware creates middleware that records request metrics.
// Requests to metricsPath are not counted.
func NewMetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unobserved(r.URL.Path, metricsPath) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := metrics.StatusClass(ww.Status())
			path := metrics.NormalizePath(r.URL.Path)
			m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if unobserved(r.URL.Path, metricsPath) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
