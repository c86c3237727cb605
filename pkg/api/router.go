package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/pkg/api/handlers"
)

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Media presence on the selected unit
//   - GET /status - Session, queue, storage and heap state
//   - GET /metrics - Prometheus exposition (404 when metrics are disabled)
func NewRouter(source handlers.Source, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	health := handlers.NewHealthHandler(source)
	status := handlers.NewStatusHandler(source)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
	})
	r.Get("/status", status.Get)

	if metricsHandler == nil {
		metricsHandler = http.NotFoundHandler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/status", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs each request with the internal logger: start at debug,
// completion at info.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
