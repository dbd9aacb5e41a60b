package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commy-mesh/commy/internal/logger"
	"github.com/commy-mesh/commy/pkg/manager"
	"github.com/commy-mesh/commy/pkg/plugin"
	"github.com/commy-mesh/commy/pkg/sharedfile"
)

// Routes:
//
//	GET    /health               liveness
//	GET    /ready                readiness
//	GET    /metrics              Prometheus scrape
//	POST   /api/v1/files         request_file
//	GET    /api/v1/files         list_active_files
//	DELETE /api/v1/connections/{id}  disconnect
//	GET    /api/v1/events        subscribe_events (SSE)
//	POST   /api/v1/plugins       load a type plugin
//	DELETE /api/v1/plugins/*     unload a type plugin
//	GET    /api/v1/audit         audit log tail
func NewRouter(mgr *manager.Manager, loader *plugin.Loader, store *sharedfile.Store, journal AuditJournal, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	health := NewHealthHandler(mgr.Ready)
	r.Get("/health", health.Liveness)
	r.Get("/ready", health.Readiness)

	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	files := NewFileHandler(mgr)
	events := NewEventHandler(mgr)
	plugins := NewPluginHandler(loader, store)
	audit := NewAuditHandler(journal)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/files", func(r chi.Router) {
			r.Post("/", files.Create)
			r.Get("/", files.List)
		})
		r.Delete("/connections/{id}", files.Disconnect)
		r.Get("/events", events.Stream)
		r.Route("/plugins", func(r chi.Router) {
			r.Post("/", plugins.Load)
			r.Delete("/*", plugins.Unload)
		})
		r.Get("/audit", audit.Tail)
	})

	return r
}

// requestLogger logs every request through internal/logger, at DEBUG for
// health/readiness probes to keep steady-state logs quiet.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		fields := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}
		if r.URL.Path == "/health" || r.URL.Path == "/ready" {
			logger.Debug("api: request completed", fields...)
		} else {
			logger.Info("api: request completed", fields...)
		}
	})
}
