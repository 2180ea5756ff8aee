// Package httpapi is the optional HTTP adapter: a thin JSON-over-HTTP
// binding of the control-plane surface (internal/control) for scripting
// and dashboards. It carries no engine logic of its own: every handler
// is a decode/call/encode translation over a *control.Plane method.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rezkam/queuectl/internal/control"
)

// Server wraps the HTTP server serving the control-plane surface over
// JSON.
type Server struct {
	plane      *control.Plane
	httpServer *http.Server
}

// NewServer builds a Server bound to addr, routing every request through
// plane. The returned handler is always wrapped in otelhttp; the
// instrumentation is a no-op under the no-op tracer provider observability
// installs when tracing is disabled.
func NewServer(plane *control.Plane, addr string) *Server {
	h := &handler{plane: plane}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(maxBodyBytes(maxBodyBytesDefault))

	r.Get("/health", h.health)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.enqueueJob)
		r.Get("/", h.listJobs)
		r.Get("/{id}", h.getJob)
		r.Delete("/{id}", h.deleteJob)
	})

	r.Route("/dlq", func(r chi.Router) {
		r.Get("/", h.listDLQ)
		r.Post("/{id}/retry", h.retryDLQJob)
		r.Delete("/{id}", h.deleteDLQJob)
	})

	r.Route("/config", func(r chi.Router) {
		r.Get("/", h.listConfig)
		r.Put("/{key}", h.setConfig)
	})

	r.Route("/workers", func(r chi.Router) {
		r.Post("/", h.startWorkers)
		r.Get("/", h.listWorkers)
		r.Delete("/", h.stopWorkers)
		r.Delete("/{id}", h.stopWorkers)
		r.Get("/{id}/logs", h.workerLogs)
	})

	instrumented := otelhttp.NewHandler(r, "queuectl-http")

	return &Server{
		plane: plane,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           instrumented,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type handler struct {
	plane *control.Plane
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON decodes r's body onto v, rejecting unknown fields so typed
// request records are enforced at the wire boundary rather than trusted
// to callers.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}
