// Package server assembles the HTTP server: router, middleware chain,
// health probes, and the data-plane API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/internal/observability"
	"github.com/gridwright/gridwright/internal/server/handlers"
	"github.com/gridwright/gridwright/internal/server/middleware"
)

// Server wraps the router and the underlying http.Server.
type Server struct {
	host    string
	port    int
	version string
	api     *handlers.API
	router  chi.Router
	httpSrv *http.Server
}

// Option configures a Server before its routes are built.
type Option func(*Server)

// WithVersion sets the version string reported by /version.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// WithAPI mounts the data-plane API under /api.
func WithAPI(api *handlers.API) Option {
	return func(s *Server) { s.api = api }
}

// New creates a server bound to host:port. A port of 0 lets the
// listener choose.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{host: host, port: port, version: "dev"}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, &apperrors.Error{
			Code:    apperrors.CodeMethodNotAllowed,
			Status:  http.StatusMethodNotAllowed,
			Message: "method not allowed",
		})
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", s.versionHandler)

	if s.api != nil {
		r.Route("/api", func(r chi.Router) {
			r.Route("/datasets/{kind}", func(r chi.Router) {
				r.Put("/", s.api.UploadDataset)
				r.Get("/", s.api.GetDataset)
				r.Patch("/rows/{row}/cells/{field}", s.api.UpdateCell)
				r.Route("/proposals", func(r chi.Router) {
					r.Post("/", s.api.ProposeChanges)
					r.Get("/", s.api.GetPending)
					r.Post("/accept", s.api.AcceptProposal)
					r.Post("/reject", s.api.RejectProposal)
				})
			})
			r.Get("/errors", s.api.GetErrors)
			r.Get("/readiness", s.api.GetReadiness)
			r.Post("/fixes", s.api.FixAll)
			r.Put("/rules", s.api.PutRules)
			r.Get("/rules", s.api.GetRules)
			r.Get("/export/rules", s.api.ExportRules)
			r.Get("/export/{kind}", s.api.ExportDataset)
			r.Get("/audit", s.api.GetAudit)
		})
	}

	return r
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"version": s.version})
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) Start(ctx context.Context, readTimeout, writeTimeout, idleTimeout, shutdownTimeout time.Duration) error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.ServerLogger.Info("server listening",
			zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	observability.ServerLogger.Info("shutting down")
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
