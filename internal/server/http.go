package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	jsonwriter "github.com/dgellow/cms-front/internal/json"
	"github.com/dgellow/cms-front/internal/log"
)

// HTTPServer manages the HTTP server lifecycle
type HTTPServer struct {
	server *http.Server
}

// HTTPServerOption configures an HTTPServer
type HTTPServerOption func(*http.Server)

// WithTimeouts sets the read and write timeouts. Zero leaves a value unset.
func WithTimeouts(read, write time.Duration) HTTPServerOption {
	return func(s *http.Server) {
		if read > 0 {
			s.ReadTimeout = read
			s.ReadHeaderTimeout = read
		}
		if write > 0 {
			s.WriteTimeout = write
		}
	}
}

// NewHTTPServer creates a new HTTP server with the given handler and address
func NewHTTPServer(handler http.Handler, addr string, opts ...HTTPServerOption) *HTTPServer {
	s := &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return &HTTPServer{server: s}
}

// HealthHandler handles health check requests
type HealthHandler struct {
	name string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(name string) *HealthHandler {
	return &HealthHandler{name: name}
}

// ServeHTTP implements http.Handler for health checks
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = jsonwriter.Write(w, map[string]string{
		"status":  "ok",
		"service": h.name,
	})
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	log.LogInfoWithFields("http", "HTTP server starting", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	log.LogInfoWithFields("http", "HTTP server stopping", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.LogInfoWithFields("http", "HTTP server stopped", map[string]any{
		"addr": h.server.Addr,
	})
	return nil
}
