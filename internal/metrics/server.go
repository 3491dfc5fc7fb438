package metrics

import (
	"context"
	"net/http"

	"netpulse/internal/logger"
)

// Server exposes the metric set over HTTP.
type Server struct {
	srv *http.Server
}

// NewServer builds the /metrics endpoint server.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start serves until Stop is called. Run it on its own goroutine.
func (s *Server) Start() {
	logger.Infof("Metrics endpoint listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorf("Metrics server error: %v", err)
	}
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		logger.Warnf("Metrics server shutdown: %v", err)
	}
}
