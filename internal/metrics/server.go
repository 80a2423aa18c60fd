package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/consultbot/core/logger"
)

// Server exposes a registry over HTTP.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// NewServer serves reg at path on addr.
func NewServer(addr, path string, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	logger.LogEvent(ctx, logger.Metrics, slog.LevelInfo, "metrics.start",
		slog.String("status", "ok"),
		slog.String("listen", ln.Addr().String()),
	)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogEvent(context.Background(), logger.Metrics, slog.LevelError, "metrics.serve",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	logger.LogEvent(ctx, logger.Metrics, slog.LevelInfo, "metrics.stop", slog.String("status", logger.Status(err)))
	return err
}
