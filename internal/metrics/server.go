package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HealthFunc returns extra details for the /health response.
type HealthFunc func() map[string]any

// Server serves /metrics and /health over HTTP.
type Server struct {
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server on addr. health may be nil.
func NewServer(addr string, m *Metrics, health HealthFunc) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":         "healthy",
			"service":        "courseindex",
			"uptime_seconds": int(time.Since(m.StartTime).Seconds()),
		}
		if health != nil {
			for k, v := range health() {
				body[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	})

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Listen binds the address. Use Addr to learn the port when addr ends in :0.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Serve blocks until Shutdown. It calls Listen if needed.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	slog.Info("metrics_server_started", slog.String("addr", s.Addr()))
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("metrics_server_stopping", slog.String("addr", s.Addr()))
	return s.server.Shutdown(ctx)
}
