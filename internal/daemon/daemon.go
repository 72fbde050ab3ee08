package daemon

import (
	"context"
	"errors"
	"log/slog"
)

// Daemon owns the socket server and the PID file of one indexer process.
type Daemon struct {
	cfg    Config
	server *Server
	pid    *PIDFile
}

// New creates a daemon that serves h.
func New(cfg Config, h RequestHandler) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	srv, err := NewServer(cfg.SocketPath, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	srv.SetHandler(h)
	return &Daemon{cfg: cfg, server: srv, pid: NewPIDFile(cfg.PIDPath)}, nil
}

// Run serves until ctx is cancelled. A cancelled context is a clean exit.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pid.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.pid.Remove(); err != nil {
			slog.Warn("pid_file_remove_failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("daemon_started",
		slog.String("socket", d.cfg.SocketPath),
		slog.String("pid_file", d.cfg.PIDPath))

	err := d.server.ListenAndServe(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	slog.Info("daemon_stopped")
	return err
}

// Config returns the daemon configuration.
func (d *Daemon) Config() Config { return d.cfg }
