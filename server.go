// Package rkv provides the main API for running an in-memory, single-node
// key-value server that speaks a Redis-like wire protocol (RESP).
package rkv

import (
	"context"
	"fmt"
	"time"

	"github.com/adrianmoss/rkv/internal/config"
	"github.com/adrianmoss/rkv/internal/logging"
	"github.com/adrianmoss/rkv/internal/reactor"
	"github.com/adrianmoss/rkv/internal/store"
)

// Server is a running rkv instance: one reactor goroutine serving one
// listening socket and one shared keyspace.
type Server struct {
	cfg      *config.Config
	runner   *reactor.Runner
	metrics  *Metrics
	logger   *logging.Logger
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan error

	started bool
}

// Options configures a Server beyond what Config covers.
type Options struct {
	// Context, if set, is used for cancellation instead of
	// context.Background(). Canceling it stops the server the same way
	// Shutdown does.
	Context context.Context

	// Logger receives reactor log lines. If nil, logging.Default() is used.
	Logger *logging.Logger

	// Observer receives metrics events. If nil, a MetricsObserver wrapping
	// the server's own Metrics is used.
	Observer Observer
}

// ListenAndServe creates a Server bound to cfg, starts its reactor on a new
// goroutine, and returns once the listening socket is ready to accept
// connections. The server runs until the context is canceled or Shutdown
// is called.
func ListenAndServe(cfg *config.Config, options *Options) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rkv: %w: %v", ErrInvalidConfig, err)
	}

	if options == nil {
		options = &Options{}
	}

	ctx := context.Background()
	if options.Context != nil {
		ctx = options.Context
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	metrics := NewMetrics()
	var observer Observer = NewMetricsObserver(metrics)
	if options.Observer != nil {
		observer = options.Observer
	}

	runner, err := reactor.NewRunner(cfg, logger, observer)
	if err != nil {
		return nil, WrapError("NEW_RUNNER", err)
	}
	if err := runner.Listen(); err != nil {
		return nil, WrapError("LISTEN", err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		cfg:      cfg,
		runner:   runner,
		metrics:  metrics,
		logger:   logger,
		observer: observer,
		ctx:      srvCtx,
		cancel:   cancel,
		done:     make(chan error, 1),
		started:  true,
	}

	go func() {
		s.done <- runner.Serve(srvCtx)
	}()

	logger.Info("rkv server started", "addr", cfg.BindAddr)
	return s, nil
}

// Addr returns the server's actual bound address.
func (s *Server) Addr() (string, error) {
	return s.runner.Addr()
}

// Metrics returns the server's metrics recorder.
func (s *Server) Metrics() *Metrics { return s.metrics }

// MetricsSnapshot returns a point-in-time snapshot of the server's metrics.
func (s *Server) MetricsSnapshot() MetricsSnapshot { return s.metrics.Snapshot() }

// Keyspace returns the server's single shared keyspace. Exposed mainly for
// tests and introspection tooling; production code should talk to the
// server over the wire protocol.
func (s *Server) Keyspace() *store.Keyspace { return s.runner.Keyspace() }

// State reports whether the server is currently serving.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// State returns the server's current lifecycle state.
func (s *Server) State() State {
	if s == nil || !s.started {
		return StateStopped
	}
	select {
	case <-s.ctx.Done():
		return StateStopped
	default:
		return StateRunning
	}
}

// Shutdown stops the reactor and waits for it to finish, or for ctx to be
// canceled first, whichever comes first.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || !s.started {
		return nil
	}
	s.cancel()
	s.metrics.Stop()

	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the reactor, giving it a short grace period to exit cleanly.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
