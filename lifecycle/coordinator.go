// Package lifecycle owns the server process: it connects the store, starts
// the acceptor and the matchmaker, reacts to SIGINT and SIGTERM, and tears
// everything down in order.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/termninja/hooks"
	"github.com/cyberinferno/termninja/logger"
	"github.com/cyberinferno/termninja/matchmaker"
	"github.com/cyberinferno/termninja/metrics"
	"github.com/cyberinferno/termninja/queue"
	"github.com/cyberinferno/termninja/session"
	"github.com/cyberinferno/termninja/store"
	"github.com/cyberinferno/termninja/tasks"
	"github.com/cyberinferno/termninja/tcpserver"
)

const defaultShutdownTimeout = 10 * time.Second

var (
	ErrAlreadyStarted   = errors.New("lifecycle: coordinator already started")
	errAcceptorStopped  = errors.New("lifecycle: acceptor stopped unexpectedly")
	errMatchmakerExited = errors.New("lifecycle: matchmaker stopped unexpectedly")
)

// Options configures a Coordinator.
type Options struct {
	Store       store.Store
	Hooks       hooks.Hooks
	Factory     matchmaker.ControllerFactory
	Addr        string
	PlayerCount int
	// ShutdownTimeout bounds the store disconnect.
	ShutdownTimeout time.Duration
	Logger          logger.Logger
	Metrics         *metrics.Metrics
	// MetricsAddr, when set, serves Gatherer over HTTP while running.
	MetricsAddr string
	Gatherer    prometheus.Gatherer
	// Signals that trigger shutdown. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// Coordinator runs the server once.
type Coordinator struct {
	opts  Options
	log   logger.Logger
	state atomic.Int32

	mu         sync.Mutex
	listenAddr net.Addr
}

// New returns an idle Coordinator.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if len(opts.Signals) == 0 {
		opts.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.NewRegistry()
	}

	return &Coordinator{opts: opts, log: opts.Logger}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// ListenAddr returns the acceptor's bound address once running.
func (c *Coordinator) ListenAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listenAddr
}

func (c *Coordinator) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	c.log.Debug("lifecycle state changed",
		logger.Field{Key: "from", Value: prev.String()},
		logger.Field{Key: "to", Value: s.String()},
	)
}

// Run starts the server and blocks until it has fully stopped. Shutdown is
// triggered by ctx, by a signal, or by the acceptor or matchmaker failing.
// Cancellation is not an error; startup failures and unexpected component
// failures are returned.
func (c *Coordinator) Run(ctx context.Context) (err error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateInitializing)) {
		return ErrAlreadyStarted
	}
	defer c.setState(StateStopped)

	ctx, stopSignals := signal.NotifyContext(ctx, c.opts.Signals...)
	defer stopSignals()

	if err := c.opts.Store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer c.disconnect(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := queue.New[*session.Session]()
	group := tasks.NewGroup(runCtx, c.log)

	mm, err := matchmaker.New(matchmaker.Options{
		Queue:       q,
		Spawner:     group,
		Factory:     c.opts.Factory,
		PlayerCount: c.opts.PlayerCount,
		ServerName:  c.opts.Hooks.DisplayName(),
		Logger:      c.log.With(logger.Field{Key: "component", Value: "matchmaker"}),
		Metrics:     c.opts.Metrics,
	})
	if err != nil {
		return err
	}

	srv := tcpserver.New(c.opts.Hooks.DisplayName(), c.opts.Addr, c.opts.Hooks, q,
		c.log.With(logger.Field{Key: "component", Value: "acceptor"}))
	srv.Metrics = c.opts.Metrics
	if err := srv.Listen(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.listenAddr = srv.ListenAddr()
	c.mu.Unlock()

	c.setState(StateRunning)
	c.log.Info("server running",
		logger.Field{Key: "name", Value: c.opts.Hooks.DisplayName()},
		logger.Field{Key: "addr", Value: c.listenAddr.String()},
		logger.Field{Key: "player_count", Value: c.opts.PlayerCount},
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := srv.Serve(gctx); err != nil {
			return err
		}
		return errAcceptorStopped
	})
	g.Go(func() error {
		if err := mm.Run(gctx); err != nil {
			return err
		}
		return errMatchmakerExited
	})

	if c.opts.MetricsAddr != "" {
		group.Spawn("metrics", func(ctx context.Context) error {
			return metrics.Serve(ctx, c.opts.MetricsAddr, metrics.Handler(c.opts.Gatherer), c.log)
		})
	}

	startErr := c.opts.Hooks.OnStarted(gctx, group)
	if startErr != nil {
		startErr = fmt.Errorf("on started: %w", startErr)
		cancel()
	}

	runErr := g.Wait()

	c.setState(StateShuttingDown)
	c.log.Info("shutting down", logger.Field{Key: "tasks", Value: group.Active()})
	cancel()
	group.Wait()

	for _, s := range q.Drain() {
		_ = s.Close()
	}
	c.opts.Metrics.SetQueued(0)

	if startErr != nil {
		return startErr
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// disconnect runs with a fresh deadline so it completes even when ctx was
// the reason for shutting down.
func (c *Coordinator) disconnect(ctx context.Context) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ShutdownTimeout)
	defer cancel()

	if err := c.opts.Store.Disconnect(dctx); err != nil {
		c.log.Error("store disconnect failed", logger.Err(err))
		return
	}

	c.log.Info("store disconnected")
}
