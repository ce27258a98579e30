// Package matchmaker groups queued sessions into fixed-size batches and
// starts a controller for every batch.
package matchmaker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cyberinferno/termninja/logger"
	"github.com/cyberinferno/termninja/metrics"
	"github.com/cyberinferno/termninja/perfmonitor"
	"github.com/cyberinferno/termninja/queue"
	"github.com/cyberinferno/termninja/session"
	"github.com/cyberinferno/termninja/tasks"
)

var (
	// ErrInvalidPlayerCount is returned by New when PlayerCount < 1.
	ErrInvalidPlayerCount = errors.New("matchmaker: player count must be at least 1")
	// ErrNoControllerFactory is returned by New without a Factory.
	ErrNoControllerFactory = errors.New("matchmaker: controller factory is required")
)

// Controller runs one match. It owns the batch's sessions until it returns
// and must return promptly once ctx is cancelled.
type Controller interface {
	Run(ctx context.Context) error
}

// ControllerFactory builds the controller for a batch.
type ControllerFactory func(b Batch) Controller

// Batch is a group of sessions matched together, in queue order.
type Batch struct {
	ID         uuid.UUID
	Sessions   []*session.Session
	ServerName string
}

// Options configures a Matchmaker.
type Options struct {
	Queue       *queue.Queue[*session.Session]
	Spawner     tasks.Spawner
	Factory     ControllerFactory
	PlayerCount int
	ServerName  string
	Logger      logger.Logger
	Metrics     *metrics.Metrics
}

// Matchmaker is the single consumer of the session queue.
type Matchmaker struct {
	queue       *queue.Queue[*session.Session]
	spawner     tasks.Spawner
	factory     ControllerFactory
	playerCount int
	serverName  string
	log         logger.Logger
	metrics     *metrics.Metrics
}

// New validates opts and returns a Matchmaker.
func New(opts Options) (*Matchmaker, error) {
	if opts.PlayerCount < 1 {
		return nil, ErrInvalidPlayerCount
	}
	if opts.Factory == nil {
		return nil, ErrNoControllerFactory
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	return &Matchmaker{
		queue:       opts.Queue,
		spawner:     opts.Spawner,
		factory:     opts.Factory,
		playerCount: opts.PlayerCount,
		serverName:  opts.ServerName,
		log:         opts.Logger,
		metrics:     opts.Metrics,
	}, nil
}

// Run takes PlayerCount sessions at a time off the queue and launches a
// controller task for each batch without waiting for it. It returns the
// context's error once ctx is cancelled.
func (m *Matchmaker) Run(ctx context.Context) error {
	for {
		sessions, err := m.queue.PopN(ctx, m.playerCount)
		if err != nil {
			return err
		}
		m.metrics.SetQueued(m.queue.Len())

		m.launch(Batch{
			ID:         uuid.New(),
			Sessions:   sessions,
			ServerName: m.serverName,
		})
	}
}

func (m *Matchmaker) launch(b Batch) {
	m.log.Info("batch formed",
		logger.Field{Key: "batch", Value: b.ID.String()},
		logger.Field{Key: "sessions", Value: sessionIDs(b.Sessions)},
	)

	m.spawner.Spawn("batch-"+b.ID.String(), func(ctx context.Context) error {
		return m.runBatch(ctx, b)
	})
}

// runBatch runs the controller and closes the batch's sessions afterwards,
// including when the controller panics.
func (m *Matchmaker) runBatch(ctx context.Context, b Batch) error {
	perf := perfmonitor.NewPerformanceMonitor()
	perf.Start()
	m.metrics.ControllerStarted()

	defer func() {
		for _, s := range b.Sessions {
			_ = s.Close()
		}

		perf.Stop()
		m.metrics.ControllerFinished()
		m.log.Info("batch finished",
			logger.Field{Key: "batch", Value: b.ID.String()},
			logger.Field{Key: "elapsed_ms", Value: perf.ElapsedMilliseconds()},
		)
	}()

	if err := m.factory(b).Run(ctx); err != nil {
		return fmt.Errorf("controller for batch %s: %w", b.ID, err)
	}

	return nil
}

func sessionIDs(sessions []*session.Session) []uint32 {
	ids := make([]uint32, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID()
	}
	return ids
}
