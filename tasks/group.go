// Package tasks runs named fire-and-forget goroutines that share one
// cancellation context and can be awaited together at shutdown.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cyberinferno/termninja/logger"
	"github.com/cyberinferno/termninja/safeset"
)

// Spawner starts background work. Hooks receive a Spawner in OnStarted.
type Spawner interface {
	Spawn(name string, fn func(ctx context.Context) error)
}

// Group is a Spawner whose tasks all run with the group's context. A task
// that fails or panics is logged and does not affect its siblings.
type Group struct {
	ctx    context.Context
	log    logger.Logger
	wg     sync.WaitGroup
	active *safeset.SafeSet[string]
}

// NewGroup returns a Group whose tasks observe ctx.
func NewGroup(ctx context.Context, log logger.Logger) *Group {
	if log == nil {
		log = logger.NewNop()
	}

	return &Group{
		ctx:    ctx,
		log:    log,
		active: safeset.NewSafeSet[string](),
	}
}

// Spawn runs fn in a new goroutine under name.
func (g *Group) Spawn(name string, fn func(ctx context.Context) error) {
	if !g.active.Add(name) {
		g.log.Warn("task name already active", logger.Field{Key: "task", Value: name})
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.active.Remove(name)

		if err := g.run(fn); err != nil && !errors.Is(err, context.Canceled) {
			g.log.Error("task failed", logger.Field{Key: "task", Value: name}, logger.Err(err))
			return
		}

		g.log.Debug("task finished", logger.Field{Key: "task", Value: name})
	}()
}

func (g *Group) run(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	return fn(g.ctx)
}

// Wait blocks until every spawned task has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Active returns the names of running tasks.
func (g *Group) Active() []string {
	return g.active.Values()
}
