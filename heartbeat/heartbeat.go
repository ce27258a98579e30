// Package heartbeat keeps the server's registration record alive in the
// store so directory listings can show it as online.
package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/cyberinferno/termninja/hooks"
	"github.com/cyberinferno/termninja/logger"
	"github.com/cyberinferno/termninja/store"
	"github.com/cyberinferno/termninja/tasks"
	"github.com/cyberinferno/termninja/utils"
)

const DefaultInterval = 2 * time.Minute

// Options configures the module.
type Options struct {
	Games       store.Games
	Description string
	Port        int
	// Interval between pings. Defaults to DefaultInterval.
	Interval time.Duration
	Logger   logger.Logger
}

type heartbeatHooks struct {
	hooks.Next
	opts Options
}

// Module returns the heartbeat layer. On start it spawns the "heartbeat"
// task and then delegates OnStarted.
func Module(opts Options) hooks.Module {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	return func(next hooks.Hooks) hooks.Hooks {
		return &heartbeatHooks{Next: hooks.Next{Hooks: next}, opts: opts}
	}
}

func (h *heartbeatHooks) OnStarted(ctx context.Context, sp tasks.Spawner) error {
	sp.Spawn("heartbeat", h.run)
	return h.Next.OnStarted(ctx, sp)
}

// run registers the server under the slug of its display name, then pings
// the record immediately and on every interval until ctx ends. Failures
// are logged and retried on the next tick.
func (h *heartbeatHooks) run(ctx context.Context) error {
	name := h.DisplayName()
	slug := utils.Slugify(name)
	log := h.opts.Logger.With(logger.Field{Key: "slug", Value: slug})
	if slug == "" {
		log.Error("server name has no slug, registration skipped", logger.Field{Key: "name", Value: name})
		return nil
	}

	fields := store.GameFields{
		ServerName:  name,
		Description: h.opts.Description,
		Port:        h.opts.Port,
	}

	ticker := time.NewTicker(h.opts.Interval)
	defer ticker.Stop()

	registered := false
	for {
		if !registered {
			if err := h.opts.Games.CreateOrUpdateGame(ctx, slug, fields); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error("server registration failed", logger.Err(err))
			} else {
				registered = true
				log.Info("server registered", logger.Field{Key: "port", Value: fields.Port})
			}
		}

		if registered {
			if err := h.ping(ctx, slug); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("heartbeat failed", logger.Err(err))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *heartbeatHooks) ping(ctx context.Context, slug string) error {
	if err := h.opts.Games.UpdateGame(ctx, slug); err != nil {
		return fmt.Errorf("update game %s: %w", slug, err)
	}

	return nil
}
