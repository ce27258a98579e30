// Package announce posts a message to a Discord channel when the server
// comes online.
package announce

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cyberinferno/termninja/hooks"
	"github.com/cyberinferno/termninja/logger"
	"github.com/cyberinferno/termninja/tasks"
	"github.com/cyberinferno/termninja/utils"
)

const requestTimeout = 10 * time.Second

// Options configures the module.
type Options struct {
	Webhook string
	Port    int
	// Client defaults to http.DefaultClient.
	Client *http.Client
	Logger logger.Logger
}

type announceHooks struct {
	hooks.Next
	opts Options
}

// Module returns the announce layer. It spawns a one-shot "announce" task
// on start and delegates OnStarted.
func Module(opts Options) hooks.Module {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	return func(next hooks.Hooks) hooks.Hooks {
		return &announceHooks{Next: hooks.Next{Hooks: next}, opts: opts}
	}
}

func (a *announceHooks) OnStarted(ctx context.Context, sp tasks.Spawner) error {
	sp.Spawn("announce", a.announce)
	return a.Next.OnStarted(ctx, sp)
}

func (a *announceHooks) announce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	msg := Message(a.DisplayName(), a.opts.Port)
	if err := utils.SendDiscordNotification(ctx, a.opts.Client, a.opts.Webhook, msg); err != nil {
		return fmt.Errorf("announce server start: %w", err)
	}

	a.opts.Logger.Info("server start announced")
	return nil
}

// Message is the announcement text for a server.
func Message(name string, port int) string {
	return fmt.Sprintf("**%s** is online, connect with `nc <host> %d`", name, port)
}
