// Package hooks defines the connection lifecycle hooks of the server and
// the way optional behaviour is layered on top of the defaults.
//
// A Module wraps the next Hooks in the chain. Modules embed Next so that
// any hook they do not override falls through unchanged; an overriding
// hook either handles the event itself or calls Next explicitly.
package hooks

import (
	"context"

	"github.com/cyberinferno/termninja/session"
	"github.com/cyberinferno/termninja/tasks"
)

// Hooks is the set of extension points the acceptor and the lifecycle
// coordinator call.
type Hooks interface {
	// OnConnected runs first for every new connection, typically to greet it.
	OnConnected(ctx context.Context, s *session.Session) error
	// ShouldAccept decides whether the session may be queued for a match.
	ShouldAccept(ctx context.Context, s *session.Session) (bool, error)
	// OnAccepted runs after a positive decision, before the session is queued.
	OnAccepted(ctx context.Context, s *session.Session) error
	// OnRejected runs after a negative decision. It must not close the
	// session; the acceptor does.
	OnRejected(ctx context.Context, s *session.Session) error
	// OnStarted runs once when the server starts serving. Long-lived work
	// goes through spawner so shutdown can cancel and await it.
	OnStarted(ctx context.Context, spawner tasks.Spawner) error
	// DisplayName is the server's friendly name.
	DisplayName() string
}

// Module builds a layer of the chain around next.
type Module func(next Hooks) Hooks

// Next is embedded by module implementations. It forwards every hook to
// the wrapped Hooks.
type Next struct {
	Hooks
}

// Chain composes modules around base. The first module is outermost: its
// hooks run first and decide whether the rest of the chain is reached.
func Chain(base Hooks, modules ...Module) Hooks {
	h := base
	for i := len(modules) - 1; i >= 0; i-- {
		h = modules[i](h)
	}

	return h
}
