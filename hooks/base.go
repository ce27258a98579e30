package hooks

import (
	"context"

	"github.com/cyberinferno/termninja/cursor"
	"github.com/cyberinferno/termninja/session"
	"github.com/cyberinferno/termninja/tasks"
)

// WelcomeBanner is sent to every new connection by Base.
var WelcomeBanner = cursor.Clear + cursor.Green + `

   _____                   _   _ _       _
  |_   _|                 | \ | (_)     (_)
    | | ___ _ __ _ __ ___ |  \| |_ _ __  _  __ _
    | |/ _ \ '__| '_ ` + "`" + ` _ \| . ` + "`" + ` | | '_ \| |/ _` + "`" + ` |
    | |  __/ |  | | | | | | |\  | | | | | | (_| |
    \_/\___|_|  |_| |_| |_\_| \_/_|_| |_| |\__,_|
                                        / |
                                       |__/

` + cursor.Reset + "\n"

// ContinuationPrompt is sent after acceptance; the session waits for enter.
var ContinuationPrompt = cursor.Colorize(cursor.Blue, "Press enter to get started...")

// Base is the innermost layer of every chain.
type Base struct {
	name         string
	welcome      string
	continuation string
}

// NewBase returns default hooks for a server called name.
func NewBase(name string) *Base {
	return &Base{
		name:         name,
		welcome:      WelcomeBanner,
		continuation: ContinuationPrompt,
	}
}

// OnConnected sends the welcome banner.
func (b *Base) OnConnected(ctx context.Context, s *session.Session) error {
	return s.Send(ctx, b.welcome)
}

// ShouldAccept accepts everyone.
func (b *Base) ShouldAccept(context.Context, *session.Session) (bool, error) {
	return true, nil
}

// OnAccepted shows the continuation prompt and waits for one line.
func (b *Base) OnAccepted(ctx context.Context, s *session.Session) error {
	_, err := s.Prompt(ctx, b.continuation)
	return err
}

// OnRejected does nothing; the acceptor closes rejected sessions.
func (b *Base) OnRejected(context.Context, *session.Session) error { return nil }

// OnStarted spawns nothing.
func (b *Base) OnStarted(context.Context, tasks.Spawner) error { return nil }

// DisplayName returns the name given to NewBase.
func (b *Base) DisplayName() string { return b.name }
