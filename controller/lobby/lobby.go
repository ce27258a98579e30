// Package lobby is the default controller: a chat room for the players of
// a batch. Every line a player sends is relayed to the others until all of
// them have left.
package lobby

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cyberinferno/termninja/cursor"
	"github.com/cyberinferno/termninja/logger"
	"github.com/cyberinferno/termninja/matchmaker"
	"github.com/cyberinferno/termninja/session"
)

const QuitCommand = "/quit"

// Lobby relays chat lines between the sessions of one batch.
type Lobby struct {
	batch matchmaker.Batch
	log   logger.Logger
}

// Factory returns a matchmaker.ControllerFactory building lobbies.
func Factory(log logger.Logger) matchmaker.ControllerFactory {
	if log == nil {
		log = logger.NewNop()
	}

	return func(b matchmaker.Batch) matchmaker.Controller {
		return &Lobby{
			batch: b,
			log:   log.With(logger.Field{Key: "batch", Value: b.ID.String()}),
		}
	}
}

// Run returns once every player has left or ctx is cancelled.
func (l *Lobby) Run(ctx context.Context) error {
	greeting := fmt.Sprintf("%s\nYou are in %s with %d player(s). Type to chat, %s to leave.\n",
		cursor.Clear,
		cursor.Colorize(cursor.Green, l.batch.ServerName),
		len(l.batch.Sessions),
		QuitCommand,
	)
	l.broadcast(ctx, nil, greeting)

	var wg sync.WaitGroup
	for _, s := range l.batch.Sessions {
		wg.Go(func() { l.relay(ctx, s) })
	}
	wg.Wait()

	return nil
}

func (l *Lobby) relay(ctx context.Context, s *session.Session) {
	name := Name(s)
	defer func() {
		_ = s.Close()
		l.broadcast(ctx, s, cursor.Colorize(cursor.Blue, name+" left")+"\n")
	}()

	for {
		line, err := s.ReadLine(ctx)
		if err != nil {
			l.log.Debug("player disconnected", logger.Field{Key: "session", Value: s.ID()}, logger.Err(err))
			return
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case QuitCommand:
			return
		}

		l.broadcast(ctx, s, fmt.Sprintf("%s: %s\n", cursor.Colorize(cursor.Green, name), line))
	}
}

// broadcast sends msg to every open session except from.
func (l *Lobby) broadcast(ctx context.Context, from *session.Session, msg string) {
	for _, s := range l.batch.Sessions {
		if s == from || s.Closed() {
			continue
		}
		_ = s.Send(ctx, msg)
	}
}

// Name is how a player appears to others.
func Name(s *session.Session) string {
	if u, ok := s.User(); ok {
		return u.Username
	}

	return fmt.Sprintf("player-%d", s.ID())
}
