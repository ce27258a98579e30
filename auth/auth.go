// Package auth lets a player identify with a play token to have their
// score tracked. Players who skip the prompt play anonymously.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyberinferno/termninja/cacher"
	"github.com/cyberinferno/termninja/cursor"
	"github.com/cyberinferno/termninja/hooks"
	"github.com/cyberinferno/termninja/logger"
	"github.com/cyberinferno/termninja/session"
	"github.com/cyberinferno/termninja/store"
)

const EnterTokenPrompt = "Enter a token to track score or press enter to play anonymously: "

// The reply replaces the echoed token on the prompt line.
var (
	eraseInput = cursor.Up(1) + cursor.MoveToColumn(len(EnterTokenPrompt)) + cursor.EraseToLineEnd

	TokenAcceptedMessage = eraseInput + cursor.Colorize(cursor.Green, " accepted") + "\n"
	TokenRejectedMessage = eraseInput + cursor.Colorize(cursor.Red, " rejected") + "\n"
	TokenExpiredMessage  = eraseInput + cursor.Colorize(cursor.Red, " token expired") + "\n"
)

// Options configures the module.
type Options struct {
	Users store.Users
	// Cache, when set, fronts Users lookups.
	Cache  cacher.Cacher[store.User]
	Logger logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type authHooks struct {
	hooks.Next
	users store.Users
	cache cacher.Cacher[store.User]
	log   logger.Logger
	now   func() time.Time
}

// Module returns the authentication layer. It overrides ShouldAccept
// without consulting the next layer, and prints the player's profile
// before delegating OnAccepted.
func Module(opts Options) hooks.Module {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	return func(next hooks.Hooks) hooks.Hooks {
		return &authHooks{
			Next:  hooks.Next{Hooks: next},
			users: opts.Users,
			cache: opts.Cache,
			log:   opts.Logger,
			now:   opts.Now,
		}
	}
}

func (a *authHooks) ShouldAccept(ctx context.Context, s *session.Session) (bool, error) {
	token, err := s.Prompt(ctx, EnterTokenPrompt)
	if err != nil {
		return false, err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return true, nil
	}

	user, err := a.lookup(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return false, s.Send(ctx, TokenRejectedMessage)
	}
	if err != nil {
		return false, fmt.Errorf("look up play token: %w", err)
	}

	if user.TokenExpired(a.now()) {
		a.evict(ctx, token)
		return false, s.Send(ctx, TokenExpiredMessage)
	}

	if err := s.Send(ctx, TokenAcceptedMessage); err != nil {
		return false, err
	}
	if err := s.AssignUser(user); err != nil {
		return false, err
	}

	a.log.Info("player authenticated",
		logger.Field{Key: "session", Value: s.ID()},
		logger.Field{Key: "username", Value: user.Username},
	)
	return true, nil
}

func (a *authHooks) OnAccepted(ctx context.Context, s *session.Session) error {
	if user, ok := s.User(); ok {
		remaining := user.PlayTokenExpiresAt.Sub(a.now()).Round(time.Second)
		profile := fmt.Sprintf("\n"+
			"username:         %s\n"+
			"score:            %s\n"+
			"token expires in: %s\n\n",
			cursor.Colorize(cursor.Green, user.Username),
			cursor.Colorize(cursor.Green, user.Score),
			cursor.Colorize(cursor.Green, remaining),
		)
		if err := s.Send(ctx, profile); err != nil {
			return err
		}
	}

	return a.Next.OnAccepted(ctx, s)
}

func (a *authHooks) lookup(ctx context.Context, token string) (store.User, error) {
	fetch := func(ctx context.Context) (store.User, error) {
		return a.users.SelectByPlayToken(ctx, token)
	}

	if a.cache == nil {
		return fetch(ctx)
	}

	return a.cache.GetOrFetch(ctx, token, fetch)
}

// evict drops an expired record so a token renewed in the store is seen
// on the next attempt instead of after the cache TTL.
func (a *authHooks) evict(ctx context.Context, token string) {
	if a.cache == nil {
		return
	}

	if err := a.cache.Delete(ctx, token); err != nil {
		a.log.Warn("token cache eviction failed", logger.Err(err))
	}
}
