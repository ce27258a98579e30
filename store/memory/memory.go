// Package memory is an in-process store.Store. It backs development runs
// without a database and the package tests of the hook modules.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cyberinferno/termninja/store"
)

// Store keeps users and games in maps guarded by a mutex.
type Store struct {
	mu        sync.RWMutex
	connected bool
	users     map[string]store.User
	games     map[string]store.Game
	now       func() time.Time
}

// New returns an empty, disconnected Store.
func New() *Store {
	return &Store{
		users: make(map[string]store.User),
		games: make(map[string]store.Game),
		now:   time.Now,
	}
}

// WithClock replaces the clock used to stamp heartbeats.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// AddUser seeds a user record, indexed by its play token.
func (s *Store) AddUser(u store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.PlayToken] = u
}

// GameCount returns the number of registration records.
func (s *Store) GameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// Connect marks the store usable. It fails only if ctx is already done.
func (s *Store) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Disconnect marks the store unusable; stored data is kept.
func (s *Store) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// Users implements store.Store.
func (s *Store) Users() store.Users { return users{s} }

// Games implements store.Store.
func (s *Store) Games() store.Games { return games{s} }

type users struct{ s *Store }

func (u users) SelectByPlayToken(ctx context.Context, token string) (store.User, error) {
	if err := ctx.Err(); err != nil {
		return store.User{}, err
	}

	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	if !u.s.connected {
		return store.User{}, store.ErrNotConnected
	}

	user, ok := u.s.users[token]
	if !ok {
		return store.User{}, store.ErrNotFound
	}

	return user, nil
}

type games struct{ s *Store }

func (g games) CreateOrUpdateGame(ctx context.Context, slug string, fields store.GameFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	if !g.s.connected {
		return store.ErrNotConnected
	}

	g.s.games[slug] = store.Game{
		Slug:          slug,
		ServerName:    fields.ServerName,
		Description:   fields.Description,
		Port:          fields.Port,
		LastHeartbeat: g.s.now(),
	}
	return nil
}

func (g games) UpdateGame(ctx context.Context, slug string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	if !g.s.connected {
		return store.ErrNotConnected
	}

	game, ok := g.s.games[slug]
	if !ok {
		return store.ErrNotFound
	}

	game.LastHeartbeat = g.s.now()
	g.s.games[slug] = game
	return nil
}

func (g games) GetGame(ctx context.Context, slug string) (store.Game, error) {
	if err := ctx.Err(); err != nil {
		return store.Game{}, err
	}

	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	if !g.s.connected {
		return store.Game{}, store.ErrNotConnected
	}

	game, ok := g.s.games[slug]
	if !ok {
		return store.Game{}, store.ErrNotFound
	}

	return game, nil
}
