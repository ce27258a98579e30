// Package store defines the persistence service the server talks to: user
// lookups by play token and the server registration records kept alive by
// the heartbeat. Implementations live in the memory, sqlite and redisstore
// subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("store: record not found")
	// ErrNotConnected is returned by operations issued before Connect or
	// after Disconnect.
	ErrNotConnected = errors.New("store: not connected")
)

// User is an account that may authenticate a session with a play token.
type User struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	Score              int64     `json:"score"`
	PlayToken          string    `json:"play_token"`
	PlayTokenExpiresAt time.Time `json:"play_token_expires_at"`
}

// TokenExpired reports whether the user's play token expired before now.
func (u User) TokenExpired(now time.Time) bool {
	return u.PlayTokenExpiresAt.Before(now)
}

// GameFields are the mutable attributes of a server registration record.
type GameFields struct {
	ServerName  string
	Description string
	Port        int
}

// Game is a server registration record.
type Game struct {
	Slug          string
	ServerName    string
	Description   string
	Port          int
	LastHeartbeat time.Time
}

// Users looks up user accounts.
type Users interface {
	// SelectByPlayToken returns the user owning token, or ErrNotFound.
	SelectByPlayToken(ctx context.Context, token string) (User, error)
}

// Games maintains server registration records keyed by slug.
type Games interface {
	// CreateOrUpdateGame upserts the record for slug and stamps its heartbeat.
	CreateOrUpdateGame(ctx context.Context, slug string, fields GameFields) error
	// UpdateGame refreshes the heartbeat of an existing record, or returns
	// ErrNotFound.
	UpdateGame(ctx context.Context, slug string) error
	// GetGame returns the record for slug, or ErrNotFound.
	GetGame(ctx context.Context, slug string) (Game, error)
}

// Store is a connection to the persistence service.
type Store interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Users() Users
	Games() Games
}
