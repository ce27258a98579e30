// Package sqlite provides a SQLite-backed store.Store using the pure-Go
// modernc driver. The schema is managed with goose migrations embedded in
// the binary.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/cyberinferno/termninja/store"
	"github.com/cyberinferno/termninja/store/sqlite/migrations"
)

// Store persists users and server registrations in a SQLite file.
type Store struct {
	path string
	now  func() time.Time

	mu    sync.RWMutex
	sqlDB *sql.DB
}

// New returns a Store for the database file at path. Nothing is opened
// until Connect.
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Connect opens the database, checks it answers and applies pending
// migrations.
func (s *Store) Connect(ctx context.Context) error {
	if strings.TrimSpace(s.path) == "" {
		return fmt.Errorf("storage path is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sqlDB != nil {
		return nil
	}

	dsn := "file:" + filepath.Clean(s.path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("ping sqlite db: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, migrations.FS)
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("prepare migrations: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	s.sqlDB = sqlDB
	return nil
}

// Disconnect closes the database handle. Safe to call when not connected.
func (s *Store) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sqlDB == nil {
		return nil
	}

	err := s.sqlDB.Close()
	s.sqlDB = nil
	return err
}

// Users implements store.Store.
func (s *Store) Users() store.Users { return users{s} }

// Games implements store.Store.
func (s *Store) Games() store.Games { return games{s} }

// CreateUser inserts a user and returns it with its assigned ID.
func (s *Store) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	db, err := s.db(ctx)
	if err != nil {
		return store.User{}, err
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO users (username, score, play_token, play_token_expires_at) VALUES (?, ?, ?, ?)`,
		u.Username, u.Score, u.PlayToken, toMillis(u.PlayTokenExpiresAt),
	)
	if err != nil {
		return store.User{}, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return store.User{}, fmt.Errorf("user id: %w", err)
	}

	u.ID = id
	return u, nil
}

func (s *Store) db(ctx context.Context) (*sql.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sqlDB == nil {
		return nil, store.ErrNotConnected
	}

	return s.sqlDB, nil
}

type users struct{ s *Store }

func (u users) SelectByPlayToken(ctx context.Context, token string) (store.User, error) {
	db, err := u.s.db(ctx)
	if err != nil {
		return store.User{}, err
	}

	var (
		user      store.User
		expiresAt int64
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, username, score, play_token, play_token_expires_at FROM users WHERE play_token = ?`,
		token,
	).Scan(&user.ID, &user.Username, &user.Score, &user.PlayToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("select user by play token: %w", err)
	}

	user.PlayTokenExpiresAt = fromMillis(expiresAt)
	return user, nil
}

type games struct{ s *Store }

func (g games) CreateOrUpdateGame(ctx context.Context, slug string, fields store.GameFields) error {
	db, err := g.s.db(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
INSERT INTO games (slug, server_name, description, port, last_heartbeat)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET
    server_name = excluded.server_name,
    description = excluded.description,
    port = excluded.port,
    last_heartbeat = excluded.last_heartbeat`,
		slug, fields.ServerName, fields.Description, fields.Port, toMillis(g.s.now()),
	)
	if err != nil {
		return fmt.Errorf("upsert game %s: %w", slug, err)
	}

	return nil
}

func (g games) UpdateGame(ctx context.Context, slug string) error {
	db, err := g.s.db(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `UPDATE games SET last_heartbeat = ? WHERE slug = ?`, toMillis(g.s.now()), slug)
	if err != nil {
		return fmt.Errorf("update game %s: %w", slug, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game %s: %w", slug, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (g games) GetGame(ctx context.Context, slug string) (store.Game, error) {
	db, err := g.s.db(ctx)
	if err != nil {
		return store.Game{}, err
	}

	var (
		game      store.Game
		heartbeat int64
	)
	err = db.QueryRowContext(ctx,
		`SELECT slug, server_name, description, port, last_heartbeat FROM games WHERE slug = ?`,
		slug,
	).Scan(&game.Slug, &game.ServerName, &game.Description, &game.Port, &heartbeat)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Game{}, store.ErrNotFound
	}
	if err != nil {
		return store.Game{}, fmt.Errorf("select game %s: %w", slug, err)
	}

	game.LastHeartbeat = fromMillis(heartbeat)
	return game, nil
}
