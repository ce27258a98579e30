// Package redisstore is a store.Store kept in redis hashes. Users are
// indexed by play token and server registrations by slug.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/termninja/store"
)

// Store talks to redis through a single client. The client is created by
// New but no connection is attempted until Connect.
type Store struct {
	cfg    Config
	client *redis.Client
	now    func() time.Time

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// New parses cfg.ConnectionURL and returns a disconnected Store.
func New(cfg Config) (*Store, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "termninja"
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}

	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	return &Store{cfg: cfg, client: redis.NewClient(opts), now: time.Now}, nil
}

// Connect pings the server, retrying up to RetryAttempts times with
// RetryInterval between attempts.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrNotConnected
	}
	if s.connected {
		return nil
	}

	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := range s.cfg.RetryAttempts {
		if lastErr = s.client.Ping(ctx).Err(); lastErr == nil {
			s.connected = true
			return nil
		}

		if attempt == s.cfg.RetryAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(s.cfg.RetryInterval):
		}
	}

	return errors.Join(ErrRedisNotReady, lastErr)
}

// Disconnect closes the client. The Store cannot be reconnected.
func (s *Store) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.connected = false
	return s.client.Close()
}

// Client returns the underlying client. The token cache shares it.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Users implements store.Store.
func (s *Store) Users() store.Users { return users{s} }

// Games implements store.Store.
func (s *Store) Games() store.Games { return games{s} }

// CreateUser writes a user record under its play token. A zero ID is
// replaced by the next value of a redis counter.
func (s *Store) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return store.User{}, err
	}

	if u.ID == 0 {
		id, err := client.Incr(ctx, s.cfg.KeyPrefix+":users:next_id").Result()
		if err != nil {
			return store.User{}, fmt.Errorf("redis next user id: %w", err)
		}
		u.ID = id
	}

	err = client.HSet(ctx, s.userKey(u.PlayToken),
		"id", u.ID,
		"username", u.Username,
		"score", u.Score,
		"play_token", u.PlayToken,
		"play_token_expires_at", u.PlayTokenExpiresAt.UTC().UnixMilli(),
	).Err()
	if err != nil {
		return store.User{}, fmt.Errorf("redis create user: %w", err)
	}

	return u, nil
}

func (s *Store) userKey(token string) string {
	return s.cfg.KeyPrefix + ":users:token:" + token
}

func (s *Store) gameKey(slug string) string {
	return s.cfg.KeyPrefix + ":games:" + slug
}

func (s *Store) conn(ctx context.Context) (*redis.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return nil, store.ErrNotConnected
	}

	return s.client, nil
}

type users struct{ s *Store }

func (u users) SelectByPlayToken(ctx context.Context, token string) (store.User, error) {
	client, err := u.s.conn(ctx)
	if err != nil {
		return store.User{}, err
	}

	fields, err := client.HGetAll(ctx, u.s.userKey(token)).Result()
	if err != nil {
		return store.User{}, fmt.Errorf("redis hgetall user: %w", err)
	}
	if len(fields) == 0 {
		return store.User{}, store.ErrNotFound
	}

	return decodeUser(fields)
}

func decodeUser(fields map[string]string) (store.User, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return store.User{}, fmt.Errorf("decode user id: %w", err)
	}

	score, err := strconv.ParseInt(fields["score"], 10, 64)
	if err != nil {
		return store.User{}, fmt.Errorf("decode user score: %w", err)
	}

	expires, err := strconv.ParseInt(fields["play_token_expires_at"], 10, 64)
	if err != nil {
		return store.User{}, fmt.Errorf("decode user token expiry: %w", err)
	}

	return store.User{
		ID:                 id,
		Username:           fields["username"],
		Score:              score,
		PlayToken:          fields["play_token"],
		PlayTokenExpiresAt: time.UnixMilli(expires).UTC(),
	}, nil
}

type games struct{ s *Store }

func (g games) CreateOrUpdateGame(ctx context.Context, slug string, fields store.GameFields) error {
	client, err := g.s.conn(ctx)
	if err != nil {
		return err
	}

	err = client.HSet(ctx, g.s.gameKey(slug),
		"slug", slug,
		"server_name", fields.ServerName,
		"description", fields.Description,
		"port", fields.Port,
		"last_heartbeat", g.s.now().UTC().UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis upsert game %s: %w", slug, err)
	}

	return nil
}

func (g games) UpdateGame(ctx context.Context, slug string) error {
	client, err := g.s.conn(ctx)
	if err != nil {
		return err
	}

	key := g.s.gameKey(slug)
	n, err := client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis exists game %s: %w", slug, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	if err := client.HSet(ctx, key, "last_heartbeat", g.s.now().UTC().UnixMilli()).Err(); err != nil {
		return fmt.Errorf("redis update game %s: %w", slug, err)
	}

	return nil
}

func (g games) GetGame(ctx context.Context, slug string) (store.Game, error) {
	client, err := g.s.conn(ctx)
	if err != nil {
		return store.Game{}, err
	}

	fields, err := client.HGetAll(ctx, g.s.gameKey(slug)).Result()
	if err != nil {
		return store.Game{}, fmt.Errorf("redis hgetall game %s: %w", slug, err)
	}
	if len(fields) == 0 {
		return store.Game{}, store.ErrNotFound
	}

	return decodeGame(fields)
}

func decodeGame(fields map[string]string) (store.Game, error) {
	port, err := strconv.Atoi(fields["port"])
	if err != nil {
		return store.Game{}, fmt.Errorf("decode game port: %w", err)
	}

	heartbeat, err := strconv.ParseInt(fields["last_heartbeat"], 10, 64)
	if err != nil {
		return store.Game{}, fmt.Errorf("decode game heartbeat: %w", err)
	}

	return store.Game{
		Slug:          fields["slug"],
		ServerName:    fields["server_name"],
		Description:   fields["description"],
		Port:          port,
		LastHeartbeat: time.UnixMilli(heartbeat).UTC(),
	}, nil
}
