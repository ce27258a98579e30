package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/termninja/store"
)

func newStore(t *testing.T, cfg Config) *Store {
	t.Helper()

	if cfg.ConnectionURL == "" {
		cfg.ConnectionURL = "redis://127.0.0.1:1/0"
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := newStore(t, Config{})
		assert.Equal(t, "termninja", s.cfg.KeyPrefix)
		assert.Equal(t, 1, s.cfg.RetryAttempts)
		assert.NotNil(t, s.Client())
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := New(Config{ConnectionURL: "http://nope"})
		assert.ErrorIs(t, err, ErrFailedToParseRedisConnString)
	})
}

func TestStore_keys(t *testing.T) {
	s := newStore(t, Config{KeyPrefix: "tn"})
	assert.Equal(t, "tn:users:token:abc", s.userKey("abc"))
	assert.Equal(t, "tn:games:snake", s.gameKey("snake"))
}

func TestStore_Connect(t *testing.T) {
	t.Run("unreachable server", func(t *testing.T) {
		s := newStore(t, Config{
			ConnectionURL:  "redis://127.0.0.1:1/0",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: 2 * time.Second,
		})
		err := s.Connect(context.Background())
		assert.ErrorIs(t, err, ErrRedisNotReady)
	})

	t.Run("operations before connect fail", func(t *testing.T) {
		s := newStore(t, Config{})
		_, err := s.Users().SelectByPlayToken(context.Background(), "x")
		assert.ErrorIs(t, err, store.ErrNotConnected)
		assert.ErrorIs(t, s.Games().UpdateGame(context.Background(), "x"), store.ErrNotConnected)
		_, err = s.CreateUser(context.Background(), store.User{PlayToken: "x"})
		assert.ErrorIs(t, err, store.ErrNotConnected)
	})

	t.Run("closed store cannot reconnect", func(t *testing.T) {
		s := newStore(t, Config{})
		require.NoError(t, s.Disconnect(context.Background()))
		require.NoError(t, s.Disconnect(context.Background()))
		assert.ErrorIs(t, s.Connect(context.Background()), store.ErrNotConnected)
	})
}

func TestDecode(t *testing.T) {
	t.Run("user", func(t *testing.T) {
		u, err := decodeUser(map[string]string{
			"id":                    "7",
			"username":              "ada",
			"score":                 "12",
			"play_token":            "tok",
			"play_token_expires_at": "1700000000000",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), u.ID)
		assert.Equal(t, "ada", u.Username)
		assert.Equal(t, int64(12), u.Score)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), u.PlayTokenExpiresAt)
	})

	t.Run("user with corrupt score", func(t *testing.T) {
		_, err := decodeUser(map[string]string{"id": "1", "score": "x", "play_token_expires_at": "0"})
		assert.Error(t, err)
	})

	t.Run("game", func(t *testing.T) {
		g, err := decodeGame(map[string]string{
			"slug":           "snake",
			"server_name":    "Snake",
			"description":    "eat",
			"port":           "3000",
			"last_heartbeat": "1700000000000",
		})
		require.NoError(t, err)
		assert.Equal(t, "snake", g.Slug)
		assert.Equal(t, 3000, g.Port)
	})
}
