package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/termninja/store"
)

func openStore(t *testing.T) *Store {
	t.Helper()

	s := New(filepath.Join(t.TempDir(), "termninja.db"))
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s
}

func TestStore_Connect(t *testing.T) {
	t.Run("empty path is rejected", func(t *testing.T) {
		assert.Error(t, New(" ").Connect(context.Background()))
	})

	t.Run("reconnect reapplies nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db.sqlite")
		s := New(path)
		ctx := context.Background()

		require.NoError(t, s.Connect(ctx))
		require.NoError(t, s.Games().CreateOrUpdateGame(ctx, "snake", store.GameFields{ServerName: "Snake", Port: 1}))
		require.NoError(t, s.Disconnect(ctx))
		require.NoError(t, s.Disconnect(ctx))

		require.NoError(t, s.Connect(ctx))
		defer s.Disconnect(ctx)
		game, err := s.Games().GetGame(ctx, "snake")
		require.NoError(t, err)
		assert.Equal(t, "Snake", game.ServerName)
	})

	t.Run("operations before connect fail", func(t *testing.T) {
		s := New(filepath.Join(t.TempDir(), "db.sqlite"))
		_, err := s.Users().SelectByPlayToken(context.Background(), "x")
		assert.ErrorIs(t, err, store.ErrNotConnected)
	})
}

func TestUsers_SelectByPlayToken(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	created, err := s.CreateUser(ctx, store.User{Username: "ada", Score: 42, PlayToken: "tok", PlayTokenExpiresAt: expires})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	t.Run("found", func(t *testing.T) {
		u, err := s.Users().SelectByPlayToken(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)
		assert.Equal(t, "ada", u.Username)
		assert.Equal(t, int64(42), u.Score)
		assert.True(t, expires.Equal(u.PlayTokenExpiresAt))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.Users().SelectByPlayToken(ctx, "other")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestGames_CreateOrUpdateGame(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	t.Run("second upsert updates the same record", func(t *testing.T) {
		require.NoError(t, s.Games().CreateOrUpdateGame(ctx, "snake", store.GameFields{ServerName: "Snake", Description: "v1", Port: 3000}))
		require.NoError(t, s.Games().CreateOrUpdateGame(ctx, "snake", store.GameFields{ServerName: "Snake", Description: "v2", Port: 3001}))

		var count int
		require.NoError(t, s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM games WHERE slug = ?`, "snake").Scan(&count))
		assert.Equal(t, 1, count)

		game, err := s.Games().GetGame(ctx, "snake")
		require.NoError(t, err)
		assert.Equal(t, "v2", game.Description)
		assert.Equal(t, 3001, game.Port)
	})

	t.Run("update moves the heartbeat forward", func(t *testing.T) {
		before, err := s.Games().GetGame(ctx, "snake")
		require.NoError(t, err)

		require.NoError(t, s.Games().UpdateGame(ctx, "snake"))

		after, err := s.Games().GetGame(ctx, "snake")
		require.NoError(t, err)
		assert.True(t, after.LastHeartbeat.After(before.LastHeartbeat))
	})

	t.Run("update of unknown slug", func(t *testing.T) {
		assert.ErrorIs(t, s.Games().UpdateGame(ctx, "nope"), store.ErrNotFound)
		_, err := s.Games().GetGame(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
