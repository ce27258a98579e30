package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/termninja/store"
)

func connected(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.Connect(context.Background()))
	return s
}

func TestStore_requiresConnection(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Users().SelectByPlayToken(ctx, "t")
	assert.ErrorIs(t, err, store.ErrNotConnected)
	assert.ErrorIs(t, s.Games().CreateOrUpdateGame(ctx, "x", store.GameFields{}), store.ErrNotConnected)

	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Disconnect(ctx))
	assert.ErrorIs(t, s.Games().UpdateGame(ctx, "x"), store.ErrNotConnected)
}

func TestUsers_SelectByPlayToken(t *testing.T) {
	s := connected(t)
	s.AddUser(store.User{ID: 1, Username: "ada", PlayToken: "tok"})

	t.Run("found", func(t *testing.T) {
		u, err := s.Users().SelectByPlayToken(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "ada", u.Username)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.Users().SelectByPlayToken(context.Background(), "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestGames_upsertIsIdempotent(t *testing.T) {
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := connected(t).WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	})
	ctx := context.Background()

	require.NoError(t, s.Games().CreateOrUpdateGame(ctx, "snake", store.GameFields{ServerName: "Snake", Port: 3000}))
	require.NoError(t, s.Games().CreateOrUpdateGame(ctx, "snake", store.GameFields{ServerName: "Snake", Port: 3001}))
	assert.Equal(t, 1, s.GameCount())

	game, err := s.Games().GetGame(ctx, "snake")
	require.NoError(t, err)
	assert.Equal(t, 3001, game.Port)

	before := game.LastHeartbeat
	require.NoError(t, s.Games().UpdateGame(ctx, "snake"))
	game, err = s.Games().GetGame(ctx, "snake")
	require.NoError(t, err)
	assert.True(t, game.LastHeartbeat.After(before))

	assert.ErrorIs(t, s.Games().UpdateGame(ctx, "missing"), store.ErrNotFound)
}
