package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_TokenExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("expiry in the past", func(t *testing.T) {
		u := User{PlayTokenExpiresAt: now.Add(-time.Second)}
		assert.True(t, u.TokenExpired(now))
	})

	t.Run("expiry in the future", func(t *testing.T) {
		u := User{PlayTokenExpiresAt: now.Add(time.Hour)}
		assert.False(t, u.TokenExpired(now))
	})

	t.Run("expiry exactly now is still valid", func(t *testing.T) {
		u := User{PlayTokenExpiresAt: now}
		assert.False(t, u.TokenExpired(now))
	})
}
