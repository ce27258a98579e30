package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/termninja/logger"
)

func TestGroup(t *testing.T) {
	t.Run("wait returns after all tasks", func(t *testing.T) {
		g := NewGroup(context.Background(), logger.NewNop())

		var done atomic.Int32
		for range 3 {
			g.Spawn("worker", func(context.Context) error {
				time.Sleep(10 * time.Millisecond)
				done.Add(1)
				return nil
			})
		}

		g.Wait()
		assert.Equal(t, int32(3), done.Load())
		assert.Empty(t, g.Active())
	})

	t.Run("tasks observe cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		g := NewGroup(ctx, logger.NewNop())

		started := make(chan struct{})
		g.Spawn("blocker", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})

		<-started
		assert.Equal(t, []string{"blocker"}, g.Active())

		cancel()
		g.Wait()
		assert.Empty(t, g.Active())
	})

	t.Run("failure and panic do not affect siblings", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		g := NewGroup(ctx, nil)

		g.Spawn("fails", func(context.Context) error { return errors.New("boom") })
		g.Spawn("panics", func(context.Context) error { panic("kaboom") })

		sibling := make(chan error, 1)
		g.Spawn("sibling", func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			sibling <- ctx.Err()
			return nil
		})

		g.Wait()
		require.NoError(t, <-sibling)
	})
}
