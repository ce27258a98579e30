package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PopN(t *testing.T) {
	ctx := context.Background()

	t.Run("returns items in arrival order", func(t *testing.T) {
		q := New[int]()
		for i := range 5 {
			q.Push(i)
		}

		first, err := q.PopN(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, first)

		second, err := q.PopN(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, second)
		assert.Equal(t, 1, q.Len())
	})

	t.Run("blocks until enough items arrive", func(t *testing.T) {
		q := New[string]()
		q.Push("a")

		got := make(chan []string, 1)
		go func() {
			items, _ := q.PopN(ctx, 3)
			got <- items
		}()

		q.Push("b")
		select {
		case <-got:
			t.Fatal("PopN returned with too few items")
		case <-time.After(30 * time.Millisecond):
		}

		q.Push("c")
		select {
		case items := <-got:
			assert.Equal(t, []string{"a", "b", "c"}, items)
		case <-time.After(time.Second):
			t.Fatal("PopN did not return")
		}
	})

	t.Run("cancellation leaves the queue untouched", func(t *testing.T) {
		q := New[int]()
		q.Push(1)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := q.PopN(cctx, 2)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, q.Len())
	})

	t.Run("concurrent producers lose nothing", func(t *testing.T) {
		q := New[int]()
		var wg sync.WaitGroup
		for p := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 25 {
					q.Push(p*100 + i)
				}
			}()
		}
		wg.Wait()

		seen := map[int]bool{}
		for range 25 {
			items, err := q.PopN(ctx, 4)
			require.NoError(t, err)
			for _, it := range items {
				assert.False(t, seen[it], "item %d popped twice", it)
				seen[it] = true
			}
		}
		assert.Len(t, seen, 100)
		assert.Zero(t, q.Len())
	})
}

func TestQueue_Drain(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)

	assert.Equal(t, []int{1, 2}, q.Drain())
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain())
}
