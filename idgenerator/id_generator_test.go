package idgenerator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdGenerator(t *testing.T) {
	t.Run("first Id returns start+1", func(t *testing.T) {
		gen := NewIdGenerator[uint32](0)
		require.NotNil(t, gen)
		assert.Equal(t, uint32(1), gen.Id())
	})

	t.Run("custom start", func(t *testing.T) {
		gen := NewIdGenerator[uint64](100)
		assert.Equal(t, uint64(101), gen.Id())
	})

	t.Run("uint32 wraps to zero after max", func(t *testing.T) {
		gen := NewIdGenerator(^uint32(0))
		assert.Equal(t, uint32(0), gen.Id())
	})
}

func TestIdGenerator_Id_sequence(t *testing.T) {
	gen := NewIdGenerator[uint32](5)
	assert.Equal(t, uint32(6), gen.Id())
	assert.Equal(t, uint32(7), gen.Id())
}

func TestIdGenerator_Id_concurrent(t *testing.T) {
	gen := NewIdGenerator[uint32](0)
	const n = 500

	ids := make([]uint32, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			ids[idx] = gen.Id()
		}(i)
	}
	wg.Wait()

	seen := make(map[uint32]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		assert.GreaterOrEqual(t, id, uint32(1))
		assert.LessOrEqual(t, id, uint32(n))
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
