package safeset

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSafeSet(t *testing.T) {
	s := NewSafeSet[string]()
	require.NotNil(t, s)
	assert.Empty(t, s.Values())
}

func TestSafeSet_Add_Remove(t *testing.T) {
	s := NewSafeSet[string]()

	t.Run("add reports new elements", func(t *testing.T) {
		assert.True(t, s.Add("heartbeat"))
		assert.False(t, s.Add("heartbeat"))
		assert.Equal(t, []string{"heartbeat"}, s.Values())
	})

	t.Run("remove deletes element", func(t *testing.T) {
		s.Remove("heartbeat")
		assert.Empty(t, s.Values())
		s.Remove("heartbeat")
		assert.Empty(t, s.Values())
	})
}

func TestSafeSet_Values(t *testing.T) {
	s := NewSafeSet[int]()
	s.Add(3)
	s.Add(1)
	s.Add(2)

	values := s.Values()
	assert.ElementsMatch(t, []int{1, 2, 3}, values)

	values[0] = 99
	assert.NotContains(t, s.Values(), 99, "values must be a snapshot")
}

func TestSafeSet_concurrent(t *testing.T) {
	s := NewSafeSet[string]()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			assert.True(t, s.Add(fmt.Sprintf("batch-%d", i)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Values(), n)
}
