package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/termninja/logger"
)

func TestIsChild(t *testing.T) {
	t.Setenv(RunningEnv, "true")
	assert.True(t, IsChild())

	t.Setenv(RunningEnv, "1")
	assert.False(t, IsChild())
}

func TestWatch(t *testing.T) {
	t.Run("a burst of writes yields one notification", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := Watch(ctx, dir, 50*time.Millisecond, logger.NewNop())
		require.NoError(t, err)

		for i := range 5 {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte{byte(i)}, 0o600))
		}

		select {
		case <-changes:
		case <-time.After(2 * time.Second):
			t.Fatal("no change reported")
		}

		select {
		case <-changes:
			t.Fatal("burst reported twice")
		case <-time.After(150 * time.Millisecond):
		}
	})

	t.Run("new subdirectories are watched", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := Watch(ctx, dir, 20*time.Millisecond, logger.NewNop())
		require.NoError(t, err)

		sub := filepath.Join(dir, "pkg")
		require.NoError(t, os.Mkdir(sub, 0o700))
		<-changes

		require.Eventually(t, func() bool {
			_ = os.WriteFile(filepath.Join(sub, "file.go"), []byte("x"), 0o600)
			select {
			case <-changes:
				return true
			case <-time.After(100 * time.Millisecond):
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), time.Second, logger.NewNop())
		assert.Error(t, err)
	})
}

func TestSupervisor_Run(t *testing.T) {
	t.Run("requires a command", func(t *testing.T) {
		s := &Supervisor{Dir: t.TempDir()}
		assert.Error(t, s.Run(context.Background()))
	})

	t.Run("stops the child on cancellation", func(t *testing.T) {
		if _, err := os.Stat("/bin/sleep"); err != nil {
			t.Skip("sleep not available")
		}

		ctx, cancel := context.WithCancel(context.Background())
		s := &Supervisor{Dir: t.TempDir(), Delay: 20 * time.Millisecond, Command: []string{"/bin/sleep", "30"}}

		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("supervisor did not stop")
		}
	})
}
