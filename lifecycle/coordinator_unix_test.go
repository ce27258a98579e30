//go:build unix

package lifecycle

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/termninja/heartbeat"
	"github.com/cyberinferno/termninja/hooks"
)

func TestCoordinator_SIGTERM(t *testing.T) {
	st := newCountingStore()
	var running atomic.Int32
	h := hooks.Chain(hooks.NewBase("Signal Test"), heartbeat.Module(heartbeat.Options{
		Games:    st.Games(),
		Port:     3000,
		Interval: 10 * time.Millisecond,
	}))
	c := New(Options{
		Store:       st,
		Hooks:       h,
		Factory:     blockingFactory(&running),
		Addr:        "127.0.0.1:0",
		PlayerCount: 2,
	})

	// keep SIGTERM from reaching the default handler once Run has returned
	guard := make(chan os.Signal, 4)
	signal.Notify(guard, syscall.SIGTERM)
	t.Cleanup(func() { signal.Stop(guard) })

	done := start(t, context.Background(), c)
	require.Equal(t, StateRunning, c.State())

	conns := make([]net.Conn, 0, 4)
	for range 4 {
		conns = append(conns, player(t, c.ListenAddr()))
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return st.GameCount() == 1 }, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	// a repeated signal during shutdown changes nothing
	_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)

	require.NoError(t, wait(t, done))

	assert.Zero(t, running.Load())
	assert.Equal(t, int32(1), st.connects.Load())
	assert.Equal(t, int32(1), st.disconnects.Load())
	assert.Equal(t, StateStopped, c.State())
	for _, conn := range conns {
		requireClosedByServer(t, conn)
	}
}
