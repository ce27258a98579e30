// Package tcpserver accepts client connections, runs each one through the
// hook chain and queues the sessions that are accepted.
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/termninja/hooks"
	"github.com/cyberinferno/termninja/idgenerator"
	"github.com/cyberinferno/termninja/logger"
	"github.com/cyberinferno/termninja/metrics"
	"github.com/cyberinferno/termninja/queue"
	"github.com/cyberinferno/termninja/safemap"
	"github.com/cyberinferno/termninja/session"
)

var (
	// ErrAlreadyListening is returned by Listen on a bound server.
	ErrAlreadyListening = errors.New("tcpserver: already listening")
	// ErrNotListening is returned by Serve before Listen succeeds.
	ErrNotListening = errors.New("tcpserver: not listening")
)

// TCPServer is the acceptor. Each connection becomes a session that goes
// through OnConnected, ShouldAccept and then OnAccepted (and is queued) or
// OnRejected (and is closed). Sessions in that handshake are tracked in
// Sessions so they can be closed when the server stops.
type TCPServer struct {
	Logger      logger.Logger
	Name        string
	Addr        string
	Hooks       hooks.Hooks
	Queue       *queue.Queue[*session.Session]
	Sessions    *safemap.SafeMap[uint32, *session.Session]
	IdGenerator *idgenerator.IdGenerator[uint32]
	Metrics     *metrics.Metrics

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New returns a TCPServer for addr with its bookkeeping initialised.
func New(name, addr string, h hooks.Hooks, q *queue.Queue[*session.Session], log logger.Logger) *TCPServer {
	if log == nil {
		log = logger.NewNop()
	}

	return &TCPServer{
		Logger:      log,
		Name:        name,
		Addr:        addr,
		Hooks:       h,
		Queue:       q,
		Sessions:    safemap.NewSafeMap[uint32, *session.Session](),
		IdGenerator: idgenerator.NewIdGenerator[uint32](0),
	}
}

// Listen binds Addr with address and port reuse enabled.
func (s *TCPServer) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server %s: %w", s.Name, ErrAlreadyListening)
	}

	lc := net.ListenConfig{Control: reuseControl}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		s.Logger.Error("server failed to listen", logger.Field{Key: "addr", Value: s.Addr}, logger.Err(err))
		return fmt.Errorf("server %s failed to listen: %w", s.Name, err)
	}

	s.listener = ln
	s.Logger.Info(fmt.Sprintf("%s server listening", s.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})
	return nil
}

// ListenAddr returns the bound address, or nil before Listen.
func (s *TCPServer) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled. On return the listener
// is closed, every session still in its handshake has been closed and all
// handshake goroutines have finished, so nothing is queued afterwards.
func (s *TCPServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if ln == nil {
		return ErrNotListening
	}

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	err := s.acceptLoop(ctx, ln)

	_ = ln.Close()
	if n := s.Sessions.Len(); n > 0 {
		s.Logger.Info(fmt.Sprintf("%s server closing handshaking sessions", s.Name), logger.Field{Key: "count", Value: n})
	}
	s.Sessions.Range(func(_ uint32, sess *session.Session) bool {
		_ = sess.Close()
		return true
	})
	s.wg.Wait()

	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()

	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
	return err
}

func (s *TCPServer) acceptLoop(ctx context.Context, ln net.Listener) error {
	var backoff time.Duration

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			s.Logger.Error(fmt.Sprintf("%s server accept error", s.Name), logger.Err(err))

			// Back off on resource exhaustion such as EMFILE.
			backoff = min(max(backoff*2, 5*time.Millisecond), time.Second)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		backoff = 0
		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

func (s *TCPServer) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	id := s.IdGenerator.Id()
	sess := session.New(id, conn)
	s.Sessions.Store(id, sess)
	defer s.Sessions.Delete(id)

	log := s.Logger.With(
		logger.Field{Key: "session", Value: id},
		logger.Field{Key: "addr", Value: conn.RemoteAddr().String()},
	)
	log.Info("connection")
	s.Metrics.ConnectionOpened()

	queued, err := s.handshake(ctx, sess)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("handshake failed", logger.Err(err))
			s.Metrics.HandshakeFailed()
		}
		_ = sess.Close()
		return
	}

	if !queued {
		log.Info("rejected")
		_ = sess.Close()
		return
	}

	log.Info("queued")
}

// handshake runs the hook sequence and reports whether the session was
// queued. Hook errors abort the sequence.
func (s *TCPServer) handshake(ctx context.Context, sess *session.Session) (bool, error) {
	if err := s.Hooks.OnConnected(ctx, sess); err != nil {
		return false, fmt.Errorf("on connected: %w", err)
	}

	accept, err := s.Hooks.ShouldAccept(ctx, sess)
	if err != nil {
		return false, fmt.Errorf("should accept: %w", err)
	}

	if !accept {
		s.Metrics.SessionRejected()
		if err := s.Hooks.OnRejected(ctx, sess); err != nil {
			return false, fmt.Errorf("on rejected: %w", err)
		}
		return false, nil
	}

	if err := s.Hooks.OnAccepted(ctx, sess); err != nil {
		return false, fmt.Errorf("on accepted: %w", err)
	}

	s.Queue.Push(sess)
	s.Metrics.SessionAccepted()
	s.Metrics.SetQueued(s.Queue.Len())
	return true, nil
}
