// Package session wraps one accepted client connection: line-oriented
// reads and writes that honour context cancellation, and an optional
// authenticated identity.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/termninja/store"
)

var (
	// ErrClosed is returned by I/O on a closed session.
	ErrClosed = errors.New("session: closed")
	// ErrIdentityAssigned is returned when a session is given a second identity.
	ErrIdentityAssigned = errors.New("session: identity already assigned")
	// ErrLineTooLong is returned by ReadLine when a client sends more than
	// MaxLineLength bytes without a newline.
	ErrLineTooLong = errors.New("session: line too long")
)

// MaxLineLength bounds a single line read from a client, terminator included.
const MaxLineLength = 4096

// A deadline in the past makes pending I/O on a net.Conn return immediately.
var aLongTimeAgo = time.Unix(1, 0)

// Session is one client connection. Reads and writes may happen from
// different goroutines; concurrent reads (or concurrent writes) are
// serialized.
type Session struct {
	id     uint32
	conn   net.Conn
	reader *bufio.Reader

	readMu  sync.Mutex
	writeMu sync.Mutex

	mu   sync.RWMutex
	user *store.User

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// New wraps conn as the session with the given id.
func New(id uint32, conn net.Conn) *Session {
	return &Session{
		id:     id,
		conn:   conn,
		reader: bufio.NewReaderSize(conn, MaxLineLength),
	}
}

// ID returns the numeric session id.
func (s *Session) ID() uint32 { return s.id }

// Addr returns the remote address of the connection.
func (s *Session) Addr() net.Addr { return s.conn.RemoteAddr() }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

// Send writes msg to the client as is. Callers include line terminators.
func (s *Session) Send(ctx context.Context, msg string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.interruptible(ctx, s.conn.SetWriteDeadline, func() error {
		_, err := s.conn.Write([]byte(msg))
		return err
	})
	if err != nil {
		return s.ioError("write", ctx, err)
	}

	return nil
}

// ReadLine blocks until the client sends a full line and returns it
// without the trailing "\n" or "\r\n". Lines longer than MaxLineLength
// fail with ErrLineTooLong; the session should then be closed since the
// rest of the line is still unread.
func (s *Session) ReadLine(ctx context.Context) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	var line string
	err := s.interruptible(ctx, s.conn.SetReadDeadline, func() error {
		b, err := s.reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			return ErrLineTooLong
		}
		line = string(b)
		return err
	})
	if err != nil {
		return "", s.ioError("read", ctx, err)
	}

	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// Prompt sends msg and reads the reply line.
func (s *Session) Prompt(ctx context.Context, msg string) (string, error) {
	if err := s.Send(ctx, msg); err != nil {
		return "", err
	}

	return s.ReadLine(ctx)
}

// Close closes the connection. Only the first call has an effect; later
// calls return the first call's result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}

// AssignUser attaches an authenticated identity. A session holds at most
// one identity for its lifetime.
func (s *Session) AssignUser(u store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user != nil {
		return ErrIdentityAssigned
	}

	s.user = &u
	return nil
}

// User returns the session's identity, if any.
func (s *Session) User() (store.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return store.User{}, false
	}

	return *s.user, true
}

// interruptible runs op and makes it return early when ctx is cancelled by
// moving the relevant deadline into the past. The deadline is cleared again
// afterwards so the session stays usable with a fresh context.
func (s *Session) interruptible(ctx context.Context, setDeadline func(time.Time) error, op func() error) error {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = setDeadline(aLongTimeAgo)
		close(fired)
	})

	err := op()

	if !stop() {
		<-fired
		_ = setDeadline(time.Time{})
	}

	return err
}

func (s *Session) ioError(op string, ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if s.closed.Load() {
		return ErrClosed
	}

	return fmt.Errorf("session %d %s: %w", s.id, op, err)
}
