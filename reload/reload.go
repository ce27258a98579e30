// Package reload restarts the server process whenever files under a
// directory change. The supervisor runs the same binary as a child with
// RunningEnv set so the child serves instead of supervising again.
package reload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cyberinferno/termninja/logger"
)

const (
	RunningEnv   = "TERMNINJA_SERVER_RUNNING"
	DefaultDelay = 2 * time.Second
	stopTimeout  = 5 * time.Second
)

// IsChild reports whether this process was started by a Supervisor.
func IsChild() bool {
	return os.Getenv(RunningEnv) == "true"
}

// Supervisor runs Command and restarts it after file changes settle.
type Supervisor struct {
	Dir     string
	Delay   time.Duration
	Command []string
	Logger  logger.Logger
}

// Run supervises the child until ctx is cancelled. The child is stopped
// with SIGTERM and killed if it does not exit within a few seconds.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.Command) == 0 {
		return errors.New("reload: no command to run")
	}
	if s.Logger == nil {
		s.Logger = logger.NewNop()
	}
	if s.Delay <= 0 {
		s.Delay = DefaultDelay
	}

	changes, err := Watch(ctx, s.Dir, s.Delay, s.Logger)
	if err != nil {
		return err
	}

	for {
		cmd, exited, err := s.start()
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			s.stop(cmd, exited)
			return nil
		case <-changes:
			s.Logger.Info("change detected, restarting")
			s.stop(cmd, exited)
		case err := <-exited:
			s.Logger.Warn("server exited, waiting for changes", logger.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
			}
		}
	}
}

func (s *Supervisor) start() (*exec.Cmd, <-chan error, error) {
	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Env = append(os.Environ(), RunningEnv+"=true")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("reload: start %s: %w", s.Command[0], err)
	}

	s.Logger.Info("server started", logger.Field{Key: "pid", Value: cmd.Process.Pid})

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()
	return cmd, exited, nil
}

func (s *Supervisor) stop(cmd *exec.Cmd, exited <-chan error) {
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-exited:
	case <-time.After(stopTimeout):
		s.Logger.Warn("server did not stop in time, killing it")
		_ = cmd.Process.Kill()
		<-exited
	}
}

// Watch reports changes under dir, recursively. Bursts of events are
// collapsed into one notification sent once no event arrived for delay.
// Hidden directories are not watched.
func Watch(ctx context.Context, dir string, delay time.Duration, log logger.Logger) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reload: create watcher: %w", err)
	}

	if err := addTree(watcher, dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()

		timer := time.NewTimer(delay)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = addTree(watcher, event.Name)
					}
				}
				if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
					continue
				}
				timer.Reset(delay)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watch error", logger.Err(err))
			case <-timer.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("reload: watch %s: %w", path, err)
		}
		return nil
	})
}
