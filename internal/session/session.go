// Package session hands out per-request workspaces. Each session owns an
// extraction directory guarded by an advisory file lock; idle sessions are
// reclaimed by a periodic reaper.
package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
)

// lockRetry is how often Lock polls a lock held by another process.
const lockRetry = 50 * time.Millisecond

// Session is one workspace. Its methods are safe for concurrent use.
type Session struct {
	ID     string
	Dir    string
	Logger *slog.Logger

	created time.Time
	lock    *flock.Flock
	now     func() time.Time

	acquire sync.Mutex
	mu      sync.Mutex
	touched time.Time
	inUse   int
	closed  bool
}

// Context returns ctx carrying the session id for log correlation.
func (s *Session) Context(ctx context.Context) context.Context {
	return logging.WithSession(ctx, s.ID)
}

// Path joins elem under the session directory.
func (s *Session) Path(elem ...string) string {
	return filepath.Join(append([]string{s.Dir}, elem...)...)
}

// Created returns the creation time.
func (s *Session) Created() time.Time {
	return s.created
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.touched = s.now()
	s.mu.Unlock()
}

// LastTouched returns when the session was last used.
func (s *Session) LastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Lock takes the workspace lock, waiting while another process holds it.
// Holders in the same process share it. The returned func releases it. A
// session in use is never reaped.
func (s *Session) Lock(ctx context.Context) (func(), error) {
	s.acquire.Lock()
	defer s.acquire.Unlock()

	s.mu.Lock()
	closed, held := s.closed, s.inUse > 0
	s.mu.Unlock()
	if closed {
		return nil, errors.NewNotFound("session", s.ID)
	}
	if !held {
		ok, err := s.lock.TryLockContext(ctx, lockRetry)
		if err == nil && !ok {
			err = errors.NewValidation("session", "workspace is locked")
		}
		if err != nil {
			return nil, errors.Wrapf(err, "lock session %s", s.ID)
		}
	}

	s.mu.Lock()
	s.inUse++
	s.touched = s.now()
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(s.release)
	}, nil
}

func (s *Session) release() {
	s.acquire.Lock()
	defer s.acquire.Unlock()
	s.mu.Lock()
	s.inUse--
	last := s.inUse == 0
	s.touched = s.now()
	s.mu.Unlock()
	if last {
		_ = s.lock.Unlock()
	}
}

func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.inUse == 0 && s.touched.Before(cutoff)
}

// close removes the workspace. It fails when the session is in use or
// another process holds its lock.
func (s *Session) close() error {
	s.acquire.Lock()
	defer s.acquire.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.inUse > 0 {
		s.mu.Unlock()
		return errors.NewValidation("session", "session "+s.ID+" is in use")
	}
	s.closed = true
	s.mu.Unlock()

	ok, err := s.lock.TryLock()
	if err != nil || !ok {
		s.mu.Lock()
		s.closed = false
		s.mu.Unlock()
		if err == nil {
			err = errors.NewValidation("session", "workspace is locked")
		}
		return errors.Wrapf(err, "close session %s", s.ID)
	}
	defer func() {
		_ = s.lock.Unlock()
		os.Remove(s.lock.Path())
	}()
	if err := os.RemoveAll(s.Dir); err != nil {
		return errors.NewIO("remove", s.Dir, err)
	}
	return nil
}
