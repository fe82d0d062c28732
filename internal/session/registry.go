package session

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
)

// Options configures a Registry.
type Options struct {
	// Root holds one directory per session; empty means a directory
	// under os.TempDir.
	Root string
	// IdleTimeout is how long an unused session survives. Zero disables
	// reaping.
	IdleTimeout time.Duration
	// ReapInterval is the period of the background reaper started by
	// Start. Zero means IdleTimeout/2.
	ReapInterval time.Duration
	// OnClose runs after a session is closed or reaped.
	OnClose func(*Session)
}

// Registry creates and reclaims sessions.
type Registry struct {
	opts Options
	now  func() time.Time

	mu        sync.Mutex
	sessions  map[string]*Session
	scheduler gocron.Scheduler
}

// NewRegistry creates the session root.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Root == "" {
		opts.Root = filepath.Join(os.TempDir(), "hwpxkit-sessions")
	}
	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, errors.NewIO("mkdir", opts.Root, err)
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = opts.IdleTimeout / 2
	}
	return &Registry{opts: opts, now: time.Now, sessions: map[string]*Session{}}, nil
}

// Root returns the directory holding session workspaces.
func (r *Registry) Root() string {
	return r.opts.Root
}

// Open creates a new session with a fresh workspace.
func (r *Registry) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	dir := filepath.Join(r.opts.Root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewIO("mkdir", dir, err)
	}
	now := r.now()
	s := &Session{
		ID:      id,
		Dir:     dir,
		Logger:  logging.Logger().With("session", id),
		created: now,
		touched: now,
		lock:    flock.New(filepath.Join(r.opts.Root, id+".lock")),
		now:     r.now,
	}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	s.Logger.Debug("session opened", "dir", dir)
	return s, nil
}

// Get returns session id and marks it used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, errors.NewNotFound("session", id)
	}
	s.Touch()
	return s, nil
}

// Sessions returns the open sessions ordered by creation time.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].created.Before(out[j].created) })
	return out
}

// Close removes session id and its workspace.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return errors.NewNotFound("session", id)
	}
	return r.closeSession(s)
}

func (r *Registry) closeSession(s *Session) error {
	if err := s.close(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, s.ID)
	r.mu.Unlock()
	if r.opts.OnClose != nil {
		r.opts.OnClose(s)
	}
	s.Logger.Debug("session closed")
	return nil
}

// Reap closes every session idle for at least IdleTimeout and returns how
// many were removed. Sessions in use are skipped.
func (r *Registry) Reap() int {
	if r.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.opts.IdleTimeout)
	n := 0
	for _, s := range r.Sessions() {
		if !s.idle(cutoff) {
			continue
		}
		if err := r.closeSession(s); err != nil {
			logging.Warn("session not reaped", "session", s.ID, "error", err.Error())
			continue
		}
		n++
	}
	if n > 0 {
		logging.Info("sessions reaped", "count", n)
	}
	return n
}

// Start runs Reap every ReapInterval in the background until Shutdown.
func (r *Registry) Start() error {
	if r.opts.IdleTimeout <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler != nil {
		return nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "failed to create gocron scheduler")
	}
	_, err = s.NewJob(
		gocron.DurationJob(r.opts.ReapInterval),
		gocron.NewTask(func() { r.Reap() }),
		gocron.WithName("session-reaper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return errors.Wrap(err, "failed to create reaper job")
	}
	s.Start()
	r.scheduler = s
	return nil
}

// Shutdown stops the reaper and closes every remaining session.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	s := r.scheduler
	r.scheduler = nil
	r.mu.Unlock()

	var first error
	if s != nil {
		first = s.Shutdown()
	}
	for _, sess := range r.Sessions() {
		if err := r.closeSession(sess); err != nil && first == nil {
			first = err
		}
	}
	return first
}
