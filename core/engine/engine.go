// Package engine is the entry point for callers: it runs parse, build,
// merge and render operations inside a session, recording each run in the
// journal and metrics and bundling diagnostics when a run fails.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/hwpxkit/core/cas"
	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/imaging"
	"github.com/FocuswithJustin/hwpxkit/core/numbering"
	"github.com/FocuswithJustin/hwpxkit/core/recombine"
	"github.com/FocuswithJustin/hwpxkit/core/render"
	"github.com/FocuswithJustin/hwpxkit/core/resources"
	"github.com/FocuswithJustin/hwpxkit/core/segment"
	"github.com/FocuswithJustin/hwpxkit/core/styleiso"
	"github.com/FocuswithJustin/hwpxkit/internal/cache"
	"github.com/FocuswithJustin/hwpxkit/internal/config"
	"github.com/FocuswithJustin/hwpxkit/internal/journal"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
	"github.com/FocuswithJustin/hwpxkit/internal/metrics"
	"github.com/FocuswithJustin/hwpxkit/internal/session"
)

// Options configures an Engine. Only Config is required.
type Options struct {
	Config   *config.Config
	Journal  *journal.Journal // nil disables the journal
	Metrics  metrics.Recorder // nil records nothing
	Renderer render.Renderer  // nil means an HTTPRenderer on Config.Render.Endpoint
	Resizer  imaging.Resizer  // nil means imaging.DrawResizer
}

// Engine runs operations. It is safe for concurrent use; operations on one
// session are serialized by the session lock.
type Engine struct {
	cfg      *config.Config
	segment  segment.Options
	policy   resources.Policy
	mode     styleiso.Mode
	images   *imaging.Pool
	renderer render.Renderer
	journal  *journal.Journal
	store    *cas.Store
	metrics  metrics.Recorder
	sources  *cache.TTLCache[string, *recombine.Source]
}

// New builds an Engine from opts.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	seg, err := SegmentOptions(cfg.Segment)
	if err != nil {
		return nil, err
	}
	policy, err := resources.ParsePolicy(cfg.Resources.IDPolicy)
	if err != nil {
		return nil, err
	}
	mode, err := styleiso.ParseMode(cfg.Merge.StyleMode)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		segment: seg,
		policy:  policy,
		mode:    mode,
		journal: opts.Journal,
		metrics: metrics.OrNoop(opts.Metrics),
	}
	e.sources = cache.New[string, *recombine.Source](cfg.CacheTTL(), func(key string, src *recombine.Source) {
		if err := src.Close(); err != nil {
			logging.Warn("cached source not removed", "key", key, "error", err.Error())
		}
	})

	if cfg.Images.Normalize {
		e.images = imaging.NewPool(opts.Resizer, cfg.Images.Workers, cfg.Images.MaxWidth, cfg.Images.Quality)
		e.images.OnResult = func(r imaging.Result) {
			e.metrics.IncPoolItem("images", metrics.ResultOf(r.Err, 0))
		}
	}

	e.renderer = opts.Renderer
	if e.renderer == nil && cfg.Render.Endpoint != "" {
		e.renderer = render.NewHTTPRenderer(cfg.Render.Endpoint)
	}
	if e.renderer != nil {
		e.renderer = render.WithTimeout(e.renderer, cfg.RenderTimeout())
	}

	if cfg.Build.StoreDir != "" {
		if e.store, err = cas.NewStore(cfg.Build.StoreDir); err != nil {
			return nil, errors.Wrap(err, "output store")
		}
	}
	return e, nil
}

// SegmentOptions converts the segment section of the configuration.
func SegmentOptions(c config.Segment) (segment.Options, error) {
	m, err := numbering.NewMatcher(c.Patterns)
	if err != nil {
		return segment.Options{}, errors.Wrap(err, "segment.patterns")
	}
	return segment.Options{
		Mode:         segment.Mode(c.Mode),
		Matcher:      m,
		NumType:      c.NumType,
		TrimTrailing: c.TrimTrailing,
		AnswerLabels: c.AnswerLabels,
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Forget drops the cached sources of sess. Register it as the session
// registry's OnClose hook.
func (e *Engine) Forget(sess *session.Session) {
	prefix := sess.ID + "|"
	e.sources.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

// Close drops every cached source.
func (e *Engine) Close() error {
	e.sources.Invalidate()
	return nil
}

// source returns the loaded document at path for sess, loading it into the
// session directory on a cache miss. The cache key includes the file's
// size and modification time so an edited file is reloaded.
func (e *Engine) source(ctx context.Context, sess *session.Session, path string) (*recombine.Source, error) {
	abs, key, err := sourceKey(sess, path)
	if err != nil {
		return nil, err
	}
	if src, ok := e.sources.Get(key); ok {
		logging.DebugContext(ctx, "source cache hit", "path", path)
		return src, nil
	}

	start := time.Now()
	dir := sess.Path("sources", cas.Hash([]byte(key))[:16])
	src, err := recombine.Load(ctx, abs, dir, recombine.LoadOptions{Segment: e.segment, Policy: e.policy})
	if err != nil {
		return nil, err
	}
	for _, w := range src.Warnings {
		if errors.Is(w, errors.ErrSectionParse) {
			e.metrics.IncSectionFailure()
		}
	}
	e.metrics.ObserveStageDuration("load", time.Since(start))
	e.sources.Set(key, src)
	return src, nil
}

// sourceKey identifies a loaded source: session, absolute path, size and
// modification time.
func sourceKey(sess *session.Session, path string) (abs, key string, err error) {
	abs, err = filepath.Abs(path)
	if err != nil {
		return "", "", errors.NewIO("abs", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", errors.NewInputFormat(path, "cannot stat", err)
	}
	return abs, fmt.Sprintf("%s|%s|%d|%d", sess.ID, abs, info.Size(), info.ModTime().UnixNano()), nil
}

// cached returns the source already loaded for path in sess, if any. It
// never loads.
func (e *Engine) cached(sess *session.Session, path string) (*recombine.Source, bool) {
	if sess == nil {
		return nil, false
	}
	_, key, err := sourceKey(sess, path)
	if err != nil {
		return nil, false
	}
	return e.sources.Get(key)
}

// run is one journaled operation.
type run struct {
	e     *Engine
	ctx   context.Context
	id    string
	kind  string
	start time.Time
}

func (e *Engine) begin(ctx context.Context, sess *session.Session, kind, source, selection string) *run {
	id := uuid.NewString()
	ctx = logging.WithRun(ctx, id)
	r := &run{e: e, ctx: ctx, id: id, kind: kind, start: time.Now()}
	if e.journal != nil {
		_, err := e.journal.Begin(ctx, journal.Entry{
			ID: r.id, Session: sess.ID, Kind: kind, Source: source, Selection: selection,
		})
		if err != nil {
			logging.WarnContext(ctx, "journal begin failed", "error", err.Error())
		}
	}
	logging.InfoContext(ctx, "run started", "kind", kind, "source", source)
	return r
}

func (r *run) finish(o journal.Outcome, warnings int) {
	result := metrics.ResultOf(o.Err, warnings)
	r.e.metrics.IncOperation(r.kind, result)
	r.e.metrics.ObserveStageDuration(r.kind, time.Since(r.start))
	if o.Err == nil {
		r.e.metrics.AddUnits(r.kind, o.Units)
	}
	if r.e.journal != nil {
		if err := r.e.journal.Finish(r.ctx, r.id, o); err != nil {
			logging.WarnContext(r.ctx, "journal finish failed", "error", err.Error())
		}
	}
	args := []any{"kind", r.kind, "result", string(result), "duration_ms", time.Since(r.start).Milliseconds()}
	if o.Err != nil {
		logging.ErrorContext(r.ctx, "run failed", append(args, "error", o.Err.Error())...)
		return
	}
	logging.InfoContext(r.ctx, "run finished", append(args, "units", o.Units)...)
}

// enter prepares ctx for sess and takes its lock.
func enter(ctx context.Context, sess *session.Session) (context.Context, func(), error) {
	if sess == nil {
		return nil, nil, errors.NewValidation("session", "a session is required")
	}
	ctx = sess.Context(ctx)
	unlock, err := sess.Lock(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ctx, unlock, nil
}
