package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/merge"
	"github.com/FocuswithJustin/hwpxkit/core/recombine"
	"github.com/FocuswithJustin/hwpxkit/core/unit"
	"github.com/FocuswithJustin/hwpxkit/internal/journal"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
	"github.com/FocuswithJustin/hwpxkit/internal/session"
)

// Parse segments the document at path and returns its unit summaries.
// Section failures are logged and recorded; they do not fail the call.
func (e *Engine) Parse(ctx context.Context, sess *session.Session, path string) ([]unit.Summary, error) {
	ctx, unlock, err := enter(ctx, sess)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r := e.begin(ctx, sess, "parse", path, "")
	ctx = r.ctx
	src, err := e.source(ctx, sess, path)
	if err != nil {
		e.diagnose(ctx, r.id, path, nil, err)
		r.finish(journal.Outcome{Err: err}, 0)
		return nil, err
	}
	e.diagnose(ctx, r.id, path, src, nil)
	r.finish(journal.Outcome{Units: len(src.Units)}, len(src.Warnings))
	return src.Summaries(), nil
}

// Build writes a document holding the selected units to the session's out
// directory and returns its path.
func (e *Engine) Build(ctx context.Context, sess *session.Session, path string, ids []int) (string, error) {
	if sess == nil {
		return "", errors.NewValidation("session", "a session is required")
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := sess.Path("out", fmt.Sprintf("%s-selected-%d.hwpx", stem, distinct(ids)))
	res, err := e.BuildTo(ctx, sess, path, ids, out)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// BuildTo is Build with an explicit output path. It returns the full build
// result.
func (e *Engine) BuildTo(ctx context.Context, sess *session.Session, path string, ids []int, out string) (*recombine.Result, error) {
	// Selections that can be judged without loading the document are
	// rejected before the session is locked or anything is written.
	if len(ids) == 0 {
		return nil, &errors.SelectionError{}
	}
	if src, ok := e.cached(sess, path); ok {
		if err := recombine.ValidateSelection(src, ids); err != nil {
			return nil, err
		}
	}
	ctx, unlock, err := enter(ctx, sess)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r := e.begin(ctx, sess, "build", path, journal.FormatSelection(ids))
	ctx = r.ctx
	src, err := e.source(ctx, sess, path)
	if err != nil {
		e.diagnose(ctx, r.id, path, nil, err)
		r.finish(journal.Outcome{Err: err}, 0)
		return nil, err
	}

	res, err := recombine.Rebuild(ctx, src, ids, out, recombine.Options{
		PayloadExtensions: e.cfg.Resources.PayloadExtensions,
		TempDir:           e.cfg.Build.TempDir,
		Images:            e.images,
	})
	if err != nil {
		if !errors.Is(err, errors.ErrSelection) {
			e.diagnose(ctx, r.id, path, src, err)
		}
		r.finish(journal.Outcome{Output: out, Err: err}, 0)
		return nil, err
	}
	e.diagnose(ctx, r.id, path, src, nil)
	e.metrics.IncResourcesRemoved(len(res.Removed))
	e.keep(ctx, res.Path)

	warnings := len(src.Warnings) + len(res.Warnings)
	r.finish(journal.Outcome{Output: res.Path, Units: len(res.Units), Digest: res.Digest}, warnings)
	return res, nil
}

// Merge combines units of several documents into template, writing out.
func (e *Engine) Merge(ctx context.Context, sess *session.Session, template string, sources []merge.Source, out string) (*merge.Result, error) {
	ctx, unlock, err := enter(ctx, sess)
	if err != nil {
		return nil, err
	}
	defer unlock()

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Path
		if s.IDs != nil {
			names[i] += "#" + journal.FormatSelection(s.IDs)
		}
	}
	r := e.begin(ctx, sess, "merge", template, strings.Join(names, ";"))
	ctx = r.ctx

	tmp := sess.Path("merge")
	if err := os.MkdirAll(tmp, 0755); err != nil {
		err = errors.NewIO("mkdir", tmp, err)
		r.finish(journal.Outcome{Err: err}, 0)
		return nil, err
	}
	res, err := merge.Merge(ctx, template, sources, out, merge.Options{
		Mode:    e.mode,
		Segment: e.segment,
		Policy:  e.policy,
		TempDir: tmp,
	})
	if err != nil {
		if !errors.Is(err, errors.ErrSelection) {
			e.diagnose(ctx, r.id, template, nil, err)
		}
		r.finish(journal.Outcome{Output: out, Err: err}, 0)
		return nil, err
	}
	for _, ref := range res.Unresolved {
		logging.WarnContext(ctx, "definition reference not resolved", "ref", ref)
	}
	e.keep(ctx, res.Path)
	r.finish(journal.Outcome{Output: res.Path, Units: len(res.Items), Digest: res.Digest},
		len(res.Warnings)+len(res.Unresolved))
	return res, nil
}

// keep copies a finished output into the content-addressed store when one
// is configured.
func (e *Engine) keep(ctx context.Context, path string) {
	if e.store == nil {
		return
	}
	hash, err := e.store.StoreFile(path)
	if err != nil {
		logging.WarnContext(ctx, "output not stored", "path", path, "error", err.Error())
		return
	}
	logging.DebugContext(ctx, "output stored", "path", path, "blake3", hash)
}

func distinct(ids []int) int {
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	return len(seen)
}
