package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/render"
	"github.com/FocuswithJustin/hwpxkit/core/unit"
	"github.com/FocuswithJustin/hwpxkit/internal/journal"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
	"github.com/FocuswithJustin/hwpxkit/internal/metrics"
	"github.com/FocuswithJustin/hwpxkit/internal/session"
)

// Equation is one rendered (or failed) equation script.
type Equation struct {
	Unit   int    `json:"unit" yaml:"unit"`
	Index  int    `json:"index" yaml:"index"`
	Script string `json:"script" yaml:"script"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Err    error  `json:"-" yaml:"-"`
}

// RenderEquations renders the equation scripts of the units ids of the
// document at path (every unit when ids is nil) and writes one PNG per
// script into outDir as unit<id>-eq<index>.png. Scripts the renderer
// yields no image for are reported with render.ErrNoImage.
func (e *Engine) RenderEquations(ctx context.Context, sess *session.Session, path string, ids []int, outDir string) ([]Equation, error) {
	if e.renderer == nil {
		return nil, errors.NewUnsupported("render", "no render endpoint configured")
	}
	ctx, unlock, err := enter(ctx, sess)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r := e.begin(ctx, sess, "render", path, journal.FormatSelection(ids))
	ctx = r.ctx
	src, err := e.source(ctx, sess, path)
	if err != nil {
		r.finish(journal.Outcome{Err: err}, 0)
		return nil, err
	}

	units := src.Units
	if ids != nil {
		units = nil
		for _, id := range ids {
			u, ok := src.Unit(id)
			if !ok {
				err := &errors.SelectionError{Requested: len(ids), Unmatched: []int{id}}
				r.finish(journal.Outcome{Err: err}, 0)
				return nil, err
			}
			units = append(units, u)
		}
	}
	jobs := equationJobs(units)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		err = errors.NewIO("mkdir", outDir, err)
		r.finish(journal.Outcome{Err: err}, 0)
		return nil, err
	}

	out := make([]Equation, 0, len(jobs))
	failed := 0
	for _, res := range render.RenderAll(ctx, e.renderer, jobs) {
		eq := Equation{Unit: res.Unit, Index: res.Index, Script: res.Script, Err: res.Err}
		if res.Err == nil {
			eq.Path = filepath.Join(outDir, fmt.Sprintf("unit%d-eq%d.png", res.Unit, res.Index))
			if err := os.WriteFile(eq.Path, res.Image, 0644); err != nil {
				eq.Path, eq.Err = "", errors.NewIO("write", eq.Path, err)
			}
		}
		if eq.Err != nil {
			failed++
			e.metrics.IncPoolItem("render", metrics.ResultFailed)
			if !stderrors.Is(eq.Err, render.ErrNoImage) {
				logging.WarnContext(ctx, "equation not rendered", "unit_id", eq.Unit, "index", eq.Index, "error", eq.Err.Error())
			}
		} else {
			e.metrics.IncPoolItem("render", metrics.ResultSuccess)
		}
		out = append(out, eq)
	}
	if err := ctx.Err(); err != nil {
		r.finish(journal.Outcome{Err: err}, failed)
		return out, err
	}
	r.finish(journal.Outcome{Output: outDir, Units: len(units)}, failed)
	return out, nil
}

func equationJobs(units []*unit.Unit) []render.Job {
	var jobs []render.Job
	for _, u := range units {
		for i, script := range u.Equations {
			jobs = append(jobs, render.Job{Unit: u.ID, Index: i + 1, Script: script})
		}
	}
	return jobs
}
