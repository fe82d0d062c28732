// Package recombine loads a document into units and rebuilds a new document
// from a selection of them.
package recombine

import (
	"context"
	"os"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/hwpx"
	"github.com/FocuswithJustin/hwpxkit/core/resources"
	"github.com/FocuswithJustin/hwpxkit/core/segment"
	"github.com/FocuswithJustin/hwpxkit/core/unit"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
)

// Source is a loaded document: its extracted working tree, parsed sections,
// units and resource table.
type Source struct {
	Path      string
	Archive   *hwpx.Archive
	Tree      *hwpx.WorkingTree
	Sections  []*segment.Section
	Units     []*unit.Unit
	Resources *resources.Table
	Warnings  []error // SectionParseError and ResourceReferenceError values
}

// LoadOptions configures Load.
type LoadOptions struct {
	Segment segment.Options
	Policy  resources.Policy
}

// Load opens the archive at path, extracts it into dir and segments it.
// Malformed sections and dangling resource references are recorded as
// warnings; anything else is an error. On error nothing is left in dir.
func Load(ctx context.Context, path, dir string, opts LoadOptions) (src *Source, err error) {
	seg, err := segment.New(opts.Segment)
	if err != nil {
		return nil, err
	}
	a, err := hwpx.Open(path)
	if err != nil {
		return nil, err
	}
	wt, err := a.Extract(dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			wt.Remove()
		}
	}()

	src = &Source{Path: path, Archive: a, Tree: wt}
	for i, name := range wt.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(wt.Path(name))
		if err != nil {
			return nil, errors.NewIO("read", name, err)
		}
		sec := segment.ParseSection(i, name, data)
		if !sec.OK() {
			logging.SectionWarning(ctx, name, sec.Err)
			src.Warnings = append(src.Warnings, sec.Err)
		}
		src.Sections = append(src.Sections, sec)
	}

	src.Resources, err = resources.Load(wt, opts.Policy)
	if err != nil {
		return nil, err
	}

	src.Units = seg.SegmentAll(src.Sections)
	for _, u := range src.Units {
		known, dangling := src.Resources.Resolve(u.Resources)
		for _, ref := range dangling {
			logging.ResourceWarning(ctx, u.ID, ref)
			src.Warnings = append(src.Warnings, &errors.ResourceReferenceError{Unit: u.ID, ResourceID: ref})
		}
		u.Resources = known
	}
	return src, nil
}

// Unit returns the unit with the given id.
func (s *Source) Unit(id int) (*unit.Unit, bool) {
	if id < 1 || id > len(s.Units) {
		return nil, false
	}
	return s.Units[id-1], true
}

// Summaries returns the unit summaries in document order.
func (s *Source) Summaries() []unit.Summary {
	return unit.Summaries(s.Units)
}

// Close removes the working tree.
func (s *Source) Close() error {
	if s.Tree == nil {
		return nil
	}
	return s.Tree.Remove()
}
