package recombine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/hwpxkit/core/cas"
	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/hwpx"
	"github.com/FocuswithJustin/hwpxkit/core/imaging"
	"github.com/FocuswithJustin/hwpxkit/core/resources"
	"github.com/FocuswithJustin/hwpxkit/core/segment"
	"github.com/FocuswithJustin/hwpxkit/core/unit"
	"github.com/FocuswithJustin/hwpxkit/core/xml"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
)

// emptySection replaces a section stream that failed to parse.
const emptySection = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<hs:sec xmlns:hp="` + hwpx.NSParagraph + `" xmlns:hs="` + hwpx.NSSection + `"></hs:sec>`

// Options configures Rebuild.
type Options struct {
	// PayloadExtensions are the BinData extensions subject to collection;
	// nil means resources.DefaultPayloadExtensions.
	PayloadExtensions []string
	// TempDir is the parent of the working copy; empty means os.TempDir.
	TempDir string
	// Images normalizes kept image payloads when set.
	Images *imaging.Pool
}

// Result describes a finished build.
type Result struct {
	Path     string
	Units    []unit.Renumbered
	Kept     []string // resource keys kept
	Removed  []string // resource keys dropped
	Files    []string // payload members deleted
	Warnings []error
	Digest   string // BLAKE3 of the output archive
}

// ValidateSelection checks ids against the source without touching the
// filesystem. Duplicates are ignored.
func ValidateSelection(src *Source, ids []int) error {
	if len(ids) == 0 {
		return &errors.SelectionError{}
	}
	var unmatched []int
	seen := map[int]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := src.Unit(id); !ok {
			unmatched = append(unmatched, id)
		}
	}
	if len(unmatched) > 0 {
		return &errors.SelectionError{Requested: len(ids), Unmatched: unmatched}
	}
	return nil
}

// Rebuild writes a document at out holding exactly the selected units,
// renumbered 1..N in document order regardless of the order of ids. Only
// the binary resources referenced by those units survive. The source is
// not modified.
func Rebuild(ctx context.Context, src *Source, ids []int, out string, opts Options) (*Result, error) {
	if err := ValidateSelection(src, ids); err != nil {
		return nil, err
	}

	start := time.Now()
	tmp, err := os.MkdirTemp(opts.TempDir, "hwpxkit-build-*")
	if err != nil {
		return nil, errors.NewIO("mkdir", opts.TempDir, err)
	}
	defer os.RemoveAll(tmp)

	wt, err := src.Tree.Copy(filepath.Join(tmp, "tree"))
	if err != nil {
		return nil, err
	}

	selected := selectUnits(src, ids)
	renumbered := unit.Renumber(selected)
	res := &Result{Path: out, Units: renumbered}

	keep := map[string]bool{}
	for _, r := range renumbered {
		for _, ref := range r.Resources {
			keep[ref] = true
		}
	}

	for _, sec := range src.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data := rewriteSection(ctx, sec, renumbered)
		if err := os.WriteFile(wt.Path(sec.Name), data, 0644); err != nil {
			return nil, errors.NewIO("write", sec.Name, err)
		}
	}
	logging.BuildEvent(ctx, "rewrite", time.Since(start), "units", len(renumbered))

	tbl := src.Resources.Clone()
	gc, err := tbl.Collect(wt, keep, opts.PayloadExtensions)
	if err != nil {
		return nil, err
	}
	if err := tbl.Save(wt); err != nil {
		return nil, err
	}
	res.Kept, res.Removed, res.Files = gc.Kept, gc.Removed, gc.Files

	if opts.Images != nil {
		res.Warnings = append(res.Warnings, normalizeImages(ctx, opts.Images, wt, tbl.Items())...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := hwpx.Repackage(wt.Dir, out); err != nil {
		return nil, err
	}
	res.Digest, err = cas.HashFile(out)
	if err != nil {
		return nil, errors.NewIO("hash", out, err)
	}
	logging.BuildEvent(ctx, "build", time.Since(start),
		"output", out, "units", len(renumbered), "removed", len(res.Removed), "digest", res.Digest)
	return res, nil
}

func selectUnits(src *Source, ids []int) []*unit.Unit {
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*unit.Unit
	for _, u := range src.Units {
		if want[u.ID] {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// rewriteSection returns the new stream of sec holding only the selected
// units of that section.
func rewriteSection(ctx context.Context, sec *segment.Section, renumbered []unit.Renumbered) []byte {
	if !sec.OK() {
		return []byte(emptySection)
	}
	t := sec.Tree.Clone()
	root := t.Root()
	paragraphs := sec.Paragraphs()

	var mine []unit.Renumbered
	transplanted := map[xml.NodeID]bool{}
	for _, r := range renumbered {
		if r.Section != sec.Index {
			continue
		}
		mine = append(mine, r)
		for _, n := range r.Nodes {
			transplanted[n] = true
		}
	}

	for _, r := range mine {
		if !RenumberMarker(t, r) {
			logging.WarnContext(ctx, "display number not found",
				"section", sec.Name, "unit_id", r.ID, "display", r.Display)
		}
	}

	var children []xml.NodeID
	for _, c := range t.ChildElements(root, "") {
		if !t.IsElement(c, "p") {
			children = append(children, c)
		}
	}
	if len(paragraphs) > 0 && !transplanted[paragraphs[0]] && HasLayout(t, paragraphs[0]) {
		children = append(children, LayoutCarrier(t, paragraphs[0]))
	}
	for _, r := range mine {
		children = append(children, r.Nodes...)
	}
	t.SetChildren(root, children)
	return t.Bytes()
}

// RenumberMarker writes the new number of r into its first paragraph in t,
// which must share node ids with the tree the unit was segmented from. It
// reports whether the marker was found.
func RenumberMarker(t *xml.Tree, r unit.Renumbered) bool {
	if r.Marker == unit.MarkerIndex {
		if r.MarkerRef == xml.None {
			return false
		}
		attr := "num"
		if t.IsElement(r.MarkerRef, "endNote") {
			attr = "number"
		}
		t.SetAttr(r.MarkerRef, attr, strconv.Itoa(r.NewNumber))
		return true
	}
	if r.Display == r.NewDisplay {
		return true
	}
	for _, run := range hwpx.TextRuns(t, r.FirstNode()) {
		if strings.TrimSpace(hwpx.RunText(t, run)) == "" {
			continue
		}
		for _, c := range t.Children(run) {
			n := t.Node(c)
			if n.Kind != xml.KindText || !strings.Contains(n.Data, r.Display) {
				continue
			}
			t.SetData(c, strings.Replace(n.Data, r.Display, r.NewDisplay, 1))
			return true
		}
		return false
	}
	return false
}

// HasLayout reports whether paragraph p carries section settings.
func HasLayout(t *xml.Tree, p xml.NodeID) bool {
	return t.HasDescendant(p, "secPr")
}

// LayoutCarrier copies paragraph p keeping only the runs that hold section
// or control settings. Text, numbering controls and anything pointing at a
// binary item are removed so the carrier holds no content and references
// no resource.
func LayoutCarrier(t *xml.Tree, p xml.NodeID) xml.NodeID {
	cp := t.CopySubtree(p)
	for _, c := range t.ChildElements(cp, "") {
		switch {
		case t.IsElement(c, "run"):
			for _, name := range []string{"t", "autoNum", "newNum", "endNote", "footNote"} {
				for _, n := range t.Descendants(c, name) {
					t.Detach(n)
				}
			}
			for _, n := range binaryHolders(t, c) {
				t.Detach(n)
			}
			for _, ctrl := range t.Descendants(c, "ctrl") {
				if len(t.ChildElements(ctrl, "")) == 0 {
					t.Detach(ctrl)
				}
			}
			if !t.HasDescendant(c, "secPr") && !t.HasDescendant(c, "ctrl") {
				t.Detach(c)
			}
		case t.IsElement(c, "linesegarray"):
			t.Detach(c)
		}
	}
	return cp
}

// binaryHolders returns the outermost elements below id that are pictures
// or carry a binaryItemIDRef.
func binaryHolders(t *xml.Tree, id xml.NodeID) []xml.NodeID {
	var out []xml.NodeID
	t.Walk(id, func(n xml.NodeID) bool {
		if n == id {
			return true
		}
		_, ref := t.Attr(n, "binaryItemIDRef")
		if t.IsElement(n, "pic") || ref {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

func normalizeImages(ctx context.Context, pool *imaging.Pool, wt *hwpx.WorkingTree, items []resources.Item) []error {
	var paths []string
	for _, it := range items {
		if it.Href != "" {
			paths = append(paths, wt.Path(it.Href))
		}
	}
	var warnings []error
	for i, err := range pool.NormalizeFiles(ctx, paths) {
		if err != nil {
			logging.WarnContext(ctx, "image not normalized", "path", paths[i], "error", err.Error())
			warnings = append(warnings, errors.Wrapf(err, "normalize %s", filepath.Base(paths[i])))
		}
	}
	return warnings
}
