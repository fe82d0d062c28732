// Package merge combines units from several documents into one template
// document. Each source's formatting definitions are isolated with
// styleiso before they are appended to the template header.
package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/FocuswithJustin/hwpxkit/core/cas"
	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/hwpx"
	"github.com/FocuswithJustin/hwpxkit/core/recombine"
	"github.com/FocuswithJustin/hwpxkit/core/resources"
	"github.com/FocuswithJustin/hwpxkit/core/segment"
	"github.com/FocuswithJustin/hwpxkit/core/styleiso"
	"github.com/FocuswithJustin/hwpxkit/core/unit"
	"github.com/FocuswithJustin/hwpxkit/core/xml"
	"github.com/FocuswithJustin/hwpxkit/internal/logging"
)

// Source names a document and the units to take from it. A nil IDs takes
// every unit.
type Source struct {
	Path string
	IDs  []int
}

// Options configures Merge.
type Options struct {
	Mode    styleiso.Mode
	Segment segment.Options
	Policy  resources.Policy
	TempDir string
}

// Item records where one merged unit came from.
type Item struct {
	Source     string
	ID         int
	NewNumber  int
	NewDisplay string
}

// Result describes a finished merge.
type Result struct {
	Path       string
	Items      []Item
	Imported   map[string]int // definitions appended per refList child
	Unresolved []string
	Warnings   []error
	Digest     string
}

// Merge writes to out the template document with its paragraphs replaced by
// the selected units of sources, numbered 1..N in source order. The first
// section of the template keeps its layout carrier; other template sections
// are copied unchanged. Media is not transplanted.
func Merge(ctx context.Context, template string, sources []Source, out string, opts Options) (*Result, error) {
	if len(sources) == 0 {
		return nil, &errors.SelectionError{}
	}
	mode, err := styleiso.ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tmp, err := os.MkdirTemp(opts.TempDir, "hwpxkit-merge-*")
	if err != nil {
		return nil, errors.NewIO("mkdir", opts.TempDir, err)
	}
	defer os.RemoveAll(tmp)

	dst, err := openTemplate(template, filepath.Join(tmp, "template"))
	if err != nil {
		return nil, err
	}
	table := styleiso.NewStyleTable(dst.header, mode)
	table.ReserveParagraphIDs(dst.section)

	res := &Result{Path: out, Imported: map[string]int{}}
	loaded := make([]*recombine.Source, len(sources))
	var all []*unit.Unit
	var owner []int
	for i, s := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := recombine.Load(ctx, s.Path, filepath.Join(tmp, fmt.Sprintf("src%d", i)),
			recombine.LoadOptions{Segment: opts.Segment, Policy: opts.Policy})
		if err != nil {
			return nil, err
		}
		defer src.Close()
		loaded[i] = src
		res.Warnings = append(res.Warnings, src.Warnings...)

		units := src.Units
		if s.IDs != nil {
			if err := recombine.ValidateSelection(src, s.IDs); err != nil {
				return nil, errors.Wrapf(err, "source %s", s.Path)
			}
			units = pick(src, s.IDs)
		}
		for _, u := range units {
			all = append(all, u)
			owner = append(owner, i)
		}
	}
	if len(all) == 0 {
		return nil, &errors.SelectionError{}
	}

	renumbered := unit.Renumber(all)
	var paragraphs []xml.NodeID
	for i, src := range loaded {
		var mine []unit.Renumbered
		for j, r := range renumbered {
			if owner[j] == i {
				mine = append(mine, r)
				res.Items = append(res.Items, Item{
					Source:     sources[i].Path,
					ID:         r.ID,
					NewNumber:  r.NewNumber,
					NewDisplay: r.NewDisplay,
				})
			}
		}
		for _, frag := range fragments(ctx, src, mine) {
			iso, err := styleiso.Transform(frag, table)
			if err != nil {
				return nil, err
			}
			res.Unresolved = append(res.Unresolved, iso.Unresolved...)
			for _, d := range iso.Definitions {
				dst.appendDefinition(iso.Tree, d)
				res.Imported[d.List]++
			}
			for _, p := range iso.Paragraphs {
				paragraphs = append(paragraphs, dst.section.Import(iso.Tree, p))
			}
		}
	}
	logging.BuildEvent(ctx, "merge_transform", time.Since(start),
		"sources", len(sources), "units", len(renumbered))

	if err := dst.write(paragraphs); err != nil {
		return nil, err
	}
	if err := hwpx.Repackage(dst.tree.Dir, out); err != nil {
		return nil, err
	}
	res.Digest, err = cas.HashFile(out)
	if err != nil {
		return nil, errors.NewIO("hash", out, err)
	}
	logging.BuildEvent(ctx, "merge", time.Since(start),
		"output", out, "units", len(renumbered), "digest", res.Digest)
	return res, nil
}

func pick(src *recombine.Source, ids []int) []*unit.Unit {
	want := map[int]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*unit.Unit
	for _, u := range src.Units {
		if want[u.ID] {
			out = append(out, u)
		}
	}
	return out
}

// fragments groups the units of src by section. Each fragment works on a
// clone of the section tree holding the renumbered markers.
func fragments(ctx context.Context, src *recombine.Source, units []unit.Renumbered) []*styleiso.Fragment {
	bySection := map[int][]unit.Renumbered{}
	for _, r := range units {
		bySection[r.Section] = append(bySection[r.Section], r)
	}
	sections := make([]int, 0, len(bySection))
	for s := range bySection {
		sections = append(sections, s)
	}
	sort.Ints(sections)

	var out []*styleiso.Fragment
	for _, s := range sections {
		sec := src.Sections[s]
		t := sec.Tree.Clone()
		f := &styleiso.Fragment{Tree: t, Header: src.Resources.Header}
		for _, r := range bySection[s] {
			if !recombine.RenumberMarker(t, r) {
				logging.WarnContext(ctx, "display number not found",
					"source", src.Path, "section", sec.Name, "unit_id", r.ID)
			}
			f.Paragraphs = append(f.Paragraphs, r.Nodes...)
		}
		out = append(out, f)
	}
	return out
}

// destination is the extracted template.
type destination struct {
	tree        *hwpx.WorkingTree
	header      *xml.Tree
	section     *xml.Tree
	sectionName string
}

func openTemplate(path, dir string) (*destination, error) {
	a, err := hwpx.Open(path)
	if err != nil {
		return nil, err
	}
	wt, err := a.Extract(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(wt.HeaderPath())
	if err != nil {
		return nil, errors.NewIO("read", hwpx.HeaderPath, err)
	}
	header, err := xml.Parse(data)
	if err != nil {
		return nil, errors.NewInputFormat(path, "malformed header", err)
	}
	name := wt.Sections[0]
	data, err = os.ReadFile(wt.Path(name))
	if err != nil {
		return nil, errors.NewIO("read", name, err)
	}
	sec := segment.ParseSection(0, name, data)
	if !sec.OK() {
		return nil, errors.NewInputFormat(path, "malformed template section", sec.Err)
	}
	return &destination{tree: wt, header: header, section: sec.Tree, sectionName: name}, nil
}

// appendDefinition copies definition d of src into the matching refList
// child, creating the list (and for fonts the fontface) when missing.
func (d *destination) appendDefinition(src *xml.Tree, def styleiso.Definition) {
	list := d.list(def.List)
	if def.Lang != "" {
		face := xml.None
		for _, f := range d.header.ChildElements(list, "fontface") {
			if d.header.AttrOr(f, "lang", "") == def.Lang {
				face = f
				break
			}
		}
		if face == xml.None {
			face = d.header.NewElement(d.prefix(), "fontface", hwpx.NSHead,
				xml.Attr{Local: "lang", Value: def.Lang}, xml.Attr{Local: "fontCnt", Value: "0"})
			d.header.AppendChild(list, face)
		}
		list = face
	}
	d.header.AppendChild(list, d.header.Import(src, def.Node))
}

func (d *destination) list(name string) xml.NodeID {
	refList := hwpx.RefList(d.header)
	if refList == xml.None {
		refList = d.header.NewElement(d.prefix(), "refList", hwpx.NSHead)
		d.header.AppendChild(d.header.Root(), refList)
	}
	if l := d.header.FirstChildElement(refList, name); l != xml.None {
		return l
	}
	l := d.header.NewElement(d.prefix(), name, hwpx.NSHead, xml.Attr{Local: "itemCnt", Value: "0"})
	d.header.AppendChild(refList, l)
	return l
}

func (d *destination) prefix() string {
	return d.header.Node(d.header.Root()).Prefix
}

// write stores the merged header and first section in the working tree.
func (d *destination) write(paragraphs []xml.NodeID) error {
	hwpx.UpdateCounts(d.header, hwpx.RefList(d.header))
	hwpx.SortRefList(d.header)
	if err := os.WriteFile(d.tree.HeaderPath(), d.header.Bytes(), 0644); err != nil {
		return errors.NewIO("write", hwpx.HeaderPath, err)
	}

	t := d.section
	root := t.Root()
	existing := t.ChildElements(root, "p")
	var children []xml.NodeID
	for _, c := range t.ChildElements(root, "") {
		if !t.IsElement(c, "p") {
			children = append(children, c)
		}
	}
	if len(existing) > 0 && recombine.HasLayout(t, existing[0]) {
		children = append(children, recombine.LayoutCarrier(t, existing[0]))
	}
	t.SetChildren(root, append(children, paragraphs...))
	if err := os.WriteFile(d.tree.Path(d.sectionName), t.Bytes(), 0644); err != nil {
		return errors.NewIO("write", d.sectionName, err)
	}
	return nil
}
