// Package segment groups the paragraphs of section streams into units.
//
// A unit starts at a paragraph carrying a numbering marker and extends up to
// the paragraph before the next marker. Two detection modes exist: in text
// mode the marker is a display number leading the paragraph text (matched
// against an ordered notation list); in index mode it is an embedded
// auto-number or end-note control whose integer value is the unit number.
// Paragraphs before the first marker are front matter and belong to no unit.
package segment

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/hwpx"
	"github.com/FocuswithJustin/hwpxkit/core/numbering"
	"github.com/FocuswithJustin/hwpxkit/core/unit"
	"github.com/FocuswithJustin/hwpxkit/core/xml"
)

// Mode selects how unit starts are detected.
type Mode string

const (
	ModeText  Mode = "text"
	ModeIndex Mode = "index"
)

// DefaultNumType is the auto-number type read in index mode.
const DefaultNumType = "ENDNOTE"

// DefaultAnswerLabels are paragraph texts trimmed from the end of a unit in
// index mode.
var DefaultAnswerLabels = []string{"정답", "답"}

// Options configures a Segmenter.
type Options struct {
	Mode         Mode
	Matcher      numbering.Matcher // text mode notations; defaults to numbering.Default()
	NumType      string            // index mode auto-number type; defaults to ENDNOTE
	TrimTrailing bool              // index mode: drop trailing empty or answer-label paragraphs
	AnswerLabels []string
}

// Section is one parsed section stream. Tree is nil when the stream failed
// to parse; Err then holds the SectionParseError.
type Section struct {
	Index int    // position in numeric section order
	Name  string // member name, e.g. Contents/section0.xml
	Tree  *xml.Tree
	Err   error
}

// ParseSection parses a section stream. A malformed stream yields a Section
// without a tree instead of an error so the caller can continue.
func ParseSection(index int, name string, data []byte) *Section {
	sec := &Section{Index: index, Name: name}
	tree, err := xml.Parse(data)
	if err == nil && !tree.IsElement(tree.Root(), "sec") {
		err = fmt.Errorf("root element is not hs:sec")
	}
	if err != nil {
		sec.Err = &errors.SectionParseError{Section: name, Err: err}
		return sec
	}
	sec.Tree = tree
	return sec
}

// OK reports whether the section parsed.
func (s *Section) OK() bool {
	return s.Tree != nil
}

// Paragraphs returns the top-level hp:p elements in document order.
func (s *Section) Paragraphs() []xml.NodeID {
	if s.Tree == nil {
		return nil
	}
	return s.Tree.ChildElements(s.Tree.Root(), "p")
}

// Segmenter splits sections into units.
type Segmenter struct {
	opts Options
}

// New validates opts and returns a Segmenter.
func New(opts Options) (*Segmenter, error) {
	switch opts.Mode {
	case "":
		opts.Mode = ModeText
	case ModeText, ModeIndex:
	default:
		return nil, errors.NewValidation("segment.mode", fmt.Sprintf("unknown mode %q", opts.Mode))
	}
	if len(opts.Matcher) == 0 {
		opts.Matcher = numbering.Default()
	}
	if opts.NumType == "" {
		opts.NumType = DefaultNumType
	}
	if opts.AnswerLabels == nil {
		opts.AnswerLabels = DefaultAnswerLabels
	}
	return &Segmenter{opts: opts}, nil
}

// Options returns the effective options.
func (s *Segmenter) Options() Options {
	return s.opts
}

// marker is a detected unit start.
type marker struct {
	number    int
	display   string
	notation  *numbering.Notation
	kind      unit.Marker
	markerRef xml.NodeID
}

// Segment returns the units of one section in document order. Unit ids are
// 1-based within the section; SegmentAll assigns document-wide ids. A section
// without markers, or one that failed to parse, yields no units.
func (s *Segmenter) Segment(sec *Section) []*unit.Unit {
	return s.segment(sec, 1)
}

// SegmentAll segments sections in order and numbers the units 1..N across
// the whole document.
func (s *Segmenter) SegmentAll(sections []*Section) []*unit.Unit {
	var out []*unit.Unit
	for _, sec := range sections {
		out = append(out, s.segment(sec, len(out)+1)...)
	}
	return out
}

func (s *Segmenter) segment(sec *Section, firstID int) []*unit.Unit {
	if !sec.OK() {
		return nil
	}
	t := sec.Tree

	var (
		out   []*unit.Unit
		open  *marker
		nodes []xml.NodeID
	)
	closeUnit := func() {
		if open == nil {
			return
		}
		out = append(out, s.build(t, sec.Index, firstID+len(out), open, nodes))
		open, nodes = nil, nil
	}

	for _, p := range sec.Paragraphs() {
		if m, ok := s.detect(t, p); ok {
			closeUnit()
			open = &m
			nodes = []xml.NodeID{p}
			continue
		}
		if open != nil {
			nodes = append(nodes, p)
		}
	}
	closeUnit()
	return out
}

func (s *Segmenter) detect(t *xml.Tree, p xml.NodeID) (marker, bool) {
	if s.opts.Mode == ModeIndex {
		return s.detectIndex(t, p)
	}
	text := hwpx.ParagraphText(t, p)
	notation, match, ok := s.opts.Matcher.Match(text)
	if !ok {
		return marker{}, false
	}
	return marker{
		number:    match.Number,
		display:   match.Display,
		notation:  notation,
		kind:      unit.MarkerText,
		markerRef: xml.None,
	}, true
}

func (s *Segmenter) detectIndex(t *xml.Tree, p xml.NodeID) (marker, bool) {
	primary := s.opts.Matcher.Primary()
	for _, an := range hwpx.AutoNums(t, p) {
		if an.NumType == s.opts.NumType {
			return marker{
				number:    an.Num,
				display:   primary.Format(an.Num),
				notation:  primary,
				kind:      unit.MarkerIndex,
				markerRef: an.Node,
			}, true
		}
	}
	if notes := hwpx.EndNotes(t, p); len(notes) > 0 {
		return marker{
			number:    notes[0].Number,
			display:   primary.Format(notes[0].Number),
			notation:  primary,
			kind:      unit.MarkerIndex,
			markerRef: notes[0].Node,
		}, true
	}
	return marker{}, false
}

func (s *Segmenter) build(t *xml.Tree, section, id int, m *marker, nodes []xml.NodeID) *unit.Unit {
	if s.opts.Mode == ModeIndex && s.opts.TrimTrailing {
		nodes = s.trimTrailing(t, nodes)
	}

	u := &unit.Unit{
		ID:        id,
		Number:    m.number,
		Display:   m.display,
		Notation:  m.notation,
		Marker:    m.kind,
		MarkerRef: m.markerRef,
		Section:   section,
		Nodes:     nodes,
	}
	texts := make([]string, len(nodes))
	seen := map[string]bool{}
	for i, p := range nodes {
		texts[i] = hwpx.ParagraphText(t, p)
		for _, pic := range hwpx.Pictures(t, p) {
			if !seen[pic.BinaryItemIDRef] {
				seen[pic.BinaryItemIDRef] = true
				u.Resources = append(u.Resources, pic.BinaryItemIDRef)
			}
		}
		u.Equations = append(u.Equations, hwpx.Equations(t, p)...)
	}
	u.Text = strings.Join(texts, "\n")
	return u
}

// trimTrailing drops trailing paragraphs that show nothing or only an answer
// label. The marker paragraph always stays.
func (s *Segmenter) trimTrailing(t *xml.Tree, nodes []xml.NodeID) []xml.NodeID {
	end := len(nodes)
	for end > 1 && s.trimmable(t, nodes[end-1]) {
		end--
	}
	return nodes[:end]
}

func (s *Segmenter) trimmable(t *xml.Tree, p xml.NodeID) bool {
	if !hwpx.HasVisualContent(t, p) {
		return true
	}
	if len(hwpx.Pictures(t, p)) > 0 || t.HasDescendant(p, "equation") || t.HasDescendant(p, "tbl") {
		return false
	}
	text := strings.TrimSpace(hwpx.ParagraphText(t, p))
	for _, label := range s.opts.AnswerLabels {
		if text == label {
			return true
		}
	}
	return false
}
