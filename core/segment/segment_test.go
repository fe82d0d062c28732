package segment

import (
	"errors"
	"reflect"
	"testing"

	kerrors "github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/numbering"
	"github.com/FocuswithJustin/hwpxkit/core/unit"
	"github.com/FocuswithJustin/hwpxkit/internal/hwpxtest"
)

func section(t *testing.T, index int, sec hwpxtest.Section) *Section {
	t.Helper()
	s := ParseSection(index, "Contents/section0.xml", []byte(hwpxtest.SectionXML(sec)))
	if !s.OK() {
		t.Fatalf("fixture section did not parse: %v", s.Err)
	}
	return s
}

func mustNew(t *testing.T, opts Options) *Segmenter {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestSegmentTextMode(t *testing.T) {
	doc := hwpxtest.Exam(3)
	sec := section(t, 0, doc.Sections[0])
	units := mustNew(t, Options{}).Segment(sec)

	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	for i, u := range units {
		n := i + 1
		if u.ID != n || u.Number != n {
			t.Errorf("unit %d: ID=%d Number=%d", i, u.ID, u.Number)
		}
		if want := []string{"image" + string(rune('0'+n))}; !reflect.DeepEqual(u.Resources, want) {
			t.Errorf("unit %d resources = %v, want %v", i, u.Resources, want)
		}
		if len(u.Nodes) != 2 {
			t.Errorf("unit %d has %d paragraphs, want 2", i, len(u.Nodes))
		}
		if u.Marker != unit.MarkerText {
			t.Errorf("unit %d marker = %v", i, u.Marker)
		}
	}
	if units[1].Display != "2." {
		t.Errorf("Display = %q, want 2.", units[1].Display)
	}
	if want := "2. Question 2 stem\nchoices for question 2"; units[1].Text != want {
		t.Errorf("Text = %q, want %q", units[1].Text, want)
	}
}

func TestSegmentFrontMatterDiscarded(t *testing.T) {
	sec := section(t, 0, hwpxtest.Section{Paragraphs: []hwpxtest.Paragraph{
		{Text: "Name:", Images: []string{"logo"}},
		{Text: "Date:"},
		{Text: "1. only item"},
	}})
	units := mustNew(t, Options{}).Segment(sec)
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if len(units[0].Resources) != 0 {
		t.Errorf("front matter resources leaked: %v", units[0].Resources)
	}
	if units[0].Text != "1. only item" {
		t.Errorf("Text = %q", units[0].Text)
	}
}

func TestSegmentNoMarkers(t *testing.T) {
	sec := section(t, 0, hwpxtest.Section{Paragraphs: []hwpxtest.Paragraph{
		{Text: "plain"}, {Text: "see 3. below"},
	}})
	if units := mustNew(t, Options{}).Segment(sec); len(units) != 0 {
		t.Errorf("got %d units, want none", len(units))
	}
}

func TestSegmentMixedNotations(t *testing.T) {
	var paras []hwpxtest.Paragraph
	paras = append(paras, hwpxtest.Question(1, "(%d)")...)
	paras = append(paras, hwpxtest.Question(2, "[%d]")...)
	paras = append(paras, hwpxtest.Question(3, "%d.")...)
	sec := section(t, 0, hwpxtest.Section{Paragraphs: paras})

	units := mustNew(t, Options{}).Segment(sec)
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	want := []string{numbering.Paren, numbering.Bracket, numbering.Dot}
	for i, u := range units {
		if u.Notation.Template != want[i] {
			t.Errorf("unit %d notation = %q, want %q", i, u.Notation.Template, want[i])
		}
	}
}

func TestSegmentCustomMatcher(t *testing.T) {
	m, err := numbering.NewMatcher([]string{"Q{n}."})
	if err != nil {
		t.Fatal(err)
	}
	var paras []hwpxtest.Paragraph
	paras = append(paras, hwpxtest.Question(1, "Q%d.")...)
	paras = append(paras, hwpxtest.Question(2, "%d.")...)
	sec := section(t, 0, hwpxtest.Section{Paragraphs: paras})

	units := mustNew(t, Options{Matcher: m}).Segment(sec)
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if len(units[0].Nodes) != 4 {
		t.Errorf("unmatched marker should be body text, got %d paragraphs", len(units[0].Nodes))
	}
}

func TestSegmentLineBreaksAndEquations(t *testing.T) {
	sec := section(t, 0, hwpxtest.Section{Paragraphs: []hwpxtest.Paragraph{
		{Text: "1. first\nsecond\tcol", Equation: "x over y"},
	}})
	units := mustNew(t, Options{}).Segment(sec)
	if len(units) != 1 {
		t.Fatalf("got %d units", len(units))
	}
	if units[0].Text != "1. first\nsecond\tcol" {
		t.Errorf("Text = %q", units[0].Text)
	}
	if !reflect.DeepEqual(units[0].Equations, []string{"x over y"}) {
		t.Errorf("Equations = %v", units[0].Equations)
	}
}

func TestSegmentDuplicateResourceListedOnce(t *testing.T) {
	sec := section(t, 0, hwpxtest.Section{Paragraphs: []hwpxtest.Paragraph{
		{Text: "1. stem", Images: []string{"a", "b"}},
		{Text: "more", Images: []string{"a"}},
	}})
	units := mustNew(t, Options{}).Segment(sec)
	if !reflect.DeepEqual(units[0].Resources, []string{"a", "b"}) {
		t.Errorf("Resources = %v", units[0].Resources)
	}
}

func TestSegmentIndexMode(t *testing.T) {
	sec := section(t, 0, hwpxtest.Section{Paragraphs: []hwpxtest.Paragraph{
		{Text: "Instructions"},
		{Text: "What is 2+2?", AutoNum: 7},
		{Text: "body"},
		{Text: "footnote ref", AutoNum: 1, NumType: "FOOTNOTE"},
		{Text: "Next", AutoNum: 8},
	}})
	units := mustNew(t, Options{Mode: ModeIndex}).Segment(sec)
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if units[0].Number != 7 || units[0].Display != "7." || units[0].Marker != unit.MarkerIndex {
		t.Errorf("unit 0 = %d %q %v", units[0].Number, units[0].Display, units[0].Marker)
	}
	if len(units[0].Nodes) != 3 {
		t.Errorf("unit 0 has %d paragraphs, want 3", len(units[0].Nodes))
	}
	if sec.Tree.AttrOr(units[1].MarkerRef, "num", "") != "8" {
		t.Errorf("MarkerRef does not point at the auto-number")
	}
}

func TestSegmentIndexModeEndNoteFallback(t *testing.T) {
	raw := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<hs:sec xmlns:hs="http://www.hancom.co.kr/hwpml/2011/section" xmlns:hp="http://www.hancom.co.kr/hwpml/2011/paragraph">` +
		`<hp:p id="1"><hp:run><hp:ctrl><hp:endNote number="4" instId="1"><hp:subList/></hp:endNote></hp:ctrl><hp:t>stem</hp:t></hp:run></hp:p>` +
		`<hp:p id="2"><hp:run><hp:t>after</hp:t></hp:run></hp:p>` +
		`</hs:sec>`
	sec := ParseSection(0, "Contents/section0.xml", []byte(raw))
	units := mustNew(t, Options{Mode: ModeIndex}).Segment(sec)
	if len(units) != 1 || units[0].Number != 4 {
		t.Fatalf("got %+v", units)
	}
}

func TestSegmentIndexModeTrimTrailing(t *testing.T) {
	sec := section(t, 0, hwpxtest.Section{Paragraphs: []hwpxtest.Paragraph{
		{Text: "stem", AutoNum: 1},
		{Text: "body", Images: []string{"img"}},
		{Text: "정답"},
		{Text: ""},
		{Text: "next", AutoNum: 2},
		{Text: ""},
	}})
	units := mustNew(t, Options{Mode: ModeIndex, TrimTrailing: true}).Segment(sec)
	if len(units) != 2 {
		t.Fatalf("got %d units", len(units))
	}
	if len(units[0].Nodes) != 2 {
		t.Errorf("unit 0 has %d paragraphs after trim, want 2", len(units[0].Nodes))
	}
	if len(units[1].Nodes) != 1 {
		t.Errorf("unit 1 has %d paragraphs after trim, want 1", len(units[1].Nodes))
	}
	if units[0].Text != "stem\nbody" {
		t.Errorf("Text = %q", units[0].Text)
	}

	untrimmed := mustNew(t, Options{Mode: ModeIndex}).Segment(sec)
	if len(untrimmed[0].Nodes) != 4 {
		t.Errorf("without trim unit 0 has %d paragraphs, want 4", len(untrimmed[0].Nodes))
	}
}

func TestSegmentAllNumbersAcrossSections(t *testing.T) {
	var a, b []hwpxtest.Paragraph
	a = append(a, hwpxtest.Question(1, "%d.")...)
	a = append(a, hwpxtest.Question(2, "%d.")...)
	b = append(b, hwpxtest.Question(1, "%d.")...)
	secs := []*Section{
		section(t, 0, hwpxtest.Section{Paragraphs: a}),
		ParseSection(1, "Contents/section1.xml", []byte("<hs:sec><broken")),
		section(t, 2, hwpxtest.Section{Paragraphs: b}),
	}
	units := mustNew(t, Options{}).SegmentAll(secs)
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	for i, u := range units {
		if u.ID != i+1 {
			t.Errorf("unit %d ID = %d", i, u.ID)
		}
	}
	if units[2].Section != 2 {
		t.Errorf("unit 3 section = %d, want 2", units[2].Section)
	}
}

func TestParseSectionErrors(t *testing.T) {
	tests := map[string]string{
		"malformed": "<hs:sec><hp:p>",
		"wrong root": `<?xml version="1.0"?><root/>`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			sec := ParseSection(3, "Contents/section3.xml", []byte(data))
			if sec.OK() {
				t.Fatal("section should not parse")
			}
			if !errors.Is(sec.Err, kerrors.ErrSectionParse) {
				t.Errorf("error %v should match ErrSectionParse", sec.Err)
			}
			if sec.Paragraphs() != nil {
				t.Error("failed section should have no paragraphs")
			}
		})
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(Options{Mode: "fuzzy"}); !errors.Is(err, kerrors.ErrInvalidInput) {
		t.Errorf("New error = %v, want ErrInvalidInput", err)
	}
	s := mustNew(t, Options{})
	if s.Options().Mode != ModeText || s.Options().NumType != DefaultNumType {
		t.Errorf("defaults not applied: %+v", s.Options())
	}
}
