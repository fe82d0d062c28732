package styleiso

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	kerrors "github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/xml"
	"github.com/FocuswithJustin/hwpxkit/internal/hwpxtest"
)

func parse(t *testing.T, s string) *xml.Tree {
	t.Helper()
	tree, err := xml.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return tree
}

// fragment returns a fragment of two paragraphs: the first carries the
// section layout, a memo marker and a picture; the second uses style 1.
func fragment(t *testing.T) *Fragment {
	t.Helper()
	sec := hwpxtest.Section{Paragraphs: []hwpxtest.Paragraph{
		{Text: "1. Question", Images: []string{"image1"}, CharPr: "1"},
		{Text: "body", ParaPr: "1", Style: "1", CharPr: "1"},
	}}
	xmlText := strings.Replace(hwpxtest.SectionXML(sec), "<hp:t>body</hp:t>",
		`<hp:t>bo<hp:insertBegin Id="1"/>dy<hp:insertEnd Id="1"/></hp:t>`, 1)
	tree := parse(t, xmlText)
	return &Fragment{
		Tree:       tree,
		Paragraphs: tree.ChildElements(tree.Root(), "p"),
		Header:     parse(t, hwpxtest.HeaderXML(hwpxtest.Document{})),
	}
}

func defsByList(out *Fragment) map[string][]string {
	got := map[string][]string{}
	for _, d := range out.Definitions {
		id := out.Tree.AttrOr(d.Node, "id", "")
		if d.Lang != "" {
			id = d.Lang + ":" + id
		}
		got[d.List] = append(got[d.List], id)
	}
	return got
}

func TestTransformPreserve(t *testing.T) {
	f := fragment(t)
	dest := NewStyleTable(parse(t, hwpxtest.HeaderXML(hwpxtest.Document{})), ModePreserve)
	out, err := Transform(f, dest)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if out.Suffix != "_f1" {
		t.Errorf("Suffix = %q", out.Suffix)
	}

	want := map[string][]string{
		"fontfaces":      {"HANGUL:1_f1"},
		"borderFills":    {"2_f1"},
		"charProperties": {"1_f1"},
		"numberings":     {"1_f1"},
		"paraProperties": {"1_f1"},
		"styles":         {"1_f1"},
	}
	if got := defsByList(out); !reflect.DeepEqual(got, want) {
		t.Errorf("definitions = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(out.Unresolved, []string{"font/LATIN#1"}) {
		t.Errorf("Unresolved = %v", out.Unresolved)
	}

	for _, d := range out.Definitions {
		if d.List != "styles" {
			continue
		}
		if out.Tree.AttrOr(d.Node, "name", "") != "본문_f1" || out.Tree.AttrOr(d.Node, "engName", "") != "Body_f1" {
			t.Errorf("style names not suffixed: %s", out.Tree.OuterXML(d.Node))
		}
		if out.Tree.AttrOr(d.Node, "paraPrIDRef", "") != "1_f1" || out.Tree.AttrOr(d.Node, "nextStyleIDRef", "") != "1_f1" {
			t.Errorf("style references not remapped: %s", out.Tree.OuterXML(d.Node))
		}
	}
	if !dest.HasName("Body_f1") || !dest.Has("charPr", "1_f1") {
		t.Error("destination table not updated")
	}

	body := out.Tree.OuterXML(out.Paragraphs[1])
	for _, want := range []string{`paraPrIDRef="1_f1"`, `styleIDRef="1_f1"`, `charPrIDRef="1_f1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s in %s", want, body)
		}
	}
	if strings.Contains(body, "insertBegin") || !strings.Contains(body, "bo") {
		t.Errorf("tracking markers not stripped: %s", body)
	}

	first := out.Tree.OuterXML(out.Paragraphs[0])
	for _, gone := range []string{"secPr", "pagePr", "colPr", "<hp:ctrl", "binaryItemIDRef", "instid", `id="5000"`} {
		if strings.Contains(first, gone) {
			t.Errorf("%s not stripped: %s", gone, first)
		}
	}
	// Null references stay untouched.
	if !strings.Contains(first, `paraPrIDRef="0"`) {
		t.Errorf("null reference remapped: %s", first)
	}
	if out.Tree.AttrOr(out.Paragraphs[0], "id", "") != "1" || out.Tree.AttrOr(out.Paragraphs[1], "id", "") != "2" {
		t.Error("paragraph ids not regenerated")
	}

	if strings.Contains(f.Tree.OuterXML(f.Paragraphs[0]), "_f1") || !f.Tree.HasDescendant(f.Paragraphs[0], "secPr") {
		t.Error("source fragment modified")
	}
}

func TestTransformSuffixesAreUnique(t *testing.T) {
	// The destination already holds a style renamed with the first suffix.
	hdr := strings.Replace(hwpxtest.HeaderXML(hwpxtest.Document{}), `engName="Body"`, `engName="Body_f1"`, 1)
	dest := NewStyleTable(parse(t, hdr), ModePreserve)

	a, err := Transform(fragment(t), dest)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Transform(fragment(t), dest)
	if err != nil {
		t.Fatal(err)
	}
	if a.Suffix != "_f2" || b.Suffix != "_f3" {
		t.Errorf("suffixes = %q %q", a.Suffix, b.Suffix)
	}
	if b.Tree.AttrOr(b.Paragraphs[0], "id", "") != "3" {
		t.Errorf("paragraph ids restart across fragments: %s", b.Tree.AttrOr(b.Paragraphs[0], "id", ""))
	}
}

func TestTransformUniform(t *testing.T) {
	dest := NewStyleTable(nil, ModeUniform)
	f := fragment(t)
	f.Header = nil
	out, err := Transform(f, dest)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if len(out.Definitions) != 0 || out.Suffix != "" {
		t.Errorf("uniform mode imported definitions: %v %q", out.Definitions, out.Suffix)
	}
	body := out.Tree.OuterXML(out.Paragraphs[1])
	for _, want := range []string{`paraPrIDRef="0"`, `styleIDRef="0"`, `charPrIDRef="0"`} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s in %s", want, body)
		}
	}
}

func TestReserveParagraphIDs(t *testing.T) {
	dest := NewStyleTable(nil, ModeUniform)
	dest.ReserveParagraphIDs(parse(t, hwpxtest.SectionXML(hwpxtest.Section{
		Paragraphs: []hwpxtest.Paragraph{{Text: "a"}, {Text: "b"}},
	})))
	out, err := Transform(fragment(t), dest)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Tree.AttrOr(out.Paragraphs[0], "id", ""); got != "1002" {
		t.Errorf("first id = %s, want 1002", got)
	}
}

func TestTransformRejects(t *testing.T) {
	dest := NewStyleTable(nil, ModePreserve)
	if _, err := Transform(&Fragment{}, dest); !errors.Is(err, kerrors.ErrInvalidInput) {
		t.Errorf("empty fragment error = %v", err)
	}
	f := fragment(t)
	f.Header = nil
	if _, err := Transform(f, dest); !errors.Is(err, kerrors.ErrInvalidInput) {
		t.Errorf("missing header error = %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModePreserve, "preserve": ModePreserve, "uniform": ModeUniform} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("loose"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}
