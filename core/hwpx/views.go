package hwpx

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/hwpxkit/core/xml"
)

// NullRefs are the ID-ref values that mean "no reference".
var NullRefs = map[string]bool{"4294967295": true, "0": true, "-1": true}

// Paragraph is a typed view of an hp:p element.
type Paragraph struct {
	Node        xml.NodeID
	ID          string
	ParaPrIDRef string
	StyleIDRef  string
}

// ParagraphOf decodes the paragraph at id.
func ParagraphOf(t *xml.Tree, id xml.NodeID) (Paragraph, bool) {
	if !t.IsElement(id, "p") {
		return Paragraph{}, false
	}
	return Paragraph{
		Node:        id,
		ID:          t.AttrOr(id, "id", ""),
		ParaPrIDRef: t.AttrOr(id, "paraPrIDRef", ""),
		StyleIDRef:  t.AttrOr(id, "styleIDRef", ""),
	}, true
}

// Picture is any element carrying a binaryItemIDRef, usually hc:img below
// hp:pic.
type Picture struct {
	Node            xml.NodeID
	BinaryItemIDRef string
}

// Pictures returns the binary item references below id in document order.
func Pictures(t *xml.Tree, id xml.NodeID) []Picture {
	var out []Picture
	t.Walk(id, func(n xml.NodeID) bool {
		if !t.IsElement(n, "") {
			return true
		}
		if ref, ok := t.Attr(n, "binaryItemIDRef"); ok && ref != "" {
			out = append(out, Picture{Node: n, BinaryItemIDRef: ref})
		}
		return true
	})
	return out
}

// AutoNum is a typed view of hp:autoNum.
type AutoNum struct {
	Node    xml.NodeID
	Num     int
	NumType string
}

// AutoNums returns the numbered auto-number markers below id.
func AutoNums(t *xml.Tree, id xml.NodeID) []AutoNum {
	var out []AutoNum
	for _, n := range t.Descendants(id, "autoNum") {
		num, err := strconv.Atoi(strings.TrimSpace(t.AttrOr(n, "num", "")))
		if err != nil {
			continue
		}
		out = append(out, AutoNum{Node: n, Num: num, NumType: t.AttrOr(n, "numType", "")})
	}
	return out
}

// EndNote is a typed view of hp:endNote.
type EndNote struct {
	Node   xml.NodeID
	Number int
}

// EndNotes returns the numbered end notes below id.
func EndNotes(t *xml.Tree, id xml.NodeID) []EndNote {
	var out []EndNote
	for _, n := range t.Descendants(id, "endNote") {
		num, err := strconv.Atoi(strings.TrimSpace(t.AttrOr(n, "number", "")))
		if err != nil {
			continue
		}
		out = append(out, EndNote{Node: n, Number: num})
	}
	return out
}

// TextRuns returns the hp:t elements below id in document order.
func TextRuns(t *xml.Tree, id xml.NodeID) []xml.NodeID {
	return t.Descendants(id, "t")
}

// RunText returns the character data of one hp:t, mapping hp:lineBreak to a
// newline and hp:tab to a tab.
func RunText(t *xml.Tree, run xml.NodeID) string {
	var b strings.Builder
	t.Walk(run, func(n xml.NodeID) bool {
		node := t.Node(n)
		switch node.Kind {
		case xml.KindText, xml.KindCData:
			b.WriteString(node.Data)
		case xml.KindElement:
			switch node.Local {
			case "lineBreak":
				b.WriteByte('\n')
			case "tab":
				b.WriteByte('\t')
			}
		}
		return true
	})
	return b.String()
}

// ParagraphText concatenates the text of every hp:t below id.
func ParagraphText(t *xml.Tree, id xml.NodeID) string {
	var b strings.Builder
	for _, run := range TextRuns(t, id) {
		if t.Ancestor(run, "t") != xml.None {
			continue
		}
		b.WriteString(RunText(t, run))
	}
	return b.String()
}

// Equations returns the script of every hp:equation below id.
func Equations(t *xml.Tree, id xml.NodeID) []string {
	var out []string
	for _, eq := range t.Descendants(id, "equation") {
		script := t.FirstChildElement(eq, "script")
		if script == xml.None {
			continue
		}
		if s := strings.TrimSpace(t.Text(script)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HasVisualContent reports whether the paragraph shows anything: text,
// a picture, an equation or a table.
func HasVisualContent(t *xml.Tree, id xml.NodeID) bool {
	if strings.TrimSpace(ParagraphText(t, id)) != "" {
		return true
	}
	for _, local := range []string{"pic", "equation", "tbl"} {
		if t.HasDescendant(id, local) {
			return true
		}
	}
	return len(Pictures(t, id)) > 0
}
