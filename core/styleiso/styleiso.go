// Package styleiso rewrites paragraphs taken from one document so they can
// be placed into another document without their formatting definitions
// colliding with the destination's.
//
// In preserve mode every header definition the paragraphs reach (styles,
// paragraph and character shapes, border fills, tab stops, numberings,
// bullets and fonts) is copied with its id suffixed by a fragment-unique
// suffix, and every reference is remapped to the copy. Style names receive
// the same suffix so the consuming application never coalesces two styles
// that happen to share a name. In uniform mode formatting references are
// pointed at the destination default instead and nothing is imported.
//
// Both modes strip object identifiers, media references, page layout
// overrides and change-tracking markers.
package styleiso

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/hwpx"
	"github.com/FocuswithJustin/hwpxkit/core/xml"
)

// Mode selects how formatting references are treated.
type Mode string

const (
	ModePreserve Mode = "preserve"
	ModeUniform  Mode = "uniform"
)

// ParseMode parses a mode name. The empty string means ModePreserve.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModePreserve:
		return ModePreserve, nil
	case ModeUniform:
		return ModeUniform, nil
	}
	return "", errors.NewValidation("mode", fmt.Sprintf("unknown style mode %q", s))
}

// DefaultRef is the destination definition uniform mode points at.
const DefaultRef = "0"

// listOf maps a definition element to the hh:refList child holding it.
var listOf = map[string]string{
	"borderFill": "borderFills",
	"charPr":     "charProperties",
	"tabPr":      "tabProperties",
	"numbering":  "numberings",
	"bullet":     "bullets",
	"paraPr":     "paraProperties",
	"style":      "styles",
	"font":       "fontfaces",
}

// refAttrs maps a reference attribute to the definition element it names.
var refAttrs = map[string]string{
	"borderFillIDRef": "borderFill",
	"charPrIDRef":     "charPr",
	"tabPrIDRef":      "tabPr",
	"numberingIDRef":  "numbering",
	"bulletIDRef":     "bullet",
	"paraPrIDRef":     "paraPr",
	"styleIDRef":      "style",
	"nextStyleIDRef":  "style",
}

// fontRefLangs maps hh:fontRef attributes to hh:fontface languages.
var fontRefLangs = map[string]string{
	"hangul":   "HANGUL",
	"latin":    "LATIN",
	"hanja":    "HANJA",
	"japanese": "JAPANESE",
	"other":    "OTHER",
	"symbol":   "SYMBOL",
	"user":     "USER",
}

// layoutElements are removed from transplanted paragraphs.
var layoutElements = []string{
	"secPr", "colPr", "pagePr", "masterPage", "pageBorderFill",
	"footNotePr", "endNotePr", "startNum", "pageHiding", "linesegarray",
}

// trackingElements are change-tracking and annotation markers.
var trackingElements = []string{"insertBegin", "insertEnd", "deleteBegin", "deleteEnd", "memo"}

// defKey identifies one header definition. Lang is set for fonts only.
type defKey struct {
	item string
	lang string
	id   string
}

func (k defKey) String() string {
	if k.lang != "" {
		return k.item + "/" + k.lang + "#" + k.id
	}
	return k.item + "#" + k.id
}

// Definition is a header definition produced by Transform, ready to be
// appended to the destination list named List (and, for fonts, to the
// fontface of language Lang).
type Definition struct {
	List string
	Lang string
	Node xml.NodeID
}

// Fragment is a run of paragraphs together with the header they refer to.
type Fragment struct {
	Tree       *xml.Tree
	Paragraphs []xml.NodeID
	Header     *xml.Tree

	// Set on the result of Transform.
	Suffix      string
	Definitions []Definition
	Unresolved  []string // references with no definition in Header
}

// StyleTable tracks the definitions of a destination header and of every
// fragment transformed into it.
type StyleTable struct {
	Mode Mode

	ids      map[defKey]bool
	names    map[string]bool
	suffixes map[string]bool
	next     int
	paraID   int
}

// NewStyleTable indexes the definitions of header, which may be nil.
func NewStyleTable(header *xml.Tree, mode Mode) *StyleTable {
	s := &StyleTable{
		Mode:     mode,
		ids:      map[defKey]bool{},
		names:    map[string]bool{},
		suffixes: map[string]bool{},
		next:     1,
		paraID:   1,
	}
	if header != nil {
		for k, n := range indexDefinitions(header) {
			s.ids[k] = true
			if k.item == "style" {
				s.addNames(header, n)
			}
		}
	}
	return s
}

func (s *StyleTable) addNames(t *xml.Tree, n xml.NodeID) {
	for _, attr := range []string{"name", "engName"} {
		if v, ok := t.Attr(n, attr); ok && v != "" {
			s.names[v] = true
		}
	}
}

// Has reports whether the table holds a definition of item with id.
func (s *StyleTable) Has(item, id string) bool {
	for k := range s.ids {
		if k.item == item && k.id == id {
			return true
		}
	}
	return false
}

// HasName reports whether a style with the given name or English name
// exists.
func (s *StyleTable) HasName(name string) bool {
	return s.names[name]
}

// ReserveParagraphIDs makes later paragraph ids larger than every numeric
// paragraph id already present in t.
func (s *StyleTable) ReserveParagraphIDs(t *xml.Tree) {
	for _, p := range t.Descendants(t.Document(), "p") {
		if n, err := strconv.Atoi(t.AttrOr(p, "id", "")); err == nil && n >= s.paraID {
			s.paraID = n + 1
		}
	}
}

func (s *StyleTable) nextParagraphID() string {
	id := strconv.Itoa(s.paraID)
	s.paraID++
	return id
}

// Transform returns a copy of f whose paragraphs and definitions can be
// inserted into the destination described by dest. f is not modified.
func Transform(f *Fragment, dest *StyleTable) (*Fragment, error) {
	if f == nil || f.Tree == nil || len(f.Paragraphs) == 0 {
		return nil, errors.NewValidation("fragment", "no paragraphs")
	}
	mode := dest.Mode
	if mode == "" {
		mode = ModePreserve
	}
	if mode == ModePreserve && f.Header == nil {
		return nil, errors.NewValidation("fragment", "preserve mode needs the source header")
	}

	out := &Fragment{Tree: xml.NewTree()}
	for _, p := range f.Paragraphs {
		out.Paragraphs = append(out.Paragraphs, out.Tree.Import(f.Tree, p))
	}
	for _, p := range out.Paragraphs {
		strip(out.Tree, p)
		out.Tree.SetAttr(p, "id", dest.nextParagraphID())
	}

	if mode == ModeUniform {
		for _, p := range out.Paragraphs {
			uniform(out.Tree, p)
		}
		return out, nil
	}

	index := indexDefinitions(f.Header)
	reached, unresolved := closure(f, index)
	for _, k := range unresolved {
		out.Unresolved = append(out.Unresolved, k.String())
	}
	out.Suffix = dest.suffixFor(f.Header, index, reached)

	for _, k := range ordered(index, reached) {
		cp := out.Tree.Import(f.Header, index[k])
		out.Tree.SetAttr(cp, "id", k.id+out.Suffix)
		remap(out.Tree, cp, out.Suffix, reached)
		if k.item == "style" {
			for _, attr := range []string{"name", "engName"} {
				if v, ok := out.Tree.Attr(cp, attr); ok && v != "" {
					out.Tree.SetAttr(cp, attr, v+out.Suffix)
				}
			}
			dest.addNames(out.Tree, cp)
		}
		dest.ids[defKey{k.item, k.lang, k.id + out.Suffix}] = true
		out.Definitions = append(out.Definitions, Definition{List: listOf[k.item], Lang: k.lang, Node: cp})
	}
	for _, p := range out.Paragraphs {
		remap(out.Tree, p, out.Suffix, reached)
	}
	return out, nil
}

// suffixFor picks the first "_f<n>" suffix that renames none of reached onto
// an existing id or style name.
func (s *StyleTable) suffixFor(header *xml.Tree, index map[defKey]xml.NodeID, reached map[defKey]bool) string {
	for {
		suffix := "_f" + strconv.Itoa(s.next)
		s.next++
		if s.suffixes[suffix] || s.collides(header, index, reached, suffix) {
			continue
		}
		s.suffixes[suffix] = true
		return suffix
	}
}

func (s *StyleTable) collides(header *xml.Tree, index map[defKey]xml.NodeID, reached map[defKey]bool, suffix string) bool {
	for k := range reached {
		if s.ids[defKey{k.item, k.lang, k.id + suffix}] {
			return true
		}
		if k.item != "style" {
			continue
		}
		for _, attr := range []string{"name", "engName"} {
			if v, ok := header.Attr(index[k], attr); ok && v != "" && s.names[v+suffix] {
				return true
			}
		}
	}
	return false
}

// indexDefinitions maps every definition of header's refList to its node.
func indexDefinitions(header *xml.Tree) map[defKey]xml.NodeID {
	out := map[defKey]xml.NodeID{}
	list := hwpx.RefList(header)
	if list == xml.None {
		return out
	}
	for _, group := range header.ChildElements(list, "") {
		for _, def := range header.ChildElements(group, "") {
			local := header.Node(def).Local
			if local == "fontface" {
				lang := header.AttrOr(def, "lang", "")
				for _, font := range header.ChildElements(def, "font") {
					if id, ok := header.Attr(font, "id"); ok {
						out[defKey{"font", lang, id}] = font
					}
				}
				continue
			}
			if _, known := listOf[local]; !known {
				continue
			}
			if id, ok := header.Attr(def, "id"); ok {
				out[defKey{local, "", id}] = def
			}
		}
	}
	return out
}

// closure returns the definitions reachable from f's paragraphs and the
// references that have no definition.
func closure(f *Fragment, index map[defKey]xml.NodeID) (map[defKey]bool, []defKey) {
	reached := map[defKey]bool{}
	missing := map[defKey]bool{}
	var queue []defKey
	for _, p := range f.Paragraphs {
		queue = append(queue, references(f.Tree, p)...)
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if reached[k] || missing[k] {
			continue
		}
		n, ok := index[k]
		if !ok {
			missing[k] = true
			continue
		}
		reached[k] = true
		queue = append(queue, references(f.Header, n)...)
	}
	var unresolved []defKey
	for k := range missing {
		unresolved = append(unresolved, k)
	}
	sort.Slice(unresolved, func(i, j int) bool { return unresolved[i].String() < unresolved[j].String() })
	return reached, unresolved
}

// ordered returns reached in header document order.
func ordered(index map[defKey]xml.NodeID, reached map[defKey]bool) []defKey {
	keys := make([]defKey, 0, len(reached))
	for k := range reached {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return index[keys[i]] < index[keys[j]] })
	return keys
}

// references lists the non-null definition references below id.
func references(t *xml.Tree, id xml.NodeID) []defKey {
	var out []defKey
	eachRef(t, id, func(n xml.NodeID, attr string, k defKey) {
		out = append(out, k)
	})
	return out
}

// eachRef calls fn for every non-null reference attribute below id.
func eachRef(t *xml.Tree, id xml.NodeID, fn func(n xml.NodeID, attr string, k defKey)) {
	t.Walk(id, func(n xml.NodeID) bool {
		if !t.IsElement(n, "") {
			return false
		}
		node := t.Node(n)
		local := node.Local
		attrs := append([]xml.Attr(nil), node.Attrs...)
		for _, a := range attrs {
			if a.IsNamespaceDecl() || hwpx.NullRefs[a.Value] || a.Value == "" {
				continue
			}
			switch {
			case refAttrs[a.Local] != "":
				fn(n, a.Local, defKey{refAttrs[a.Local], "", a.Value})
			case local == "fontRef" && fontRefLangs[a.Local] != "":
				fn(n, a.Local, defKey{"font", fontRefLangs[a.Local], a.Value})
			case local == "heading" && a.Local == "idRef":
				item := "numbering"
				if t.AttrOr(n, "type", "") == "BULLET" {
					item = "bullet"
				}
				fn(n, a.Local, defKey{item, "", a.Value})
			}
		}
		return true
	})
}

// remap rewrites references below id that point at reached definitions.
func remap(t *xml.Tree, id xml.NodeID, suffix string, reached map[defKey]bool) {
	eachRef(t, id, func(n xml.NodeID, attr string, k defKey) {
		if reached[k] {
			t.SetAttr(n, attr, k.id+suffix)
		}
	})
}

// uniform points every formatting reference below id at DefaultRef.
func uniform(t *xml.Tree, id xml.NodeID) {
	t.Walk(id, func(n xml.NodeID) bool {
		if !t.IsElement(n, "") {
			return false
		}
		for attr := range refAttrs {
			if _, ok := t.Attr(n, attr); ok && attr != "nextStyleIDRef" {
				t.SetAttr(n, attr, DefaultRef)
			}
		}
		return true
	})
}

// strip removes identifiers, media references, layout overrides and
// change-tracking markers below p.
func strip(t *xml.Tree, p xml.NodeID) {
	for _, name := range append(append([]string(nil), layoutElements...), trackingElements...) {
		for _, n := range t.Descendants(p, name) {
			t.Detach(n)
		}
	}
	for _, ctrl := range t.Descendants(p, "ctrl") {
		if len(t.ChildElements(ctrl, "")) == 0 {
			t.Detach(ctrl)
		}
	}
	t.Walk(p, func(n xml.NodeID) bool {
		if !t.IsElement(n, "") {
			return false
		}
		if n != p {
			t.RemoveAttr(n, "id")
		}
		t.RemoveAttr(n, "instid")
		t.RemoveAttr(n, "binaryItemIDRef")
		return true
	})
}
