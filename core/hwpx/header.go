package hwpx

import (
	"strconv"

	"github.com/FocuswithJustin/hwpxkit/core/xml"
)

// RefListOrder is the canonical child order of hh:refList.
var RefListOrder = []string{
	"fontfaces",
	"borderFills",
	"charProperties",
	"tabProperties",
	"numberings",
	"bullets",
	"paraProperties",
	"styles",
	"memoProperties",
	"trackChanges",
	"trackChangeAuthors",
}

// RefList returns the hh:refList element of a header tree, or None.
func RefList(t *xml.Tree) xml.NodeID {
	return t.FirstChildElement(t.Root(), "refList")
}

// UpdateCounts rewrites the itemCnt, cnt and fontCnt attributes below id to
// the number of element children they describe. Attributes that are absent
// stay absent.
func UpdateCounts(t *xml.Tree, id xml.NodeID) {
	t.Walk(id, func(n xml.NodeID) bool {
		if !t.IsElement(n, "") {
			return false
		}
		for _, attr := range []string{"itemCnt", "cnt"} {
			if _, ok := t.Attr(n, attr); ok {
				t.SetAttr(n, attr, strconv.Itoa(len(t.ChildElements(n, ""))))
			}
		}
		if _, ok := t.Attr(n, "fontCnt"); ok {
			t.SetAttr(n, "fontCnt", strconv.Itoa(len(t.ChildElements(n, "font"))))
		}
		return true
	})
}

// SortRefList reorders the children of hh:refList into RefListOrder.
// Unknown children keep their relative order after the known ones.
func SortRefList(t *xml.Tree) {
	list := RefList(t)
	if list == xml.None {
		return
	}
	rank := make(map[string]int, len(RefListOrder))
	for i, name := range RefListOrder {
		rank[name] = i
	}
	var known = make([][]xml.NodeID, len(RefListOrder))
	var rest []xml.NodeID
	for _, c := range t.ChildElements(list, "") {
		if r, ok := rank[t.Node(c).Local]; ok {
			known[r] = append(known[r], c)
			continue
		}
		rest = append(rest, c)
	}
	var ordered []xml.NodeID
	for _, group := range known {
		ordered = append(ordered, group...)
	}
	t.SetChildren(list, append(ordered, rest...))
}
