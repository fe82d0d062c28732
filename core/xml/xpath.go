package xml

import (
	"fmt"
	"strings"
	"sync"

	"github.com/antchfx/xpath"
)

// Navigator walks a Tree for the xpath engine. Declarations, processing
// instructions, directives and whitespace-only text are invisible to it, and
// namespace declarations never appear on the attribute axis.
type Navigator struct {
	tree       *Tree
	root, curr NodeID
	attr       int
}

var _ xpath.NodeNavigator = (*Navigator)(nil)

// NewNavigator returns a navigator positioned on id.
func (t *Tree) NewNavigator(id NodeID) *Navigator {
	return &Navigator{tree: t, root: 0, curr: id, attr: -1}
}

// Current returns the node the navigator is positioned on.
func (x *Navigator) Current() NodeID {
	return x.curr
}

func (x *Navigator) node() *Node {
	return &x.tree.nodes[x.curr]
}

func (x *Navigator) NodeType() xpath.NodeType {
	switch x.node().Kind {
	case KindComment:
		return xpath.CommentNode
	case KindText, KindCData:
		return xpath.TextNode
	case KindDocument:
		return xpath.RootNode
	case KindElement:
		if x.attr != -1 {
			return xpath.AttributeNode
		}
		return xpath.ElementNode
	}
	panic(fmt.Sprintf("unexpected XML node kind: %v", x.node().Kind))
}

func (x *Navigator) LocalName() string {
	if x.attr != -1 {
		return x.node().Attrs[x.attr].Local
	}
	return x.node().Local
}

func (x *Navigator) Prefix() string {
	if x.attr != -1 {
		return x.node().Attrs[x.attr].Prefix
	}
	return x.node().Prefix
}

// NamespaceURL resolves the namespace of the current element or attribute.
func (x *Navigator) NamespaceURL() string {
	if x.attr == -1 {
		return x.node().Space
	}
	prefix := x.node().Attrs[x.attr].Prefix
	if prefix == "" {
		return ""
	}
	if prefix == "xml" {
		return "http://www.w3.org/XML/1998/namespace"
	}
	for id := x.curr; id != None; id = x.tree.nodes[id].Parent {
		for _, a := range x.tree.nodes[id].Attrs {
			if a.Prefix == "xmlns" && a.Local == prefix {
				return a.Value
			}
		}
	}
	return ""
}

func (x *Navigator) Value() string {
	n := x.node()
	switch n.Kind {
	case KindComment, KindText, KindCData:
		return n.Data
	case KindElement:
		if x.attr != -1 {
			return n.Attrs[x.attr].Value
		}
	}
	return x.tree.Text(x.curr)
}

func (x *Navigator) Copy() xpath.NodeNavigator {
	n := *x
	return &n
}

func (x *Navigator) MoveToRoot() {
	x.curr = x.root
	x.attr = -1
}

func (x *Navigator) MoveToParent() bool {
	if x.attr != -1 {
		x.attr = -1
		return true
	}
	if p := x.tree.nodes[x.curr].Parent; p != None {
		x.curr = p
		return true
	}
	return false
}

func (x *Navigator) MoveToNextAttribute() bool {
	if x.node().Kind != KindElement {
		return false
	}
	attrs := x.node().Attrs
	for i := x.attr + 1; i < len(attrs); i++ {
		if !attrs[i].IsNamespaceDecl() {
			x.attr = i
			return true
		}
	}
	return false
}

func (x *Navigator) MoveToChild() bool {
	if x.attr != -1 {
		return false
	}
	for _, c := range x.tree.nodes[x.curr].Children {
		if x.tree.visible(c) {
			x.curr = c
			return true
		}
	}
	return false
}

func (x *Navigator) MoveToFirst() bool {
	if x.attr != -1 {
		return false
	}
	siblings, i := x.siblings()
	for j := 0; j < i; j++ {
		if x.tree.visible(siblings[j]) {
			x.curr = siblings[j]
			return true
		}
	}
	return false
}

func (x *Navigator) MoveToNext() bool {
	if x.attr != -1 {
		return false
	}
	siblings, i := x.siblings()
	for j := i + 1; j < len(siblings); j++ {
		if x.tree.visible(siblings[j]) {
			x.curr = siblings[j]
			return true
		}
	}
	return false
}

func (x *Navigator) MoveToPrevious() bool {
	if x.attr != -1 {
		return false
	}
	siblings, i := x.siblings()
	for j := i - 1; j >= 0; j-- {
		if x.tree.visible(siblings[j]) {
			x.curr = siblings[j]
			return true
		}
	}
	return false
}

func (x *Navigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*Navigator)
	if !ok || o.tree != x.tree {
		return false
	}
	x.curr = o.curr
	x.attr = o.attr
	return true
}

func (x *Navigator) String() string {
	return x.Value()
}

func (x *Navigator) siblings() ([]NodeID, int) {
	p := x.tree.nodes[x.curr].Parent
	if p == None {
		return nil, -1
	}
	siblings := x.tree.nodes[p].Children
	for i, c := range siblings {
		if c == x.curr {
			return siblings, i
		}
	}
	return nil, -1
}

func (t *Tree) visible(id NodeID) bool {
	n := &t.nodes[id]
	switch n.Kind {
	case KindElement, KindComment, KindCData:
		return true
	case KindText:
		return strings.TrimSpace(n.Data) != ""
	}
	return false
}

var exprCache sync.Map // map[string]*xpath.Expr

// Compile compiles expr against the given prefix to URI bindings. Compiled
// expressions are cached by expression text and bindings.
func Compile(expr string, ns map[string]string) (*xpath.Expr, error) {
	key := expr + "\x00" + fmt.Sprint(ns)
	if v, ok := exprCache.Load(key); ok {
		return v.(*xpath.Expr), nil
	}
	e, err := xpath.CompileWithNS(expr, ns)
	if err != nil {
		return nil, fmt.Errorf("compiling XPath %q: %w", expr, err)
	}
	exprCache.Store(key, e)
	return e, nil
}

// Select evaluates expr from id and returns the matching nodes in document
// order. Attribute matches resolve to their owning element.
func (t *Tree) Select(id NodeID, expr string, ns map[string]string) ([]NodeID, error) {
	e, err := Compile(expr, ns)
	if err != nil {
		return nil, err
	}
	var out []NodeID
	seen := map[NodeID]bool{}
	it := e.Select(t.NewNavigator(id))
	for it.MoveNext() {
		nav := it.Current().(*Navigator)
		if !seen[nav.curr] {
			seen[nav.curr] = true
			out = append(out, nav.curr)
		}
	}
	return out, nil
}

// SelectFirst returns the first node matching expr, or None.
func (t *Tree) SelectFirst(id NodeID, expr string, ns map[string]string) (NodeID, error) {
	e, err := Compile(expr, ns)
	if err != nil {
		return None, err
	}
	it := e.Select(t.NewNavigator(id))
	if it.MoveNext() {
		return it.Current().(*Navigator).curr, nil
	}
	return None, nil
}
