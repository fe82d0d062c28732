// Package xml provides an index-addressed XML node arena.
//
// Documents are tokenized with xmlquery and copied into a flat slice of
// nodes. Every node carries the index of its parent and the ordered indices
// of its children, so detaching or moving a node is an index operation and
// node handles stay valid across edits and across Clone.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated: Go's xml.Decoder never
//     fetches external entities and the decoder is configured with an empty
//     entity map so no custom entity is expanded.
package xml

import (
	"bytes"
	"fmt"

	"github.com/antchfx/xmlquery"
)

// NodeID addresses a node inside a Tree.
type NodeID int

// None is the NodeID of "no node".
const None NodeID = -1

// Kind tags the variant of a node.
type Kind uint8

const (
	KindDocument Kind = iota
	KindDeclaration
	KindElement
	KindText
	KindCData
	KindComment
	KindProcInst
	KindDirective
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindDeclaration:
		return "declaration"
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindCData:
		return "cdata"
	case KindComment:
		return "comment"
	case KindProcInst:
		return "procinst"
	case KindDirective:
		return "directive"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Attr is one attribute in source order. Namespace declarations are kept as
// ordinary attributes (Prefix "xmlns", or Local "xmlns" for the default
// namespace).
type Attr struct {
	Prefix string
	Local  string
	Value  string
}

// QName returns the qualified attribute name.
func (a Attr) QName() string {
	if a.Prefix == "" {
		return a.Local
	}
	return a.Prefix + ":" + a.Local
}

// IsNamespaceDecl reports whether the attribute declares a namespace.
func (a Attr) IsNamespaceDecl() bool {
	return a.Prefix == "xmlns" || (a.Prefix == "" && a.Local == "xmlns")
}

// Node is one arena slot.
type Node struct {
	Kind   Kind
	Prefix string // element prefix as written in the source
	Local  string // element local name, or processing instruction target
	Space  string // namespace URI of the element
	Attrs  []Attr
	Data   string // character data, comment text or instruction body

	Parent   NodeID
	Children []NodeID
}

// QName returns the qualified element name.
func (n *Node) QName() string {
	if n.Prefix == "" {
		return n.Local
	}
	return n.Prefix + ":" + n.Local
}

// Tree is a parsed XML document. Slot 0 is always the document node.
type Tree struct {
	nodes []Node
}

// NewTree returns a tree holding only a document node.
func NewTree() *Tree {
	return &Tree{nodes: []Node{{Kind: KindDocument, Parent: None}}}
}

// Parse parses XML data into a Tree.
func Parse(data []byte) (*Tree, error) {
	root, err := xmlquery.ParseWithOptions(bytes.NewReader(data), xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			Strict: true,
			Entity: map[string]string{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	t := NewTree()
	scope := map[string]string{"http://www.w3.org/XML/1998/namespace": "xml"}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		t.convert(c, 0, scope)
	}
	return t, nil
}

// convert copies an xmlquery subtree under parent. scope maps namespace URIs
// to the prefix in effect; it resolves element prefixes that xmlquery could
// not recover from the raw token.
func (t *Tree) convert(src *xmlquery.Node, parent NodeID, scope map[string]string) {
	var n Node
	switch src.Type {
	case xmlquery.DeclarationNode:
		n.Kind = KindDeclaration
		n.Local = src.Data
		for _, a := range src.Attr {
			n.Attrs = append(n.Attrs, Attr{Local: a.Name.Local, Value: a.Value})
		}
	case xmlquery.ProcessingInstruction:
		n.Kind = KindProcInst
		n.Local = src.Data
		if src.ProcInst != nil {
			n.Local = src.ProcInst.Target
			n.Data = src.ProcInst.Inst
		}
	case xmlquery.TextNode:
		n.Kind = KindText
		n.Data = src.Data
	case xmlquery.CharDataNode:
		n.Kind = KindCData
		n.Data = src.Data
	case xmlquery.CommentNode:
		n.Kind = KindComment
		n.Data = src.Data
	case xmlquery.NotationNode:
		n.Kind = KindDirective
		n.Data = src.Data
	case xmlquery.ElementNode:
		n.Kind = KindElement
		n.Local = src.Data
		n.Space = src.NamespaceURI
		n.Prefix = src.Prefix
		inner, copied := scope, false
		for _, a := range src.Attr {
			attr := Attr{Prefix: a.Name.Space, Local: a.Name.Local, Value: a.Value}
			if attr.IsNamespaceDecl() {
				if !copied {
					inner, copied = copyScope(scope), true
				}
				if attr.Prefix == "xmlns" {
					inner[attr.Value] = attr.Local
				} else {
					inner[attr.Value] = ""
				}
			}
			n.Attrs = append(n.Attrs, attr)
		}
		if n.Prefix == "" && n.Space != "" {
			n.Prefix = inner[n.Space]
		}
		id := t.add(n, parent)
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			t.convert(c, id, inner)
		}
		return
	default:
		return
	}
	t.add(n, parent)
}

func copyScope(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *Tree) add(n Node, parent NodeID) NodeID {
	id := NodeID(len(t.nodes))
	n.Parent = parent
	t.nodes = append(t.nodes, n)
	if parent != None {
		t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	}
	return id
}

// Len returns the number of arena slots, including detached nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node at id. The pointer is invalidated by any call that
// adds nodes to the tree.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Document returns the document node.
func (t *Tree) Document() NodeID {
	return 0
}

// Root returns the document element, or None.
func (t *Tree) Root() NodeID {
	for _, c := range t.nodes[0].Children {
		if t.nodes[c].Kind == KindElement {
			return c
		}
	}
	return None
}

// Parent returns the parent of id, or None for the document node and for
// detached nodes.
func (t *Tree) Parent(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		return n.Parent
	}
	return None
}

// Children returns the child ids of id. The slice must not be modified.
func (t *Tree) Children(id NodeID) []NodeID {
	if n := t.Node(id); n != nil {
		return n.Children
	}
	return nil
}

// IsElement reports whether id is an element with the given local name.
// An empty local matches any element.
func (t *Tree) IsElement(id NodeID, local string) bool {
	n := t.Node(id)
	return n != nil && n.Kind == KindElement && (local == "" || n.Local == local)
}

// ChildElements returns the element children of id with the given local
// name, or all element children when local is empty.
func (t *Tree) ChildElements(id NodeID, local string) []NodeID {
	var out []NodeID
	for _, c := range t.Children(id) {
		if t.IsElement(c, local) {
			out = append(out, c)
		}
	}
	return out
}

// FirstChildElement returns the first element child with the given local
// name, or None.
func (t *Tree) FirstChildElement(id NodeID, local string) NodeID {
	for _, c := range t.Children(id) {
		if t.IsElement(c, local) {
			return c
		}
	}
	return None
}

// Walk visits id and its descendants in document order. Returning false from
// fn skips the subtree of the visited node.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if t.Node(id) == nil {
		return
	}
	if !fn(id) {
		return
	}
	for _, c := range t.nodes[id].Children {
		t.Walk(c, fn)
	}
}

// Descendants returns the elements below id (id excluded) with the given
// local name, in document order.
func (t *Tree) Descendants(id NodeID, local string) []NodeID {
	var out []NodeID
	t.Walk(id, func(n NodeID) bool {
		if n != id && t.IsElement(n, local) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// HasDescendant reports whether an element with the given local name exists
// below id.
func (t *Tree) HasDescendant(id NodeID, local string) bool {
	found := false
	t.Walk(id, func(n NodeID) bool {
		if found {
			return false
		}
		if n != id && t.IsElement(n, local) {
			found = true
		}
		return !found
	})
	return found
}

// Ancestor returns the nearest ancestor element of id with the given local
// name, or None.
func (t *Tree) Ancestor(id NodeID, local string) NodeID {
	for p := t.Parent(id); p != None; p = t.Parent(p) {
		if t.IsElement(p, local) {
			return p
		}
	}
	return None
}

// Attr returns the value of the unprefixed (or any-prefixed) attribute with
// the given local name.
func (t *Tree) Attr(id NodeID, local string) (string, bool) {
	n := t.Node(id)
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Local == local && !a.IsNamespaceDecl() {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when absent.
func (t *Tree) AttrOr(id NodeID, local, def string) string {
	if v, ok := t.Attr(id, local); ok {
		return v
	}
	return def
}

// Text returns the concatenated character data below id.
func (t *Tree) Text(id NodeID) string {
	var b bytes.Buffer
	t.Walk(id, func(n NodeID) bool {
		switch t.nodes[n].Kind {
		case KindText, KindCData:
			b.WriteString(t.nodes[n].Data)
		}
		return true
	})
	return b.String()
}

// Namespaces returns the prefix to URI bindings declared on the document
// element.
func (t *Tree) Namespaces() map[string]string {
	out := map[string]string{}
	root := t.Root()
	if root == None {
		return out
	}
	for _, a := range t.nodes[root].Attrs {
		switch {
		case a.Prefix == "xmlns":
			out[a.Local] = a.Value
		case a.Prefix == "" && a.Local == "xmlns":
			out[""] = a.Value
		}
	}
	return out
}
