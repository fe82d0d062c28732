package xml

import (
	"bytes"

	"github.com/FocuswithJustin/hwpxkit/core/encoding"
)

// Bytes serializes the whole document without reformatting. Character data
// is written exactly as stored, so whitespace-sensitive runs survive a
// parse and serialize round trip.
func (t *Tree) Bytes() []byte {
	var buf bytes.Buffer
	t.writeNode(&buf, 0)
	return buf.Bytes()
}

// OuterXML serializes the subtree rooted at id.
func (t *Tree) OuterXML(id NodeID) string {
	var buf bytes.Buffer
	t.writeNode(&buf, id)
	return buf.String()
}

func (t *Tree) writeNode(w *bytes.Buffer, id NodeID) {
	n := &t.nodes[id]
	switch n.Kind {
	case KindDocument:
		for _, c := range n.Children {
			t.writeNode(w, c)
		}
	case KindDeclaration:
		w.WriteString("<?xml")
		for _, a := range n.Attrs {
			w.WriteString(" ")
			w.WriteString(a.Local)
			w.WriteString("=\"")
			w.WriteString(encoding.EscapeXMLAttr(a.Value))
			w.WriteString("\"")
		}
		w.WriteString("?>")
	case KindProcInst:
		w.WriteString("<?")
		w.WriteString(n.Local)
		if n.Data != "" {
			w.WriteString(" ")
			w.WriteString(n.Data)
		}
		w.WriteString("?>")
	case KindDirective:
		w.WriteString("<!")
		w.WriteString(n.Data)
		w.WriteString(">")
	case KindComment:
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->")
	case KindCData:
		w.WriteString("<![CDATA[")
		w.WriteString(n.Data)
		w.WriteString("]]>")
	case KindText:
		w.WriteString(encoding.EscapeXMLText(n.Data))
	case KindElement:
		t.writeStartTag(w, n)
		if len(n.Children) == 0 {
			w.WriteString("/>")
			return
		}
		w.WriteString(">")
		for _, c := range n.Children {
			t.writeNode(w, c)
		}
		w.WriteString("</")
		w.WriteString(n.QName())
		w.WriteString(">")
	}
}

func (t *Tree) writeStartTag(w *bytes.Buffer, n *Node) {
	w.WriteString("<")
	w.WriteString(n.QName())
	for _, a := range n.Attrs {
		w.WriteString(" ")
		w.WriteString(a.QName())
		w.WriteString("=\"")
		w.WriteString(encoding.EscapeXMLAttr(a.Value))
		w.WriteString("\"")
	}
}
