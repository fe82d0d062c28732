package xml

import (
	"strings"
	"testing"
)

const sectionDoc = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<hs:sec xmlns:hs="http://www.hancom.co.kr/hwpml/2011/section" xmlns:hp="http://www.hancom.co.kr/hwpml/2011/paragraph"><hp:p id="1" paraPrIDRef="0"><hp:run charPrIDRef="3"><hp:t>1. first  &amp; spaced</hp:t></hp:run></hp:p><hp:p id="2"><hp:run><hp:t>second</hp:t></hp:run></hp:p></hs:sec>`

var testNS = map[string]string{
	"hs": "http://www.hancom.co.kr/hwpml/2011/section",
	"hp": "http://www.hancom.co.kr/hwpml/2011/paragraph",
}

func mustParse(t *testing.T, s string) *Tree {
	t.Helper()
	tree, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return tree
}

// TestParseValidXML verifies parsing of well-formed XML.
func TestParseValidXML(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	root := tree.Root()
	if root == None {
		t.Fatal("Root returned None")
	}
	n := tree.Node(root)
	if n.QName() != "hs:sec" {
		t.Errorf("root = %q, want hs:sec", n.QName())
	}
	if n.Space != testNS["hs"] {
		t.Errorf("root namespace = %q", n.Space)
	}
	if got := len(tree.ChildElements(root, "p")); got != 2 {
		t.Errorf("paragraphs = %d, want 2", got)
	}
}

// TestParseInvalidXML verifies error handling for malformed XML.
func TestParseInvalidXML(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"unclosed tag", "<root><element></root>"},
		{"mismatched tags", "<root></other>"},
		{"invalid chars", "<root>\x00</root>"},
		{"undeclared prefix", "<hp:p>x</hp:p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.xml)); err == nil {
				t.Error("Parse should fail for invalid XML")
			}
		})
	}
}

func TestRoundTripPreservesContent(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	out := string(tree.Bytes())
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`,
		`xmlns:hp="http://www.hancom.co.kr/hwpml/2011/paragraph"`,
		`<hp:t>1. first  &amp; spaced</hp:t>`,
		`<hp:p id="2">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	again := mustParse(t, out)
	if string(again.Bytes()) != out {
		t.Error("second round trip changed the document")
	}
}

func TestSerializeEscapesAttributes(t *testing.T) {
	tree := mustParse(t, `<root/>`)
	root := tree.Root()
	tree.SetAttr(root, "name", "a\"b<c\nd")
	got := tree.OuterXML(root)
	want := `<root name="a&quot;b&lt;c&#10;d"/>`
	if got != want {
		t.Errorf("OuterXML = %q, want %q", got, want)
	}
}

func TestText(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	p := tree.ChildElements(tree.Root(), "p")[0]
	if got := tree.Text(p); got != "1. first  & spaced" {
		t.Errorf("Text = %q", got)
	}
}

func TestAttrSkipsNamespaceDeclarations(t *testing.T) {
	tree := mustParse(t, `<a xmlns="urn:x" xmlns:b="urn:b" b:k="1" k="2"/>`)
	root := tree.Root()
	if v, ok := tree.Attr(root, "xmlns"); ok {
		t.Errorf("Attr(xmlns) = %q, want absent", v)
	}
	if v := tree.AttrOr(root, "k", ""); v != "1" {
		t.Errorf("Attr(k) = %q, want first match 1", v)
	}
	ns := tree.Namespaces()
	if ns[""] != "urn:x" || ns["b"] != "urn:b" {
		t.Errorf("Namespaces = %v", ns)
	}
}

func TestDetachAndInsert(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	root := tree.Root()
	ps := tree.ChildElements(root, "p")

	tree.Detach(ps[0])
	if tree.Parent(ps[0]) != None {
		t.Error("detached node still has a parent")
	}
	if got := len(tree.ChildElements(root, "p")); got != 1 {
		t.Fatalf("paragraphs after detach = %d, want 1", got)
	}

	tree.InsertBefore(ps[1], ps[0])
	got := tree.ChildElements(root, "p")
	if len(got) != 2 || got[0] != ps[0] || got[1] != ps[1] {
		t.Errorf("order after InsertBefore = %v, want %v", got, ps)
	}

	tree.AppendChild(root, ps[0])
	got = tree.ChildElements(root, "p")
	if got[0] != ps[1] || got[1] != ps[0] {
		t.Errorf("order after AppendChild = %v", got)
	}
}

func TestSetChildrenAndRemoveAttr(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	root := tree.Root()
	ps := tree.ChildElements(root, "p")
	tree.SetChildren(root, []NodeID{ps[1]})
	if tree.Parent(ps[0]) != None {
		t.Error("dropped child still attached")
	}
	if !tree.RemoveAttr(ps[1], "id") {
		t.Error("RemoveAttr reported missing id")
	}
	if tree.RemoveAttr(ps[1], "id") {
		t.Error("RemoveAttr removed id twice")
	}
	out := string(tree.Bytes())
	if strings.Contains(out, "first") || strings.Contains(out, `id="2"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	cp := tree.Clone()
	root := cp.Root()
	p := cp.ChildElements(root, "p")[0]
	cp.SetAttr(p, "id", "99")
	cp.Detach(p)

	if v := tree.AttrOr(p, "id", ""); v != "1" {
		t.Errorf("original id changed to %q", v)
	}
	if tree.Parent(p) == None {
		t.Error("original paragraph detached by clone edit")
	}
	if cp.Len() != tree.Len() {
		t.Errorf("clone length %d, want %d", cp.Len(), tree.Len())
	}
}

func TestImportCopiesSubtree(t *testing.T) {
	src := mustParse(t, sectionDoc)
	dst := mustParse(t, `<hs:sec xmlns:hs="http://www.hancom.co.kr/hwpml/2011/section" xmlns:hp="http://www.hancom.co.kr/hwpml/2011/paragraph"/>`)
	p := src.ChildElements(src.Root(), "p")[1]

	cp := dst.Import(src, p)
	dst.AppendChild(dst.Root(), cp)
	want := `<hp:p id="2"><hp:run><hp:t>second</hp:t></hp:run></hp:p>`
	if got := dst.OuterXML(cp); got != want {
		t.Errorf("imported = %q, want %q", got, want)
	}

	dup := src.CopySubtree(p)
	if src.Parent(dup) != None {
		t.Error("CopySubtree result should be detached")
	}
	if src.OuterXML(dup) != src.OuterXML(p) {
		t.Error("CopySubtree differs from source")
	}
}

func TestNewElement(t *testing.T) {
	tree := NewTree()
	el := tree.NewElement("hs", "sec", testNS["hs"], Attr{Prefix: "xmlns", Local: "hs", Value: testNS["hs"]})
	tree.AppendChild(tree.Document(), el)
	txt := tree.NewText("a<b")
	tree.AppendChild(el, txt)
	want := `<hs:sec xmlns:hs="http://www.hancom.co.kr/hwpml/2011/section">a&lt;b</hs:sec>`
	if got := string(tree.Bytes()); got != want {
		t.Errorf("Bytes = %q, want %q", got, want)
	}
}

func TestWalkAndDescendants(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	ts := tree.Descendants(tree.Root(), "t")
	if len(ts) != 2 {
		t.Fatalf("Descendants(t) = %d, want 2", len(ts))
	}
	if tree.Ancestor(ts[0], "p") == None {
		t.Error("Ancestor(p) not found")
	}
	if !tree.HasDescendant(tree.Root(), "run") {
		t.Error("HasDescendant(run) = false")
	}
	if tree.HasDescendant(tree.Root(), "pic") {
		t.Error("HasDescendant(pic) = true")
	}

	count := 0
	tree.Walk(tree.Root(), func(id NodeID) bool {
		count++
		return !tree.IsElement(id, "p")
	})
	if count != 3 {
		t.Errorf("Walk visited %d nodes with pruning, want 3", count)
	}
}

func TestXPathQuery(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	nodes, err := tree.Select(tree.Document(), "//hp:p", testNS)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(nodes) != 2 {
		t.Errorf("Expected 2 paragraphs, got %d", len(nodes))
	}
}

func TestXPathQueryAttribute(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	id, err := tree.SelectFirst(tree.Document(), "//hp:p[@id='2']", testNS)
	if err != nil {
		t.Fatalf("SelectFirst failed: %v", err)
	}
	if id == None {
		t.Fatal("paragraph 2 not found")
	}
	if got := tree.Text(id); got != "second" {
		t.Errorf("Text = %q", got)
	}

	attrs, err := tree.Select(tree.Document(), "//hp:run/@charPrIDRef", testNS)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(attrs) != 1 || !tree.IsElement(attrs[0], "run") {
		t.Errorf("attribute match should resolve to its element, got %v", attrs)
	}
}

func TestXPathIgnoresNamespaceAttributes(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	nodes, err := tree.Select(tree.Document(), "/hs:sec[@*]", testNS)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("namespace declarations matched as attributes")
	}
}

func TestXPathRelative(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	p := tree.ChildElements(tree.Root(), "p")[0]
	ts, err := tree.Select(p, ".//hp:t", testNS)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(ts) != 1 {
		t.Errorf("relative select = %d nodes, want 1", len(ts))
	}
}

func TestXPathInvalidExpression(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	if _, err := tree.Select(tree.Document(), "//[invalid", testNS); err == nil {
		t.Error("Invalid XPath should fail")
	}
	if _, err := tree.SelectFirst(tree.Document(), "//[invalid", testNS); err == nil {
		t.Error("Invalid XPath should fail")
	}
}

func TestXPathFirstNotFound(t *testing.T) {
	tree := mustParse(t, sectionDoc)
	id, err := tree.SelectFirst(tree.Document(), "//hp:pic", testNS)
	if err != nil {
		t.Fatalf("SelectFirst failed: %v", err)
	}
	if id != None {
		t.Errorf("SelectFirst = %d, want None", id)
	}
}

func TestKindString(t *testing.T) {
	if KindElement.String() != "element" {
		t.Errorf("KindElement.String() = %q", KindElement.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("unknown kind = %q", Kind(99).String())
	}
}
