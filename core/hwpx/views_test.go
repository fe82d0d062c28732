package hwpx

import (
	"reflect"
	"testing"
)

const viewsDoc = `<hs:sec xmlns:hs="` + NSSection + `" xmlns:hp="` + NSParagraph + `" xmlns:hc="` + NSCore + `">` +
	`<hp:p id="7" paraPrIDRef="2" styleIDRef="1">` +
	`<hp:run><hp:ctrl><hp:autoNum num="3" numType="ENDNOTE"/></hp:ctrl><hp:ctrl><hp:autoNum num="x" numType="PAGE"/></hp:ctrl></hp:run>` +
	`<hp:run><hp:t>line one<hp:lineBreak/>line<hp:tab/>two</hp:t></hp:run>` +
	`<hp:run><hp:pic><hc:img binaryItemIDRef="image1"/></hp:pic><hp:pic><hc:img binaryItemIDRef=""/></hp:pic></hp:run>` +
	`<hp:run><hp:equation><hp:script> x^2 </hp:script></hp:equation><hp:equation><hp:script>  </hp:script></hp:equation></hp:run>` +
	`<hp:run><hp:endNote number="4"/></hp:run>` +
	`</hp:p>` +
	`<hp:p id="8"><hp:run><hp:t>   </hp:t></hp:run></hp:p>` +
	`</hs:sec>`

func TestViews(t *testing.T) {
	tree := mustParseHeader(t, viewsDoc)
	ps := tree.ChildElements(tree.Root(), "p")
	p := ps[0]

	para, ok := ParagraphOf(tree, p)
	if !ok || para.ID != "7" || para.ParaPrIDRef != "2" || para.StyleIDRef != "1" {
		t.Errorf("ParagraphOf = %+v, %v", para, ok)
	}
	if _, ok := ParagraphOf(tree, tree.Root()); ok {
		t.Error("ParagraphOf accepted a non-paragraph")
	}

	if got := ParagraphText(tree, p); got != "line one\nline\ttwo" {
		t.Errorf("ParagraphText = %q", got)
	}

	var refs []string
	for _, pic := range Pictures(tree, p) {
		refs = append(refs, pic.BinaryItemIDRef)
	}
	if !reflect.DeepEqual(refs, []string{"image1"}) {
		t.Errorf("Pictures = %v", refs)
	}

	nums := AutoNums(tree, p)
	if len(nums) != 1 || nums[0].Num != 3 || nums[0].NumType != "ENDNOTE" {
		t.Errorf("AutoNums = %+v", nums)
	}
	notes := EndNotes(tree, p)
	if len(notes) != 1 || notes[0].Number != 4 {
		t.Errorf("EndNotes = %+v", notes)
	}
	if got := Equations(tree, p); !reflect.DeepEqual(got, []string{"x^2"}) {
		t.Errorf("Equations = %v", got)
	}

	if !HasVisualContent(tree, p) {
		t.Error("first paragraph has content")
	}
	if HasVisualContent(tree, ps[1]) {
		t.Error("blank paragraph reported as visual")
	}
	if !NullRefs["4294967295"] || NullRefs["1"] {
		t.Error("NullRefs mismatch")
	}
}
