// Package hwpxtest builds synthetic HWPX documents for tests.
package hwpxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/FocuswithJustin/hwpxkit/core/encoding"
)

// Namespace declarations shared by the generated streams.
const (
	sectionNS = `xmlns:ha="http://www.hancom.co.kr/hwpml/2011/app" ` +
		`xmlns:hp="http://www.hancom.co.kr/hwpml/2011/paragraph" ` +
		`xmlns:hs="http://www.hancom.co.kr/hwpml/2011/section" ` +
		`xmlns:hc="http://www.hancom.co.kr/hwpml/2011/core" ` +
		`xmlns:hh="http://www.hancom.co.kr/hwpml/2011/head"`
	headerNS = `xmlns:hh="http://www.hancom.co.kr/hwpml/2011/head" ` +
		`xmlns:hc="http://www.hancom.co.kr/hwpml/2011/core"`
	xmlDecl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`
)

// Image is one binary payload. The manifest item id is ID; the payload is
// stored as BinData/<File>.<Ext> (File defaults to ID).
type Image struct {
	ID   string
	File string
	Ext  string
	Data []byte
}

// FileName returns the payload base name with extension.
func (img Image) FileName() string {
	f := img.File
	if f == "" {
		f = img.ID
	}
	ext := img.Ext
	if ext == "" {
		ext = "png"
	}
	return f + "." + ext
}

// Paragraph is one hp:p of a generated section.
type Paragraph struct {
	Text     string   // "\n" becomes hp:lineBreak, "\t" becomes hp:tab
	Images   []string // binaryItemIDRef values
	Equation string
	AutoNum  int    // when > 0 an hp:autoNum marker with this number is added
	NumType  string // numType of the marker, ENDNOTE when empty
	ParaPr   string
	CharPr   string
	Style    string
}

// Section is one generated section stream.
type Section struct {
	Paragraphs []Paragraph
	Raw        string // written verbatim instead of generated XML when set
	NoSecPr    bool   // omit hp:secPr from the first paragraph
	CarrierPic string // binaryItemIDRef placed in the layout run of the first paragraph
}

// Document is a complete synthetic archive.
type Document struct {
	Sections []Section
	Images   []Image
	// HeaderBinItems also declares the images in an hh:binDataList of the
	// header.
	HeaderBinItems bool
	// Header replaces the generated header stream when set.
	Header string
	// Extra members written verbatim.
	Extra map[string][]byte
}

// Question returns the paragraphs of one numbered item: a marker paragraph
// formatted with notation (a fmt verb such as "%d." or "(%d)") holding the
// given images, followed by one body paragraph.
func Question(n int, notation string, images ...string) []Paragraph {
	return []Paragraph{
		{Text: fmt.Sprintf(notation+" Question %d stem", n, n), Images: images},
		{Text: fmt.Sprintf("choices for question %d", n)},
	}
}

// Exam returns a one-section document with a front matter paragraph and n
// items numbered "1." to "n.", item k referencing image "image<k>".
func Exam(n int) Document {
	sec := Section{Paragraphs: []Paragraph{{Text: "Midterm exam"}}}
	var images []Image
	for k := 1; k <= n; k++ {
		id := fmt.Sprintf("image%d", k)
		sec.Paragraphs = append(sec.Paragraphs, Question(k, "%d.", id)...)
		images = append(images, Image{ID: id, Ext: "png", Data: []byte(fmt.Sprintf("PNG-%d", k))})
	}
	return Document{Sections: []Section{sec}, Images: images}
}

// SectionXML renders a section stream.
func SectionXML(sec Section) string {
	if sec.Raw != "" {
		return sec.Raw
	}
	var b strings.Builder
	b.WriteString(xmlDecl)
	b.WriteString(`<hs:sec ` + sectionNS + `>`)
	for i, p := range sec.Paragraphs {
		layout := ""
		if i == 0 && !sec.NoSecPr {
			layout = `<hp:run charPrIDRef="0"><hp:secPr id="" textDirection="HORIZONTAL" spaceColumns="1134">` +
				`<hp:pagePr landscape="WIDELY" width="59528" height="84188"/></hp:secPr>` +
				`<hp:ctrl><hp:colPr id="" type="NEWSPAPER" layout="LEFT" colCount="1"/></hp:ctrl>`
			if sec.CarrierPic != "" {
				layout += `<hp:pic id="9000"><hc:img binaryItemIDRef="` + sec.CarrierPic + `"/></hp:pic>`
			}
			layout += `</hp:run>`
		}
		writeParagraph(&b, i, p, layout)
	}
	if len(sec.Paragraphs) == 0 && !sec.NoSecPr {
		writeParagraph(&b, 0, Paragraph{}, `<hp:run charPrIDRef="0"><hp:secPr id=""/></hp:run>`)
	}
	b.WriteString(`</hs:sec>`)
	return b.String()
}

func writeParagraph(b *strings.Builder, i int, p Paragraph, layout string) {
	fmt.Fprintf(b, `<hp:p id="%d" paraPrIDRef="%s" styleIDRef="%s" pageBreak="0" columnBreak="0" merged="0">`,
		1000+i, or(p.ParaPr, "0"), or(p.Style, "0"))
	b.WriteString(layout)
	fmt.Fprintf(b, `<hp:run charPrIDRef="%s">`, or(p.CharPr, "0"))
	if p.AutoNum > 0 {
		fmt.Fprintf(b, `<hp:ctrl><hp:autoNum num="%d" numType="%s"><hp:autoNumFormat type="DIGIT"/></hp:autoNum></hp:ctrl>`,
			p.AutoNum, or(p.NumType, "ENDNOTE"))
	}
	if p.Text != "" {
		b.WriteString(`<hp:t>`)
		b.WriteString(runText(p.Text))
		b.WriteString(`</hp:t>`)
	}
	for j, img := range p.Images {
		fmt.Fprintf(b, `<hp:pic id="%d" instid="%d"><hp:sz width="100" height="100"/><hc:img binaryItemIDRef="%s" bright="0" contrast="0"/></hp:pic>`,
			5000+i*10+j, 6000+i*10+j, img)
	}
	if p.Equation != "" {
		fmt.Fprintf(b, `<hp:equation id="%d" version="Equation Version 60"><hp:script>%s</hp:script></hp:equation>`,
			7000+i, encoding.EscapeXMLText(p.Equation))
	}
	b.WriteString(`</hp:run></hp:p>`)
}

func runText(s string) string {
	var b strings.Builder
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			b.WriteString(`<hp:lineBreak/>`)
		}
		for j, part := range strings.Split(line, "\t") {
			if j > 0 {
				b.WriteString(`<hp:tab width="4000" leader="0" type="1"/>`)
			}
			b.WriteString(encoding.EscapeXMLText(part))
		}
	}
	return b.String()
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// HeaderXML renders a header stream with two definitions per style list.
func HeaderXML(d Document) string {
	if d.Header != "" {
		return d.Header
	}
	var b strings.Builder
	b.WriteString(xmlDecl)
	fmt.Fprintf(&b, `<hh:head %s version="1.4" secCnt="%d">`, headerNS, len(d.Sections))
	b.WriteString(`<hh:beginNum page="1" footnote="1" endnote="1" pic="1" tbl="1" equation="1"/>`)
	b.WriteString(`<hh:refList>`)
	b.WriteString(`<hh:fontfaces itemCnt="1"><hh:fontface lang="HANGUL" fontCnt="2">` +
		`<hh:font id="0" face="함초롬바탕" type="TTF" isEmbedded="0"/>` +
		`<hh:font id="1" face="함초롬돋움" type="TTF" isEmbedded="0"/></hh:fontface></hh:fontfaces>`)
	b.WriteString(`<hh:borderFills itemCnt="2">` +
		`<hh:borderFill id="1" threeD="0" shadow="0"/>` +
		`<hh:borderFill id="2" threeD="0" shadow="0"/></hh:borderFills>`)
	b.WriteString(`<hh:charProperties itemCnt="2">` +
		`<hh:charPr id="0" height="1000" textColor="#000000" borderFillIDRef="2"><hh:fontRef hangul="0" latin="0"/></hh:charPr>` +
		`<hh:charPr id="1" height="1200" textColor="#000000" borderFillIDRef="2"><hh:fontRef hangul="1" latin="1"/></hh:charPr>` +
		`</hh:charProperties>`)
	b.WriteString(`<hh:tabProperties itemCnt="1"><hh:tabPr id="0" autoTabLeft="0" autoTabRight="0"/></hh:tabProperties>`)
	b.WriteString(`<hh:numberings itemCnt="1"><hh:numbering id="1" start="0"/></hh:numberings>`)
	b.WriteString(`<hh:paraProperties itemCnt="2">` +
		`<hh:paraPr id="0" tabPrIDRef="0" condense="0"><hh:border borderFillIDRef="2"/></hh:paraPr>` +
		`<hh:paraPr id="1" tabPrIDRef="0" condense="0"><hh:heading type="NUMBER" idRef="1" level="0"/><hh:border borderFillIDRef="2"/></hh:paraPr>` +
		`</hh:paraProperties>`)
	b.WriteString(`<hh:styles itemCnt="2">` +
		`<hh:style id="0" type="PARA" name="바탕글" engName="Normal" paraPrIDRef="0" charPrIDRef="0" nextStyleIDRef="0" langID="1042" lockForm="0"/>` +
		`<hh:style id="1" type="PARA" name="본문" engName="Body" paraPrIDRef="1" charPrIDRef="1" nextStyleIDRef="1" langID="1042" lockForm="0"/>` +
		`</hh:styles>`)
	b.WriteString(`</hh:refList>`)
	if d.HeaderBinItems && len(d.Images) > 0 {
		fmt.Fprintf(&b, `<hh:binDataList itemCnt="%d">`, len(d.Images))
		for _, img := range d.Images {
			fmt.Fprintf(&b, `<hh:binItem id="%s" type="EMBEDDING" format="%s"/>`, img.ID, or(img.Ext, "png"))
		}
		b.WriteString(`</hh:binDataList>`)
	}
	b.WriteString(`</hh:head>`)
	return b.String()
}

// ManifestXML renders Contents/content.hpf.
func ManifestXML(d Document) string {
	var b strings.Builder
	b.WriteString(xmlDecl)
	b.WriteString(`<opf:package xmlns:opf="http://www.idpf.org/2007/opf/" xmlns:hpf="http://www.hancom.co.kr/schema/2011/hpf" version="" unique-identifier="" id="">`)
	b.WriteString(`<opf:metadata><opf:title/><opf:language>ko</opf:language></opf:metadata>`)
	b.WriteString(`<opf:manifest>`)
	b.WriteString(`<opf:item id="header" href="Contents/header.xml" media-type="application/xml"/>`)
	for _, img := range d.Images {
		fmt.Fprintf(&b, `<opf:item id="%s" href="BinData/%s" media-type="%s" isEmbeded="1"/>`,
			img.ID, img.FileName(), mediaType(or(img.Ext, "png")))
	}
	for i := range d.Sections {
		fmt.Fprintf(&b, `<opf:item id="section%d" href="Contents/section%d.xml" media-type="application/xml"/>`, i, i)
	}
	b.WriteString(`<opf:item id="settings" href="settings.xml" media-type="application/xml"/>`)
	b.WriteString(`</opf:manifest><opf:spine><opf:itemref idref="header" linear="yes"/>`)
	for i := range d.Sections {
		fmt.Fprintf(&b, `<opf:itemref idref="section%d" linear="yes"/>`, i)
	}
	b.WriteString(`</opf:spine></opf:package>`)
	return b.String()
}

func mediaType(ext string) string {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	}
	return "image/" + strings.ToLower(ext)
}

// Files returns every member of the document keyed by member name.
func (d Document) Files() map[string][]byte {
	files := map[string][]byte{
		"mimetype":               []byte("application/hwp+zip"),
		"version.xml":            []byte(xmlDecl + `<hv:HCFVersion xmlns:hv="http://www.hancom.co.kr/hwpml/2011/version" tagetApplication="WORDPROCESSOR" major="5" minor="1"/>`),
		"settings.xml":           []byte(xmlDecl + `<ha:HWPApplicationSetting xmlns:ha="http://www.hancom.co.kr/hwpml/2011/app"><ha:CaretPosition listIDRef="0" paraIDRef="0" pos="0"/></ha:HWPApplicationSetting>`),
		"META-INF/container.xml": []byte(xmlDecl + `<ocf:container xmlns:ocf="urn:oasis:names:tc:opendocument:xmlns:container"><ocf:rootfiles><ocf:rootfile full-path="Contents/content.hpf" media-type="application/hwpml-package+xml"/></ocf:rootfiles></ocf:container>`),
		"Contents/header.xml":    []byte(HeaderXML(d)),
		"Contents/content.hpf":   []byte(ManifestXML(d)),
	}
	for i, sec := range d.Sections {
		files[fmt.Sprintf("Contents/section%d.xml", i)] = []byte(SectionXML(sec))
	}
	for _, img := range d.Images {
		files["BinData/"+img.FileName()] = img.Data
	}
	for name, data := range d.Extra {
		files[name] = data
	}
	return files
}

// WriteZip writes files into a zip at path. Members are written in reverse
// name order with mimetype last, so readers cannot rely on input order.
func WriteZip(path string, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write(files[name]); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Write stores d as dir/<name> and returns the path.
func Write(tb testing.TB, dir, name string, d Document) string {
	tb.Helper()
	p := filepath.Join(dir, name)
	if err := WriteZip(p, d.Files()); err != nil {
		tb.Fatalf("writing fixture %s: %v", name, err)
	}
	return p
}

// ReadZip returns the members of the zip at path, in container order.
func ReadZip(tb testing.TB, path string) ([]string, map[string][]byte) {
	tb.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		tb.Fatalf("opening %s: %v", path, err)
	}
	defer zr.Close()
	var names []string
	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			tb.Fatalf("opening member %s: %v", f.Name, err)
		}
		var b bytes.Buffer
		if _, err := b.ReadFrom(rc); err != nil {
			rc.Close()
			tb.Fatalf("reading member %s: %v", f.Name, err)
		}
		rc.Close()
		names = append(names, f.Name)
		files[f.Name] = b.Bytes()
	}
	return names, files
}
