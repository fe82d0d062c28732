package encoding

import "testing"

func TestEscapeXMLText(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		"x^2 + 1":              "x^2 + 1",
		"a < b && b > c":       "a &lt; b &amp;&amp; b &gt; c",
		`he said "yes"`:        `he said "yes"`,
		"line one\r\nline two": "line one&#13;\nline two",
		"<hp:t>escaped</hp:t>": "&lt;hp:t&gt;escaped&lt;/hp:t&gt;",
	}
	for in, want := range cases {
		if got := EscapeXMLText(in); got != want {
			t.Errorf("EscapeXMLText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeXMLAttr(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"BinData/image1.png": "BinData/image1.png",
		`say "hi" & <go>`:    "say &quot;hi&quot; &amp; &lt;go&gt;",
		"a\tb\nc\rd":         "a&#9;b&#10;c&#13;d",
		"it's":               "it's",
	}
	for in, want := range cases {
		if got := EscapeXMLAttr(in); got != want {
			t.Errorf("EscapeXMLAttr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	// Conjoining jamo U+1112 U+1161 U+11AB compose to U+D55C.
	if got := NormalizeText("\u1112\u1161\u11ab"); got != "\ud55c" {
		t.Errorf("NormalizeText = %q", got)
	}
	if got := NormalizeText("1. plain"); got != "1. plain" {
		t.Errorf("NormalizeText changed ASCII: %q", got)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"", 10, ""},
		{"  1.  What\tis\n\nthis? ", 0, "1. What is this?"},
		{"가나다라마", 3, "가나다"},
		{"abc", 10, "abc"},
		{"한한", 1, "한"},
		{"   ", 5, ""},
	}
	for _, tt := range tests {
		if got := Preview(tt.in, tt.limit); got != tt.want {
			t.Errorf("Preview(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}
