// Package encoding holds the text escaping and normalization shared by the
// XML writer and the unit summaries.
package encoding

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#13;",
)

// EscapeXMLText escapes only the basic XML entities for text content.
// Carriage returns are written as character references so they survive a
// parse round trip.
func EscapeXMLText(s string) string {
	return textEscaper.Replace(s)
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"\t", "&#9;",
	"\n", "&#10;",
	"\r", "&#13;",
)

// EscapeXMLAttr escapes text for use in double-quoted XML attributes.
// Whitespace control characters are written as character references because
// attribute value normalization would otherwise turn them into spaces.
func EscapeXMLAttr(s string) string {
	return attrEscaper.Replace(s)
}

// NormalizeText returns s in Unicode normalization form C.
// Documents produced by different input methods mix precomposed and
// decomposed Hangul; matching and previews work on the composed form.
func NormalizeText(s string) string {
	return norm.NFC.String(s)
}

// Preview collapses whitespace runs to single spaces, trims the result and
// truncates it to at most limit runes. A limit <= 0 disables truncation.
func Preview(s string, limit int) string {
	s = NormalizeText(s)
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	out := b.String()
	if limit > 0 {
		runes := []rune(out)
		if len(runes) > limit {
			out = string(runes[:limit])
		}
	}
	return out
}
