// Package numbering parses display-number notations such as "{n}.",
// "({n})" and "[{n}]" and matches them at the start of paragraph text.
//
// Notations are configuration data: a template is literal text around a
// single {n} placeholder, and an ordered list of templates forms a Matcher
// where the first matching template wins.
package numbering

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/hwpxkit/core/encoding"
	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Built-in templates.
const (
	Dot     = "{n}."
	Paren   = "({n})"
	Bracket = "[{n}]"
)

// DefaultTemplates is the matcher order used when none is configured.
var DefaultTemplates = []string{Dot, Paren, Bracket}

// templateGrammar is the participle grammar for notation templates.
type templateGrammar struct {
	Prefix      string `parser:"@Text?"`
	Placeholder string `parser:"@Placeholder"`
	Suffix      string `parser:"@Text?"`
}

var templateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Placeholder", Pattern: `\{n\}`},
	{Name: "Text", Pattern: `[^{}]+`},
})

var templateParser = participle.MustBuild[templateGrammar](
	participle.Lexer(templateLexer),
)

// Notation is one parsed template.
type Notation struct {
	Template string
	Prefix   string
	Suffix   string
	re       *regexp.Regexp
}

// Parse parses a template such as "({n})".
func Parse(template string) (*Notation, error) {
	g, err := templateParser.ParseString("", template)
	if err != nil {
		return nil, errors.NewParse("notation", "", fmt.Sprintf("%q: %v", template, err))
	}
	if strings.TrimSpace(g.Prefix+g.Suffix) == "" {
		return nil, errors.NewParse("notation", "", fmt.Sprintf("%q: placeholder needs surrounding punctuation", template))
	}
	pattern := `^\s*` + regexp.QuoteMeta(g.Prefix) + `(\d+)` + regexp.QuoteMeta(g.Suffix)
	return &Notation{
		Template: template,
		Prefix:   g.Prefix,
		Suffix:   g.Suffix,
		re:       regexp.MustCompile(pattern),
	}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(template string) *Notation {
	n, err := Parse(template)
	if err != nil {
		panic(err)
	}
	return n
}

// Format renders num in this notation.
func (n *Notation) Format(num int) string {
	return n.Prefix + strconv.Itoa(num) + n.Suffix
}

func (n *Notation) String() string {
	return n.Template
}

// Match is a successful start-of-text match.
type Match struct {
	Number  int
	Display string // matched marker with surrounding whitespace trimmed
}

// Match tests text against the notation. Only a match anchored at the start
// of the text (after leading whitespace) counts.
func (n *Notation) Match(text string) (Match, bool) {
	m := n.re.FindStringSubmatch(encoding.NormalizeText(text))
	if m == nil {
		return Match{}, false
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return Match{}, false
	}
	return Match{Number: num, Display: strings.TrimSpace(m[0])}, true
}

// Matcher is an ordered notation list; earlier entries take priority.
type Matcher []*Notation

// NewMatcher parses templates in priority order. An empty list yields the
// default matcher.
func NewMatcher(templates []string) (Matcher, error) {
	if len(templates) == 0 {
		templates = DefaultTemplates
	}
	m := make(Matcher, 0, len(templates))
	for _, t := range templates {
		n, err := Parse(t)
		if err != nil {
			return nil, err
		}
		m = append(m, n)
	}
	return m, nil
}

// Default returns the built-in matcher.
func Default() Matcher {
	m, _ := NewMatcher(nil)
	return m
}

// Match returns the first notation matching text.
func (m Matcher) Match(text string) (*Notation, Match, bool) {
	for _, n := range m {
		if match, ok := n.Match(text); ok {
			return n, match, true
		}
	}
	return nil, Match{}, false
}

// Primary returns the highest priority notation.
func (m Matcher) Primary() *Notation {
	if len(m) == 0 {
		return MustParse(Dot)
	}
	return m[0]
}

// ForDisplay classifies an existing display number: a "."-suffixed number
// maps to "{n}.", a parenthesized one to "({n})", a bracketed one to
// "[{n}]", anything else to "{n}.".
func ForDisplay(display string) *Notation {
	d := strings.TrimSpace(display)
	switch {
	case strings.HasSuffix(d, "."):
		return dot
	case strings.HasPrefix(d, "(") && strings.HasSuffix(d, ")"):
		return paren
	case strings.HasPrefix(d, "[") && strings.HasSuffix(d, "]"):
		return bracket
	}
	return dot
}

var (
	dot     = MustParse(Dot)
	paren   = MustParse(Paren)
	bracket = MustParse(Bracket)
)
