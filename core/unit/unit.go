// Package unit defines the logical items found in a document: a numbered
// run of paragraphs together with the resources it references.
package unit

import (
	"github.com/FocuswithJustin/hwpxkit/core/encoding"
	"github.com/FocuswithJustin/hwpxkit/core/numbering"
	"github.com/FocuswithJustin/hwpxkit/core/xml"
)

// Marker records how a unit start was detected.
type Marker int

const (
	// MarkerText means the display number leads the paragraph text.
	MarkerText Marker = iota
	// MarkerIndex means an embedded auto-number or end-note marker carries
	// the number.
	MarkerIndex
)

func (m Marker) String() string {
	if m == MarkerIndex {
		return "index"
	}
	return "text"
}

// Unit is one detected item. Units are produced once by segmentation and
// never modified afterwards.
type Unit struct {
	ID        int    // 1-based position across the whole document
	Number    int    // number read from the marker
	Display   string // display number as written, e.g. "3." or "(3)"
	Notation  *numbering.Notation
	Marker    Marker
	MarkerRef xml.NodeID // hp:autoNum or hp:endNote carrying the number; None for text markers
	Text      string
	Section   int // index into the document's section list
	Nodes     []xml.NodeID
	Resources []string
	Equations []string
}

// FirstNode returns the unit's first paragraph.
func (u *Unit) FirstNode() xml.NodeID {
	if len(u.Nodes) == 0 {
		return xml.None
	}
	return u.Nodes[0]
}

// HasResource reports whether the unit references id.
func (u *Unit) HasResource(id string) bool {
	for _, r := range u.Resources {
		if r == id {
			return true
		}
	}
	return false
}

// Renumbered is a selected unit with its new position. The embedded Unit is
// shared with the original and must not be modified.
type Renumbered struct {
	*Unit
	NewNumber  int
	NewID      int // 0-based position in the output
	NewDisplay string
}

// Renumber derives the tagged copies for an ordered selection. The new
// display keeps the unit's own notation.
func Renumber(units []*Unit) []Renumbered {
	out := make([]Renumbered, len(units))
	for i, u := range units {
		n := i + 1
		notation := u.Notation
		if notation == nil {
			notation = numbering.ForDisplay(u.Display)
		}
		out[i] = Renumbered{
			Unit:       u,
			NewNumber:  n,
			NewID:      i,
			NewDisplay: notation.Format(n),
		}
	}
	return out
}

// PreviewLength is the number of runes kept in a summary preview.
const PreviewLength = 80

// Summary is the externally visible description of a unit.
type Summary struct {
	ID            int    `json:"id" yaml:"id"`
	Display       string `json:"display_number" yaml:"display_number"`
	Preview       string `json:"preview_text" yaml:"preview_text"`
	ResourceCount int    `json:"referenced_resource_count" yaml:"referenced_resource_count"`
}

// Summarize builds the summary of u.
func Summarize(u *Unit) Summary {
	return Summary{
		ID:            u.ID,
		Display:       u.Display,
		Preview:       encoding.Preview(u.Text, PreviewLength),
		ResourceCount: len(u.Resources),
	}
}

// Summaries summarizes units in order.
func Summaries(units []*Unit) []Summary {
	out := make([]Summary, len(units))
	for i, u := range units {
		out[i] = Summarize(u)
	}
	return out
}
