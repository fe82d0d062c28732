package engine

import (
	"context"

	"github.com/FocuswithJustin/hwpxkit/core/hwpx"
	"github.com/FocuswithJustin/hwpxkit/internal/journal"
	"github.com/FocuswithJustin/hwpxkit/internal/session"
)

// Inspection describes the structure of one archive.
type Inspection struct {
	Path      string         `json:"path" yaml:"path"`
	Members   []hwpx.Member  `json:"members" yaml:"members"`
	Sections  []SectionInfo  `json:"sections" yaml:"sections"`
	Resources []ResourceInfo `json:"resources" yaml:"resources"`
	Warnings  []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// SectionInfo is one section stream and the units found in it.
type SectionInfo struct {
	Name  string `json:"name" yaml:"name"`
	Units int    `json:"units" yaml:"units"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ResourceInfo is one entry of the resource table with the number of units
// referencing it.
type ResourceInfo struct {
	Key       string `json:"key" yaml:"key"`
	ID        string `json:"id" yaml:"id"`
	Href      string `json:"href,omitempty" yaml:"href,omitempty"`
	MediaType string `json:"media_type,omitempty" yaml:"media_type,omitempty"`
	Units     int    `json:"units" yaml:"units"`
}

// Inspect lists the members, sections and resource table of the document
// at path.
func (e *Engine) Inspect(ctx context.Context, sess *session.Session, path string) (*Inspection, error) {
	ctx, unlock, err := enter(ctx, sess)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r := e.begin(ctx, sess, "inspect", path, "")
	ctx = r.ctx
	src, err := e.source(ctx, sess, path)
	if err != nil {
		r.finish(journal.Outcome{Err: err}, 0)
		return nil, err
	}

	in := &Inspection{Path: path, Members: src.Archive.Members}
	perSection := map[int]int{}
	refs := map[string]int{}
	for _, u := range src.Units {
		perSection[u.Section]++
		for _, ref := range u.Resources {
			refs[ref]++
		}
	}
	for _, sec := range src.Sections {
		si := SectionInfo{Name: sec.Name, Units: perSection[sec.Index]}
		if !sec.OK() {
			si.Error = sec.Err.Error()
		}
		in.Sections = append(in.Sections, si)
	}
	for _, it := range src.Resources.Items() {
		in.Resources = append(in.Resources, ResourceInfo{
			Key: it.Key, ID: it.ID, Href: it.Href, MediaType: it.MediaType, Units: refs[it.Key],
		})
	}
	for _, w := range src.Warnings {
		in.Warnings = append(in.Warnings, w.Error())
	}
	r.finish(journal.Outcome{Units: len(src.Units)}, len(src.Warnings))
	return in, nil
}
