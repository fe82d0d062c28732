// Package resources maintains the binary resource table of an extracted
// document: the manifest items of Contents/content.hpf, the optional
// hh:binItem entries of the header and the payload files under BinData/.
//
// Units reference resources by binaryItemIDRef. How a reference is matched
// to a table entry is set by the id Policy: by manifest item id (attribute)
// or by payload base name (filename).
package resources

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/hwpx"
	"github.com/FocuswithJustin/hwpxkit/core/xml"
)

// Policy selects how binaryItemIDRef values resolve.
type Policy string

const (
	// PolicyAttribute matches references against manifest item ids.
	PolicyAttribute Policy = "attribute"
	// PolicyFilename matches references against payload base names.
	PolicyFilename Policy = "filename"
)

// ParsePolicy converts a configuration value. Empty means attribute.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAttribute:
		return PolicyAttribute, nil
	case PolicyFilename:
		return PolicyFilename, nil
	}
	return "", errors.NewValidation("resources.id_policy", fmt.Sprintf("unknown policy %q", s))
}

// DefaultPayloadExtensions are the BinData extensions subject to collection.
var DefaultPayloadExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".wmf", ".emf", ".svg"}

const (
	manifestItems = "//*[local-name()='manifest']/*[local-name()='item']"
	headerItems   = "//*[local-name()='binDataList']/*[local-name()='binItem']"
)

// Item is one binary resource.
type Item struct {
	Key       string // value units reference under the table's policy
	ID        string // manifest item id, or header binItem id
	Href      string // member name of the payload, e.g. BinData/image1.png
	MediaType string

	manifest xml.NodeID
	header   xml.NodeID
}

// Base returns the payload file name without extension.
func (it Item) Base() string {
	b := path.Base(it.Href)
	return strings.TrimSuffix(b, path.Ext(b))
}

// Table is the resource table of one working tree.
type Table struct {
	Policy   Policy
	Manifest *xml.Tree // nil when the archive has no content.hpf
	Header   *xml.Tree

	items []Item
	byKey map[string]int
}

// Load builds the table from a working tree. The header must parse; a
// missing manifest is tolerated and the payload files under BinData/ are
// registered by base name instead.
func Load(wt *hwpx.WorkingTree, policy Policy) (*Table, error) {
	data, err := os.ReadFile(wt.HeaderPath())
	if err != nil {
		return nil, errors.NewIO("read", hwpx.HeaderPath, err)
	}
	header, err := xml.Parse(data)
	if err != nil {
		return nil, errors.NewInputFormat(wt.Dir, "header stream is not well-formed", err)
	}

	var manifest *xml.Tree
	data, err = os.ReadFile(wt.ManifestPath())
	switch {
	case err == nil:
		manifest, err = xml.Parse(data)
		if err != nil {
			return nil, errors.NewInputFormat(wt.Dir, "manifest is not well-formed", err)
		}
	case !os.IsNotExist(err):
		return nil, errors.NewIO("read", hwpx.ManifestPath, err)
	}

	return New(manifest, header, policy, wt.BinDataPath())
}

// New builds a table from parsed streams. binDir is consulted only when
// manifest is nil.
func New(manifest, header *xml.Tree, policy Policy, binDir string) (*Table, error) {
	if policy == "" {
		policy = PolicyAttribute
	}
	t := &Table{Policy: policy, Manifest: manifest, Header: header, byKey: map[string]int{}}

	if manifest != nil {
		ids, err := manifest.Select(manifest.Document(), manifestItems, nil)
		if err != nil {
			return nil, err
		}
		for _, n := range ids {
			href := manifest.AttrOr(n, "href", "")
			if !strings.HasPrefix(href, hwpx.BinDataDir+"/") {
				continue
			}
			t.add(Item{
				ID:        manifest.AttrOr(n, "id", ""),
				Href:      href,
				MediaType: manifest.AttrOr(n, "media-type", ""),
				manifest:  n,
				header:    xml.None,
			})
		}
	} else if entries, err := os.ReadDir(binDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			t.add(Item{
				ID:       strings.TrimSuffix(name, filepath.Ext(name)),
				Href:     hwpx.BinDataDir + "/" + name,
				manifest: xml.None,
				header:   xml.None,
			})
		}
	}

	if header != nil {
		ids, err := header.Select(header.Document(), headerItems, nil)
		if err != nil {
			return nil, err
		}
		for _, n := range ids {
			id := header.AttrOr(n, "id", "")
			if i, ok := t.byID(id); ok {
				t.items[i].header = n
				continue
			}
			t.add(Item{ID: id, manifest: xml.None, header: n})
		}
	}
	return t, nil
}

func (t *Table) add(it Item) {
	it.Key = it.ID
	if t.Policy == PolicyFilename && it.Href != "" {
		it.Key = it.Base()
	}
	if it.Key == "" {
		return
	}
	if _, dup := t.byKey[it.Key]; dup {
		return
	}
	t.byKey[it.Key] = len(t.items)
	t.items = append(t.items, it)
}

func (t *Table) byID(id string) (int, bool) {
	for i, it := range t.items {
		if it.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Len returns the number of resources.
func (t *Table) Len() int {
	return len(t.items)
}

// Items returns the resources in manifest order.
func (t *Table) Items() []Item {
	return append([]Item(nil), t.items...)
}

// Lookup resolves a binaryItemIDRef.
func (t *Table) Lookup(ref string) (Item, bool) {
	i, ok := t.byKey[ref]
	if !ok {
		return Item{}, false
	}
	return t.items[i], true
}

// Resolve splits refs into known and dangling references, keeping order.
func (t *Table) Resolve(refs []string) (known, dangling []string) {
	for _, r := range refs {
		if _, ok := t.byKey[r]; ok {
			known = append(known, r)
		} else {
			dangling = append(dangling, r)
		}
	}
	return known, dangling
}

// Clone returns a table over deep copies of the streams, for editing.
func (t *Table) Clone() *Table {
	cp := &Table{
		Policy: t.Policy,
		items:  append([]Item(nil), t.items...),
		byKey:  make(map[string]int, len(t.byKey)),
	}
	for k, v := range t.byKey {
		cp.byKey[k] = v
	}
	if t.Manifest != nil {
		cp.Manifest = t.Manifest.Clone()
	}
	if t.Header != nil {
		cp.Header = t.Header.Clone()
	}
	return cp
}

// GCResult reports a collection.
type GCResult struct {
	Kept    []string // keys still in the table
	Removed []string // keys dropped from the table
	Files   []string // payload members deleted from BinData/
}

// Collect removes every resource whose key is not in keep: its manifest item,
// its header binItem and its payload files. Payload files are matched by base
// name across exts (DefaultPayloadExtensions when nil); files with other
// extensions are left alone. The header binDataList count is updated. The
// edited streams are written back with Save.
func (t *Table) Collect(wt *hwpx.WorkingTree, keep map[string]bool, exts []string) (GCResult, error) {
	if exts == nil {
		exts = DefaultPayloadExtensions
	}
	var res GCResult
	keptBases := map[string]bool{}
	var items []Item
	byKey := map[string]int{}
	for _, it := range t.items {
		if keep[it.Key] {
			res.Kept = append(res.Kept, it.Key)
			keptBases[it.Base()] = true
			keptBases[it.Key] = true
			byKey[it.Key] = len(items)
			items = append(items, it)
			continue
		}
		res.Removed = append(res.Removed, it.Key)
		if it.manifest != xml.None && t.Manifest != nil {
			t.Manifest.Detach(it.manifest)
		}
		if it.header != xml.None && t.Header != nil {
			t.Header.Detach(it.header)
		}
	}
	t.items, t.byKey = items, byKey

	if t.Header != nil {
		if list := t.Header.FirstChildElement(t.Header.Root(), "binDataList"); list != xml.None {
			hwpx.UpdateCounts(t.Header, list)
		}
	}

	files, err := collectPayloads(wt, keptBases, exts)
	if err != nil {
		return res, err
	}
	res.Files = files
	return res, nil
}

func collectPayloads(wt *hwpx.WorkingTree, keptBases map[string]bool, exts []string) ([]string, error) {
	entries, err := os.ReadDir(wt.BinDataPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIO("read", hwpx.BinDataDir, err)
	}
	collectable := make(map[string]bool, len(exts))
	for _, e := range exts {
		collectable[strings.ToLower(e)] = true
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !collectable[strings.ToLower(ext)] || keptBases[strings.TrimSuffix(name, ext)] {
			continue
		}
		if err := os.Remove(filepath.Join(wt.BinDataPath(), name)); err != nil {
			return removed, errors.NewIO("remove", hwpx.BinDataDir+"/"+name, err)
		}
		removed = append(removed, hwpx.BinDataDir+"/"+name)
	}
	sort.Strings(removed)
	return removed, nil
}

// Save writes the header and manifest streams into wt.
func (t *Table) Save(wt *hwpx.WorkingTree) error {
	if t.Header != nil {
		if err := os.WriteFile(wt.HeaderPath(), t.Header.Bytes(), 0644); err != nil {
			return errors.NewIO("write", hwpx.HeaderPath, err)
		}
	}
	if t.Manifest != nil {
		if err := os.WriteFile(wt.ManifestPath(), t.Manifest.Bytes(), 0644); err != nil {
			return errors.NewIO("write", hwpx.ManifestPath, err)
		}
	}
	return nil
}
