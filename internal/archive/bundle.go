// Package archive writes and reads diagnostics bundles: compressed tar
// files holding the members that made a run fail, plus a YAML manifest.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestName is the bundle member describing the bundle.
const ManifestName = "manifest.yaml"

// ErrNoMember is returned by ReadMember for a name the bundle lacks.
var ErrNoMember = errors.New("bundle member not found")

// Manifest describes a diagnostics bundle.
type Manifest struct {
	BuildID   string    `json:"build_id" yaml:"build_id"`
	Source    string    `json:"source" yaml:"source"`
	Reason    string    `json:"reason" yaml:"reason"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Members   []string  `json:"members" yaml:"members"`
}

// BundleInfo is one bundle found by ListBundles.
type BundleInfo struct {
	Path     string   `json:"path" yaml:"path"`
	Size     int64    `json:"size" yaml:"size"`
	Manifest Manifest `json:"manifest" yaml:"manifest"`
}

// BundleID strips the bundle suffix from a file name.
func BundleID(filename string) string {
	name := filepath.Base(filename)
	if c, ok := compressionOf(name); ok {
		return strings.TrimSuffix(name, c.Ext())
	}
	return name
}

// WriteBundle stores entries and their manifest in dir/<build-id><ext>
// and returns the bundle path. Entry names are recorded in m.Members.
func WriteBundle(dir string, c Compression, m Manifest, entries []Entry) (string, error) {
	if m.BuildID == "" {
		return "", fmt.Errorf("bundle: empty build id")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Members = make([]string, 0, len(entries))
	for _, e := range entries {
		m.Members = append(m.Members, e.Name)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("bundle manifest: %w", err)
	}

	dst := filepath.Join(dir, m.BuildID+c.Ext())
	all := append([]Entry{{Name: ManifestName, Data: data}}, entries...)
	if err := writeTar(dst, m.BuildID, all); err != nil {
		return "", err
	}
	return dst, nil
}

// ReadMember returns the content of member name of the bundle at path.
func ReadMember(path, name string) ([]byte, error) {
	var data []byte
	found := false
	err := walkTar(path, func(member string, r io.Reader) (bool, error) {
		if member != name {
			return true, nil
		}
		found = true
		var err error
		data, err = io.ReadAll(r)
		return false, err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s in %s: %w", name, filepath.Base(path), ErrNoMember)
	}
	return data, nil
}

// ReadManifest loads the manifest of the bundle at path.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := ReadMember(path, ManifestName)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("bundle manifest %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// ListBundles returns the bundles in dir, newest first. Unreadable bundles
// are listed with what their file name and mtime provide. A missing dir
// yields no bundles.
func ListBundles(dir string) ([]BundleInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []BundleInfo
	for _, de := range entries {
		if _, ok := compressionOf(de.Name()); !ok || !de.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, de.Name())
		info, err := de.Info()
		if err != nil {
			continue
		}
		m, err := ReadManifest(p)
		if err != nil {
			m = Manifest{BuildID: BundleID(p), Reason: "unreadable: " + err.Error(), CreatedAt: info.ModTime().UTC()}
		}
		out = append(out, BundleInfo{Path: p, Size: info.Size(), Manifest: m})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Manifest.CreatedAt.After(out[j].Manifest.CreatedAt)
	})
	return out, nil
}

// FindBundle returns the bundle in dir whose build id starts with prefix.
// The prefix must identify exactly one bundle.
func FindBundle(dir, prefix string) (BundleInfo, error) {
	all, err := ListBundles(dir)
	if err != nil {
		return BundleInfo{}, err
	}
	var hits []BundleInfo
	for _, b := range all {
		if strings.HasPrefix(BundleID(b.Path), prefix) {
			hits = append(hits, b)
		}
	}
	switch len(hits) {
	case 0:
		return BundleInfo{}, fmt.Errorf("no bundle matches %q: %w", prefix, os.ErrNotExist)
	case 1:
		return hits[0], nil
	}
	return BundleInfo{}, fmt.Errorf("%d bundles match %q", len(hits), prefix)
}
