// Package hwpx opens, extracts and repackages HWPX documents.
//
// An HWPX file is a zip container holding one header stream
// (Contents/header.xml) with the document-wide style and resource tables, one
// or more section streams (Contents/section<N>.xml) with the paragraph
// content, a package manifest (Contents/content.hpf) and binary payloads
// under BinData/.
package hwpx

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/internal/fileutil"
	"github.com/FocuswithJustin/hwpxkit/internal/validation"
)

// Well-known member paths.
const (
	MimetypePath = "mimetype"
	HeaderPath   = "Contents/header.xml"
	ManifestPath = "Contents/content.hpf"
	BinDataDir   = "BinData"

	// MimeType is the content of the mimetype member.
	MimeType = "application/hwp+zip"
)

// OWPML namespace URIs.
const (
	NSParagraph = "http://www.hancom.co.kr/hwpml/2011/paragraph"
	NSSection   = "http://www.hancom.co.kr/hwpml/2011/section"
	NSCore      = "http://www.hancom.co.kr/hwpml/2011/core"
	NSHead      = "http://www.hancom.co.kr/hwpml/2011/head"
	NSApp       = "http://www.hancom.co.kr/hwpml/2011/app"
	NSHistory   = "http://www.hancom.co.kr/hwpml/2011/history"
	NSMaster    = "http://www.hancom.co.kr/hwpml/2011/master-page"
	NSPackage   = "http://www.hancom.co.kr/schema/2011/hpf"
	NSOPF       = "http://www.idpf.org/2007/opf/"
	NSDC        = "http://purl.org/dc/elements/1.1/"
)

// Namespaces binds the conventional prefixes for XPath queries.
var Namespaces = map[string]string{
	"hp":  NSParagraph,
	"hs":  NSSection,
	"hc":  NSCore,
	"hh":  NSHead,
	"ha":  NSApp,
	"hhs": NSHistory,
	"hm":  NSMaster,
	"hpf": NSPackage,
	"opf": NSOPF,
	"dc":  NSDC,
}

var sectionPattern = regexp.MustCompile(`^Contents/section(\d+)\.xml$`)

// SectionIndex returns N for a member named Contents/section<N>.xml.
func SectionIndex(name string) (int, bool) {
	m := sectionPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortSections orders section member names by their integer index.
func SortSections(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, _ := SectionIndex(names[i])
		b, _ := SectionIndex(names[j])
		return a < b
	})
}

// Member describes one entry of the container.
type Member struct {
	Name   string `json:"name" yaml:"name"`
	Size   uint64 `json:"size" yaml:"size"`
	Method uint16 `json:"method" yaml:"method"`
}

// Archive is an opened HWPX container. Members are listed in container
// order; Sections holds the section member names in numeric order.
type Archive struct {
	Path     string
	Members  []Member
	Sections []string
}

// Open validates the container at path and inventories its members.
func Open(p string) (*Archive, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.NewInputFormat(p, "cannot open", err)
	}
	ft, err := validation.DetectFileType(f)
	f.Close()
	if err != nil {
		return nil, errors.NewInputFormat(p, "unrecognized content", err)
	}
	if ft != validation.FileTypeZip {
		return nil, errors.NewInputFormat(p, fmt.Sprintf("not a zip container (detected %s)", ft), nil)
	}

	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, errors.NewInputFormat(p, "corrupt zip container", err)
	}
	defer zr.Close()

	a := &Archive{Path: p}
	hasHeader := false
	for _, zf := range zr.File {
		if err := validation.ValidateMemberName(zf.Name); err != nil {
			return nil, errors.NewInputFormat(p, "unsafe member name "+zf.Name, err)
		}
		a.Members = append(a.Members, Member{
			Name:   zf.Name,
			Size:   zf.UncompressedSize64,
			Method: zf.Method,
		})
		if zf.Name == HeaderPath {
			if hasHeader {
				return nil, errors.NewInputFormat(p, "duplicate "+HeaderPath, nil)
			}
			hasHeader = true
		}
		if _, ok := SectionIndex(zf.Name); ok {
			a.Sections = append(a.Sections, zf.Name)
		}
	}
	if !hasHeader {
		return nil, errors.NewInputFormat(p, "missing "+HeaderPath, nil)
	}
	if len(a.Sections) == 0 {
		return nil, errors.NewInputFormat(p, "no section streams", nil)
	}
	SortSections(a.Sections)
	return a, nil
}

// Extract unpacks every member under dest, creating dest if needed.
// Re-extracting into the same directory overwrites members with identical
// bytes. A corrupt member aborts the extraction and removes every file
// written by this call.
func (a *Archive) Extract(dest string) (wt *WorkingTree, err error) {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, errors.NewIO("create", dest, err)
	}
	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return nil, errors.NewInputFormat(a.Path, "corrupt zip container", err)
	}
	defer zr.Close()

	var written []string
	defer func() {
		if err != nil {
			for i := len(written) - 1; i >= 0; i-- {
				os.Remove(written[i])
			}
		}
	}()

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		target, err := validation.SanitizePath(dest, zf.Name)
		if err != nil {
			return nil, errors.NewInputFormat(a.Path, "unsafe member name "+zf.Name, err)
		}
		if zf.UncompressedSize64 > validation.MaxFileSize {
			return nil, errors.NewInputFormat(a.Path, "member too large: "+zf.Name, nil)
		}
		if err := extractFile(zf, target); err != nil {
			os.Remove(target)
			return nil, errors.NewInputFormat(a.Path, "corrupt member "+zf.Name, err)
		}
		written = append(written, target)
	}

	return &WorkingTree{Dir: dest, Sections: append([]string(nil), a.Sections...)}, nil
}

func extractFile(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, io.LimitReader(rc, validation.MaxFileSize)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// WorkingTree is an extracted container on disk.
type WorkingTree struct {
	Dir      string
	Sections []string // section member names in numeric order
}

// Path returns the filesystem path of a member.
func (w *WorkingTree) Path(member string) string {
	return filepath.Join(w.Dir, filepath.FromSlash(member))
}

// HeaderPath returns the path of the header stream.
func (w *WorkingTree) HeaderPath() string {
	return w.Path(HeaderPath)
}

// ManifestPath returns the path of the package manifest.
func (w *WorkingTree) ManifestPath() string {
	return w.Path(ManifestPath)
}

// SectionPaths returns the section stream paths in numeric order.
func (w *WorkingTree) SectionPaths() []string {
	out := make([]string, len(w.Sections))
	for i, s := range w.Sections {
		out[i] = w.Path(s)
	}
	return out
}

// BinDataPath returns the payload directory.
func (w *WorkingTree) BinDataPath() string {
	return w.Path(BinDataDir)
}

// Copy duplicates the tree into dest.
func (w *WorkingTree) Copy(dest string) (*WorkingTree, error) {
	if err := fileutil.CopyDir(w.Dir, dest); err != nil {
		return nil, errors.NewIO("copy", w.Dir, err)
	}
	return &WorkingTree{Dir: dest, Sections: append([]string(nil), w.Sections...)}, nil
}

// Remove deletes the tree from disk.
func (w *WorkingTree) Remove() error {
	return os.RemoveAll(w.Dir)
}

// MemberName converts a path below the tree into a slash-separated member
// name.
func (w *WorkingTree) MemberName(p string) (string, error) {
	rel, err := filepath.Rel(w.Dir, p)
	if err != nil {
		return "", err
	}
	return path.Clean(filepath.ToSlash(rel)), nil
}
