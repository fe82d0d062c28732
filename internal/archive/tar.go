package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Compression selects the stream codec of a bundle.
type Compression string

const (
	XZ   Compression = "xz"
	Gzip Compression = "gz"
)

// ParseCompression accepts xz and gz; empty means xz.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(s)) {
	case "", XZ:
		return XZ, nil
	case Gzip, "gzip":
		return Gzip, nil
	}
	return "", fmt.Errorf("unknown compression %q (want xz or gz)", s)
}

// Ext returns the file suffix for c.
func (c Compression) Ext() string {
	if c == Gzip {
		return ".tar.gz"
	}
	return ".tar.xz"
}

func compressionOf(name string) (Compression, bool) {
	switch {
	case strings.HasSuffix(name, XZ.Ext()):
		return XZ, true
	case strings.HasSuffix(name, Gzip.Ext()):
		return Gzip, true
	}
	return "", false
}

// stamp is the modification time of every entry, so equal inputs give
// equal bundles.
var stamp = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Entry is one bundle member.
type Entry struct {
	Name string
	Data []byte
}

// writeTar stores entries under root/ in dst. A partial file is removed
// on failure.
func writeTar(dst, root string, entries []Entry) (err error) {
	c, ok := compressionOf(dst)
	if !ok {
		return fmt.Errorf("unsupported bundle suffix: %s", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	var zw io.WriteCloser
	if c == Gzip {
		zw = gzip.NewWriter(f)
	} else if zw, err = xz.NewWriter(f); err != nil {
		return err
	}
	tw := tar.NewWriter(zw)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     path.Join(root, e.Name),
			Mode:     0644,
			Size:     int64(len(e.Data)),
			ModTime:  stamp,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("bundle member %s: %w", e.Name, err)
		}
		if _, err := tw.Write(e.Data); err != nil {
			return fmt.Errorf("bundle member %s: %w", e.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}

// walkTar calls fn for every regular member of the bundle at p with the
// root directory stripped from its name. fn returns false to stop.
func walkTar(p string, fn func(name string, r io.Reader) (bool, error)) error {
	c, ok := compressionOf(p)
	if !ok {
		return fmt.Errorf("unsupported bundle suffix: %s", p)
	}
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	var zr io.Reader
	if c == Gzip {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		defer gz.Close()
		zr = gz
	} else if zr, err = xz.NewReader(f); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(p), err)
	}

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := hdr.Name
		if i := strings.IndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		more, err := fn(name, tr)
		if err != nil || !more {
			return err
		}
	}
}
