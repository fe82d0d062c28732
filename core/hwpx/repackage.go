package hwpx

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/klauspost/compress/flate"
)

// Injection points for I/O failure tests.
var (
	createTemp = os.CreateTemp
	renameFile = os.Rename
)

// epoch is the modification time stamped on every member so that identical
// trees produce identical archives.
var epoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Repackage zips the tree at dir into out. The mimetype member always comes
// first and is stored uncompressed; the remaining members follow in path
// order, deflated. The archive is written to a temporary file next to out and
// renamed into place.
func Repackage(dir, out string) error {
	members, err := collectMembers(dir)
	if err != nil {
		return errors.NewRepackage(out, err)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return errors.NewRepackage(out, err)
	}
	tmp, err := createTemp(filepath.Dir(out), ".hwpx-*")
	if err != nil {
		return errors.NewRepackage(out, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if err := writeZip(tmp, dir, members); err != nil {
		tmp.Close()
		return errors.NewRepackage(out, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewRepackage(out, err)
	}
	if err := renameFile(tmpName, out); err != nil {
		return errors.NewRepackage(out, err)
	}
	committed = true
	return nil
}

// collectMembers lists the regular files below dir other than mimetype as
// sorted slash-separated member names.
func collectMembers(dir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); name != MimetypePath {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// writeZip writes the mimetype member, taken from dir or synthesized when
// absent, followed by members.
func writeZip(w io.Writer, dir string, members []string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	mw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     MimetypePath,
		Method:   zip.Store,
		Modified: epoch,
	})
	if err != nil {
		return err
	}
	mimetype, err := os.ReadFile(filepath.Join(dir, MimetypePath))
	if os.IsNotExist(err) {
		mimetype, err = []byte(MimeType), nil
	}
	if err != nil {
		return err
	}
	if _, err := mw.Write(mimetype); err != nil {
		return err
	}

	for _, name := range members {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: epoch,
		})
		if err != nil {
			return err
		}
		if err := copyMember(fw, filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			return err
		}
	}
	return zw.Close()
}

func copyMember(w io.Writer, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
