// Package cas fingerprints built documents with BLAKE3 and keeps a
// content-addressed copy of each output. Identical builds share one blob.
package cas

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/zeebo/blake3"
)

// Injection points for failure tests.
var (
	osRename  = os.Rename
	copyBlob  = io.Copy
	closeBlob = func(f *os.File) error { return f.Close() }
)

// ErrBlobNotFound is returned for a digest the store does not hold.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned for a digest that is not 64 lowercase hex
// characters.
var ErrInvalidHash = errors.New("invalid hash format")

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Hash returns the BLAKE3 digest of data in hex.
func Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashFile returns the BLAKE3 digest of the file at path, streaming it.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Store keeps blobs under <root>/blobs/blake3/<first2>/<digest>.
type Store struct {
	root string
}

// NewStore opens the store at root, creating its layout.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs", "blake3"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// StoreFile copies the file at path into the store and returns its digest.
// The file is hashed while it is copied; content already held is not
// written twice.
func (s *Store) StoreFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer in.Close()

	staging := filepath.Join(s.root, "blobs", "blake3")
	tmp, err := os.CreateTemp(staging, ".blob-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	h := blake3.New()
	if _, err := copyBlob(io.MultiWriter(tmp, h), in); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := closeBlob(tmp); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	dst := s.Path(digest)
	if _, err := os.Stat(dst); err == nil {
		return digest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create prefix directory: %w", err)
	}
	if err := osRename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("failed to rename blob: %w", err)
	}
	return digest, nil
}

// Open returns a reader for the blob with the given digest.
func (s *Store) Open(digest string) (*os.File, error) {
	if !hashPattern.MatchString(digest) {
		return nil, ErrInvalidHash
	}
	f, err := os.Open(s.Path(digest))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return f, err
}

// Exists reports whether the store holds digest.
func (s *Store) Exists(digest string) bool {
	if !hashPattern.MatchString(digest) {
		return false
	}
	_, err := os.Stat(s.Path(digest))
	return err == nil
}

// Path returns where digest is kept. The digest is not validated.
func (s *Store) Path(digest string) string {
	prefix := digest
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, "blobs", "blake3", prefix, digest)
}
