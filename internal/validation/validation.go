// Package validation guards the filesystem against hostile containers:
// member names that escape the extraction root, oversized members and
// inputs that are not zip containers at all.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Limits applied to untrusted input.
const (
	// MaxFileSize caps the uncompressed size of one container member.
	MaxFileSize = 256 << 20
	// MaxPathLength caps paths given on the command line.
	MaxPathLength = 4096
)

var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
)

// SanitizePath resolves the container member name under baseDir and
// returns the joined path. Names that would land outside baseDir fail with
// ErrPathTraversal.
func SanitizePath(baseDir, member string) (string, error) {
	if err := ValidateMemberName(member); err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}
	full := filepath.Join(absBase, filepath.FromSlash(path.Clean(member)))
	rel, err := filepath.Rel(absBase, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return full, nil
}

// ValidateMemberName checks a zip member name: slash-separated, relative,
// normalized and not escaping the container root.
func ValidateMemberName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyPath
	}
	if len(name) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.HasPrefix(name, "/") || (len(name) > 1 && name[1] == ':') {
		return fmt.Errorf("%w: absolute member name", ErrPathTraversal)
	}
	if strings.Contains(name, "\\") {
		return fmt.Errorf("%w: member name must use forward slashes", ErrInvalidCharacter)
	}
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrPathTraversal
	}
	if clean != strings.TrimSuffix(name, "/") {
		return fmt.Errorf("%w: member name not normalized: %q", ErrInvalidFilename, name)
	}
	return nil
}

// ValidatePath checks a path given by the user: not empty, bounded and free
// of control characters.
func ValidatePath(p string) error {
	if p == "" {
		return ErrEmptyPath
	}
	if len(p) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range p {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// FileType is the container kind recognized from leading bytes.
type FileType string

const (
	FileTypeZip     FileType = "zip"
	FileTypeGzip    FileType = "gzip"
	FileTypeXZ      FileType = "xz"
	FileTypeTar     FileType = "tar"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeOLE     FileType = "ole" // legacy binary HWP 5 and other compound files
	FileTypeXML     FileType = "xml"
	FileTypeText    FileType = "text"
	FileTypeUnknown FileType = "unknown"
)

var signatures = []struct {
	kind   FileType
	magic  []byte
	offset int
}{
	{FileTypeZip, []byte("PK\x03\x04"), 0},
	{FileTypeZip, []byte("PK\x05\x06"), 0}, // empty archive
	{FileTypeGzip, []byte{0x1f, 0x8b}, 0},
	{FileTypeXZ, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, 0},
	{FileTypeSQLite, []byte("SQLite format 3\x00"), 0},
	{FileTypeOLE, []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}, 0},
	{FileTypeTar, []byte("ustar"), 257},
}

// sniffLen covers the tar magic at offset 257.
const sniffLen = 512

// DetectFileType reads the leading bytes of r and reports the container
// kind. Extensions are not consulted.
func DetectFileType(r io.Reader) (FileType, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("read file header: %w", err)
	}
	return detect(buf[:n]), nil
}

func detect(buf []byte) FileType {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if end <= len(buf) && bytes.Equal(buf[sig.offset:end], sig.magic) {
			return sig.kind
		}
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf")), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) && isText(buf) {
		return FileTypeXML
	}
	if isText(buf) {
		return FileTypeText
	}
	return FileTypeUnknown
}

// isText reports whether buf is non-empty UTF-8 without NUL or other
// control bytes besides whitespace. A rune cut at the end of the sniff
// window is tolerated.
func isText(buf []byte) bool {
	if len(buf) == 0 || bytes.IndexByte(buf, 0) >= 0 {
		return false
	}
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size <= 1 {
			return len(buf) < utf8.UTFMax && !utf8.FullRune(buf)
		}
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
		buf = buf[size:]
	}
	return true
}
