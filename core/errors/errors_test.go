package errors

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
)

func TestMessages(t *testing.T) {
	cause := fmt.Errorf("unexpected EOF")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", NewNotFound("session", "3f2a"), "session not found: 3f2a"},
		{"not found without id", &NotFoundError{Resource: "header stream"}, "header stream not found"},
		{"validation", NewValidation("segment.mode", "must be text or index"), "validation failed for segment.mode: must be text or index"},
		{"validation without field", &ValidationError{Message: "no units"}, "validation failed: no units"},
		{"io", NewIO("write", "Contents/section0.xml", cause), "failed to write Contents/section0.xml: unexpected EOF"},
		{"io without path", NewIO("mkdir", "", cause), "failed to mkdir: unexpected EOF"},
		{"parse", NewParse("notation", "", "placeholder {n} missing"), "failed to parse notation: placeholder {n} missing"},
		{"parse with path", NewParse("TOML", "hwpxkit.toml", "bad key"), "failed to parse TOML at hwpxkit.toml: bad key"},
		{"unsupported", NewUnsupported("render", "no render endpoint configured"), "unsupported render: no render endpoint configured"},
		{"input format", NewInputFormat("a.hwpx", "no section stream", nil), "invalid document a.hwpx: no section stream"},
		{"input format with cause", NewInputFormat("a.hwpx", "corrupt zip container", cause), "invalid document a.hwpx: corrupt zip container: unexpected EOF"},
		{"section", &SectionParseError{Section: "Contents/section1.xml", Err: cause}, "section Contents/section1.xml: unexpected EOF"},
		{"empty selection", &SelectionError{}, "empty selection"},
		{"unmatched", &SelectionError{Requested: 4, Unmatched: []int{9, 7}}, "selection matches no unit for ids: 7, 9"},
		{"dangling", &ResourceReferenceError{Unit: 2, ResourceID: "image9"}, `unit 2 references unknown resource "image9"`},
		{"repackage", NewRepackage("out.hwpx", cause), "repackage out.hwpx: unexpected EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"not found", NewNotFound("unit", "1"), ErrNotFound},
		{"validation", NewValidation("f", "m"), ErrInvalidInput},
		{"parse", NewParse("XML", "", "m"), ErrInvalidInput},
		{"unsupported", NewUnsupported("f", ""), ErrUnsupported},
		{"input format", NewInputFormat("p", "r", io.EOF), ErrInputFormat},
		{"section", &SectionParseError{Section: "s", Err: io.EOF}, ErrSectionParse},
		{"selection", &SelectionError{}, ErrSelection},
		{"dangling", &ResourceReferenceError{}, ErrResourceReference},
		{"repackage", NewRepackage("p", io.EOF), ErrRepackage},
		{"wrapped", Wrapf(&SelectionError{}, "source %s", "a.hwpx"), ErrSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("%v does not match %v", tt.err, tt.sentinel)
			}
		})
	}
}

func TestCausesStayReachable(t *testing.T) {
	// Multi-unwrap types expose the cause next to the sentinel.
	for _, err := range []error{
		NewInputFormat("p", "r", os.ErrNotExist),
		&SectionParseError{Section: "s", Err: os.ErrNotExist},
		NewRepackage("p", os.ErrNotExist),
		NewIO("open", "p", os.ErrNotExist),
	} {
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%T lost its cause", err)
		}
	}

	// An explicit cause replaces the sentinel for single-unwrap types.
	nf := &NotFoundError{Resource: "file", Err: os.ErrPermission}
	if !errors.Is(nf, os.ErrPermission) || errors.Is(nf, ErrNotFound) {
		t.Errorf("NotFoundError with cause unwraps to %v", nf.Unwrap())
	}
}

func TestAs(t *testing.T) {
	err := Wrap(&SectionParseError{Section: "Contents/section2.xml", Err: io.EOF}, "load")
	var spe *SectionParseError
	if !As(err, &spe) || spe.Section != "Contents/section2.xml" {
		t.Fatalf("As failed for %v", err)
	}
	var sel *SelectionError
	if As(err, &sel) {
		t.Error("As matched the wrong type")
	}
	if !Is(err, ErrSectionParse) {
		t.Error("Is failed through Wrap")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "ctx") != nil || Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}
	err := Wrapf(io.EOF, "read %s", "header")
	if err.Error() != "read header: EOF" || !errors.Is(err, io.EOF) {
		t.Errorf("Wrapf = %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{NewInputFormat("p", "r", nil), 2},
		{Wrap(NewInputFormat("p", "r", nil), "load"), 2},
		{&SelectionError{Requested: 1, Unmatched: []int{5}}, 3},
		{NewRepackage("p", io.ErrShortWrite), 4},
		{NewValidation("f", "m"), 1},
		{io.EOF, 1},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
