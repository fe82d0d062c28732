package errors

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// InputFormatError rejects a whole document: not a zip container, or a
// required stream is missing or unreadable.
type InputFormatError struct {
	Path   string
	Reason string
	Err    error
}

func NewInputFormat(path, reason string, err error) *InputFormatError {
	return &InputFormatError{Path: path, Reason: reason, Err: err}
}

func (e *InputFormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid document %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid document %s: %s: %v", e.Path, e.Reason, e.Err)
}

// Unwrap exposes the sentinel and the cause.
func (e *InputFormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInputFormat}
	}
	return []error{ErrInputFormat, e.Err}
}

// SectionParseError marks one section stream as malformed. Processing
// continues with the section treated as empty.
type SectionParseError struct {
	Section string
	Err     error
}

func (e *SectionParseError) Error() string {
	return fmt.Sprintf("section %s: %v", e.Section, e.Err)
}

func (e *SectionParseError) Unwrap() []error { return []error{ErrSectionParse, e.Err} }

// SelectionError is an empty selection (Requested == 0) or one naming ids
// no unit carries.
type SelectionError struct {
	Requested int
	Unmatched []int
}

func (e *SelectionError) Error() string {
	if e.Requested == 0 {
		return "empty selection"
	}
	ids := slices.Clone(e.Unmatched)
	slices.Sort(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "selection matches no unit for ids: " + strings.Join(parts, ", ")
}

func (e *SelectionError) Unwrap() error { return ErrSelection }

// ResourceReferenceError is a binaryItemIDRef with no manifest entry. The
// reference is dropped from the unit.
type ResourceReferenceError struct {
	Unit       int
	ResourceID string
}

func (e *ResourceReferenceError) Error() string {
	return fmt.Sprintf("unit %d references unknown resource %q", e.Unit, e.ResourceID)
}

func (e *ResourceReferenceError) Unwrap() error { return ErrResourceReference }

// RepackageError is a failure writing the output archive.
type RepackageError struct {
	Path string
	Err  error
}

func NewRepackage(path string, err error) *RepackageError {
	return &RepackageError{Path: path, Err: err}
}

func (e *RepackageError) Error() string {
	return fmt.Sprintf("repackage %s: %v", e.Path, e.Err)
}

func (e *RepackageError) Unwrap() []error { return []error{ErrRepackage, e.Err} }
