// Package errors defines the error kinds shared across hwpxkit.
//
// Each kind unwraps to one of the sentinels below, so callers branch with
// errors.Is and reach for errors.As only when they need the fields.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported")

	// Document processing failures. See hwpx.go for their types.
	ErrInputFormat       = errors.New("invalid input format")
	ErrSectionParse      = errors.New("section parse failed")
	ErrSelection         = errors.New("invalid selection")
	ErrResourceReference = errors.New("dangling resource reference")
	ErrRepackage         = errors.New("repackage failed")
)

// orSentinel returns cause when set, else the kind's sentinel.
func orSentinel(cause, sentinel error) error {
	if cause != nil {
		return cause
	}
	return sentinel
}

// NotFoundError names something that was looked up and is absent, such as
// a session, a unit or a journal run.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return orSentinel(e.Err, ErrNotFound) }

// ValidationError rejects a caller-supplied value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return orSentinel(e.Err, ErrInvalidInput) }

// IOError is a filesystem failure. Operation is a verb such as read,
// write or mkdir.
type IOError struct {
	Operation string
	Path      string
	Err       error
}

func NewIO(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError is a malformed value in some notation: XML, TOML, a
// numbering pattern.
type ParseError struct {
	Format  string
	Path    string
	Message string
	Err     error
}

func NewParse(format, path, message string) *ParseError {
	return &ParseError{Format: format, Path: path, Message: message}
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
	}
	return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
}

func (e *ParseError) Unwrap() error { return orSentinel(e.Err, ErrInvalidInput) }

// UnsupportedError is a feature the current setup cannot provide.
type UnsupportedError struct {
	Feature string
	Reason  string
	Err     error
}

func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{Feature: feature, Reason: reason}
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return "unsupported " + e.Feature
	}
	return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
}

func (e *UnsupportedError) Unwrap() error { return orSentinel(e.Err, ErrUnsupported) }

// Wrap prefixes err with message. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is and As forward to the standard package so callers need one import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// ExitCode maps err to the process status of the command-line tool.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInputFormat):
		return 2
	case errors.Is(err, ErrSelection):
		return 3
	case errors.Is(err, ErrRepackage):
		return 4
	}
	return 1
}
