// Package errors defines the error kinds shared by the plist document model
// and its codecs. Callers test for a kind with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDocument is returned when a buffer is neither a
	// recognised binary plist nor well-formed XML, or when its structure
	// is broken part way through.
	ErrMalformedDocument = errors.New("plist: malformed document")

	// ErrTypeMismatch is returned when a comparison or value projection
	// is attempted across incompatible node kinds.
	ErrTypeMismatch = errors.New("plist: type mismatch")

	// ErrNegativeValue is returned when a negative number is stored in an
	// integer node. Integers are unsigned magnitudes.
	ErrNegativeValue = errors.New("plist: negative value unsupported")

	// ErrFormatMismatch is returned when an explicit format contradicts
	// the signature of the buffer.
	ErrFormatMismatch = errors.New("plist: format mismatch")

	// ErrKeyNotFound is returned for dictionary access with an absent key.
	ErrKeyNotFound = errors.New("plist: key not found")

	// ErrIndexOutOfRange is returned for array access outside its bounds.
	ErrIndexOutOfRange = errors.New("plist: index out of range")

	// ErrUnsupportedType is returned when a Go value or node cannot be
	// represented in the requested form.
	ErrUnsupportedType = errors.New("plist: unsupported type")
)

// DecodeError describes a structural failure at a position in the input.
// Binary documents report a byte offset, XML documents a line and column.
type DecodeError struct {
	Format  string
	Offset  int64
	Line    int
	Column  int
	Message string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("plist: %s parsing error at line %d, column %d: %s", e.Format, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("plist: %s parsing error at offset %d: %s", e.Format, e.Offset, e.Message)
}

// Unwrap lets errors.Is match ErrMalformedDocument.
func (e *DecodeError) Unwrap() error { return ErrMalformedDocument }
