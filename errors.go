package plist

import (
	"reflect"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
)

// Error kinds, re-exported from the errors package so callers can write
// errors.Is(err, plist.ErrMalformedDocument).
var (
	ErrMalformedDocument = plisterrors.ErrMalformedDocument
	ErrTypeMismatch      = plisterrors.ErrTypeMismatch
	ErrNegativeValue     = plisterrors.ErrNegativeValue
	ErrFormatMismatch    = plisterrors.ErrFormatMismatch
	ErrKeyNotFound       = plisterrors.ErrKeyNotFound
	ErrIndexOutOfRange   = plisterrors.ErrIndexOutOfRange
	ErrUnsupportedType   = plisterrors.ErrUnsupportedType
)

// DecodeError describes a structural failure at a position in the input.
type DecodeError = plisterrors.DecodeError

// An UnmarshalerError represents an error from calling an UnmarshalPlist
// or UnmarshalText method.
type UnmarshalerError struct {
	Type reflect.Type
	Err  error
}

func (e *UnmarshalerError) Error() string {
	return "plist: error calling unmarshaler for type " + e.Type.String() + ": " + e.Err.Error()
}

func (e *UnmarshalerError) Unwrap() error { return e.Err }
