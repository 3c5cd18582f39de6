package plist

import (
	"fmt"
	"io"

	"github.com/KimNorgaard/go-plist/node"
)

// Marshaler is the interface implemented by types that can build their own
// property list node.
type Marshaler = node.Marshaler

// Encoder writes property lists to an output stream.
type Encoder struct {
	w      io.Writer
	format Format
	opts   []Option
}

// NewEncoder returns a new encoder that writes documents of the given
// format to w.
func NewEncoder(w io.Writer, format Format, opts ...Option) *Encoder {
	return &Encoder{w: w, format: format, opts: opts}
}

// Encode writes the encoding of v to the stream. v may be a *node.Node or
// any value accepted by node.FromValue.
func (e *Encoder) Encode(v any) error {
	if e.w == nil {
		return fmt.Errorf("plist: Encode(nil writer)")
	}
	b, err := EncodeValue(v, e.format, e.opts...)
	if err != nil {
		return err
	}
	_, err = e.w.Write(b)
	return err
}

// Marshal returns the encoding of v in the given format. It is shorthand
// for EncodeValue.
func Marshal(v any, format Format, opts ...Option) ([]byte, error) {
	return EncodeValue(v, format, opts...)
}
