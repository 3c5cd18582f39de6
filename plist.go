package plist

import (
	"bytes"
	"fmt"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
	"github.com/KimNorgaard/go-plist/internal/bplist"
	"github.com/KimNorgaard/go-plist/internal/xmlplist"
	"github.com/KimNorgaard/go-plist/node"
)

// Format selects a serialised form of a property list.
type Format int

const (
	// XMLFormat is the textual form rooted at <plist version="1.0">.
	XMLFormat Format = iota + 1
	// BinaryFormat is the compact "bplist00" form.
	BinaryFormat
)

func (f Format) String() string {
	switch f {
	case XMLFormat:
		return "xml"
	case BinaryFormat:
		return "binary"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// binarySignature starts every binary property list, whatever its version.
var binarySignature = []byte("bplist")

// Detect reports the format of data from its leading bytes. Anything not
// starting with the binary signature is taken to be XML.
func Detect(data []byte) Format {
	if bytes.HasPrefix(data, binarySignature) {
		return BinaryFormat
	}
	return XMLFormat
}

// Decode parses a property list in either format and returns its root.
// A <plist> element without content decodes to a nil node.
//
// Decode fails with an error matching ErrMalformedDocument when data is
// not a well-formed document. No partial tree is returned on failure.
func Decode(data []byte, opts ...Option) (*node.Node, error) {
	return DecodeFormat(data, Detect(data), opts...)
}

// DecodeFormat parses data as the given format. It fails with
// ErrFormatMismatch when the format contradicts the signature of data.
func DecodeFormat(data []byte, format Format, opts ...Option) (*node.Node, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	if format != XMLFormat && format != BinaryFormat {
		return nil, fmt.Errorf("plist: unknown format %s", format)
	}
	if detected := Detect(data); detected != format {
		return nil, fmt.Errorf("%w: cannot parse %s property list as %s", plisterrors.ErrFormatMismatch, detected, format)
	}
	if format == BinaryFormat {
		return bplist.NewDecoder(data, o.maxDepth).Decode()
	}
	return xmlplist.NewParser(data, o.maxDepth).Parse()
}

// Encode serialises the tree rooted at n.
func Encode(n *node.Node, format Format, opts ...Option) ([]byte, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	switch format {
	case BinaryFormat:
		return bplist.NewEncoder().Encode(n)
	case XMLFormat:
		var buf bytes.Buffer
		f := xmlplist.NewFormatter(&buf, o.indentString(), o.wrapData)
		if err := f.Format(n); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("plist: unknown format %s", format)
}

// EncodeValue infers a tree from a natural Go value with node.FromValue and
// serialises it. Negative integers fail with ErrNegativeValue.
func EncodeValue(v any, format Format, opts ...Option) ([]byte, error) {
	n, ok := v.(*node.Node)
	if !ok || n == nil {
		var err error
		if n, err = node.FromValue(v); err != nil {
			return nil, err
		}
	}
	return Encode(n, format, opts...)
}
