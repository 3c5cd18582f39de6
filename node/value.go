package node

import (
	"fmt"
	"time"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
)

// Value projects n to its natural Go value:
//
//	NullType     nil
//	BoolType     bool
//	IntegerType  uint64
//	RealType     float64
//	StringType   string
//	KeyType      string
//	DataType     []byte (a copy)
//	DateType     time.Time in UTC
//	UIDType      UID
//	ArrayType    []any
//	DictType     map[string]any
//
// Composites are projected recursively.
func (n *Node) Value() any {
	switch n.typ {
	case BoolType:
		return n.b
	case IntegerType:
		return n.u
	case RealType:
		return n.f
	case StringType, KeyType:
		return n.s
	case DataType:
		return append([]byte{}, n.data...)
	case DateType:
		return n.timeValue()
	case UIDType:
		return UID(n.u)
	case ArrayType:
		out := make([]any, len(n.elems))
		for i, e := range n.elems {
			out[i] = e.Value()
		}
		return out
	case DictType:
		out := make(map[string]any, len(n.elems))
		for i, e := range n.elems {
			out[n.keys[i]] = e.Value()
		}
		return out
	default:
		return nil
	}
}

func (n *Node) timeValue() time.Time {
	return time.Unix(n.sec+MacEpoch, int64(n.usec)*1000).UTC()
}

// Bool returns the payload of a boolean node.
func (n *Node) Bool() (bool, error) {
	if n.typ != BoolType {
		return false, mismatch(n, "a bool")
	}
	return n.b, nil
}

// Uint returns the payload of an integer node.
func (n *Node) Uint() (uint64, error) {
	if n.typ != IntegerType {
		return 0, mismatch(n, "an integer")
	}
	return n.u, nil
}

// Float returns the payload of a real node.
func (n *Node) Float() (float64, error) {
	if n.typ != RealType {
		return 0, mismatch(n, "a real")
	}
	return n.f, nil
}

// Text returns the payload of a string or key node.
func (n *Node) Text() (string, error) {
	if n.typ != StringType && n.typ != KeyType {
		return "", mismatch(n, "a string")
	}
	return n.s, nil
}

// Bytes returns a copy of the payload of a data node.
func (n *Node) Bytes() ([]byte, error) {
	if n.typ != DataType {
		return nil, mismatch(n, "data")
	}
	return append([]byte{}, n.data...), nil
}

// Time returns the payload of a date node as a UTC calendar time.
func (n *Node) Time() (time.Time, error) {
	if n.typ != DateType {
		return time.Time{}, mismatch(n, "a date")
	}
	return n.timeValue(), nil
}

// DateOffset returns the raw payload of a date node: whole seconds and
// microseconds since 2001-01-01T00:00:00Z.
func (n *Node) DateOffset() (sec int64, usec int32, err error) {
	if n.typ != DateType {
		return 0, 0, mismatch(n, "a date")
	}
	return n.sec, n.usec, nil
}

// UIDValue returns the payload of a UID node.
func (n *Node) UIDValue() (uint64, error) {
	if n.typ != UIDType {
		return 0, mismatch(n, "a uid")
	}
	return n.u, nil
}

// SetValue replaces the payload of n. The value must infer to the same type
// as n (a string may be stored in a key node). For arrays and dictionaries
// every child is rebuilt from v, whose elements may be natural Go values or
// *Node values; the latter are deep-copied.
func (n *Node) SetValue(v any) error {
	src, err := FromValue(v)
	if err != nil {
		return err
	}
	if src.typ != n.typ && (n.typ != KeyType || src.typ != StringType) {
		return fmt.Errorf("%w: cannot set %s value on %s node", plisterrors.ErrTypeMismatch, src.typ, n.typ)
	}
	n.assign(src)
	return nil
}

// assign moves the payload of src into n. src must not be used afterwards.
func (n *Node) assign(src *Node) {
	for _, e := range n.elems {
		e.parent = nil
	}
	n.b, n.u, n.f, n.s = src.b, src.u, src.f, src.s
	n.data = src.data
	n.sec, n.usec = src.sec, src.usec
	n.elems, n.keys, n.index = src.elems, src.keys, src.index
	for _, e := range n.elems {
		e.parent = n
	}
}
