package node

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
)

// Compare returns an integer comparing two nodes of the same type.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
//
// Strings, keys and data compare lexicographically, numbers and dates
// numerically, arrays element by element. Dictionaries compare by their
// sorted keys and then by the values under those keys, so two dictionaries
// holding the same entries in a different order are equal. Nodes of
// different types are not ordered: Compare returns ErrTypeMismatch.
func Compare(a, b *Node) (int, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: cannot compare nil node", plisterrors.ErrTypeMismatch)
	}
	if a.typ != b.typ {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", plisterrors.ErrTypeMismatch, a.typ, b.typ)
	}

	switch a.typ {
	case NullType:
		return 0, nil
	case BoolType:
		if a.b == b.b {
			return 0, nil
		}
		if !a.b {
			return -1, nil
		}
		return 1, nil
	case IntegerType, UIDType:
		return cmp.Compare(a.u, b.u), nil
	case RealType:
		return cmp.Compare(a.f, b.f), nil
	case StringType, KeyType:
		return strings.Compare(a.s, b.s), nil
	case DataType:
		return bytes.Compare(a.data, b.data), nil
	case DateType:
		if c := cmp.Compare(a.sec, b.sec); c != 0 {
			return c, nil
		}
		return cmp.Compare(a.usec, b.usec), nil
	case ArrayType:
		return compareSeq(a.elems, b.elems)
	case DictType:
		return compareDicts(a, b)
	}
	return 0, fmt.Errorf("%w: unknown node type %s", plisterrors.ErrTypeMismatch, a.typ)
}

// Equal reports whether two nodes of the same type hold equal values.
// Like Compare it fails with ErrTypeMismatch across types.
func Equal(a, b *Node) (bool, error) {
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

func compareSeq(a, b []*Node) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		c, err := Compare(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return cmp.Compare(len(a), len(b)), nil
}

func compareDicts(a, b *Node) (int, error) {
	ak := slices.Sorted(a.Keys())
	bk := slices.Sorted(b.Keys())
	if c := slices.Compare(ak, bk); c != 0 {
		return c, nil
	}
	for _, k := range ak {
		c, err := Compare(a.elems[a.index[k]], b.elems[b.index[k]])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}
