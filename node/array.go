package node

import (
	"fmt"
	"iter"
	"slices"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
	"github.com/KimNorgaard/go-plist/internal/adopt"
)

func init() {
	adopt.Register(adoptArray, adoptDict)
}

// child converts v into a node suitable for storing in a container.
// Existing nodes are deep-copied; everything else goes through FromValue.
func child(v any) (*Node, error) {
	if c, ok := v.(*Node); ok {
		if c == nil {
			return NewNull(), nil
		}
		return c.Copy(), nil
	}
	return FromValue(v)
}

// resolveIndex turns a possibly negative index into a position in a
// sequence of length size. Negative indices count from the end and are
// resolved before the bounds check. With end set, size itself is valid.
func resolveIndex(i, size int, end bool) (int, error) {
	pos := i
	if pos < 0 {
		pos += size
	}
	limit := size
	if end {
		limit++
	}
	if pos < 0 || pos >= limit {
		return 0, fmt.Errorf("%w: index %d for length %d", plisterrors.ErrIndexOutOfRange, i, size)
	}
	return pos, nil
}

// Append adds v to the end of an array node.
func (n *Node) Append(v any) error {
	if n.typ != ArrayType {
		return mismatch(n, "an array")
	}
	c, err := child(v)
	if err != nil {
		return err
	}
	c.parent = n
	n.elems = append(n.elems, c)
	return nil
}

// Insert places v at index i of an array node, shifting later elements up.
func (n *Node) Insert(i int, v any) error {
	if n.typ != ArrayType {
		return mismatch(n, "an array")
	}
	pos, err := resolveIndex(i, len(n.elems), true)
	if err != nil {
		return err
	}
	c, err := child(v)
	if err != nil {
		return err
	}
	c.parent = n
	n.elems = slices.Insert(n.elems, pos, c)
	return nil
}

// Index returns the element at index i of an array node.
func (n *Node) Index(i int) (*Node, error) {
	if n.typ != ArrayType {
		return nil, mismatch(n, "an array")
	}
	pos, err := resolveIndex(i, len(n.elems), false)
	if err != nil {
		return nil, err
	}
	return n.elems[pos], nil
}

// SetIndex replaces the element at index i of an array node with v.
func (n *Node) SetIndex(i int, v any) error {
	if n.typ != ArrayType {
		return mismatch(n, "an array")
	}
	pos, err := resolveIndex(i, len(n.elems), false)
	if err != nil {
		return err
	}
	c, err := child(v)
	if err != nil {
		return err
	}
	n.elems[pos].parent = nil
	c.parent = n
	n.elems[pos] = c
	return nil
}

// DeleteIndex removes the element at index i of an array node. Later
// elements shift down so indices stay dense.
func (n *Node) DeleteIndex(i int) error {
	if n.typ != ArrayType {
		return mismatch(n, "an array")
	}
	pos, err := resolveIndex(i, len(n.elems), false)
	if err != nil {
		return err
	}
	n.elems[pos].parent = nil
	n.elems = slices.Delete(n.elems, pos, pos+1)
	return nil
}

// Elements yields the index and element of each item of an array node in
// order. It yields nothing for other types.
func (n *Node) Elements() iter.Seq2[int, *Node] {
	return func(yield func(int, *Node) bool) {
		if n.typ != ArrayType {
			return
		}
		for i, e := range n.elems {
			if !yield(i, e) {
				return
			}
		}
	}
}

// adoptArray returns an array node that takes ownership of elems. It is
// reachable only through package adopt.
func adoptArray(elems []*Node) *Node {
	arr := &Node{typ: ArrayType, elems: make([]*Node, len(elems))}
	for i, e := range elems {
		if e.parent != nil {
			e = e.Copy()
		}
		e.parent = arr
		arr.elems[i] = e
	}
	return arr
}
