package node

import (
	"fmt"
	"iter"
	"slices"
	"strconv"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
)

// Get returns the value stored under key in a dictionary node.
func (n *Node) Get(key string) (*Node, error) {
	if n.typ != DictType {
		return nil, mismatch(n, "a dict")
	}
	i, ok := n.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", plisterrors.ErrKeyNotFound, key)
	}
	return n.elems[i], nil
}

// Contains reports whether a dictionary node has key.
func (n *Node) Contains(key string) bool {
	if n.typ != DictType {
		return false
	}
	_, ok := n.index[key]
	return ok
}

// Set stores v under key in a dictionary node. An existing key keeps its
// position; a new key is appended.
func (n *Node) Set(key string, v any) error {
	if n.typ != DictType {
		return mismatch(n, "a dict")
	}
	c, err := child(v)
	if err != nil {
		return err
	}
	n.put(key, c)
	return nil
}

// put stores c under key without copying it.
func (n *Node) put(key string, c *Node) {
	c.parent = n
	if i, ok := n.index[key]; ok {
		n.elems[i].parent = nil
		n.elems[i] = c
		return
	}
	n.index[key] = len(n.keys)
	n.keys = append(n.keys, key)
	n.elems = append(n.elems, c)
}

// Delete removes key from a dictionary node.
func (n *Node) Delete(key string) error {
	if n.typ != DictType {
		return mismatch(n, "a dict")
	}
	i, ok := n.index[key]
	if !ok {
		return fmt.Errorf("%w: %q", plisterrors.ErrKeyNotFound, key)
	}
	n.elems[i].parent = nil
	n.keys = slices.Delete(n.keys, i, i+1)
	n.elems = slices.Delete(n.elems, i, i+1)
	delete(n.index, key)
	for j := i; j < len(n.keys); j++ {
		n.index[n.keys[j]] = j
	}
	return nil
}

// Keys yields the keys of a dictionary node in insertion order.
func (n *Node) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		if n.typ != DictType {
			return
		}
		for _, k := range n.keys {
			if !yield(k) {
				return
			}
		}
	}
}

// Values yields the values of a dictionary node in insertion order.
func (n *Node) Values() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if n.typ != DictType {
			return
		}
		for _, e := range n.elems {
			if !yield(e) {
				return
			}
		}
	}
}

// Items yields the key and value of each entry of a dictionary node in
// insertion order.
func (n *Node) Items() iter.Seq2[string, *Node] {
	return func(yield func(string, *Node) bool) {
		if n.typ != DictType {
			return
		}
		for i, e := range n.elems {
			if !yield(n.keys[i], e) {
				return
			}
		}
	}
}

// Lookup walks a path of dictionary keys and array indices starting at n.
// Array steps are decimal indices and may be negative.
func (n *Node) Lookup(path ...string) (*Node, error) {
	cur := n
	for _, step := range path {
		switch cur.typ {
		case DictType:
			next, err := cur.Get(step)
			if err != nil {
				return nil, err
			}
			cur = next
		case ArrayType:
			i, err := strconv.Atoi(step)
			if err != nil {
				return nil, fmt.Errorf("%w: array index %q is not a number", plisterrors.ErrTypeMismatch, step)
			}
			next, err := cur.Index(i)
			if err != nil {
				return nil, err
			}
			cur = next
		default:
			return nil, fmt.Errorf("%w: cannot descend into %s node at %q", plisterrors.ErrTypeMismatch, cur.typ, step)
		}
	}
	return cur, nil
}

// adoptDict is the dictionary counterpart of adoptArray.
func adoptDict(keys []string, vals []*Node) (*Node, error) {
	if len(keys) != len(vals) {
		return nil, fmt.Errorf("%w: %d keys for %d values", plisterrors.ErrTypeMismatch, len(keys), len(vals))
	}
	dict := NewDict()
	for i, v := range vals {
		if v.parent != nil {
			v = v.Copy()
		}
		dict.put(keys[i], v)
	}
	return dict, nil
}
