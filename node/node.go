package node

import (
	"fmt"
	"time"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
)

// Type identifies the variant held by a Node.
type Type uint8

const (
	NullType Type = iota
	BoolType
	IntegerType
	RealType
	StringType
	KeyType
	DataType
	DateType
	UIDType
	ArrayType
	DictType
)

var typeNames = [...]string{
	NullType:    "null",
	BoolType:    "bool",
	IntegerType: "integer",
	RealType:    "real",
	StringType:  "string",
	KeyType:     "key",
	DataType:    "data",
	DateType:    "date",
	UIDType:     "uid",
	ArrayType:   "array",
	DictType:    "dict",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// UID is the projected value of a UID node. It is a distinct type so that
// FromValue can tell an archived-object reference from a plain integer.
type UID uint64

// MacEpoch is the Unix time of the plist reference date,
// 2001-01-01T00:00:00Z. Date payloads are stored relative to it.
const MacEpoch int64 = 978307200

// Node is a single value in a property list tree.
//
// A Node owns its children exclusively. Storing an existing Node into a
// container stores a deep copy of it.
type Node struct {
	typ    Type
	parent *Node

	b    bool
	u    uint64 // IntegerType, UIDType
	f    float64
	s    string // StringType, KeyType
	data []byte
	sec  int64 // DateType, relative to MacEpoch
	usec int32

	// Children of ArrayType and DictType nodes. For dictionaries keys runs
	// parallel to elems and index maps a key to its position.
	elems []*Node
	keys  []string
	index map[string]int
}

// NewNull returns a node marking an absent value.
func NewNull() *Node { return &Node{typ: NullType} }

// NewBool returns a boolean node.
func NewBool(v bool) *Node { return &Node{typ: BoolType, b: v} }

// NewInteger returns an unsigned integer node.
func NewInteger(v uint64) *Node { return &Node{typ: IntegerType, u: v} }

// NewReal returns a floating point node.
func NewReal(v float64) *Node { return &Node{typ: RealType, f: v} }

// NewString returns a string node.
func NewString(v string) *Node { return &Node{typ: StringType, s: v} }

// NewKey returns a key node. Keys are only meaningful as dictionary keys;
// a dictionary stores its keys as text and hands out key nodes on request.
func NewKey(v string) *Node { return &Node{typ: KeyType, s: v} }

// NewData returns a data node holding a copy of v.
func NewData(v []byte) *Node {
	return &Node{typ: DataType, data: append([]byte{}, v...)}
}

// NewUID returns a UID node.
func NewUID(v uint64) *Node { return &Node{typ: UIDType, u: v} }

// NewDate returns a date node for t. Sub-microsecond precision is dropped.
func NewDate(t time.Time) *Node {
	return NewDateOffset(t.Unix()-MacEpoch, int32(t.Nanosecond()/1000))
}

// NewDateOffset returns a date node sec seconds and usec microseconds after
// 2001-01-01T00:00:00Z.
func NewDateOffset(sec int64, usec int32) *Node {
	n := &Node{typ: DateType}
	n.setDateOffset(sec, usec)
	return n
}

// NewArray returns an empty array node.
func NewArray() *Node { return &Node{typ: ArrayType, elems: []*Node{}} }

// NewDict returns an empty dictionary node.
func NewDict() *Node {
	return &Node{typ: DictType, elems: []*Node{}, keys: []string{}, index: map[string]int{}}
}

// Type reports the variant of n.
func (n *Node) Type() Type { return n.typ }

// Parent returns the container holding n, or nil for a root. The link is
// informational only; the parent owns n, never the other way round.
func (n *Node) Parent() *Node { return n.parent }

// Len returns the number of children of an array or dictionary node and
// zero for every other type.
func (n *Node) Len() int {
	if n.typ == ArrayType || n.typ == DictType {
		return len(n.elems)
	}
	return 0
}

func (n *Node) setDateOffset(sec int64, usec int32) {
	sec += int64(usec / 1e6)
	usec %= 1e6
	if usec < 0 {
		usec += 1e6
		sec--
	}
	n.sec, n.usec = sec, usec
}

// Copy returns a deep copy of n that shares no state with it.
// The copy has no parent.
func (n *Node) Copy() *Node {
	c := &Node{
		typ:  n.typ,
		b:    n.b,
		u:    n.u,
		f:    n.f,
		s:    n.s,
		sec:  n.sec,
		usec: n.usec,
	}
	if n.data != nil {
		c.data = append([]byte{}, n.data...)
	}
	switch n.typ {
	case ArrayType:
		c.elems = make([]*Node, len(n.elems))
		for i, e := range n.elems {
			c.elems[i] = e.Copy()
			c.elems[i].parent = c
		}
	case DictType:
		c.elems = make([]*Node, len(n.elems))
		c.keys = append([]string{}, n.keys...)
		c.index = make(map[string]int, len(n.keys))
		for i, e := range n.elems {
			c.elems[i] = e.Copy()
			c.elems[i].parent = c
			c.index[n.keys[i]] = i
		}
	}
	return c
}

// String renders a short human readable form of n.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.typ {
	case NullType:
		return "null"
	case StringType, KeyType:
		return n.s
	case DataType:
		return fmt.Sprintf("<data: %d bytes>", len(n.data))
	case DateType:
		return n.timeValue().Format(time.RFC3339)
	case UIDType:
		return fmt.Sprintf("CF$UID(%d)", n.u)
	case ArrayType:
		return fmt.Sprintf("<array: %d items>", len(n.elems))
	case DictType:
		return fmt.Sprintf("<dict: %d items>", len(n.elems))
	default:
		return fmt.Sprint(n.Value())
	}
}

func mismatch(n *Node, want string) error {
	return fmt.Errorf("%w: %s node is not %s", plisterrors.ErrTypeMismatch, n.typ, want)
}
