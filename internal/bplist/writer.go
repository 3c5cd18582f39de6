package bplist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
	"github.com/KimNorgaard/go-plist/node"
)

// object is one entry of the object table before serialisation.
// Scalars are fully encoded; containers keep their child references until
// the reference width is known.
type object struct {
	encoded []byte
	marker  uint8
	refs    []uint64
}

// Encoder flattens a tree into an object table. Equal scalars are written
// once and shared by reference. Containers are numbered before their
// children and dictionaries list all keys before their values, so the
// output matches what Apple's tools write for the same tree.
type Encoder struct {
	objects []object
	scalars map[string]uint64
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{scalars: make(map[string]uint64)}
}

// Encode returns the binary serialisation of root.
func (e *Encoder) Encode(root *node.Node) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: cannot encode nil node", plisterrors.ErrUnsupportedType)
	}
	e.objects = e.objects[:0]
	clear(e.scalars)
	top, err := e.add(root)
	if err != nil {
		return nil, err
	}

	numObjects := uint64(len(e.objects))
	refSize := intWidth(numObjects)

	var buf bytes.Buffer
	buf.WriteString(Magic)
	offsets := make([]uint64, len(e.objects))
	for i, o := range e.objects {
		offsets[i] = uint64(buf.Len())
		if o.encoded != nil {
			buf.Write(o.encoded)
			continue
		}
		count := len(o.refs)
		if o.marker == bpTagDictionary {
			count /= 2
		}
		writeHeader(&buf, o.marker, uint64(count))
		for _, r := range o.refs {
			writeUint(&buf, r, refSize)
		}
	}

	tableOffset := uint64(buf.Len())
	offsetSize := intWidth(tableOffset)
	for _, off := range offsets {
		writeUint(&buf, off, offsetSize)
	}

	t := Trailer{
		OffsetIntSize:     uint8(offsetSize),
		ObjectRefSize:     uint8(refSize),
		NumObjects:        numObjects,
		TopObject:         top,
		OffsetTableOffset: tableOffset,
	}
	if err := binary.Write(&buf, binary.BigEndian, &t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Encoder) add(n *node.Node) (uint64, error) {
	switch n.Type() {
	case node.ArrayType:
		id := e.reserve(bpTagArray)
		refs := make([]uint64, 0, n.Len())
		for _, c := range n.Elements() {
			r, err := e.add(c)
			if err != nil {
				return 0, err
			}
			refs = append(refs, r)
		}
		e.objects[id].refs = refs
		return id, nil

	case node.DictType:
		id := e.reserve(bpTagDictionary)
		refs := make([]uint64, 0, 2*n.Len())
		for k := range n.Keys() {
			refs = append(refs, e.scalar(encodeString(k)))
		}
		for v := range n.Values() {
			r, err := e.add(v)
			if err != nil {
				return 0, err
			}
			refs = append(refs, r)
		}
		e.objects[id].refs = refs
		return id, nil
	}

	b, err := encodeScalar(n)
	if err != nil {
		return 0, err
	}
	return e.scalar(b), nil
}

func (e *Encoder) reserve(marker uint8) uint64 {
	e.objects = append(e.objects, object{marker: marker})
	return uint64(len(e.objects) - 1)
}

// scalar returns the id of an encoded scalar, adding it on first use.
func (e *Encoder) scalar(b []byte) uint64 {
	if id, ok := e.scalars[string(b)]; ok {
		return id
	}
	id := uint64(len(e.objects))
	e.objects = append(e.objects, object{encoded: b})
	e.scalars[string(b)] = id
	return id
}

func encodeScalar(n *node.Node) ([]byte, error) {
	var buf bytes.Buffer
	switch n.Type() {
	case node.NullType:
		buf.WriteByte(bpTagNull)
	case node.BoolType:
		v, _ := n.Bool()
		if v {
			buf.WriteByte(bpTagBoolTrue)
		} else {
			buf.WriteByte(bpTagBoolFalse)
		}
	case node.IntegerType:
		v, _ := n.Uint()
		writeInt(&buf, v)
	case node.RealType:
		v, _ := n.Float()
		buf.WriteByte(bpTagReal | 0x3)
		writeUint(&buf, math.Float64bits(v), 8)
	case node.DateType:
		sec, usec, _ := n.DateOffset()
		buf.WriteByte(bpTagDate | 0x3)
		writeUint(&buf, math.Float64bits(float64(sec)+float64(usec)/1e6), 8)
	case node.DataType:
		v, _ := n.Bytes()
		writeHeader(&buf, bpTagData, uint64(len(v)))
		buf.Write(v)
	case node.StringType, node.KeyType:
		v, _ := n.Text()
		return encodeString(v), nil
	case node.UIDType:
		v, _ := n.UIDValue()
		width := intWidth(v)
		buf.WriteByte(bpTagUID | uint8(width-1))
		writeUint(&buf, v, width)
	default:
		return nil, fmt.Errorf("%w: %s node", plisterrors.ErrUnsupportedType, n.Type())
	}
	return buf.Bytes(), nil
}

// encodeString writes s as ASCII when possible and as UTF-16 otherwise.
func encodeString(s string) []byte {
	var buf bytes.Buffer
	if isASCII(s) {
		writeHeader(&buf, bpTagASCIIString, uint64(len(s)))
		buf.WriteString(s)
		return buf.Bytes()
	}
	if !utf8.ValidString(s) {
		s = string([]rune(s))
	}
	b, _ := utf16be.NewEncoder().Bytes([]byte(s))
	writeHeader(&buf, bpTagUTF16String, uint64(len(b)/2))
	buf.Write(b)
	return buf.Bytes()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// writeHeader writes a marker with count in its low nibble, spilling into a
// following integer object when count does not fit.
func writeHeader(buf *bytes.Buffer, marker uint8, count uint64) {
	if count < 0x0F {
		buf.WriteByte(marker | uint8(count))
		return
	}
	buf.WriteByte(marker | 0x0F)
	writeInt(buf, count)
}

// writeInt writes an integer object in the narrowest width. Values above
// the signed 64-bit range use the 128-bit form so they are not read back
// as negative numbers.
func writeInt(buf *bytes.Buffer, v uint64) {
	if v > math.MaxInt64 {
		buf.WriteByte(bpTagInteger | 0x4)
		writeUint(buf, 0, 8)
		writeUint(buf, v, 8)
		return
	}
	width := intWidth(v)
	var nibble uint8
	switch width {
	case 2:
		nibble = 1
	case 4:
		nibble = 2
	case 8:
		nibble = 3
	}
	buf.WriteByte(bpTagInteger | nibble)
	writeUint(buf, v, width)
}

func writeUint(buf *bytes.Buffer, v uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		buf.WriteByte(byte(v >> (8 * uint(i))))
	}
}
