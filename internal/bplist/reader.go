package bplist

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/KimNorgaard/go-plist/internal/adopt"
	"github.com/KimNorgaard/go-plist/node"
)

// Decoder holds the state of a single binary property list decode.
type Decoder struct {
	data     []byte
	trailer  Trailer
	maxDepth int
	depth    int
	// active marks objects on the current resolution path; a reference
	// back into it is a cycle.
	active map[uint64]bool
	// nodes counts decoded objects against budget, which bounds the
	// expansion of containers shared between several parents.
	nodes, budget uint64
}

// maxExpansion is how many nodes a document may decode to per object
// reference slot it holds.
const maxExpansion = 8

// NewDecoder returns a decoder for data. Containers nested deeper than
// maxDepth are rejected.
func NewDecoder(data []byte, maxDepth int) *Decoder {
	return &Decoder{data: data, maxDepth: maxDepth, active: make(map[uint64]bool)}
}

// Decode parses the document and returns its top object. On failure no
// part of the tree is returned.
func (d *Decoder) Decode() (*node.Node, error) {
	if len(d.data) < headerSize+trailerSize {
		return nil, malformed(0, "document too short (%d bytes)", len(d.data))
	}
	if string(d.data[:headerSize]) != Magic {
		if strings.HasPrefix(string(d.data[:headerSize]), "bplist") {
			return nil, malformed(0, "unsupported version %q", d.data[6:headerSize])
		}
		return nil, malformed(0, "missing %q header", Magic)
	}
	if err := d.readTrailer(); err != nil {
		return nil, err
	}
	slots := (d.trailer.OffsetTableOffset - uint64(headerSize)) / uint64(d.trailer.ObjectRefSize)
	d.nodes, d.budget = 0, maxExpansion*(slots+1)
	return d.object(d.trailer.TopObject)
}

// Trailer returns the trailer read by Decode.
func (d *Decoder) Trailer() Trailer { return d.trailer }

func (d *Decoder) readTrailer() error {
	start := len(d.data) - trailerSize
	t := &d.trailer
	if err := binary.Read(bytes.NewReader(d.data[start:]), binary.BigEndian, t); err != nil {
		return malformed(start, "reading trailer: %v", err)
	}
	if t.OffsetIntSize < 1 || t.OffsetIntSize > 8 {
		return malformed(start+6, "invalid offset size %d", t.OffsetIntSize)
	}
	if t.ObjectRefSize < 1 || t.ObjectRefSize > 8 {
		return malformed(start+7, "invalid object reference size %d", t.ObjectRefSize)
	}
	if t.NumObjects == 0 {
		return malformed(start+8, "document has no objects")
	}
	if t.TopObject >= t.NumObjects {
		return malformed(start+16, "top object %d out of range (%d objects)", t.TopObject, t.NumObjects)
	}
	if t.OffsetTableOffset < uint64(headerSize) || t.OffsetTableOffset > uint64(start) {
		return malformed(start+24, "offset table at %d outside object area", t.OffsetTableOffset)
	}
	tableLen := uint64(start) - t.OffsetTableOffset
	if t.NumObjects > tableLen/uint64(t.OffsetIntSize) {
		return malformed(start+8, "offset table too short for %d objects", t.NumObjects)
	}
	return nil
}

// uint reads a big endian unsigned integer of width bytes at off.
func (d *Decoder) uint(off, width int) uint64 {
	var v uint64
	for _, b := range d.data[off : off+width] {
		v = v<<8 | uint64(b)
	}
	return v
}

// need checks that n bytes starting at off lie inside the object area.
func (d *Decoder) need(off int, n uint64) error {
	limit := d.trailer.OffsetTableOffset
	if off < 0 || uint64(off) > limit || n > limit-uint64(off) {
		return malformed(off, "object of %d bytes runs past the object table", n)
	}
	return nil
}

func (d *Decoder) offset(ref uint64) (int, error) {
	if ref >= d.trailer.NumObjects {
		return 0, malformed(0, "object reference %d out of range (%d objects)", ref, d.trailer.NumObjects)
	}
	size := int(d.trailer.OffsetIntSize)
	entry := int(d.trailer.OffsetTableOffset) + int(ref)*size
	off := d.uint(entry, size)
	if off < uint64(headerSize) || off >= d.trailer.OffsetTableOffset {
		return 0, malformed(entry, "object %d offset %d outside object table", ref, off)
	}
	return int(off), nil
}

// length decodes the count held in the low nibble of a marker at off,
// following an integer object when the nibble is 0xF. It returns the count
// and the offset of the payload.
func (d *Decoder) length(off int, nibble uint8) (uint64, int, error) {
	if nibble != 0x0F {
		return uint64(nibble), off + 1, nil
	}
	if err := d.need(off+1, 1); err != nil {
		return 0, 0, err
	}
	marker := d.data[off+1]
	if marker&0xF0 != bpTagInteger || marker&0x0F > 3 {
		return 0, 0, malformed(off+1, "invalid length marker 0x%02x", marker)
	}
	width := 1 << (marker & 0x0F)
	if err := d.need(off+2, uint64(width)); err != nil {
		return 0, 0, err
	}
	return d.uint(off+2, width), off + 2 + width, nil
}

func (d *Decoder) object(ref uint64) (*node.Node, error) { //nolint:gocyclo
	off, err := d.offset(ref)
	if err != nil {
		return nil, err
	}
	if d.nodes++; d.nodes > d.budget {
		return nil, malformed(off, "document expands to more than %d objects", d.budget)
	}
	if err := d.need(off, 1); err != nil {
		return nil, err
	}
	marker := d.data[off]
	nibble := marker & 0x0F

	switch marker & 0xF0 {
	case bpTagNull:
		switch marker {
		case bpTagNull, bpTagFill:
			return node.NewNull(), nil
		case bpTagBoolFalse:
			return node.NewBool(false), nil
		case bpTagBoolTrue:
			return node.NewBool(true), nil
		}
		return nil, malformed(off, "unknown marker 0x%02x", marker)

	case bpTagInteger:
		if nibble > 4 {
			return nil, malformed(off, "invalid integer width marker 0x%02x", marker)
		}
		width := 1 << nibble
		if err := d.need(off+1, uint64(width)); err != nil {
			return nil, err
		}
		if width == 16 {
			// 128-bit integers keep their low 64 bits.
			return node.NewInteger(d.uint(off+9, 8)), nil
		}
		return node.NewInteger(d.uint(off+1, width)), nil

	case bpTagReal:
		f, err := d.float(off, nibble)
		if err != nil {
			return nil, err
		}
		return node.NewReal(f), nil

	case bpTagDate:
		if marker != bpTagDate|0x3 {
			return nil, malformed(off, "invalid date marker 0x%02x", marker)
		}
		f, err := d.float(off, 3)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, malformed(off, "date is not finite")
		}
		sec := math.Floor(f)
		usec := math.Round((f - sec) * 1e6)
		return node.NewDateOffset(int64(sec), int32(usec)), nil

	case bpTagData:
		n, start, err := d.length(off, nibble)
		if err != nil {
			return nil, err
		}
		if err := d.need(start, n); err != nil {
			return nil, err
		}
		return node.NewData(d.data[start : start+int(n)]), nil

	case bpTagASCIIString, bpTagUTF16String:
		s, err := d.string(off)
		if err != nil {
			return nil, err
		}
		return node.NewString(s), nil

	case bpTagUID:
		width := int(nibble) + 1
		if width > 8 {
			return nil, malformed(off, "uid of %d bytes not supported", width)
		}
		if err := d.need(off+1, uint64(width)); err != nil {
			return nil, err
		}
		return node.NewUID(d.uint(off+1, width)), nil

	case bpTagArray:
		return d.container(ref, off, nibble, false)

	case bpTagDictionary:
		return d.container(ref, off, nibble, true)
	}
	return nil, malformed(off, "unknown marker 0x%02x", marker)
}

func (d *Decoder) float(off int, nibble uint8) (float64, error) {
	switch nibble {
	case 2:
		if err := d.need(off+1, 4); err != nil {
			return 0, err
		}
		return float64(math.Float32frombits(uint32(d.uint(off+1, 4)))), nil
	case 3:
		if err := d.need(off+1, 8); err != nil {
			return 0, err
		}
		return math.Float64frombits(d.uint(off+1, 8)), nil
	}
	return 0, malformed(off, "invalid real width marker 0x%02x", d.data[off])
}

// string decodes an ASCII or UTF-16 string object at off.
func (d *Decoder) string(off int) (string, error) {
	marker := d.data[off]
	n, start, err := d.length(off, marker&0x0F)
	if err != nil {
		return "", err
	}
	switch marker & 0xF0 {
	case bpTagASCIIString:
		if err := d.need(start, n); err != nil {
			return "", err
		}
		return string(d.data[start : start+int(n)]), nil
	case bpTagUTF16String:
		if n > math.MaxInt64/2 {
			return "", malformed(off, "string length %d too large", n)
		}
		if err := d.need(start, 2*n); err != nil {
			return "", err
		}
		b, err := utf16be.NewDecoder().Bytes(d.data[start : start+2*int(n)])
		if err != nil {
			return "", malformed(start, "invalid utf-16 string: %v", err)
		}
		return string(b), nil
	}
	return "", malformed(off, "expected string object, found marker 0x%02x", marker)
}

func (d *Decoder) container(ref uint64, off int, nibble uint8, dict bool) (*node.Node, error) {
	if d.active[ref] {
		return nil, malformed(off, "object %d references itself", ref)
	}
	if d.depth >= d.maxDepth {
		return nil, malformed(off, "reached max recursion depth")
	}
	d.active[ref] = true
	d.depth++
	defer func() {
		delete(d.active, ref)
		d.depth--
	}()

	n, start, err := d.length(off, nibble)
	if err != nil {
		return nil, err
	}
	refSize := uint64(d.trailer.ObjectRefSize)
	count := n
	if dict {
		if n > math.MaxInt64/2 {
			return nil, malformed(off, "dictionary length %d too large", n)
		}
		count = 2 * n
	}
	if count > math.MaxInt64/refSize {
		return nil, malformed(off, "container length %d too large", n)
	}
	if err := d.need(start, count*refSize); err != nil {
		return nil, err
	}
	refAt := func(i int) uint64 {
		return d.uint(start+i*int(refSize), int(refSize))
	}

	if !dict {
		elems := make([]*node.Node, 0, n)
		for i := 0; i < int(n); i++ {
			e, err := d.object(refAt(i))
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return adopt.Array(elems), nil
	}

	keys := make([]string, 0, n)
	vals := make([]*node.Node, 0, n)
	for i := 0; i < int(n); i++ {
		keyOff, err := d.offset(refAt(i))
		if err != nil {
			return nil, err
		}
		key, err := d.string(keyOff)
		if err != nil {
			return nil, err
		}
		v, err := d.object(refAt(int(n) + i))
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	return adopt.Dict(keys, vals)
}
