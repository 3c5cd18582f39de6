// Package bplist reads and writes the binary property list format,
// version "bplist00".
package bplist

import (
	"fmt"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
	"golang.org/x/text/encoding/unicode"
)

// Magic is the header of every binary property list.
const Magic = "bplist00"

const (
	headerSize  = len(Magic)
	trailerSize = 32
)

// Trailer is the fixed footer of a binary property list. All integers are
// big endian. Fields are in Apple's order, offset size before ref size.
type Trailer struct {
	Unused            [5]uint8
	SortVersion       uint8
	OffsetIntSize     uint8
	ObjectRefSize     uint8
	NumObjects        uint64
	TopObject         uint64
	OffsetTableOffset uint64
}

// Object markers. The high nibble selects the type; the low nibble holds
// a size, a length, or a fixed value.
const (
	bpTagNull        uint8 = 0x00
	bpTagBoolFalse   uint8 = 0x08
	bpTagBoolTrue    uint8 = 0x09
	bpTagFill        uint8 = 0x0F
	bpTagInteger     uint8 = 0x10
	bpTagReal        uint8 = 0x20
	bpTagDate        uint8 = 0x30
	bpTagData        uint8 = 0x40
	bpTagASCIIString uint8 = 0x50
	bpTagUTF16String uint8 = 0x60
	bpTagUID         uint8 = 0x80
	bpTagArray       uint8 = 0xA0
	bpTagDictionary  uint8 = 0xD0
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// intWidth returns the smallest of 1, 2, 4 or 8 bytes that holds v.
func intWidth(v uint64) int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	case v <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

func malformed(offset int, format string, args ...any) error {
	return &plisterrors.DecodeError{Format: "binary", Offset: int64(offset), Message: fmt.Sprintf(format, args...)}
}
