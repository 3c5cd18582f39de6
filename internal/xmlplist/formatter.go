package xmlplist

import (
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
	"github.com/KimNorgaard/go-plist/node"
)

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	docType   = `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n"
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#13;",
)

// text escapes s for character content. Invalid UTF-8 and code points
// XML 1.0 cannot carry, even as character references, are rejected.
func text(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: string %q is not valid UTF-8", plisterrors.ErrUnsupportedType, truncate(s))
	}
	for _, r := range s {
		if !isXMLChar(r) {
			return "", fmt.Errorf("%w: string %q contains control character %U", plisterrors.ErrUnsupportedType, truncate(s), r)
		}
	}
	return textEscaper.Replace(s), nil
}

func isXMLChar(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= utf8.MaxRune
}

// Formatter writes a property list tree as an XML document.
type Formatter struct {
	w        io.Writer
	indent   string
	wrapData int
	depth    int
}

// NewFormatter returns a formatter writing to w. An empty indent produces
// compact output. A positive wrapData splits <data> content into lines of
// that many base64 characters.
func NewFormatter(w io.Writer, indent string, wrapData int) *Formatter {
	return &Formatter{w: w, indent: indent, wrapData: wrapData}
}

// Format writes the complete document wrapping root.
func (f *Formatter) Format(root *node.Node) error {
	if root == nil {
		return fmt.Errorf("%w: cannot encode nil node", plisterrors.ErrUnsupportedType)
	}
	if err := f.write(xmlHeader + docType + `<plist version="1.0">` + "\n"); err != nil {
		return err
	}
	f.depth = 0
	if err := f.writeNode(root); err != nil {
		return err
	}
	return f.write("\n</plist>\n")
}

func (f *Formatter) write(s string) error {
	_, err := io.WriteString(f.w, s)
	return err
}

func (f *Formatter) newline() error {
	if f.indent == "" {
		return nil
	}
	return f.write("\n" + strings.Repeat(f.indent, f.depth))
}

func (f *Formatter) element(name, content string) error {
	return f.write("<" + name + ">" + content + "</" + name + ">")
}

func (f *Formatter) writeNode(n *node.Node) error { //nolint:gocyclo
	switch n.Type() {
	case node.BoolType:
		v, _ := n.Bool()
		if v {
			return f.write("<true/>")
		}
		return f.write("<false/>")
	case node.IntegerType:
		v, _ := n.Uint()
		return f.element("integer", strconv.FormatUint(v, 10))
	case node.RealType:
		v, _ := n.Float()
		return f.element("real", formatReal(v))
	case node.StringType, node.KeyType:
		v, _ := n.Text()
		t, err := text(v)
		if err != nil {
			return err
		}
		return f.element("string", t)
	case node.DataType:
		v, _ := n.Bytes()
		return f.writeData(v)
	case node.DateType:
		v, _ := n.Time()
		if y := v.Year(); y < 0 || y > 9999 {
			return fmt.Errorf("%w: date year %d outside 0000-9999", plisterrors.ErrUnsupportedType, y)
		}
		return f.element("date", v.Format(DateLayout))
	case node.UIDType:
		v, _ := n.UIDValue()
		return f.writeUID(v)
	case node.ArrayType:
		return f.writeArray(n)
	case node.DictType:
		return f.writeDict(n)
	default:
		return fmt.Errorf("%w: %s node has no XML representation", plisterrors.ErrUnsupportedType, n.Type())
	}
}

func (f *Formatter) writeArray(n *node.Node) error {
	if n.Len() == 0 {
		return f.write("<array/>")
	}
	if err := f.write("<array>"); err != nil {
		return err
	}
	f.depth++
	for _, e := range n.Elements() {
		if err := f.newline(); err != nil {
			return err
		}
		if err := f.writeNode(e); err != nil {
			return err
		}
	}
	f.depth--
	if err := f.newline(); err != nil {
		return err
	}
	return f.write("</array>")
}

func (f *Formatter) writeDict(n *node.Node) error {
	if n.Len() == 0 {
		return f.write("<dict/>")
	}
	if err := f.write("<dict>"); err != nil {
		return err
	}
	f.depth++
	for k, v := range n.Items() {
		if err := f.newline(); err != nil {
			return err
		}
		key, err := text(k)
		if err != nil {
			return err
		}
		if err := f.element("key", key); err != nil {
			return err
		}
		if err := f.newline(); err != nil {
			return err
		}
		if err := f.writeNode(v); err != nil {
			return err
		}
	}
	f.depth--
	if err := f.newline(); err != nil {
		return err
	}
	return f.write("</dict>")
}

// writeUID writes a UID the way keyed archives spell it in XML.
func (f *Formatter) writeUID(v uint64) error {
	d := node.NewDict()
	if err := d.Set(uidKey, v); err != nil {
		return err
	}
	return f.writeDict(d)
}

func (f *Formatter) writeData(b []byte) error {
	enc := base64.StdEncoding.EncodeToString(b)
	if f.wrapData <= 0 || len(enc) <= f.wrapData || f.indent == "" {
		return f.element("data", enc)
	}
	if err := f.write("<data>"); err != nil {
		return err
	}
	for len(enc) > 0 {
		line := enc[:min(f.wrapData, len(enc))]
		enc = enc[len(line):]
		if err := f.newline(); err != nil {
			return err
		}
		if err := f.write(line); err != nil {
			return err
		}
	}
	if err := f.newline(); err != nil {
		return err
	}
	return f.write("</data>")
}

func formatReal(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "+infinity"
	case math.IsInf(v, -1):
		return "-infinity"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
