package cli

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/KimNorgaard/go-plist/node"
)

// colors holds one formatting function per kind of token in tree output.
type colors struct {
	key, str, num, lit, data, punct func(string, ...any) string
	// removed and added mark lines in diff output.
	removed, added func(string, ...any) string
}

func newColors() *colors {
	fn := func(attrs ...color.Attribute) func(string, ...any) string {
		c := color.New(attrs...)
		c.EnableColor()
		return c.SprintfFunc()
	}
	return &colors{
		key:   fn(color.FgHiBlue, color.Bold),
		str:   fn(color.FgGreen),
		num:   fn(color.FgCyan),
		lit:   fn(color.FgMagenta),
		data:  fn(color.FgYellow),
		punct: fn(color.FgHiBlack),

		removed: fn(color.FgRed),
		added:   fn(color.FgGreen),
	}
}

func plainColors() *colors {
	plain := func(format string, a ...any) string { return fmt.Sprintf(format, a...) }
	return &colors{
		key: plain, str: plain, num: plain, lit: plain, data: plain, punct: plain,
		removed: plain, added: plain,
	}
}

// colorsFor picks coloured output when w is a terminal, unless mode
// overrides it.
func colorsFor(w io.Writer, mode string) (*colors, error) {
	switch mode {
	case "always":
		return newColors(), nil
	case "never":
		return plainColors(), nil
	case "", "auto":
		f, ok := w.(*os.File)
		if ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			return newColors(), nil
		}
		return plainColors(), nil
	}
	return nil, fmt.Errorf("unknown color mode %q (want auto, always or never)", mode)
}

const maxDataPreview = 32

// scalar renders a non-container node on one line.
func (c *colors) scalar(n *node.Node) string {
	switch n.Type() {
	case node.NullType:
		return c.lit("null")
	case node.BoolType:
		b, _ := n.Bool()
		return c.lit("%t", b)
	case node.IntegerType:
		u, _ := n.Uint()
		return c.num("%d", u)
	case node.RealType:
		f, _ := n.Float()
		return c.num("%s", strconv.FormatFloat(f, 'g', -1, 64))
	case node.StringType, node.KeyType:
		s, _ := n.Text()
		return c.str("%s", strconv.Quote(s))
	case node.DataType:
		b, _ := n.Bytes()
		preview := b
		if len(preview) > maxDataPreview {
			preview = preview[:maxDataPreview]
		}
		suffix := ""
		if len(b) > len(preview) {
			suffix = "..."
		}
		return c.data("{length = %d, bytes = 0x%s%s}", len(b), hex.EncodeToString(preview), suffix)
	case node.DateType:
		t, _ := n.Time()
		return c.data("%s", t.Format(time.RFC3339))
	case node.UIDType:
		u, _ := n.UIDValue()
		return c.lit("CF$UID(%d)", u)
	}
	return n.String()
}

// writeTree renders n as an indented outline: one line per scalar, with
// dictionary keys and array indices leading each line.
func writeTree(w io.Writer, n *node.Node, c *colors) error {
	var buf bytes.Buffer
	if n == nil {
		buf.WriteString(c.punct("(empty)"))
		buf.WriteByte('\n')
	} else {
		c.tree(&buf, n, 0)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func isContainer(n *node.Node) bool {
	return n.Type() == node.ArrayType || n.Type() == node.DictType
}

func (c *colors) tree(buf *bytes.Buffer, n *node.Node, depth int) {
	switch {
	case !isContainer(n):
		buf.WriteString(c.scalar(n))
		buf.WriteByte('\n')
		return
	case n.Len() == 0 && n.Type() == node.ArrayType:
		buf.WriteString(c.punct("[]"))
		buf.WriteByte('\n')
		return
	case n.Len() == 0:
		buf.WriteString(c.punct("{}"))
		buf.WriteByte('\n')
		return
	}

	indent := strings.Repeat("  ", depth)
	entry := func(label string, v *node.Node) {
		buf.WriteString(indent)
		buf.WriteString(label)
		buf.WriteString(c.punct(":"))
		if isContainer(v) && v.Len() > 0 {
			buf.WriteByte('\n')
		} else {
			buf.WriteByte(' ')
		}
		c.tree(buf, v, depth+1)
	}
	if n.Type() == node.ArrayType {
		for i, e := range n.Elements() {
			entry(c.punct("[%d]", i), e)
		}
		return
	}
	for k, v := range n.Items() {
		entry(c.key("%s", k), v)
	}
}

// yamlNode converts n to a YAML node, keeping dictionary order.
func yamlNode(n *node.Node) *yaml.Node {
	scalar := func(tag, value string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	}
	switch n.Type() {
	case node.NullType:
		return scalar("!!null", "null")
	case node.BoolType:
		b, _ := n.Bool()
		return scalar("!!bool", strconv.FormatBool(b))
	case node.IntegerType:
		u, _ := n.Uint()
		return scalar("!!int", strconv.FormatUint(u, 10))
	case node.UIDType:
		u, _ := n.UIDValue()
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Style: yaml.FlowStyle}
		m.Content = append(m.Content, scalar("!!str", "CF$UID"), scalar("!!int", strconv.FormatUint(u, 10)))
		return m
	case node.RealType:
		f, _ := n.Float()
		return scalar("!!float", yamlFloat(f))
	case node.StringType, node.KeyType:
		s, _ := n.Text()
		return scalar("!!str", s)
	case node.DataType:
		b, _ := n.Bytes()
		return scalar("!!binary", base64.StdEncoding.EncodeToString(b))
	case node.DateType:
		t, _ := n.Time()
		return scalar("!!timestamp", t.Format(time.RFC3339))
	case node.ArrayType:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range n.Elements() {
			seq.Content = append(seq.Content, yamlNode(e))
		}
		return seq
	case node.DictType:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for k, v := range n.Items() {
			m.Content = append(m.Content, scalar("!!str", k), yamlNode(v))
		}
		return m
	}
	return scalar("!!str", n.String())
}

func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeYAML(w io.Writer, n *node.Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if n == nil {
		n = node.NewNull()
	}
	if err := enc.Encode(yamlNode(n)); err != nil {
		return err
	}
	return enc.Close()
}

// writeJSON renders n as indented JSON, keeping dictionary order. Data is
// base64 text, dates are RFC 3339 text, and non-finite reals are strings.
func writeJSON(w io.Writer, n *node.Node) error {
	var buf bytes.Buffer
	if n == nil {
		buf.WriteString("null")
	} else if err := appendJSON(&buf, n); err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func appendJSON(buf *bytes.Buffer, n *node.Node) error {
	switch n.Type() {
	case node.ArrayType:
		buf.WriteByte('[')
		for i, e := range n.Elements() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case node.DictType:
		buf.WriteByte('{')
		first := true
		for k, v := range n.Items() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := appendJSON(buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	}

	var v any
	switch n.Type() {
	case node.RealType:
		f, _ := n.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			v = strconv.FormatFloat(f, 'g', -1, 64)
		} else {
			v = f
		}
	case node.DateType:
		t, _ := n.Time()
		v = t.Format(time.RFC3339)
	case node.UIDType:
		u, _ := n.UIDValue()
		v = map[string]uint64{"CF$UID": u}
	default:
		// []byte marshals as base64.
		v = n.Value()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
