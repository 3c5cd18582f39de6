// Package xmlplist reads and writes the XML property list format.
package xmlplist

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
	"github.com/KimNorgaard/go-plist/internal/adopt"
	"github.com/KimNorgaard/go-plist/node"
)

// DateLayout is the layout of <date> content.
const DateLayout = "2006-01-02T15:04:05Z"

// uidKey is the single key of a dictionary standing in for a UID.
const uidKey = "CF$UID"

// Parser holds the state of a single XML property list decode.
type Parser struct {
	d        *xml.Decoder
	maxDepth int
	depth    int
}

// NewParser returns a parser for data. Containers nested deeper than
// maxDepth are rejected.
func NewParser(data []byte, maxDepth int) *Parser {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = true
	return &Parser{d: d, maxDepth: maxDepth}
}

// Parse parses the document. It returns a nil node for a <plist> element
// without content. On failure no part of the tree is returned.
func (p *Parser) Parse() (*node.Node, error) {
	start, err := p.nextStart("document")
	if err != nil {
		return nil, err
	}

	var root *node.Node
	if start.Name.Local == "plist" {
		tok, err := p.nextElement("plist")
		if err != nil {
			return nil, err
		}
		if s, ok := tok.(xml.StartElement); ok {
			if root, err = p.value(s); err != nil {
				return nil, err
			}
			if tok, err = p.nextElement("plist"); err != nil {
				return nil, err
			}
		}
		if _, ok := tok.(xml.EndElement); !ok {
			return nil, p.errorf("plist holds more than one value")
		}
	} else {
		if root, err = p.value(start); err != nil {
			return nil, err
		}
	}

	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return root, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	line, col := p.d.InputPos()
	return &plisterrors.DecodeError{Format: "xml", Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

// token returns the next token, translating decoder failures.
func (p *Parser) token(context string) (xml.Token, error) {
	tok, err := p.d.Token()
	if err == nil {
		return tok, nil
	}
	if errors.Is(err, io.EOF) {
		return nil, p.errorf("unterminated %s", context)
	}
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		if syntaxErr.Msg == "unexpected EOF" {
			return nil, p.errorf("unterminated %s", context)
		}
		return nil, &plisterrors.DecodeError{Format: "xml", Line: syntaxErr.Line, Message: syntaxErr.Msg}
	}
	return nil, p.errorf("%v", err)
}

// nextElement skips comments, processing instructions, directives and
// whitespace, and returns the next start or end element.
func (p *Parser) nextElement(context string) (xml.Token, error) {
	for {
		tok, err := p.token(context)
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement, xml.EndElement:
			return t, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, p.errorf("unexpected text %q in %s", truncate(string(t)), context)
			}
		}
	}
}

func (p *Parser) nextStart(context string) (xml.StartElement, error) {
	tok, err := p.nextElement(context)
	if err != nil {
		return xml.StartElement{}, err
	}
	s, ok := tok.(xml.StartElement)
	if !ok {
		return xml.StartElement{}, p.errorf("unexpected </%s> in %s", tok.(xml.EndElement).Name.Local, context)
	}
	return s, nil
}

func (p *Parser) expectEOF() error {
	for {
		tok, err := p.d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return p.errorf("%v", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return p.errorf("unexpected text after document")
			}
		case xml.Comment, xml.ProcInst, xml.Directive:
		default:
			return p.errorf("unexpected content after document")
		}
	}
}

// text returns the character data of the element just opened as name,
// consuming its end tag.
func (p *Parser) text(name string) (string, error) {
	var sb strings.Builder
	for {
		tok, err := p.token("<" + name + ">")
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			return sb.String(), nil
		case xml.StartElement:
			return "", p.errorf("unexpected <%s> inside <%s>", t.Name.Local, name)
		}
	}
}

func (p *Parser) value(start xml.StartElement) (*node.Node, error) { //nolint:gocyclo
	name := start.Name.Local
	switch name {
	case "true", "false":
		s, err := p.text(name)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) != "" {
			return nil, p.errorf("<%s> must be empty", name)
		}
		return node.NewBool(name == "true"), nil

	case "integer":
		v, err := p.integer(name)
		if err != nil {
			return nil, err
		}
		return node.NewInteger(v), nil

	case "uid":
		v, err := p.integer(name)
		if err != nil {
			return nil, err
		}
		return node.NewUID(v), nil

	case "real":
		s, err := p.text(name)
		if err != nil {
			return nil, err
		}
		f, ok := parseReal(strings.TrimSpace(s))
		if !ok {
			return nil, p.errorf("invalid real %q", truncate(s))
		}
		return node.NewReal(f), nil

	case "string":
		s, err := p.text(name)
		if err != nil {
			return nil, err
		}
		return node.NewString(s), nil

	case "key":
		s, err := p.text(name)
		if err != nil {
			return nil, err
		}
		return node.NewKey(s), nil

	case "data":
		s, err := p.text(name)
		if err != nil {
			return nil, err
		}
		b, err := decodeBase64(s)
		if err != nil {
			return nil, p.errorf("invalid base64 data: %v", err)
		}
		return node.NewData(b), nil

	case "date":
		s, err := p.text(name)
		if err != nil {
			return nil, err
		}
		t, err := parseDate(strings.TrimSpace(s))
		if err != nil {
			return nil, p.errorf("invalid date %q", truncate(s))
		}
		return node.NewDate(t), nil

	case "array":
		return p.array()

	case "dict":
		return p.dict()
	}
	return nil, p.errorf("unknown element <%s>", name)
}

func (p *Parser) enter() error {
	if p.depth >= p.maxDepth {
		return p.errorf("reached max recursion depth")
	}
	p.depth++
	return nil
}

func (p *Parser) array() (*node.Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	var elems []*node.Node
	for {
		tok, err := p.nextElement("<array>")
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			return adopt.Array(elems), nil
		}
		e, err := p.value(start)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
}

func (p *Parser) dict() (*node.Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	var keys []string
	var vals []*node.Node
	for {
		tok, err := p.nextElement("<dict>")
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			break
		}
		if start.Name.Local != "key" {
			return nil, p.errorf("expected <key> in <dict>, got <%s>", start.Name.Local)
		}
		key, err := p.text("key")
		if err != nil {
			return nil, err
		}
		vstart, err := p.nextStart("<dict>")
		if err != nil {
			return nil, err
		}
		if vstart.Name.Local == "key" {
			return nil, p.errorf("missing value for key %q", key)
		}
		v, err := p.value(vstart)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}

	if len(keys) == 1 && keys[0] == uidKey && vals[0].Type() == node.IntegerType {
		u, _ := vals[0].Uint()
		return node.NewUID(u), nil
	}
	return adopt.Dict(keys, vals)
}

func (p *Parser) integer(name string) (uint64, error) {
	s, err := p.text(name)
	if err != nil {
		return 0, err
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: <%s>%s</%s>", plisterrors.ErrNegativeValue, name, s, name)
	}
	s = strings.TrimPrefix(s, "+")
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, p.errorf("invalid integer %q", truncate(s))
	}
	return v, nil
}

func parseReal(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "nan":
		return math.NaN(), true
	case "inf", "+inf", "infinity", "+infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// decodeBase64 decodes base64 content, ignoring embedded whitespace and
// tolerating missing padding.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return b, nil
}

func truncate(s string) string {
	const limit = 32
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
