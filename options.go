package plist

import (
	"fmt"
	"strings"
)

const defaultMaxDepth = 1000

// Option configures encoding and decoding.
type Option func(*options) error

type options struct {
	indent   *int
	maxDepth int
	wrapData int
}

func newOptions(opts []Option) (*options, error) {
	o := &options{maxDepth: defaultMaxDepth}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// indentString returns the per-level indentation of XML output. Without
// the Indent option a tab is used, as Apple's tools do.
func (o *options) indentString() string {
	if o.indent == nil {
		return "\t"
	}
	return strings.Repeat(" ", *o.indent)
}

// Indent returns an Option that indents XML output by the given number of
// spaces per level. Indent(0) produces compact output.
func Indent(spaces int) Option {
	return func(o *options) error {
		if spaces < 0 {
			return fmt.Errorf("plist: indent spaces cannot be negative")
		}
		o.indent = &spaces
		return nil
	}
}

// MaxDepth returns an Option that sets the maximum container nesting
// accepted while decoding. This guards against stack exhaustion on
// hostile documents.
//
// The depth n must be a positive integer.
func MaxDepth(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("plist: max depth must be a positive integer")
		}
		o.maxDepth = n
		return nil
	}
}

// WrapData returns an Option that splits base64 <data> content in XML
// output into lines of at most width characters. Zero disables wrapping.
func WrapData(width int) Option {
	return func(o *options) error {
		if width < 0 {
			return fmt.Errorf("plist: data wrap width cannot be negative")
		}
		o.wrapData = width
		return nil
	}
}
