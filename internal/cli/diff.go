package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/KimNorgaard/go-plist/node"
)

// NewDiffCmd creates the diff subcommand.
func NewDiffCmd(files Files) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Compare two property lists",
		Long: `Compare two property lists, whatever their format.

Dictionaries holding the same entries in a different order are equal. When
the documents differ, a line diff of their outlines is printed and the
command fails.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd, files, args[0])
			if err != nil {
				return err
			}
			b, err := load(cmd, files, args[1])
			if err != nil {
				return err
			}
			if sameDocument(a, b) {
				return nil
			}

			out := cmd.OutOrStdout()
			mode, _ := cmd.Flags().GetString("color")
			c, err := colorsFor(out, mode)
			if err != nil {
				return err
			}
			var from, to bytes.Buffer
			if err := writeTree(&from, a, plainColors()); err != nil {
				return err
			}
			if err := writeTree(&to, b, plainColors()); err != nil {
				return err
			}
			if err := writeDiff(out, from.String(), to.String(), c); err != nil {
				return err
			}
			return fmt.Errorf("%s and %s differ", args[0], args[1])
		},
	}
	cmd.Flags().String("color", "auto", "colour diff output: auto, always or never")
	return cmd
}

// sameDocument reports whether a and b hold the same tree. Two empty
// documents are the same.
func sameDocument(a, b *node.Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	eq, err := node.Equal(a, b)
	return err == nil && eq
}

// writeDiff writes a line diff of two renderings. Removed lines start with
// "- ", added lines with "+ " and common lines with two spaces.
func writeDiff(w io.Writer, from, to string, c *colors) error {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var buf bytes.Buffer
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = strings.TrimSuffix(line, "\n")
			switch d.Type {
			case diffpatch.DiffDelete:
				buf.WriteString(c.removed("- %s", line))
			case diffpatch.DiffInsert:
				buf.WriteString(c.added("+ %s", line))
			default:
				buf.WriteString("  " + line)
			}
			buf.WriteByte('\n')
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}
