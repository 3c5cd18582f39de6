package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	plist "github.com/KimNorgaard/go-plist"
)

func parseFormat(s string) (plist.Format, error) {
	switch s {
	case "xml", "xml1":
		return plist.XMLFormat, nil
	case "binary", "binary1":
		return plist.BinaryFormat, nil
	}
	return 0, fmt.Errorf("unknown format %q (want xml or binary)", s)
}

// NewConvertCmd creates the convert subcommand.
func NewConvertCmd(files Files) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert -f xml|binary [-o out] <file>",
		Short: "Rewrite a property list in the given format",
		Long: "Rewrite a property list in the given format. Without -o the input file is\n" +
			"replaced; the path - reads standard input and writes standard output.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("format")
			format, err := parseFormat(name)
			if err != nil {
				return err
			}

			in := args[0]
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = in
			}

			n, err := load(cmd, files, in)
			if err != nil {
				return err
			}

			var opts []plist.Option
			if cmd.Flags().Changed("indent") {
				spaces, _ := cmd.Flags().GetInt("indent")
				opts = append(opts, plist.Indent(spaces))
			}
			if width, _ := cmd.Flags().GetInt("wrap-data"); width > 0 {
				opts = append(opts, plist.WrapData(width))
			}
			data, err := plist.Encode(n, format, opts...)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", in, err)
			}
			if err := writeOutput(cmd, files, out, data); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			return nil
		},
	}

	cmd.Flags().StringP("format", "f", "", "output format: xml or binary")
	cmd.Flags().StringP("output", "o", "", "output path (default: replace the input)")
	cmd.Flags().Int("indent", 0, "indent XML output by this many spaces (default: tabs)")
	cmd.Flags().Int("wrap-data", 0, "wrap base64 <data> in XML output at this width")
	_ = cmd.MarkFlagRequired("format")

	return cmd
}
