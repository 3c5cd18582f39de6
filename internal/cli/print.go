package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPrintCmd creates the print subcommand.
func NewPrintCmd(files Files) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print [-o tree|yaml|json] <file>",
		Short: "Print the contents of a property list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := load(cmd, files, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			output, _ := cmd.Flags().GetString("output")
			switch output {
			case "tree":
				mode, _ := cmd.Flags().GetString("color")
				c, err := colorsFor(out, mode)
				if err != nil {
					return err
				}
				return writeTree(out, n, c)
			case "yaml":
				return writeYAML(out, n)
			case "json":
				return writeJSON(out, n)
			}
			return fmt.Errorf("unknown output %q (want tree, yaml or json)", output)
		},
	}

	cmd.Flags().StringP("output", "o", "tree", "output style: tree, yaml or json")
	cmd.Flags().String("color", "auto", "colour tree output: auto, always or never")

	return cmd
}
