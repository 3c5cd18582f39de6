package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KimNorgaard/go-plist/node"
)

// NewGetCmd creates the get subcommand.
func NewGetCmd(files Files) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <file> <path...>",
		Short: "Print the value at a key path",
		Long: "Print the value at a key path. Each path element is a dictionary key or\n" +
			"an array index; negative indices count from the end.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := load(cmd, files, args[0])
			if err != nil {
				return err
			}
			if root == nil {
				return fmt.Errorf("%s: document is empty", args[0])
			}
			n, err := root.Lookup(args[1:]...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch n.Type() {
			case node.StringType, node.KeyType:
				s, _ := n.Text()
				_, err = fmt.Fprintln(out, s)
				return err
			}
			mode, _ := cmd.Flags().GetString("color")
			c, err := colorsFor(out, mode)
			if err != nil {
				return err
			}
			return writeTree(out, n, c)
		},
	}

	cmd.Flags().String("color", "auto", "colour output: auto, always or never")

	return cmd
}
