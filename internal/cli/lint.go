package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLintCmd creates the lint subcommand.
func NewLintCmd(files Files) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "lint <file...>",
		Short: "Check that files are well-formed property lists",
		Long: `Check that files are well-formed property lists.

With --watch the files are checked again whenever they change, until the
command is interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			lint := func(path string) bool {
				if _, err := load(cmd, files, path); err != nil {
					fmt.Fprintln(out, err)
					return false
				}
				fmt.Fprintf(out, "%s: OK\n", path)
				return true
			}

			failed := 0
			for _, path := range args {
				if !lint(path) {
					failed++
				}
			}
			if watch {
				return watchFiles(cmd.Context(), args, func(path string) { lint(path) })
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed lint", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "check files again whenever they change")
	return cmd
}
