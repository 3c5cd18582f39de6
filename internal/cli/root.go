// Package cli implements the plutil commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	plist "github.com/KimNorgaard/go-plist"
	"github.com/KimNorgaard/go-plist/node"
)

// stdio is the path naming standard input or output.
const stdio = "-"

// Files reads and writes the documents named on the command line.
type Files interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

type osFiles struct{}

func (osFiles) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (osFiles) WriteFile(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	return os.WriteFile(path, data, mode)
}

// NewRootCmd creates the root plutil command with all subcommands
// registered. A nil files uses the operating system.
func NewRootCmd(files Files) *cobra.Command {
	if files == nil {
		files = osFiles{}
	}
	root := &cobra.Command{
		Use:           "plutil",
		Short:         "plutil - inspect and convert property lists",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().Int("max-depth", 0, "maximum container nesting accepted while decoding (0 = library default)")
	root.AddCommand(NewConvertCmd(files))
	root.AddCommand(NewPrintCmd(files))
	root.AddCommand(NewGetCmd(files))
	root.AddCommand(NewLintCmd(files))
	root.AddCommand(NewDiffCmd(files))
	return root
}

// decodeOptions builds the codec options shared by every subcommand.
func decodeOptions(cmd *cobra.Command) ([]plist.Option, error) {
	var opts []plist.Option
	f := cmd.Flags().Lookup("max-depth")
	if f == nil || !f.Changed {
		return opts, nil
	}
	depth, err := cmd.Flags().GetInt("max-depth")
	if err != nil {
		return nil, err
	}
	return append(opts, plist.MaxDepth(depth)), nil
}

func readInput(cmd *cobra.Command, files Files, path string) ([]byte, error) {
	if path == stdio {
		return io.ReadAll(cmd.InOrStdin())
	}
	return files.ReadFile(path)
}

func writeOutput(cmd *cobra.Command, files Files, path string, data []byte) error {
	if path == stdio {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return files.WriteFile(path, data)
}

// load reads and decodes the document at path.
func load(cmd *cobra.Command, files Files, path string) (*node.Node, error) {
	opts, err := decodeOptions(cmd)
	if err != nil {
		return nil, err
	}
	data, err := readInput(cmd, files, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	n, err := plist.Decode(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return n, nil
}
