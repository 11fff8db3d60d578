package cmd

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/highlight"
	"github.com/designforge/mimicry/internal/resolver"
)

var codeCmd = &cobra.Command{
	Use:   "code <id>",
	Short: "Print or copy the source of a component",
	Long: `Print the generated source of a component, found by id or name.

Examples:
  mimicry code Dashboard               # Plain source
  mimicry code Dashboard --highlight   # Colored for the terminal
  mimicry code Dashboard --copy        # Copy to the clipboard`,
	Aliases: []string{"source"},
	Args:    cobra.ExactArgs(1),
	RunE:    runCode,
}

var (
	codeCopy      bool
	codeHighlight bool
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

func init() {
	rootCmd.AddCommand(codeCmd)

	codeCmd.Flags().BoolVarP(&codeCopy, "copy", "c", false, "Copy the source to the clipboard")
	codeCmd.Flags().BoolVar(&codeHighlight, "highlight", false, "Syntax highlight the output")
}

func runCode(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	r := resolver.New(a.store, resolver.WithAttempts(1), resolver.WithLogger(a.logger))
	res, err := r.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if codeCopy {
		if clipboard.Unsupported {
			return errors.NewConfigError("CLIPBOARD", "no clipboard utility available on this system")
		}
		if err := copyToClipboard(res.SourceText); err != nil {
			return errors.WrapIO(err, "CLIPBOARD", "failed to copy to clipboard")
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Copied %s (%d bytes) to clipboard\n", res.Component.Filename, len(res.SourceText))
		return nil
	}

	out := cmd.OutOrStdout()
	if codeHighlight {
		if err := highlight.Terminal(out, res.SourceText, highlight.DefaultLanguage); err != nil {
			return err
		}
		if !strings.HasSuffix(res.SourceText, "\n") {
			fmt.Fprintln(out)
		}
		return nil
	}

	_, err = fmt.Fprint(out, res.SourceText)
	return err
}
