package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform <file>",
	Short: "Print the browser-ready source of a generated component",
	Long: `Run the source transformer on a .tsx file and print the result.
Use "-" to read from stdin.

With --check the raw source is parsed as TSX and the output as JSX, and any
syntax errors are reported. The command fails when either parse has issues.

Examples:
  mimicry transform generated_components/Card.tsx
  cat Card.tsx | mimicry transform -
  mimicry transform Card.tsx --check`,
	Args: cobra.ExactArgs(1),
	RunE: runTransform,
}

var transformCheck bool

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().BoolVar(&transformCheck, "check", false, "Parse input and output and report syntax issues")
}

func runTransform(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	result := transform.Transform(raw)
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintln(out, result.BrowserSource); err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "root component: %s", result.RootComponentName)
	if result.Fallback {
		fmt.Fprint(errOut, " (no default export found)")
	}
	fmt.Fprintln(errOut)

	if !transformCheck {
		return nil
	}

	issues := 0
	for _, pass := range []struct {
		label   string
		src     string
		dialect transform.Dialect
	}{
		{"input", raw, transform.DialectTSX},
		{"output", result.BrowserSource, transform.DialectJSX},
	} {
		diag, err := transform.Diagnose(cmd.Context(), pass.src, pass.dialect)
		if err != nil {
			return err
		}
		for _, issue := range diag.Issues {
			fmt.Fprintf(errOut, "%s (%s) %s\n", pass.label, pass.dialect, issue)
		}
		issues += len(diag.Issues)
	}

	if issues > 0 {
		return errors.NewValidationError("SYNTAX", fmt.Sprintf("%d syntax issue(s) found", issues))
	}
	fmt.Fprintln(errOut, "no syntax issues")
	return nil
}

func readInput(cmd *cobra.Command, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", errors.WrapIO(err, "READ_INPUT", "failed to read "+name)
	}
	return string(data), nil
}
