package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/overlay"
	"github.com/designforge/mimicry/internal/preview"
	"github.com/designforge/mimicry/internal/resolver"
)

var previewCmd = &cobra.Command{
	Use:     "preview <id>",
	Aliases: []string{"p"},
	Short:   "Write the preview document of a component",
	Long: `Resolve a component by id or name and print its standalone preview
document, the same page the server returns for /preview/<id>.

Examples:
  mimicry preview comp_1718000000000_ab12cd34      # Print to stdout
  mimicry preview Dashboard --out dashboard.html   # Write to a file
  mimicry preview Dashboard --select               # Include the selection overlay`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

var (
	previewOut    string
	previewSelect bool
)

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVar(&previewOut, "out", "", "Write the document to this file instead of stdout")
	previewCmd.Flags().BoolVar(&previewSelect, "select", false, "Inject the element selection overlay")
}

func runPreview(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	r := resolver.New(a.store,
		resolver.WithAttempts(a.cfg.Preview.ResolveAttempts),
		resolver.WithDelay(a.cfg.Preview.ResolveDelay),
		resolver.WithLogger(a.logger),
	)
	res, err := r.Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	builder := preview.Builder{
		MountDelay:    a.cfg.Preview.MountDelay,
		RenderTimeout: a.cfg.Preview.RenderTimeout,
	}
	doc := builder.Build(res.SourceText, res.Component.Name)

	html := doc.HTML
	if previewSelect {
		html, err = overlay.InjectString(html)
		if err != nil {
			return errors.NewInternalError("OVERLAY", "failed to inject selection overlay", err)
		}
	}

	if previewOut == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), html)
		return err
	}

	if err := os.WriteFile(previewOut, []byte(html), 0o644); err != nil {
		return errors.WrapIO(err, "WRITE_PREVIEW", "failed to write preview document")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote preview of %s to %s\n", res.Component.Name, previewOut)
	return nil
}
