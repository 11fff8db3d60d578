package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/designforge/mimicry/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the preview server with live reload",
	Long: `Start the preview server.

The server exposes preview pages for every registered component, the
registry API used by the generator, the studio page with live reload and
element selection, and the gallery of generated components and images.

Examples:
  mimicry serve                          # Serve ./generated_components on :3000
  mimicry serve --port 8080 --open       # Custom port, open the browser
  mimicry serve --dir ./out/components   # Serve another components directory`,
	RunE: runServe,
}

var serveFlags *StandardFlags

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags = AddStandardFlags(serveCmd, "server")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))
	_ = viper.BindPFlag("registry.dir", serveCmd.Flags().Lookup("dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := serveFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.cfg, a.store, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting mimicry server at http://%s\n", a.cfg.Address())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving components from %s\n", a.store.Dir())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info(context.Background(), "Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
