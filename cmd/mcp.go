package cmd

import (
	"github.com/spf13/cobra"

	"github.com/designforge/mimicry/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the registry tools over MCP stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the
screen tools: list, load, create, update and delete screens, plus screen
variants. Preview URLs in results point at the configured server address.

Logs go to stderr (or log.dir) so stdout carries only protocol traffic.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info(cmd.Context(), "Starting MCP server", "registry", a.store.Dir())
	tools := mcptools.New(a.store, "http://"+a.cfg.Address(), a.logger)
	return tools.Serve(cmd.Context())
}
