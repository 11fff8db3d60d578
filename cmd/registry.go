package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/designforge/mimicry/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Maintain the component registry",
	Long: `Maintain the component registry.

Examples:
  mimicry registry reconcile          # Sync the registry with the directory
  mimicry registry activate <id>      # Mark a component as active
  mimicry registry remove <id>        # Delete a component and its source`,
}

var registryReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync the registry with the components directory",
	Long: `Register source files that have no registry entry and drop entries
whose source file is gone. Existing ids are never changed.`,
	Args: cobra.NoArgs,
	RunE: runRegistryReconcile,
}

var registryActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Mark a component as the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryActivate,
}

var registryRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a component and its source file",
	Args:    cobra.ExactArgs(1),
	RunE:    runRegistryRemove,
}

var reconcileFlags *StandardFlags

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryReconcileCmd, registryActivateCmd, registryRemoveCmd)

	reconcileFlags = AddStandardFlags(registryReconcileCmd, "output")
}

func runRegistryReconcile(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := registry.Reconcile(cmd.Context(), a.store, a.logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if strings.ToLower(reconcileFlags.OutputFormat) != FormatTable {
		return outputResults(out, reconcileFlags.OutputFormat, report)
	}
	if reconcileFlags.Quiet {
		return nil
	}

	if !report.Changed() {
		fmt.Fprintln(out, "Registry is in sync.")
		return nil
	}
	for _, e := range report.Added {
		fmt.Fprintf(out, "+ %s  %s\n", e.ID, e.Filename)
	}
	for _, e := range report.Removed {
		fmt.Fprintf(out, "- %s  %s\n", e.ID, e.Filename)
	}
	fmt.Fprintf(out, "%d added, %d removed\n", len(report.Added), len(report.Removed))
	return nil
}

func runRegistryActivate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := a.store.SetActive(cmd.Context(), entry.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Active component: %s (%s)\n", entry.Name, entry.ID)
	return nil
}

func runRegistryRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := a.store.Delete(cmd.Context(), entry.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", entry.Name, entry.ID)
	return nil
}
