package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"

	"github.com/designforge/mimicry/internal/types"
)

const promptWidth = 48

// ListResult is the structured output of mimicry list.
type ListResult struct {
	Components []ListItem `json:"components" yaml:"components"`
	Active     string     `json:"active,omitempty" yaml:"active,omitempty"`
	Count      int        `json:"count" yaml:"count"`
}

// ListItem is one registered component.
type ListItem struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Filename  string `json:"filename" yaml:"filename"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
	Prompt    string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Active    bool   `json:"active,omitempty" yaml:"active,omitempty"`
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List registered components",
	Long: `List every component in the registry, newest last.

Examples:
  mimicry list              # Table output
  mimicry list -o json      # JSON output
  mimicry list -o yaml      # YAML output`,
	RunE: runList,
}

var listFlags *StandardFlags

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	activeStyle = cellStyle.Foreground(lipgloss.Color("42"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func init() {
	rootCmd.AddCommand(listCmd)
	listFlags = AddStandardFlags(listCmd, "output")
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := a.store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	result := listResult(reg)
	out := cmd.OutOrStdout()

	switch strings.ToLower(listFlags.OutputFormat) {
	case FormatJSON, FormatYAML:
		return outputResults(out, listFlags.OutputFormat, result)
	default:
		if listFlags.Quiet {
			for _, item := range result.Components {
				fmt.Fprintln(out, item.ID)
			}
			return nil
		}
		return outputListTable(out, result)
	}
}

func listResult(reg *types.Registry) ListResult {
	result := ListResult{Components: make([]ListItem, 0, len(reg.Components))}
	if reg.ActiveComponent != nil {
		result.Active = *reg.ActiveComponent
	}
	for _, c := range reg.Components {
		result.Components = append(result.Components, ListItem{
			ID:        c.ID,
			Name:      c.Name,
			Filename:  c.Filename,
			CreatedAt: c.CreatedAt.Format("2006-01-02 15:04:05"),
			Prompt:    c.Prompt,
			Active:    c.ID == result.Active,
		})
	}
	result.Count = len(result.Components)
	return result
}

func outputListTable(w io.Writer, result ListResult) error {
	if result.Count == 0 {
		fmt.Fprintln(w, "No components found.")
		return nil
	}

	rows := make([][]string, 0, result.Count)
	for _, item := range result.Components {
		prompt := strings.Join(strings.Fields(item.Prompt), " ")
		rows = append(rows, []string{
			item.ID,
			item.Name,
			item.Filename,
			item.CreatedAt,
			truncate.StringWithTail(prompt, promptWidth, "..."),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("ID", "NAME", "FILE", "CREATED", "PROMPT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case row >= 0 && row < len(result.Components) && result.Components[row].Active:
				return activeStyle
			default:
				return cellStyle
			}
		})

	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Total: %d components", result.Count)))
	return nil
}
