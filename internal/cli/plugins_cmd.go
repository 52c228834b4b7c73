package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/dshills/wdir/internal/app"
	"github.com/dshills/wdir/internal/plugin"
)

var (
	stateOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	stateWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	stateFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newPluginsCommand(a *app.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect plugins",
		Args:  noArgs,
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List plugins found by the last load pass",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results := a.Results()
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintf(out, "No plugins found in %s\n", a.Store().Snapshot().Plugin.Path)
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("NAME", "STATE", "LEVEL", "VERSION", "ERROR")
			for _, r := range results {
				t.Row(r.Name, styleState(r.State), levelText(r), manifestVersion(r), errText(r))
			}
			fmt.Fprintln(out, t.String())
			return nil
		},
	})
	return cmd
}

func styleState(s plugin.State) string {
	switch s {
	case plugin.StateRegistered, plugin.StateLoaded:
		return stateOK.Render(s.String())
	case plugin.StateSkipped:
		return stateWarn.Render(s.String())
	case plugin.StateFailed:
		return stateFailed.Render(s.String())
	default:
		return s.String()
	}
}

func levelText(r *plugin.Result) string {
	if r.Manifest == nil {
		return ""
	}
	return r.Level.String()
}

func manifestVersion(r *plugin.Result) string {
	if r.Manifest == nil {
		return ""
	}
	return r.Manifest.Version
}

func errText(r *plugin.Result) string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
