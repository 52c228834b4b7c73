package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"

	"github.com/dshills/wdir/internal/app"
	"github.com/dshills/wdir/internal/config"
)

// Output formats for config show.
const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

func newConfigCommand(a *app.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change the persisted configuration",
		Args:  noArgs,
	}
	cmd.AddCommand(
		newConfigGetCommand(a),
		newConfigSetCommand(a),
		newConfigShowCommand(a),
		newConfigKeysCommand(),
		newConfigPathCommand(a),
	)
	return cmd
}

func newConfigGetCommand(a *app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one config value",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.Store().Get(args[0])
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), v)
		},
	}
}

func newConfigSetCommand(a *app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Validate and persist one config value",
		Long: `Set validates the value, persists the whole configuration and notifies
observers. true and false are booleans, numbers are numbers and JSON
objects are decoded; everything else is a string.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Store().OverwriteFrom("cli", args[0], Coerce(args[1])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	}
}

func newConfigShowCommand(a *app.Application) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := render(a.Store().Snapshot(), format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "output format (json, yaml, toml)")
	return cmd
}

func newConfigKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the settable config keys",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("KEY", "DESCRIPTION")
			for _, key := range config.Keys() {
				t.Row(key, config.Describe(key))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}

func newConfigPathCommand(a *app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.ConfigFile())
			return nil
		},
	}
}

// render encodes cfg in the named format.
func render(cfg config.Config, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case formatJSON:
		data, err := json.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		return pretty.Pretty(data), nil
	case formatYAML:
		return yaml.Marshal(cfg)
	case formatTOML:
		return toml.Marshal(cfg)
	default:
		return nil, usagef("unknown format %q (must be one of json, yaml, toml)", format)
	}
}

// printValue writes scalars bare and everything else as JSON.
func printValue(w io.Writer, v any) error {
	switch v := v.(type) {
	case string:
		_, err := fmt.Fprintln(w, v)
		return err
	case bool, float64, int:
		_, err := fmt.Fprintln(w, v)
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(data))
	return err
}
