// Package cli implements the wdir command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/wdir/internal/app"
	"github.com/dshills/wdir/internal/config"
)

// Run executes wdir with args and returns the process exit code.
func Run(args []string, version string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, args, version, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func run(ctx context.Context, args []string, version string, stdout, stderr io.Writer) error {
	s, err := resolveSettings(args)
	if err != nil {
		return err
	}

	root := NewRootCommand(version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	application, err := app.New(app.Options{
		WatchDir:      s.Dir,
		ConfigFile:    s.ConfigFile,
		PluginTimeout: s.PluginTimeout,
		Overrides:     s.Overrides,
		Ignore:        s.Ignore,
		Root:          root,
		Version:       version,
		Console:       stdout,
	})
	if err != nil {
		return err
	}
	defer application.Shutdown()

	root.RunE = func(cmd *cobra.Command, _ []string) error {
		return application.Watch(cmd.Context(), nil)
	}
	root.AddCommand(
		newConfigCommand(application),
		newPluginsCommand(application),
	)

	// Built-ins go first so plugins cannot shadow them.
	application.LoadPlugins(ctx)

	return root.ExecuteContext(ctx)
}

// NewRootCommand creates the root command without any subcommands.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Watch a directory and run plugins on file changes",
		Long: `wdir watches a directory tree and forwards add, change and unlink
events to plugins. Plugins live in the configured plugin directory and may
register their own subcommands.`,
		Version:       version,
		Args:          noArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})
	addGlobalFlags(root.PersistentFlags())
	return root
}

// noArgs rejects positional arguments on the root, which can only be a
// mistyped or unknown command.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return nil
}

// exactArgs is cobra.ExactArgs reporting a UsageError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}
