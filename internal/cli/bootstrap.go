package cli

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/wdir/internal/app"
	"github.com/dshills/wdir/internal/config"
	"github.com/dshills/wdir/internal/plugin"
)

// EnvPrefix prefixes environment variables that stand in for flags
// (WDIR_DIR, WDIR_CONFIG_FILE, WDIR_PLUGIN_TIMEOUT).
const EnvPrefix = "WDIR"

// Flag names shared by the pre-parse and the cobra root.
const (
	flagDir           = "dir"
	flagConfig        = "config"
	flagConfigFile    = "config-file"
	flagPluginTimeout = "plugin-timeout"
	flagIgnore        = "ignore"
)

// settings is what the process needs to know before cobra runs: plugin
// commands must be on the root before it parses the command line.
type settings struct {
	Dir           string
	ConfigFile    string
	PluginTimeout time.Duration
	Overrides     []app.Override
	Ignore        []string
}

// addGlobalFlags defines the flags every invocation accepts.
func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringP(flagDir, "d", ".", "directory to watch")
	fs.StringArrayP(flagConfig, "c", nil, "override a config value (key=value, repeatable)")
	fs.String(flagConfigFile, "", "config file path (default "+config.DefaultFile()+")")
	fs.Duration(flagPluginTimeout, plugin.DefaultTimeout, "time limit for loading one plugin")
	fs.StringArray(flagIgnore, nil, "extra ignore pattern for the watcher (repeatable)")
}

// resolveSettings extracts the global flags from args, ignoring anything
// that belongs to a subcommand. Environment variables fill in flags that
// were not given.
func resolveSettings(args []string) (settings, error) {
	fs := pflag.NewFlagSet(config.AppName, pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	addGlobalFlags(fs)
	fs.BoolP("help", "h", false, "")
	fs.BoolP("version", "v", false, "")

	if err := fs.Parse(args); err != nil {
		return settings{}, &UsageError{Err: err}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{flagDir, flagConfigFile, flagPluginTimeout} {
		if err := v.BindPFlag(name, fs.Lookup(name)); err != nil {
			return settings{}, err
		}
	}

	pairs, err := fs.GetStringArray(flagConfig)
	if err != nil {
		return settings{}, err
	}
	overrides, err := ParsePairs(pairs)
	if err != nil {
		return settings{}, &UsageError{Err: err}
	}
	ignore, err := fs.GetStringArray(flagIgnore)
	if err != nil {
		return settings{}, err
	}

	s := settings{
		Dir:           v.GetString(flagDir),
		ConfigFile:    v.GetString(flagConfigFile),
		PluginTimeout: v.GetDuration(flagPluginTimeout),
		Overrides:     overrides,
		Ignore:        ignore,
	}
	if s.Dir == "" {
		s.Dir = "."
	}
	return s, nil
}
