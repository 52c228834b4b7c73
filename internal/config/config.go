package config

import (
	"maps"
	"os"
	"path/filepath"

	"github.com/dshills/wdir/internal/logger"
)

// AppName names the per-user config directory and the persisted file.
const AppName = "wdir"

// FileName is the persisted config file name.
const FileName = AppName + ".config.json"

// Config is the validated configuration tree.
type Config struct {
	Log    LogConfig    `json:"log" yaml:"log" toml:"log"`
	Plugin PluginConfig `json:"plugin" yaml:"plugin" toml:"plugin"`
}

// LogConfig holds the log section.
type LogConfig struct {
	Level        string            `json:"level" yaml:"level" toml:"level"`
	Output       string            `json:"output" yaml:"output" toml:"output"`
	File         string            `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty"`
	PluginLevels map[string]string `json:"pluginLevels,omitempty" yaml:"pluginLevels,omitempty" toml:"pluginLevels,omitempty"`
}

// PluginConfig holds the plugin section.
type PluginConfig struct {
	Active bool   `json:"active" yaml:"active" toml:"active"`
	Path   string `json:"path" yaml:"path" toml:"path"`
}

// Defaults returns the built-in configuration with plugins loaded from
// pluginDir.
func Defaults(pluginDir string) Config {
	return Config{
		Log: LogConfig{
			Level:  logger.Info.String(),
			Output: string(logger.Console),
		},
		Plugin: PluginConfig{
			Active: true,
			Path:   pluginDir,
		},
	}
}

// DefaultDir returns the per-user directory holding the config file and the
// default plugin folder.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(".", "."+AppName)
}

// DefaultFile returns the default persisted config path.
func DefaultFile() string {
	return filepath.Join(DefaultDir(), FileName)
}

// DefaultPluginDir returns the default plugin directory.
func DefaultPluginDir() string {
	return filepath.Join(DefaultDir(), "plugins")
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	if c.Log.PluginLevels != nil {
		out.Log.PluginLevels = maps.Clone(c.Log.PluginLevels)
	}
	return out
}

// Validate checks the rules that span more than one field.
func (c Config) Validate() error {
	if c.Log.Output == string(logger.File) && c.Log.File == "" {
		return &Error{
			Key:     "log.file",
			Code:    CodeRequired,
			Message: "required when log.output is \"file\"",
		}
	}
	return nil
}

// LoggerSettings converts the log section into logger settings. The config
// is assumed to be validated.
func (c Config) LoggerSettings() logger.Settings {
	level, _ := logger.ParseLevel(c.Log.Level)
	output, _ := logger.ParseOutput(c.Log.Output)
	overrides := make(map[string]logger.Level, len(c.Log.PluginLevels))
	for name, l := range c.Log.PluginLevels {
		if lvl, err := logger.ParseLevel(l); err == nil {
			overrides[name] = lvl
		}
	}
	return logger.Settings{
		Level:     level,
		Output:    output,
		File:      c.Log.File,
		Overrides: overrides,
	}
}
