package config

import (
	"slices"
	"strings"

	"github.com/dshills/wdir/internal/logger"
)

// settingType is the domain kind of a setting.
type settingType uint8

const (
	typeString settingType = iota
	typeBool
	typeEnum
)

// setting defines one addressable field of the configuration tree.
type setting struct {
	path        string
	typ         settingType
	enum        []string
	description string
	get         func(*Config) any
	set         func(*Config, any)
}

// validate checks value against the setting's domain.
func (s *setting) validate(value any) error {
	switch s.typ {
	case typeBool:
		if _, ok := value.(bool); !ok {
			return typeMismatch(s.path, "boolean", value)
		}
	case typeString:
		if _, ok := value.(string); !ok {
			return typeMismatch(s.path, "string", value)
		}
	case typeEnum:
		str, ok := value.(string)
		if !ok {
			return typeMismatch(s.path, "string", value)
		}
		if !slices.Contains(s.enum, str) {
			return invalidEnum(s.path, str, s.enum)
		}
	}
	return nil
}

var outputNames = []string{string(logger.Console), string(logger.File)}

// settings lists every scalar setting in persisted order.
var settings = []*setting{
	{
		path:        "log.level",
		typ:         typeEnum,
		enum:        logger.LevelNames(),
		description: "Global log level",
		get:         func(c *Config) any { return c.Log.Level },
		set:         func(c *Config, v any) { c.Log.Level = v.(string) },
	},
	{
		path:        "log.output",
		typ:         typeEnum,
		enum:        outputNames,
		description: "Log destination",
		get:         func(c *Config) any { return c.Log.Output },
		set:         func(c *Config, v any) { c.Log.Output = v.(string) },
	},
	{
		path:        "log.file",
		typ:         typeString,
		description: "Log file path, used when log.output is file",
		get:         func(c *Config) any { return c.Log.File },
		set:         func(c *Config, v any) { c.Log.File = v.(string) },
	},
	{
		path:        "plugin.active",
		typ:         typeBool,
		description: "Load plugins at startup",
		get:         func(c *Config) any { return c.Plugin.Active },
		set:         func(c *Config, v any) { c.Plugin.Active = v.(bool) },
	},
	{
		path:        "plugin.path",
		typ:         typeString,
		description: "Directory scanned for plugins",
		get:         func(c *Config) any { return c.Plugin.Path },
		set:         func(c *Config, v any) { c.Plugin.Path = v.(string) },
	},
}

// pluginLevelsKey addresses the per-plugin level map.
const pluginLevelsKey = "log.pluginLevels"

// requiredSections must be present in persisted state.
var requiredSections = []string{"log", "plugin"}

func lookup(path string) (*setting, bool) {
	for _, s := range settings {
		if s.path == path {
			return s, true
		}
	}
	return nil, false
}

// Keys returns every addressable dot path.
func Keys() []string {
	keys := make([]string, 0, len(settings)+1)
	for _, s := range settings {
		keys = append(keys, s.path)
	}
	return append(keys, pluginLevelsKey)
}

// Describe returns the description for key, or "" when key is unknown.
func Describe(key string) string {
	if s, ok := lookup(key); ok {
		return s.description
	}
	if key == pluginLevelsKey {
		return "Per-plugin log level overrides"
	}
	return ""
}

// applyPluginLevels validates and installs a whole override map.
func applyPluginLevels(c *Config, value any) error {
	var in map[string]any
	switch v := value.(type) {
	case map[string]any:
		in = v
	case map[string]string:
		in = make(map[string]any, len(v))
		for k, s := range v {
			in[k] = s
		}
	case nil:
		c.Log.PluginLevels = nil
		return nil
	default:
		return typeMismatch(pluginLevelsKey, "object", value)
	}

	levels := make(map[string]string, len(in))
	for name, raw := range in {
		if err := validatePluginLevel(name, raw); err != nil {
			return err
		}
		levels[name] = raw.(string)
	}
	if len(levels) == 0 {
		levels = nil
	}
	c.Log.PluginLevels = levels
	return nil
}

// applyPluginLevel sets or clears a single override. An empty string clears.
func applyPluginLevel(c *Config, name string, value any) error {
	if name == "" || strings.Contains(name, ".") {
		return unknownKey(pluginLevelsKey + "." + name)
	}
	if s, ok := value.(string); ok && s == "" {
		delete(c.Log.PluginLevels, name)
		if len(c.Log.PluginLevels) == 0 {
			c.Log.PluginLevels = nil
		}
		return nil
	}
	if err := validatePluginLevel(name, value); err != nil {
		return err
	}
	if c.Log.PluginLevels == nil {
		c.Log.PluginLevels = make(map[string]string)
	}
	c.Log.PluginLevels[name] = value.(string)
	return nil
}

func validatePluginLevel(name string, value any) error {
	key := pluginLevelsKey + "." + name
	str, ok := value.(string)
	if !ok {
		return typeMismatch(key, "string", value)
	}
	if !slices.Contains(logger.LevelNames(), str) {
		return invalidEnum(key, str, logger.LevelNames())
	}
	return nil
}
