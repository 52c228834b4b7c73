package plugin

import (
	"github.com/dshills/wdir/internal/command"
	"github.com/dshills/wdir/internal/config"
	"github.com/dshills/wdir/internal/logger"
	"github.com/dshills/wdir/internal/watch"
)

// Identity names the plugin a bundle was built for.
type Identity struct {
	Name string
	Dir  string
	Meta map[string]any
}

// Bundle is the capability set handed to a plugin's entry point. A fresh
// bundle is built for every plugin; the loader drops it once the entry
// returns, though the plugin may keep closures over it.
type Bundle struct {
	// Logger is a context named after the plugin.
	Logger *logger.Logger

	// Watch subscribes to filesystem events.
	Watch watch.Subscriber

	// Config is a snapshot with the plugin's effective level in Log.Level.
	Config config.Config

	// Version is the host version.
	Version string

	// Path is the watch path at load time.
	Path string

	Plugin Identity

	watchPath func() string
	overwrite func(key string, value any) error
	registrar *command.Registrar
}

// GetPath returns the current watch path.
func (b *Bundle) GetPath() string {
	if b.watchPath == nil {
		return b.Path
	}
	return b.watchPath()
}

// Overwrite sets a config value through the validated store.
func (b *Bundle) Overwrite(key string, value any) error {
	if b.overwrite == nil {
		return ErrNoStore
	}
	return b.overwrite(key, value)
}

// RegisterCommand adds a command to the CLI. The action receives the watch
// path current at invocation time.
func (b *Bundle) RegisterCommand(d command.Descriptor) error {
	if b.registrar == nil {
		return ErrNoRegistrar
	}
	_, err := b.registrar.Register(d)
	return err
}
