package app

import (
	"github.com/dshills/wdir/internal/command"
	"github.com/dshills/wdir/internal/config"
	"github.com/dshills/wdir/internal/logger"
	"github.com/dshills/wdir/internal/plugin"
	"github.com/dshills/wdir/internal/plugin/lua"
	"github.com/dshills/wdir/internal/watch"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 6),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		// 1. Config store - everything else reads it
		b.initConfig,
		// 2. Logger - seeded from the loaded config
		b.initLogger,
		// 3. CLI overrides - applied before anything observes config
		b.applyOverrides,
		// 4. Watch bus
		b.initWatch,
		// 5. Command registrar
		b.initCommands,
		// 6. Plugin loader
		b.initPlugins,
	}

	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}

	b.app.SetWatchDir(b.opts.WatchDir)
	b.app.log.Verbose("Bootstrap complete", "components", len(b.initOrder))
	return nil
}

// cleanup releases initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "logger":
			if b.app.logSub != nil {
				b.app.logSub.Unsubscribe()
				b.app.logSub = nil
			}
			if b.app.log != nil {
				_ = b.app.log.Close()
			}
		case "plugins":
			if b.app.loader != nil {
				_ = b.app.loader.Close()
			}
		}
	}
}

func (b *bootstrapper) initConfig() error {
	p := b.opts.Persister
	if p == nil {
		p = config.FilePersister{Path: b.opts.ConfigFile}
	}

	store := config.NewStore(p, config.WithDefaults(config.Defaults(b.opts.PluginDir)))
	if _, err := store.Load(); err != nil {
		return NewComponentError("config", "load", err)
	}

	b.app.store = store
	b.initOrder = append(b.initOrder, "config")
	return nil
}

func (b *bootstrapper) initLogger() error {
	settings := b.app.store.Snapshot().LoggerSettings()
	settings.Console = b.opts.Console

	b.app.log = logger.New(settings)
	b.app.logSub = newLogSync(b.app.log, b.app.store, b.opts.Console, b.app.manifestLevel).subscribe()
	b.initOrder = append(b.initOrder, "logger")
	return nil
}

func (b *bootstrapper) applyOverrides() error {
	for _, o := range b.opts.Overrides {
		if err := b.app.store.OverwriteFrom(overrideSource, o.Key, o.Value); err != nil {
			return err
		}
		b.app.log.Debug("Config override applied", "key", o.Key, "value", o.Value)
	}
	return nil
}

func (b *bootstrapper) initWatch() error {
	b.app.bus = watch.NewBus(b.app.log)
	b.initOrder = append(b.initOrder, "watch")
	return nil
}

func (b *bootstrapper) initCommands() error {
	b.app.commands = command.NewRegistrar(b.opts.Root, b.app.WatchDir, b.app.log)
	b.initOrder = append(b.initOrder, "commands")
	return nil
}

func (b *bootstrapper) initPlugins() error {
	opts := []plugin.LoaderOption{plugin.WithTimeout(b.opts.PluginTimeout)}
	if len(b.opts.Runtimes) == 0 {
		opts = append(opts, plugin.WithRuntime(lua.Ext, lua.NewRuntime()))
	}
	for ext, rt := range b.opts.Runtimes {
		opts = append(opts, plugin.WithRuntime(ext, rt))
	}

	b.app.loader = plugin.NewLoader(opts...)
	b.initOrder = append(b.initOrder, "plugins")
	return nil
}
