// Package app wires the wdir components together and manages their
// lifecycle: config store, logger, watch bus, command registrar, plugin
// loader and filesystem watcher.
package app

import (
	"context"
	"io"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/wdir/internal/command"
	"github.com/dshills/wdir/internal/config"
	"github.com/dshills/wdir/internal/config/notify"
	"github.com/dshills/wdir/internal/logger"
	"github.com/dshills/wdir/internal/plugin"
	"github.com/dshills/wdir/internal/watch"
)

// Override is a config assignment supplied on the command line.
type Override struct {
	Key   string
	Value any
}

// Options configures the application.
type Options struct {
	// WatchDir is the directory to watch.
	WatchDir string

	// ConfigFile is the persisted config path. Empty means the default.
	ConfigFile string

	// Persister overrides the file persister. Used by tests.
	Persister config.Persister

	// PluginDir is the default plugin directory when the config has none.
	PluginDir string

	// PluginTimeout bounds each plugin's load.
	PluginTimeout time.Duration

	// Overrides are applied through the store before plugins load.
	Overrides []Override

	// Root receives plugin commands.
	Root *cobra.Command

	// Version is reported to plugins.
	Version string

	// Console receives console log output.
	Console io.Writer

	// Runtimes maps entry extensions to plugin runtimes. Empty means Lua.
	Runtimes map[string]plugin.Runtime

	// Ignore adds watcher ignore patterns to watch.DefaultIgnore.
	Ignore []string
}

// Application is the central coordinator for all wdir components.
type Application struct {
	mu sync.RWMutex

	store    *config.Store
	log      *logger.Logger
	bus      *watch.Bus
	commands *command.Registrar
	loader   *plugin.Loader
	logSub   *notify.Subscription

	watchDir string
	results  []*plugin.Result

	running  atomic.Bool
	shutdown sync.Once
	opts     Options
}

// New creates a new Application with the given options. Config overrides
// are applied before New returns; a rejected override fails New with the
// store left unchanged.
func New(opts Options) (*Application, error) {
	if opts.ConfigFile == "" {
		opts.ConfigFile = config.DefaultFile()
	}
	if opts.PluginDir == "" {
		opts.PluginDir = config.DefaultPluginDir()
	}
	if opts.WatchDir == "" {
		opts.WatchDir = "."
	}
	if opts.Root == nil {
		opts.Root = &cobra.Command{Use: config.AppName}
	}

	app := &Application{opts: opts}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// LoadPlugins runs the plugin load pass.
func (app *Application) LoadPlugins(ctx context.Context) []*plugin.Result {
	results := app.loader.LoadAll(ctx, plugin.Env{
		Logger:    app.log,
		Config:    app.store,
		Watch:     app.bus,
		Commands:  app.commands,
		WatchPath: app.WatchDir,
		Version:   app.opts.Version,
	})

	app.mu.Lock()
	app.results = append(app.results, results...)
	app.mu.Unlock()
	return results
}

// Watch watches the current watch directory and feeds the bus until ctx
// is cancelled. ready, when not nil, is closed once the initial scan is
// done.
func (app *Application) Watch(ctx context.Context, ready chan<- struct{}) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	var opts []watch.Option
	if len(app.opts.Ignore) > 0 {
		patterns := append(slices.Clone(watch.DefaultIgnore), app.opts.Ignore...)
		opts = append(opts, watch.WithIgnore(patterns...))
	}
	w := watch.NewWatcher(app.bus, app.log, opts...)
	if ready != nil {
		go func() {
			select {
			case <-w.Ready():
				close(ready)
			case <-ctx.Done():
			}
		}()
	}

	dir := app.WatchDir()
	app.log.Info("Watching", "dir", dir)
	err := w.Run(ctx, dir)

	s := app.bus.Stats()
	app.log.Debug("Watch stopped", "triggered", s.Triggered, "delivered", s.Delivered,
		"failed", s.Failed, "panicked", s.Panicked)
	return err
}

// WatchDir returns the absolute watch directory.
func (app *Application) WatchDir() string {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.watchDir
}

// SetWatchDir changes the watch directory reported to plugins.
func (app *Application) SetWatchDir(dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	app.mu.Lock()
	app.watchDir = dir
	app.mu.Unlock()
}

// Store returns the config store.
func (app *Application) Store() *config.Store { return app.store }

// Logger returns the root logger.
func (app *Application) Logger() *logger.Logger { return app.log }

// Bus returns the watch event bus.
func (app *Application) Bus() *watch.Bus { return app.bus }

// Commands returns the command registrar.
func (app *Application) Commands() *command.Registrar { return app.commands }

// ConfigFile returns the persisted config path.
func (app *Application) ConfigFile() string { return app.opts.ConfigFile }

// Results returns the plugin load results.
func (app *Application) Results() []*plugin.Result {
	app.mu.RLock()
	defer app.mu.RUnlock()
	out := make([]*plugin.Result, len(app.results))
	copy(out, app.results)
	return out
}

// manifestLevel returns the logLevel declared by the loaded plugin name.
func (app *Application) manifestLevel(name string) (logger.Level, bool) {
	for _, r := range app.Results() {
		if r.Manifest == nil || r.Manifest.Name != name || r.Manifest.LogLevel == "" {
			continue
		}
		if lvl, err := logger.ParseLevel(r.Manifest.LogLevel); err == nil {
			return lvl, true
		}
	}
	return 0, false
}

// Shutdown releases plugin states and the log file. Safe to call more
// than once.
func (app *Application) Shutdown() error {
	var err error
	app.shutdown.Do(func() {
		if app.logSub != nil {
			app.logSub.Unsubscribe()
		}
		if app.store != nil {
			app.store.Close()
		}
		if app.loader != nil {
			err = app.loader.Close()
		}
		if app.log != nil {
			if cerr := app.log.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}
