package app

import (
	"io"
	"strings"
	"sync"

	"github.com/dshills/wdir/internal/config"
	"github.com/dshills/wdir/internal/config/notify"
	"github.com/dshills/wdir/internal/logger"
)

// overrideSource attributes command-line overrides in change notifications.
const overrideSource = "cli"

const pluginLevelsPrefix = "log.pluginLevels"

// logSync keeps the logger in step with the log section of the config.
type logSync struct {
	mu      sync.Mutex
	log     *logger.Logger
	store   *config.Store
	console io.Writer

	// overrides applied from config, so removed entries can be cleared
	applied map[string]bool

	// fallback reports the level a plugin context returns to when its config
	// override is removed.
	fallback func(name string) (logger.Level, bool)
}

func newLogSync(log *logger.Logger, store *config.Store, console io.Writer, fallback func(string) (logger.Level, bool)) *logSync {
	ls := &logSync{
		log:      log,
		store:    store,
		console:  console,
		applied:  make(map[string]bool),
		fallback: fallback,
	}
	for name := range store.Snapshot().Log.PluginLevels {
		ls.applied[name] = true
	}
	return ls
}

func (ls *logSync) subscribe() *notify.Subscription {
	return ls.store.Subscribe("log", ls.onChange)
}

func (ls *logSync) onChange(change notify.Change) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if change.Type == notify.ChangeDelete && strings.HasPrefix(change.Path, pluginLevelsPrefix+".") {
		ls.release(strings.TrimPrefix(change.Path, pluginLevelsPrefix+"."))
		return
	}

	settings := ls.store.Snapshot().LoggerSettings()
	settings.Console = ls.console

	for name := range ls.applied {
		if _, ok := settings.Overrides[name]; !ok {
			ls.release(name)
		}
	}
	for name := range settings.Overrides {
		ls.applied[name] = true
	}

	ls.log.Configure(settings)
	ls.log.Verbose("Logger reconfigured", "key", change.Path, "source", change.Source)
}

// release drops the config override for name. A plugin with a manifest
// logLevel goes back to it; anything else follows the global level.
func (ls *logSync) release(name string) {
	delete(ls.applied, name)
	if ls.fallback != nil {
		if lvl, ok := ls.fallback(name); ok {
			ls.log.SetOverride(name, lvl)
			return
		}
	}
	ls.log.ClearOverride(name)
}
