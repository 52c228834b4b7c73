package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dshills/wdir/internal/command"
	"github.com/dshills/wdir/internal/config"
	"github.com/dshills/wdir/internal/logger"
	"github.com/dshills/wdir/internal/watch"
)

// DefaultTimeout bounds loading and registering a single plugin.
const DefaultTimeout = 10 * time.Second

// ConfigStore is the part of the config store the loader needs.
type ConfigStore interface {
	Snapshot() config.Config
	OverwriteFrom(source, key string, value any) error
}

// Env holds the host services the loader builds bundles from.
type Env struct {
	Logger    *logger.Logger
	Config    ConfigStore
	Watch     watch.Subscriber
	Commands  *command.Registrar
	WatchPath func() string
	Version   string
}

// Result records how far one plugin folder got through the load pass.
type Result struct {
	Name     string // Manifest name, or the folder name when none was read
	Dir      string
	Manifest *Manifest
	State    State
	Level    logger.Level
	Err      error
}

// Loader discovers plugin folders and runs their entry points.
type Loader struct {
	mu       sync.Mutex
	runtimes map[string]Runtime
	timeout  time.Duration
	results  []*Result
	modules  []Module
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRuntime registers rt for entries with extension ext (".lua").
func WithRuntime(ext string, rt Runtime) LoaderOption {
	return func(l *Loader) {
		l.runtimes[strings.ToLower(ext)] = rt
	}
}

// WithTimeout sets the per-plugin load timeout. Non-positive values keep
// the default.
func WithTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewLoader creates a new plugin loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		runtimes: make(map[string]Runtime),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadAll runs one load pass over the configured plugin directory. Folders
// are processed sequentially in directory listing order; a failing plugin
// never stops the pass.
func (l *Loader) LoadAll(ctx context.Context, env Env) []*Result {
	log := env.Logger
	if log == nil {
		log = logger.Discard()
		env.Logger = log
	}

	cfg := env.Config.Snapshot()
	if !cfg.Plugin.Active {
		log.Debug("Plugin loading disabled")
		return nil
	}

	root := cfg.Plugin.Path
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("Plugin directory not found", "path", root)
		} else {
			log.Error("Cannot read plugin directory", "path", root, "err", err)
		}
		return nil
	}

	seen := make(map[string]string)
	var results []*Result
	loaded := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		r := l.load(ctx, env, filepath.Join(root, entry.Name()), seen)
		if r.State == StateRegistered || r.State == StateLoaded {
			loaded++
		}
		results = append(results, r)
	}

	l.mu.Lock()
	l.results = append(l.results, results...)
	l.mu.Unlock()

	log.Debug(fmt.Sprintf("Loaded %d plugins", loaded))
	return results
}

// load walks one folder through the state machine.
func (l *Loader) load(ctx context.Context, env Env, dir string, seen map[string]string) *Result {
	r := &Result{Name: filepath.Base(dir), Dir: dir, State: StateDiscovered}

	m, err := LoadManifest(ManifestPath(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			env.Logger.Debug("Skipping folder without manifest", "folder", r.Name)
			return r.skip(ErrNoManifest)
		}
		env.Logger.Error("Invalid manifest", "folder", r.Name, "err", err)
		return r.fail(err)
	}
	r.Name, r.Manifest, r.State = m.Name, m, StateManifestValid

	if prev, dup := seen[m.Name]; dup {
		err := fmt.Errorf("%w: %s also declared by %s", ErrDuplicateName, m.Name, filepath.Base(prev))
		env.Logger.Error("Failed to load: "+err.Error(), "plugin", m.Name)
		return r.fail(err)
	}

	snap := env.Config.Snapshot()
	log := contextFor(env.Logger, m, snap)
	r.Level = log.Level()

	entry, err := m.EntryPath()
	if err != nil {
		log.Error("Failed to load: " + err.Error())
		return r.fail(err)
	}
	if _, err := os.Stat(entry); err != nil {
		log.Warn("Entry not found", "entry", entry)
		return r.skip(fmt.Errorf("%w: %s", ErrNoEntryPoint, entry))
	}
	r.State = StateEntryFound
	seen[m.Name] = dir

	rt, ok := l.runtimes[strings.ToLower(filepath.Ext(entry))]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoRuntime, filepath.Ext(entry))
		log.Error("Failed to load: " + err.Error())
		return r.fail(err)
	}

	lctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var mod Module
	err = guard(lctx, func() error {
		var err error
		mod, err = rt.Load(lctx, ModuleSpec{
			Name:      m.Name,
			Entry:     entry,
			SourceDir: m.SourceDir(),
			Logger:    log,
		})
		return err
	})
	if err != nil {
		log.Error("Failed to load: " + err.Error())
		return r.fail(err)
	}
	l.mu.Lock()
	l.modules = append(l.modules, mod)
	l.mu.Unlock()
	r.State = StateLoaded

	fn, ok := mod.Default()
	if !ok {
		log.Debug("No default export")
		return r
	}

	b := newBundle(env, m, log, snap)
	if err := guard(lctx, func() error { return fn(lctx, b) }); err != nil {
		log.Error("Failed to load: " + err.Error())
		return r.fail(err)
	}
	r.State = StateRegistered
	log.Info("Loaded successfully")
	return r
}

// contextFor derives the plugin's logger. The level comes from the
// plugin's entry in log.pluginLevels, then the manifest, then the global
// level.
func contextFor(root *logger.Logger, m *Manifest, cfg config.Config) *logger.Logger {
	if s, ok := cfg.Log.PluginLevels[m.Name]; ok {
		if lvl, err := logger.ParseLevel(s); err == nil {
			return root.CreateContext(m.Name, lvl)
		}
	}
	if m.LogLevel != "" {
		if lvl, err := logger.ParseLevel(m.LogLevel); err == nil {
			return root.CreateContext(m.Name, lvl)
		}
	}
	return root.CreateContext(m.Name)
}

func newBundle(env Env, m *Manifest, log *logger.Logger, snap config.Config) *Bundle {
	snap.Log.Level = log.Level().String()

	b := &Bundle{
		Logger:    log,
		Watch:     env.Watch,
		Config:    snap,
		Version:   env.Version,
		watchPath: env.WatchPath,
		Plugin: Identity{
			Name: m.Name,
			Dir:  filepath.Dir(m.SourceDir()),
			Meta: m.Meta(),
		},
	}
	b.Path = b.GetPath()

	if env.Config != nil {
		name := m.Name
		b.overwrite = func(key string, value any) error {
			return env.Config.OverwriteFrom(name, key, value)
		}
	}
	if env.Commands != nil {
		b.registrar = env.Commands.WithLogger(log)
	}
	return b
}

// guard runs fn, turning a panic into an error and tagging errors that
// coincide with an expired deadline.
func guard(ctx context.Context, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
	}()
	return fn()
}

func (r *Result) skip(err error) *Result {
	r.Err = &LoadError{Plugin: r.Name, State: r.State, Err: err}
	r.State = StateSkipped
	return r
}

func (r *Result) fail(err error) *Result {
	r.Err = &LoadError{Plugin: r.Name, State: r.State, Err: err}
	r.State = StateFailed
	return r
}

// Results returns every result recorded so far.
func (l *Loader) Results() []*Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Result, len(l.results))
	copy(out, l.results)
	return out
}

// Close releases every loaded module.
func (l *Loader) Close() error {
	l.mu.Lock()
	mods := l.modules
	l.modules = nil
	l.mu.Unlock()

	var errs []error
	for _, m := range mods {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
