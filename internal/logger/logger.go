// Package logger provides wdir's level-filtered, context-scoped logger.
//
// One Logger is built per process from the persisted log settings. Plugins and
// subsystems receive lightweight views created with CreateContext. All views
// share a single override map keyed by context name, so two views with the
// same name always resolve to the same effective level.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RootName is the reserved name of the root context.
const RootName = "CORE"

// Output selects where log lines are written.
type Output string

// Output modes.
const (
	Console Output = "console"
	File    Output = "file"
)

// ParseOutput converts an output name to an Output.
func ParseOutput(s string) (Output, error) {
	switch Output(strings.ToLower(s)) {
	case Console:
		return Console, nil
	case File:
		return File, nil
	default:
		return Console, fmt.Errorf("%w: %q", ErrUnknownOutput, s)
	}
}

// Rotation limits for the file sink.
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
)

// Settings seeds a Logger.
type Settings struct {
	// Level is the global level used by contexts without an override.
	Level Level

	// Output selects console or file emission.
	Output Output

	// File is the log file path. Required when Output is File.
	File string

	// Overrides are per-context levels keyed by context name.
	Overrides map[string]Level

	// Console receives console output. Defaults to os.Stdout.
	Console io.Writer
}

// core is the state shared by every context view.
type core struct {
	mu        sync.RWMutex
	global    Level
	overrides map[string]Level
	sink      *log.Logger
	closer    io.Closer
}

// Logger is a named view over the shared logger state.
type Logger struct {
	core *core
	name string
}

// New creates the root context from settings.
func New(s Settings) *Logger {
	c := &core{
		overrides: make(map[string]Level),
	}
	c.configure(s)
	return &Logger{core: c, name: RootName}
}

// Discard returns a logger that emits nothing. Useful in tests.
func Discard() *Logger {
	return New(Settings{Level: Silent, Console: io.Discard})
}

// configure swaps the sink and global level. Overrides in s are merged into
// the shared map; existing overrides for other names are kept.
func (c *core) configure(s Settings) {
	console := s.Console
	if console == nil {
		console = os.Stdout
	}

	var (
		w      io.Writer = console
		closer io.Closer
		stamp  bool
	)
	if s.Output == File && s.File != "" {
		lj := &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
		}
		w, closer, stamp = lj, lj, true
	}

	sink := log.NewWithOptions(w, log.Options{
		Level:           verboseLevel,
		ReportTimestamp: stamp,
	})
	sink.SetStyles(styles())

	c.mu.Lock()
	old := c.closer
	c.global = s.Level
	c.sink = sink
	c.closer = closer
	for name, lvl := range s.Overrides {
		c.overrides[name] = lvl
	}
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// CreateContext returns a view scoped to name. When an override is given it
// becomes the level for every view with that name.
func (l *Logger) CreateContext(name string, override ...Level) *Logger {
	if len(override) > 0 {
		l.core.mu.Lock()
		l.core.overrides[name] = override[0]
		l.core.mu.Unlock()
	}
	return &Logger{core: l.core, name: name}
}

// Name returns the context name.
func (l *Logger) Name() string {
	return l.name
}

// Level returns the effective level of this context.
func (l *Logger) Level() Level {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()
	if lvl, ok := l.core.overrides[l.name]; ok {
		return lvl
	}
	return l.core.global
}

// Enabled reports whether a message at level would be emitted.
func (l *Logger) Enabled(level Level) bool {
	eff := l.Level()
	if eff == Silent || level >= Silent {
		return false
	}
	return level >= eff
}

// SetLevel changes the global level.
func (l *Logger) SetLevel(level Level) {
	l.core.mu.Lock()
	l.core.global = level
	l.core.mu.Unlock()
}

// GlobalLevel returns the level used by contexts without an override.
func (l *Logger) GlobalLevel() Level {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()
	return l.core.global
}

// SetOverride sets the level for every context named name.
func (l *Logger) SetOverride(name string, level Level) {
	l.core.mu.Lock()
	l.core.overrides[name] = level
	l.core.mu.Unlock()
}

// ClearOverride removes the override for name.
func (l *Logger) ClearOverride(name string) {
	l.core.mu.Lock()
	delete(l.core.overrides, name)
	l.core.mu.Unlock()
}

// Configure replaces the global level and sink.
func (l *Logger) Configure(s Settings) {
	l.core.configure(s)
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	l.core.mu.Lock()
	closer := l.core.closer
	l.core.closer = nil
	l.core.mu.Unlock()
	if closer == nil {
		return nil
	}
	return closer.Close()
}

// Verbose emits msg at Verbose level.
func (l *Logger) Verbose(msg string, keyvals ...any) { l.emit(Verbose, msg, keyvals...) }

// Info emits msg at Info level.
func (l *Logger) Info(msg string, keyvals ...any) { l.emit(Info, msg, keyvals...) }

// Debug emits msg at Debug level.
func (l *Logger) Debug(msg string, keyvals ...any) { l.emit(Debug, msg, keyvals...) }

// Warn emits msg at Warn level.
func (l *Logger) Warn(msg string, keyvals ...any) { l.emit(Warn, msg, keyvals...) }

// Error emits msg at Error level. Nothing is written when the context's
// effective level is above the message level or Silent.
func (l *Logger) Error(msg string, keyvals ...any) { l.emit(Error, msg, keyvals...) }

// Log emits msg at level.
func (l *Logger) Log(level Level, msg string, keyvals ...any) {
	l.emit(level, msg, keyvals...)
}

// emit writes one line. Sink write errors are dropped by the sink; they are
// never reported through the logger.
func (l *Logger) emit(level Level, msg string, keyvals ...any) {
	if !l.Enabled(level) {
		return
	}
	l.core.mu.RLock()
	sink := l.core.sink
	l.core.mu.RUnlock()
	sink.WithPrefix(l.name).Log(level.charmLevel(), msg, keyvals...)
}
