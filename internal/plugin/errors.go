package plugin

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrNoManifest is returned when a plugin folder has no manifest.
	ErrNoManifest = errors.New("plugin has no manifest")

	// ErrInvalidManifest is returned when manifest validation fails.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrNoEntryPoint is returned when the declared entry file is missing.
	ErrNoEntryPoint = errors.New("plugin entry file not found")

	// ErrNoRuntime is returned when no runtime handles the entry's extension.
	ErrNoRuntime = errors.New("no runtime for plugin entry")

	// ErrDuplicateName is returned when two folders declare the same name.
	ErrDuplicateName = errors.New("duplicate plugin name")

	// ErrPanic wraps a recovered panic from plugin code.
	ErrPanic = errors.New("plugin panicked")

	// ErrTimeout is returned when loading exceeds the per-plugin timeout.
	ErrTimeout = errors.New("plugin load timed out")

	// ErrNoStore is returned by Bundle.Overwrite when no store is attached.
	ErrNoStore = errors.New("no config store")

	// ErrNoRegistrar is returned by Bundle.RegisterCommand when commands
	// cannot be registered.
	ErrNoRegistrar = errors.New("no command registrar")
)

// LoadError is a failure isolated to one plugin. State is the last state
// the plugin reached before the failure.
type LoadError struct {
	Plugin string
	State  State
	Err    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("plugin %s (%s): %v", e.Plugin, e.State, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
