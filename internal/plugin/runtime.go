package plugin

import (
	"context"

	"github.com/dshills/wdir/internal/logger"
)

// Runtime loads plugin entry modules of one kind, selected by the entry's
// file extension.
type Runtime interface {
	Load(ctx context.Context, spec ModuleSpec) (Module, error)
}

// ModuleSpec identifies the module a runtime should load.
type ModuleSpec struct {
	Name      string         // Plugin name
	Entry     string         // Absolute path of the entry file
	SourceDir string         // Plugin src directory, for module resolution
	Logger    *logger.Logger // Plugin-scoped logger
}

// Module is a loaded entry module.
type Module interface {
	// Default returns the module's default export, if it has a callable one.
	Default() (EntryFunc, bool)

	// Close releases the module's resources.
	Close() error
}

// EntryFunc is a plugin's registration entry point. It is called exactly
// once per process with the plugin's capability bundle.
type EntryFunc func(ctx context.Context, b *Bundle) error
