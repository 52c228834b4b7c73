package watch

import "errors"

// Errors returned by the bus and watcher.
var (
	// ErrUnknownKind indicates an event kind other than add, change or unlink.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrNilCallback indicates On was called without a callback.
	ErrNilCallback = errors.New("nil callback")

	// ErrCallbackPanic wraps a recovered callback panic.
	ErrCallbackPanic = errors.New("callback panicked")

	// ErrNotDirectory indicates the watch root is not a directory.
	ErrNotDirectory = errors.New("watch root is not a directory")
)
