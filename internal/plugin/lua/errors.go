package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrBadCommand is returned when a registerCommand table is malformed.
	ErrBadCommand = errors.New("invalid command table")

	// ErrUnknownParser is returned for an unrecognized built-in parser name.
	ErrUnknownParser = errors.New("unknown parser")
)

// ScriptError is an error raised by Lua code.
type ScriptError struct {
	Message string
	Trace   string
}

// Error returns the Lua error message without the stack trace.
func (e *ScriptError) Error() string {
	return e.Message
}
