package command

import "errors"

// Errors returned by command registration.
var (
	ErrInvalidName   = errors.New("invalid command name")
	ErrDuplicate     = errors.New("command already registered")
	ErrNoAction      = errors.New("command has no action")
	ErrBadFlagSpec   = errors.New("invalid flag spec")
	ErrFlagConflict  = errors.New("flag already defined")
	ErrUnknownKind   = errors.New("unknown option kind")
	ErrNeedsArgument = errors.New("option needs an argument placeholder")
	ErrParserKind    = errors.New("parser returned wrong kind")
)
