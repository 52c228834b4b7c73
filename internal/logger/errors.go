package logger

import "errors"

// Errors returned by logger configuration.
var (
	// ErrUnknownLevel indicates a level name outside the severity scale.
	ErrUnknownLevel = errors.New("unknown log level")

	// ErrUnknownOutput indicates an output mode other than console or file.
	ErrUnknownOutput = errors.New("unknown log output")
)
