package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrUnknownKey indicates the dot path does not name a setting.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrInvalidValue indicates the value is outside the setting's domain.
	ErrInvalidValue = errors.New("invalid config value")

	// ErrMissingSection indicates persisted state lacks a required section.
	ErrMissingSection = errors.New("missing config section")

	// ErrMalformed indicates persisted state is not a JSON object.
	ErrMalformed = errors.New("malformed config")
)

// ErrorCode categorizes configuration errors.
type ErrorCode uint8

const (
	// CodeUnknownKey indicates an unrecognized dot path.
	CodeUnknownKey ErrorCode = iota
	// CodeTypeMismatch indicates the value has the wrong type.
	CodeTypeMismatch
	// CodeInvalidEnum indicates the value is not in the allowed set.
	CodeInvalidEnum
	// CodeRequired indicates a required value is empty.
	CodeRequired
	// CodeMissingSection indicates a required top-level section is absent.
	CodeMissingSection
	// CodeMalformed indicates the persisted document could not be parsed.
	CodeMalformed
)

// String returns a short name for the code.
func (c ErrorCode) String() string {
	switch c {
	case CodeUnknownKey:
		return "unknown_key"
	case CodeTypeMismatch:
		return "type_mismatch"
	case CodeInvalidEnum:
		return "invalid_enum"
	case CodeRequired:
		return "required"
	case CodeMissingSection:
		return "missing_section"
	case CodeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error describes a rejected load or overwrite. Key always names the
// offending setting or section.
type Error struct {
	Key     string
	Value   any
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: %s", e.Message)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Message)
}

// Unwrap maps the code onto a sentinel so callers can use errors.Is.
func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeUnknownKey:
		return ErrUnknownKey
	case CodeMissingSection:
		return ErrMissingSection
	case CodeMalformed:
		return ErrMalformed
	default:
		return ErrInvalidValue
	}
}

func unknownKey(key string) *Error {
	return &Error{Key: key, Code: CodeUnknownKey, Message: "unknown key"}
}

func typeMismatch(key, want string, value any) *Error {
	return &Error{
		Key:     key,
		Value:   value,
		Code:    CodeTypeMismatch,
		Message: fmt.Sprintf("expected %s, got %T", want, value),
	}
}

func invalidEnum(key string, value any, allowed []string) *Error {
	return &Error{
		Key:     key,
		Value:   value,
		Code:    CodeInvalidEnum,
		Message: fmt.Sprintf("invalid value %q (must be one of %v)", fmt.Sprint(value), allowed),
	}
}
