package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/wdir/internal/app"
)

// ParsePair splits a key=value argument and coerces the value. Only the
// first '=' separates; the value may contain more.
func ParsePair(arg string) (app.Override, error) {
	key, raw, ok := strings.Cut(arg, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return app.Override{}, fmt.Errorf("%w: %q", ErrBadPair, arg)
	}
	return app.Override{Key: key, Value: Coerce(raw)}, nil
}

// ParsePairs parses every argument, stopping at the first bad one.
func ParsePairs(args []string) ([]app.Override, error) {
	out := make([]app.Override, 0, len(args))
	for _, arg := range args {
		o, err := ParsePair(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// decimal matches plain decimal numbers. strconv alone would also accept
// nan, inf, hex floats and underscores.
var decimal = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

// Coerce turns a command-line string into a config value. true and false
// (in any case) become booleans, decimal numbers become float64, and JSON
// objects and arrays are decoded. Anything else stays a string.
func Coerce(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if decimal.MatchString(raw) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	if t := strings.TrimSpace(raw); strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
		if gjson.Valid(t) {
			return gjson.Parse(t).Value()
		}
	}
	return raw
}
