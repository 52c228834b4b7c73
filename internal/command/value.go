package command

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind selects how an option's occurrences are folded into a value.
type Kind int

const (
	// Infer picks the kind from the flag spec and default value.
	Infer Kind = iota
	// String options keep the last raw value.
	String
	// Bool options are switches.
	Bool
	// Array options collect every occurrence.
	Array
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Infer:
		return "infer"
	case String:
		return "string"
	case Bool:
		return "boolean"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name to a Kind. The empty string is Infer.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "":
		return Infer, nil
	case "string":
		return String, nil
	case "bool", "boolean":
		return Bool, nil
	case "array":
		return Array, nil
	}
	return Infer, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Value is an option value tagged with its kind.
type Value struct {
	kind Kind
	str  string
	b    bool
	arr  []string
}

// StringValue returns a String value.
func StringValue(s string) Value { return Value{kind: String, str: s} }

// BoolValue returns a Bool value.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// ArrayValue returns an Array value holding a copy of a.
func ArrayValue(a []string) Value { return Value{kind: Array, arr: slices.Clone(a)} }

// Zero returns the zero value of kind.
func Zero(kind Kind) Value {
	switch kind {
	case Bool:
		return BoolValue(false)
	case Array:
		return ArrayValue(nil)
	default:
		return StringValue("")
	}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Str returns the payload of a String value.
func (v Value) Str() string { return v.str }

// Bool returns the payload of a Bool value.
func (v Value) Bool() bool { return v.b }

// Array returns a copy of the payload of an Array value.
func (v Value) Array() []string { return slices.Clone(v.arr) }

// Any returns the payload as string, bool or []string.
func (v Value) Any() any {
	switch v.kind {
	case Bool:
		return v.b
	case Array:
		if v.arr == nil {
			return []string{}
		}
		return slices.Clone(v.arr)
	default:
		return v.str
	}
}

// String renders the value for help output.
func (v Value) String() string {
	switch v.kind {
	case Bool:
		return strconv.FormatBool(v.b)
	case Array:
		return "[" + strings.Join(v.arr, ",") + "]"
	default:
		return v.str
	}
}

// FromAny converts a loosely typed default into a Value of kind. It reports
// false when v does not fit the kind.
func FromAny(kind Kind, v any) (Value, bool) {
	switch kind {
	case Bool:
		b, ok := v.(bool)
		return BoolValue(b), ok
	case Array:
		switch a := v.(type) {
		case []string:
			return ArrayValue(a), true
		case []any:
			out := make([]string, 0, len(a))
			for _, e := range a {
				s, ok := scalarString(e)
				if !ok {
					return Zero(Array), false
				}
				out = append(out, s)
			}
			return ArrayValue(out), true
		}
		return Zero(Array), false
	default:
		s, ok := scalarString(v)
		return StringValue(s), ok
	}
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	}
	return "", false
}

// Parser folds one raw occurrence into the previous value.
type Parser func(raw string, prev Value) (Value, error)

// Replace keeps the latest raw value.
func Replace(raw string, _ Value) (Value, error) {
	return StringValue(raw), nil
}

// Toggle flips the previous boolean on every occurrence.
func Toggle(_ string, prev Value) (Value, error) {
	return BoolValue(!prev.Bool()), nil
}

// Collect appends each occurrence to the previous array.
func Collect(raw string, prev Value) (Value, error) {
	return ArrayValue(append(prev.Array(), raw)), nil
}

// SetBool parses raw as a boolean literal.
func SetBool(raw string, _ Value) (Value, error) {
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return Zero(Bool), fmt.Errorf("invalid boolean %q", raw)
	}
	return BoolValue(b), nil
}

// Builtin returns the named built-in parser: "replace", "toggle" or "collect".
func Builtin(name string) (Parser, Kind, bool) {
	switch name {
	case "replace":
		return Replace, String, true
	case "toggle":
		return Toggle, Bool, true
	case "collect":
		return Collect, Array, true
	}
	return nil, Infer, false
}

// plainParser is used for options declared without a parser.
func plainParser(kind Kind) Parser {
	switch kind {
	case Bool:
		return SetBool
	case Array:
		return Collect
	default:
		return Replace
	}
}
