package command

import (
	"fmt"
	"strings"
	"unicode"
)

// flagSpec is a parsed option flag such as "-t, --tag <name>".
type flagSpec struct {
	short       string
	long        string
	arg         string
	argOptional bool
}

// name is the option's key in the parsed option bag.
func (f flagSpec) name() string {
	if f.long != "" {
		return camelCase(f.long)
	}
	return f.short
}

// flagName is the pflag name. pflag needs a long name, so a short-only
// option is also reachable as --x.
func (f flagSpec) flagName() string {
	if f.long != "" {
		return f.long
	}
	return f.short
}

// display is the flag as shown in messages.
func (f flagSpec) display() string {
	if f.long != "" {
		return "--" + f.long
	}
	return "-" + f.short
}

// parseFlagSpec accepts commander-style specs: "-v", "--verbose",
// "-o, --out <file>", "--level [n]", "-t|--tag <t>".
func parseFlagSpec(spec string) (flagSpec, error) {
	var fs flagSpec
	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == '|' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return fs, fmt.Errorf("%w: empty", ErrBadFlagSpec)
	}

	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "<") && strings.HasSuffix(f, ">"):
			if fs.arg != "" {
				return fs, fmt.Errorf("%w: %q has more than one argument", ErrBadFlagSpec, spec)
			}
			fs.arg = f[1 : len(f)-1]
		case strings.HasPrefix(f, "[") && strings.HasSuffix(f, "]"):
			if fs.arg != "" {
				return fs, fmt.Errorf("%w: %q has more than one argument", ErrBadFlagSpec, spec)
			}
			fs.arg = f[1 : len(f)-1]
			fs.argOptional = true
		case strings.HasPrefix(f, "--"):
			name := f[2:]
			if !validFlagName(name) || fs.long != "" {
				return fs, fmt.Errorf("%w: %q", ErrBadFlagSpec, spec)
			}
			fs.long = name
		case strings.HasPrefix(f, "-"):
			name := f[1:]
			if len(name) != 1 || !validFlagName(name) || fs.short != "" {
				return fs, fmt.Errorf("%w: %q", ErrBadFlagSpec, spec)
			}
			fs.short = name
		default:
			return fs, fmt.Errorf("%w: unexpected %q in %q", ErrBadFlagSpec, f, spec)
		}
	}

	if fs.long == "" && fs.short == "" {
		return fs, fmt.Errorf("%w: %q names no flag", ErrBadFlagSpec, spec)
	}
	return fs, nil
}

func validFlagName(s string) bool {
	if s == "" || s[0] == '-' {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// camelCase turns "dry-run" into "dryRun".
func camelCase(s string) string {
	parts := strings.Split(s, "-")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
