package logger

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Level is a position on the severity scale. Lower values are more
// permissive: a context at Verbose emits everything, a context at Silent
// emits nothing.
type Level int

// Severity scale, most permissive first.
const (
	Verbose Level = iota
	Info
	Debug
	Warn
	Error
	Silent
)

var levelNames = [...]string{
	Verbose: "verbose",
	Info:    "info",
	Debug:   "debug",
	Warn:    "warn",
	Error:   "error",
	Silent:  "silent",
}

// String returns the lowercase level name.
func (l Level) String() string {
	if l < Verbose || l > Silent {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is on the scale.
func (l Level) Valid() bool {
	return l >= Verbose && l <= Silent
}

// ParseLevel converts a level name to a Level. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return Silent, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// LevelNames returns the level names in scale order.
func LevelNames() []string {
	names := make([]string, len(levelNames))
	copy(names, levelNames[:])
	return names
}

// verboseLevel sits below charm's debug level so verbose lines get their own
// style entry.
const verboseLevel = log.DebugLevel - 1

// charmLevel maps a severity onto the charm level used for rendering.
// Filtering never happens in charm; it is done by Logger.Enabled.
func (l Level) charmLevel() log.Level {
	switch l {
	case Verbose:
		return verboseLevel
	case Info:
		return log.InfoLevel
	case Debug:
		return log.DebugLevel
	case Warn:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}

// styles renders level tags with wdir's own level names.
func styles() *log.Styles {
	st := log.DefaultStyles()
	st.Levels = map[log.Level]lipgloss.Style{
		verboseLevel:   lipgloss.NewStyle().SetString("VERBOSE").Faint(true),
		log.InfoLevel:  lipgloss.NewStyle().SetString("INFO").Bold(true).Foreground(lipgloss.Color("86")),
		log.DebugLevel: lipgloss.NewStyle().SetString("DEBUG").Bold(true).Foreground(lipgloss.Color("63")),
		log.WarnLevel:  lipgloss.NewStyle().SetString("WARN").Bold(true).Foreground(lipgloss.Color("192")),
		log.ErrorLevel: lipgloss.NewStyle().SetString("ERROR").Bold(true).Foreground(lipgloss.Color("204")),
	}
	return st
}
