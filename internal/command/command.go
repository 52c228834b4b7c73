// Package command turns plugin command descriptors into cobra commands.
package command

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/wdir/internal/logger"
)

// Options is the parsed option bag passed to an action, keyed by the
// camelCased long flag name.
type Options map[string]any

// Action runs a command against the current watch path.
type Action func(path string, opts Options) error

// Option describes one command option.
type Option struct {
	// Flag declares the names and argument, as in "-t, --tag <name>", "--dry-run".
	Flag        string
	Description string

	// Kind selects the value variant. Infer derives it from Flag and Default.
	Kind Kind

	// Default seeds the value. A default that does not fit Kind is
	// replaced by the kind's zero value with a warning.
	Default any

	// Parser folds each occurrence into the previous value. Nil selects
	// the plain behavior for Kind.
	Parser Parser
}

// Descriptor describes a command contributed by a plugin.
type Descriptor struct {
	Name        string
	Description string
	Aliases     []string
	Options     []Option
	Action      Action
}

// Registrar adds commands to a cobra root.
type Registrar struct {
	mu   sync.Mutex
	root *cobra.Command
	path func() string
	log  *logger.Logger
}

// NewRegistrar creates a registrar. path is called on every invocation so
// actions always see the current watch path.
func NewRegistrar(root *cobra.Command, path func() string, log *logger.Logger) *Registrar {
	return &Registrar{root: root, path: path, log: log}
}

// WithLogger returns a registrar sharing r's root and path that reports
// warnings through log.
func (r *Registrar) WithLogger(log *logger.Logger) *Registrar {
	return &Registrar{root: r.root, path: r.path, log: log}
}

// Register builds the command described by d and adds it to the root.
func (r *Registrar) Register(d Descriptor) (*cobra.Command, error) {
	if d.Name == "" || strings.ContainsAny(d.Name, " \t\n") || strings.HasPrefix(d.Name, "-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, d.Name)
	}
	if d.Action == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoAction, d.Name)
	}

	cmd := &cobra.Command{
		Use:     d.Name,
		Short:   d.Description,
		Aliases: slices.Clone(d.Aliases),
		Args:    cobra.NoArgs,
	}

	values := make([]*optionValue, 0, len(d.Options))
	for _, o := range d.Options {
		v, err := r.addOption(cmd, o)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", d.Name, err)
		}
		values = append(values, v)
	}

	action := d.Action
	cmd.RunE = func(*cobra.Command, []string) error {
		return action(r.path(), collect(values))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkDuplicate(d); err != nil {
		return nil, err
	}
	r.root.AddCommand(cmd)
	return cmd, nil
}

func (r *Registrar) checkDuplicate(d Descriptor) error {
	names := append([]string{d.Name}, d.Aliases...)
	for _, existing := range r.root.Commands() {
		for _, n := range names {
			if existing.Name() == n || existing.HasAlias(n) {
				return fmt.Errorf("%w: %s", ErrDuplicate, n)
			}
		}
	}
	for _, reserved := range []string{"help", "completion"} {
		if slices.Contains(names, reserved) {
			return fmt.Errorf("%w: %s", ErrDuplicate, reserved)
		}
	}
	return nil
}

// addOption defines one flag on cmd.
func (r *Registrar) addOption(cmd *cobra.Command, o Option) (*optionValue, error) {
	spec, err := parseFlagSpec(o.Flag)
	if err != nil {
		return nil, err
	}
	if err := r.checkFlag(cmd, spec); err != nil {
		return nil, err
	}

	kind := o.Kind
	inferred := kind == Infer
	if inferred {
		kind = inferKind(spec, o.Default)
	}
	if spec.arg == "" && kind != Bool {
		return nil, fmt.Errorf("%w: %s is a %s option", ErrNeedsArgument, spec.display(), kind)
	}

	initial := Zero(kind)
	hasDefault := o.Default != nil
	if hasDefault {
		v, ok := FromAny(kind, o.Default)
		if ok {
			initial = v
		} else {
			r.log.Warn("Option default does not match its kind, using zero value",
				"command", cmd.Name(), "option", spec.display(), "kind", kind.String(),
				"default", fmt.Sprintf("%v", o.Default))
		}
	}

	parser := o.Parser
	if parser == nil {
		parser = plainParser(kind)
	}

	v := &optionValue{
		name:       spec.name(),
		flag:       spec.display(),
		command:    cmd.Name(),
		kind:       kind,
		value:      initial,
		parser:     parser,
		hasDefault: hasDefault,
		inferred:   inferred && o.Parser != nil,
		log:        r.log,
	}
	f := cmd.Flags().VarPF(v, spec.flagName(), spec.short, o.Description)
	if kind == Bool && (spec.arg == "" || spec.argOptional) {
		f.NoOptDefVal = "true"
	}
	return v, nil
}

func (r *Registrar) checkFlag(cmd *cobra.Command, spec flagSpec) error {
	sets := []*pflag.FlagSet{cmd.Flags(), r.root.PersistentFlags()}
	for _, fs := range sets {
		if fs.Lookup(spec.flagName()) != nil {
			return fmt.Errorf("%w: --%s", ErrFlagConflict, spec.flagName())
		}
		if spec.short != "" && fs.ShorthandLookup(spec.short) != nil {
			return fmt.Errorf("%w: -%s", ErrFlagConflict, spec.short)
		}
	}
	return nil
}

func inferKind(spec flagSpec, def any) Kind {
	if spec.arg == "" {
		return Bool
	}
	switch def.(type) {
	case bool:
		return Bool
	case []string, []any:
		return Array
	}
	return String
}

// collect builds the option bag. Options that were neither given nor
// defaulted are left out.
func collect(values []*optionValue) Options {
	opts := make(Options, len(values))
	for _, v := range values {
		if v.changed || v.hasDefault {
			opts[v.name] = v.value.Any()
		}
	}
	return opts
}

// optionValue adapts a Parser to pflag.Value.
type optionValue struct {
	name       string
	flag       string
	command    string
	kind       Kind
	value      Value
	parser     Parser
	hasDefault bool
	changed    bool

	// inferred is set while the kind is only a guess from the default. The
	// first parser result settles it.
	inferred bool
	log      *logger.Logger
}

func (v *optionValue) String() string {
	return v.value.String()
}

func (v *optionValue) Set(raw string) error {
	next, err := v.parser(raw, v.value)
	if err != nil {
		return err
	}
	if next.Kind() != v.kind && v.inferred {
		next, err = v.adopt(raw, next.Kind())
		if err != nil {
			return err
		}
	}
	if next.Kind() != v.kind {
		return fmt.Errorf("%w: %s produced %s, want %s", ErrParserKind, v.flag, next.Kind(), v.kind)
	}
	v.inferred = false
	v.value = next
	v.changed = true
	return nil
}

// adopt switches an inferred option to the kind its parser produces and
// reruns the parser from that kind's zero value.
func (v *optionValue) adopt(raw string, kind Kind) (Value, error) {
	if v.hasDefault {
		v.log.Warn("Option default does not match its parser, using zero value",
			"command", v.command, "option", v.flag, "kind", kind.String(),
			"default", v.value.String())
	}
	v.kind = kind
	v.inferred = false
	return v.parser(raw, Zero(kind))
}

func (v *optionValue) Type() string {
	switch v.kind {
	case Bool:
		return "bool"
	case Array:
		return "stringArray"
	default:
		return "string"
	}
}

var _ pflag.Value = (*optionValue)(nil)
