package lua

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/wdir/internal/logger"
	"github.com/dshills/wdir/internal/plugin"
)

// Ext is the entry extension handled by Runtime.
const Ext = ".lua"

// Runtime loads Lua plugin entries. Each plugin gets its own State.
type Runtime struct{}

// NewRuntime creates a Lua runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Load runs the entry chunk. The chunk's return value is the module's
// export: a function, or a table with a "default" function.
func (r *Runtime) Load(ctx context.Context, spec plugin.ModuleSpec) (plugin.Module, error) {
	log := spec.Logger
	if log == nil {
		log = logger.Discard()
	}

	st := NewState(spec.SourceDir)
	installPrint(st.L, log)

	export, err := st.DoFile(ctx, spec.Entry)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Module{
		name:   spec.Name,
		state:  st,
		export: export,
		log:    log,
	}, nil
}

// Module is a loaded Lua entry.
type Module struct {
	name   string
	state  *State
	export lua.LValue
	log    *logger.Logger
}

// Default returns the entry's default export.
func (m *Module) Default() (plugin.EntryFunc, bool) {
	var fn *lua.LFunction
	switch v := m.export.(type) {
	case *lua.LFunction:
		fn = v
	case *lua.LTable:
		f, ok := v.RawGetString("default").(*lua.LFunction)
		if !ok {
			return nil, false
		}
		fn = f
	default:
		return nil, false
	}

	return func(ctx context.Context, b *plugin.Bundle) error {
		return m.state.Do(ctx, func(L *lua.LState) error {
			L.Push(fn)
			L.Push(m.bundleTable(L, b))
			return L.PCall(1, 0, nil)
		})
	}, true
}

// Close releases the module's Lua state.
func (m *Module) Close() error {
	return m.state.Close()
}

// installPrint routes print() to the plugin logger at info level.
func installPrint(L *lua.LState, log *logger.Logger) {
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		log.Info(joinArgs(L, 1))
		return 0
	}))
}

// joinArgs renders arguments from index start on, tab separated.
func joinArgs(L *lua.LState, start int) string {
	var s string
	for i := start; i <= L.GetTop(); i++ {
		if i > start {
			s += "\t"
		}
		s += L.ToStringMeta(L.Get(i)).String()
	}
	return s
}

var (
	_ plugin.Runtime = (*Runtime)(nil)
	_ plugin.Module  = (*Module)(nil)
)
