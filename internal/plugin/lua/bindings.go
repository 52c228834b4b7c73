package lua

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/wdir/internal/command"
	"github.com/dshills/wdir/internal/logger"
	"github.com/dshills/wdir/internal/plugin"
	"github.com/dshills/wdir/internal/watch"
)

// bind sets self[name] to fn. Both self.name(...) and self:name(...)
// work; base is the index of the first real argument.
func bind(L *lua.LState, self *lua.LTable, name string, fn func(L *lua.LState, base int) int) {
	self.RawSetString(name, L.NewFunction(func(L *lua.LState) int {
		base := 1
		if L.Get(1) == lua.LValue(self) {
			base = 2
		}
		return fn(L, base)
	}))
}

// bundleTable exposes b to Lua.
func (m *Module) bundleTable(L *lua.LState, b *plugin.Bundle) *lua.LTable {
	br := NewBridge(L)
	t := L.NewTable()

	t.RawSetString("logger", loggerTable(L, b.Logger, br))
	if b.Watch != nil {
		t.RawSetString("watch", m.watchTable(L, b.Watch))
	}
	t.RawSetString("config", br.ToLuaValue(b.Config))
	t.RawSetString("version", lua.LString(b.Version))
	t.RawSetString("path", lua.LString(b.Path))

	id := L.NewTable()
	id.RawSetString("name", lua.LString(b.Plugin.Name))
	id.RawSetString("dir", lua.LString(b.Plugin.Dir))
	id.RawSetString("meta", br.ToLuaValue(b.Plugin.Meta))
	t.RawSetString("plugin", id)

	bind(L, t, "getPath", func(L *lua.LState, _ int) int {
		L.Push(lua.LString(b.GetPath()))
		return 1
	})

	bind(L, t, "overwriteConfig", func(L *lua.LState, base int) int {
		key := L.CheckString(base)
		if err := b.Overwrite(key, br.ToGoValue(L.Get(base+1))); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lua.LTrue)
		return 1
	})

	bind(L, t, "registerCommand", func(L *lua.LState, base int) int {
		d, err := m.descriptor(br, L.CheckTable(base))
		if err == nil {
			err = b.RegisterCommand(d)
		}
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lua.LTrue)
		return 1
	})

	return t
}

func loggerTable(L *lua.LState, log *logger.Logger, br *Bridge) *lua.LTable {
	t := L.NewTable()
	levels := map[string]logger.Level{
		"verbose": logger.Verbose,
		"info":    logger.Info,
		"debug":   logger.Debug,
		"warn":    logger.Warn,
		"error":   logger.Error,
	}
	for name, level := range levels {
		level := level
		bind(L, t, name, func(L *lua.LState, base int) int {
			if !log.Enabled(level) {
				return 0
			}
			msg := L.ToStringMeta(L.Get(base)).String()
			var kv []any
			for i := base + 1; i <= L.GetTop(); i++ {
				kv = append(kv, br.ToGoValue(L.Get(i)))
			}
			log.Log(level, msg, kv...)
			return 0
		})
	}
	bind(L, t, "level", func(L *lua.LState, _ int) int {
		L.Push(lua.LString(log.Level().String()))
		return 1
	})
	bind(L, t, "name", func(L *lua.LState, _ int) int {
		L.Push(lua.LString(log.Name()))
		return 1
	})
	return t
}

func (m *Module) watchTable(L *lua.LState, sub watch.Subscriber) *lua.LTable {
	t := L.NewTable()

	bind(L, t, "on", func(L *lua.LState, base int) int {
		kind, err := watch.ParseKind(L.CheckString(base))
		if err != nil {
			L.ArgError(base, err.Error())
			return 0
		}
		fn := L.CheckFunction(base + 1)
		id, err := sub.On(kind, func(path string) error {
			_, err := m.state.Call(context.Background(), fn, lua.LString(path))
			return err
		})
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lua.LString(id))
		return 1
	})

	bind(L, t, "off", func(L *lua.LState, base int) int {
		L.Push(lua.LBool(sub.Off(L.CheckString(base))))
		return 1
	})
	return t
}

// descriptor reads a registerCommand table.
func (m *Module) descriptor(br *Bridge, t *lua.LTable) (command.Descriptor, error) {
	var d command.Descriptor
	d.Name, _ = br.GetTableString(t, "name")
	d.Description, _ = br.GetTableString(t, "description")

	aliases, err := br.GetStringList(t, "aliases")
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	d.Aliases = aliases

	if fn, ok := br.GetTableFunc(t, "action"); ok {
		d.Action = m.action(br, fn)
	}

	opts, ok := br.GetTableTable(t, "options")
	if !ok {
		return d, nil
	}
	for i := 1; i <= opts.Len(); i++ {
		ot, ok := opts.RawGetInt(i).(*lua.LTable)
		if !ok {
			return d, fmt.Errorf("%w: options[%d] is not a table", ErrBadCommand, i)
		}
		o, err := m.option(br, ot)
		if err != nil {
			return d, fmt.Errorf("%w: options[%d]: %v", ErrBadCommand, i, err)
		}
		d.Options = append(d.Options, o)
	}
	return d, nil
}

func (m *Module) option(br *Bridge, t *lua.LTable) (command.Option, error) {
	var o command.Option
	o.Flag, _ = br.GetTableString(t, "flag")
	o.Description, _ = br.GetTableString(t, "description")
	o.Default = br.ToGoValue(t.RawGetString("default"))

	kindName, _ := br.GetTableString(t, "kind")
	kind, err := command.ParseKind(kindName)
	if err != nil {
		return o, err
	}
	o.Kind = kind

	switch p := t.RawGetString("parser").(type) {
	case *lua.LNilType:
	case lua.LString:
		parser, pk, ok := command.Builtin(string(p))
		if !ok {
			return o, fmt.Errorf("%w: %q", ErrUnknownParser, string(p))
		}
		o.Parser = parser
		if o.Kind == command.Infer {
			o.Kind = pk
		}
	case *lua.LFunction:
		o.Parser = m.parser(br, p)
	default:
		return o, fmt.Errorf("parser must be a function or a built-in name, got %s", p.Type())
	}
	return o, nil
}

// parser calls a Lua function as fn(raw, previous) and tags the result by
// its Lua type.
func (m *Module) parser(br *Bridge, fn *lua.LFunction) command.Parser {
	return func(raw string, prev command.Value) (command.Value, error) {
		var out command.Value
		err := m.state.Do(context.Background(), func(L *lua.LState) error {
			L.Push(fn)
			L.Push(lua.LString(raw))
			L.Push(br.ToLuaValue(prev.Any()))
			if err := L.PCall(2, 1, nil); err != nil {
				return err
			}
			ret := L.Get(-1)
			L.Pop(1)
			v, err := valueOf(br, ret)
			out = v
			return err
		})
		return out, err
	}
}

func valueOf(br *Bridge, lv lua.LValue) (command.Value, error) {
	switch v := lv.(type) {
	case lua.LBool:
		return command.BoolValue(bool(v)), nil
	case lua.LString, lua.LNumber:
		return command.StringValue(v.String()), nil
	case *lua.LTable:
		if v.Len() == 0 {
			return command.ArrayValue(nil), nil
		}
		val, ok := command.FromAny(command.Array, br.ToGoValue(v))
		if !ok {
			return val, fmt.Errorf("parser returned a table that is not a list of strings")
		}
		return val, nil
	case *lua.LNilType:
		return command.Value{}, fmt.Errorf("parser returned nil")
	}
	return command.Value{}, fmt.Errorf("parser returned unsupported %s", lv.Type())
}

// action runs a Lua command action as fn(path, opts). A Lua error fails
// the command.
func (m *Module) action(br *Bridge, fn *lua.LFunction) command.Action {
	return func(path string, opts command.Options) error {
		return m.state.Do(context.Background(), func(L *lua.LState) error {
			L.Push(fn)
			L.Push(lua.LString(path))
			L.Push(br.ToLuaValue(map[string]any(opts)))
			return L.PCall(2, 0, nil)
		})
	}
}
