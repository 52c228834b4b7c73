package lua

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps a gopher-lua state for one plugin.
//
// gopher-lua's LState is not goroutine-safe. Every entry into Lua goes
// through Do, which holds the state's mutex, so watch callbacks arriving on
// the watcher goroutine and command actions on the main goroutine never
// run concurrently inside the same plugin.
type State struct {
	L *lua.LState

	mu     sync.Mutex
	closed bool
}

// NewState creates a Lua state with the standard libraries open and
// require() resolving modules from srcDir.
func NewState(srcDir string) *State {
	L := lua.NewState()
	if srcDir != "" {
		setPackagePath(L, srcDir)
	}
	return &State{L: L}
}

// setPackagePath puts srcDir ahead of the default search path.
func setPackagePath(L *lua.LState, srcDir string) {
	pkg, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return
	}
	prefix := filepath.Join(srcDir, "?.lua") + ";" + filepath.Join(srcDir, "?", "init.lua")
	if cur := lua.LVAsString(pkg.RawGetString("path")); cur != "" {
		prefix += ";" + cur
	}
	pkg.RawSetString("path", lua.LString(prefix))
}

// Do runs fn with exclusive access to the state. A ctx with a deadline or
// cancellation interrupts running Lua code.
func (s *State) Do(ctx context.Context, fn func(L *lua.LState) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	if ctx != nil && ctx.Done() != nil {
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
	}

	top := s.L.GetTop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		if s.L.GetTop() > top {
			s.L.SetTop(top)
		}
	}()
	return scriptError(fn(s.L))
}

// Call invokes fn with args and returns its results.
func (s *State) Call(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.Do(ctx, func(L *lua.LState) error {
		top := L.GetTop()
		L.Push(fn)
		for _, arg := range args {
			L.Push(arg)
		}
		if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
			return err
		}
		n := L.GetTop() - top
		results = make([]lua.LValue, n)
		for i := 0; i < n; i++ {
			results[i] = L.Get(top + i + 1)
		}
		L.Pop(n)
		return nil
	})
	return results, err
}

// DoFile compiles and runs the file at path, returning the chunk's first
// return value.
func (s *State) DoFile(ctx context.Context, path string) (lua.LValue, error) {
	ret := lua.LValue(lua.LNil)
	err := s.Do(ctx, func(L *lua.LState) error {
		fn, err := L.LoadFile(path)
		if err != nil {
			return err
		}
		L.Push(fn)
		if err := L.PCall(0, 1, nil); err != nil {
			return err
		}
		ret = L.Get(-1)
		L.Pop(1)
		return nil
	})
	return ret, err
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Later calls to Do return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}

// scriptError strips gopher-lua's stack trace so errors fit on one log
// line.
func scriptError(err error) error {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return &ScriptError{Message: apiErr.Object.String(), Trace: apiErr.StackTrace}
	}
	return err
}
