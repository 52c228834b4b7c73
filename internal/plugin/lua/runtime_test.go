package lua

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/wdir/internal/command"
	"github.com/dshills/wdir/internal/config"
	"github.com/dshills/wdir/internal/logger"
	"github.com/dshills/wdir/internal/plugin"
	"github.com/dshills/wdir/internal/watch"
)

type env struct {
	root  string
	store *config.Store
	out   *bytes.Buffer
	bus   *watch.Bus
	cmd   *cobra.Command
	path  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		root: t.TempDir(),
		out:  &bytes.Buffer{},
		cmd:  &cobra.Command{Use: "wdir", SilenceErrors: true, SilenceUsage: true},
		path: "/watched",
	}
	e.store = config.NewStore(config.NewMemPersister(nil), config.WithDefaults(config.Defaults(e.root)))
	return e
}

func (e *env) addPlugin(t *testing.T, folder, manifest string, files map[string]string) {
	t.Helper()
	src := filepath.Join(e.root, folder, plugin.SourceDir)
	writeLua(t, src, plugin.ManifestFile, manifest)
	for name, code := range files {
		writeLua(t, src, name, code)
	}
}

func (e *env) load(t *testing.T, opts ...plugin.LoaderOption) (*plugin.Loader, []*plugin.Result) {
	t.Helper()
	log := logger.New(logger.Settings{Level: logger.Verbose, Console: e.out})
	e.bus = watch.NewBus(log)

	l := plugin.NewLoader(append([]plugin.LoaderOption{plugin.WithRuntime(Ext, NewRuntime())}, opts...)...)
	t.Cleanup(func() { l.Close() })

	results := l.LoadAll(context.Background(), plugin.Env{
		Logger:    log,
		Config:    e.store,
		Watch:     e.bus,
		Commands:  command.NewRegistrar(e.cmd, func() string { return e.path }, log),
		WatchPath: func() string { return e.path },
		Version:   "0.9.0",
	})
	return l, results
}

func (e *env) run(args ...string) error {
	e.cmd.SetArgs(args)
	e.cmd.SetOut(&bytes.Buffer{})
	e.cmd.SetErr(&bytes.Buffer{})
	return e.cmd.Execute()
}

func stateOf(results []*plugin.Result, name string) plugin.State {
	for _, r := range results {
		if r.Name == name {
			return r.State
		}
	}
	return plugin.State(-1)
}

const taggerEntry = `
return function(wdir)
	wdir.logger.info("hello from " .. wdir.plugin.name, "version", wdir.version)
	wdir.logger:debug("colon style works")

	wdir.watch.on("change", function(path)
		wdir.logger.info("changed " .. path)
	end)
	local id = wdir.watch:on("unlink", function(path) error("should be removed") end)
	assert(wdir.watch.off(id))

	wdir.registerCommand({
		name = "tag",
		description = "Tag files",
		aliases = { "t" },
		options = {
			{ flag = "-l, --label <name>", parser = "collect" },
			{ flag = "-v, --verbose", parser = function(_, prev) return not prev end },
			{ flag = "--mode <m>", default = "fast" },
		},
		action = function(path, opts)
			wdir.logger.info("tag " .. path .. " " .. table.concat(opts.label, "+") .. " " .. tostring(opts.verbose) .. " " .. opts.mode)
		end,
	})
end
`

func TestRuntimeEndToEnd(t *testing.T) {
	e := newEnv(t)
	e.addPlugin(t, "tagger", `{"name": "tagger", "entry": "main", "version": "1.0.0"}`, map[string]string{"main.lua": taggerEntry})

	_, results := e.load(t)
	if got := stateOf(results, "tagger"); got != plugin.StateRegistered {
		t.Fatalf("tagger state = %s\n%s", got, e.out.String())
	}

	out := e.out.String()
	for _, want := range []string{"hello from tagger", "version=0.9.0", "colon style works", "Loaded successfully"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}

	if n := e.bus.Trigger(watch.Change, "/watched/a.txt"); n != 1 {
		t.Errorf("Trigger(change) delivered to %d, want 1", n)
	}
	if n := e.bus.Trigger(watch.Unlink, "/watched/a.txt"); n != 0 {
		t.Errorf("Trigger(unlink) delivered to %d, want 0 after off", n)
	}
	if !strings.Contains(e.out.String(), "changed /watched/a.txt") {
		t.Errorf("watch callback did not run:\n%s", e.out.String())
	}

	e.path = "/elsewhere"
	if err := e.run("t", "-l", "x", "--label", "y", "-v"); err != nil {
		t.Fatalf("run(tag) error = %v", err)
	}
	if !strings.Contains(e.out.String(), "tag /elsewhere x+y true fast") {
		t.Errorf("action output missing:\n%s", e.out.String())
	}
}

func TestRuntimeTableExportAndConfig(t *testing.T) {
	e := newEnv(t)
	if err := e.store.Overwrite("log.pluginLevels.cfg", "warn"); err != nil {
		t.Fatal(err)
	}
	e.addPlugin(t, "cfg", `{"name": "cfg", "entry": "init.lua"}`, map[string]string{"init.lua": `
		local M = {}
		function M.default(wdir)
			assert(wdir.config.log.level == "warn", "effective level substituted")
			assert(wdir.logger.level() == "warn")
			assert(wdir.logger:name() == "cfg")
			assert(wdir:getPath() == "/watched")
			assert(wdir.path == "/watched")
			assert(wdir.plugin.meta.entry == "init.lua")

			local ok, err = pcall(wdir.overwriteConfig, "plugin.active", "notaboolean")
			assert(not ok and string.find(err, "plugin.active"), tostring(err))
			wdir:overwriteConfig("log.level", "error")
		end
		return M
	`})

	_, results := e.load(t)
	if got := stateOf(results, "cfg"); got != plugin.StateRegistered {
		t.Fatalf("cfg state = %s\n%s", got, e.out.String())
	}

	snap := e.store.Snapshot()
	if snap.Log.Level != "error" {
		t.Errorf("log.level = %q, want error", snap.Log.Level)
	}
	if !snap.Plugin.Active {
		t.Error("plugin.active changed after a rejected overwrite")
	}
}

func TestRuntimeFailuresAreIsolated(t *testing.T) {
	e := newEnv(t)
	e.addPlugin(t, "a", `{"name": "a-throws", "entry": "main"}`, map[string]string{"main.lua": `
		return function(wdir) error("registration exploded") end
	`})
	e.addPlugin(t, "b", `{"name": "b-syntax", "entry": "main"}`, map[string]string{"main.lua": `return function(`})
	e.addPlugin(t, "c", `{"name": "c-library", "entry": "main"}`, map[string]string{"main.lua": `return 42`})
	e.addPlugin(t, "d", `{"name": "d-badcmd", "entry": "main"}`, map[string]string{"main.lua": `
		return function(wdir)
			wdir.registerCommand({ name = "broken", options = { { flag = "--x <v>", parser = "sum" } }, action = function() end })
		end
	`})
	e.addPlugin(t, "e", `{"name": "e-ok", "entry": "main"}`, map[string]string{"main.lua": `return function() end`})

	_, results := e.load(t)

	want := map[string]plugin.State{
		"a-throws":  plugin.StateFailed,
		"b-syntax":  plugin.StateFailed,
		"c-library": plugin.StateLoaded,
		"d-badcmd":  plugin.StateFailed,
		"e-ok":      plugin.StateRegistered,
	}
	for name, state := range want {
		if got := stateOf(results, name); got != state {
			t.Errorf("%s state = %s, want %s", name, got, state)
		}
	}
	if !strings.Contains(e.out.String(), "Failed to load: ") || !strings.Contains(e.out.String(), "registration exploded") {
		t.Errorf("failure not logged:\n%s", e.out.String())
	}
	if !strings.Contains(e.out.String(), "unknown parser") {
		t.Errorf("bad parser not reported:\n%s", e.out.String())
	}
}

func TestRuntimeTimeout(t *testing.T) {
	e := newEnv(t)
	e.addPlugin(t, "spin", `{"name": "spin", "entry": "main"}`, map[string]string{"main.lua": `
		return function() while true do end end
	`})
	e.addPlugin(t, "tail", `{"name": "tail", "entry": "main"}`, map[string]string{"main.lua": `return function() end`})

	start := time.Now()
	_, results := e.load(t, plugin.WithTimeout(100*time.Millisecond))
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout not enforced")
	}

	for _, r := range results {
		switch r.Name {
		case "spin":
			if r.State != plugin.StateFailed || !errors.Is(r.Err, plugin.ErrTimeout) {
				t.Errorf("spin = %s %v, want failed with ErrTimeout", r.State, r.Err)
			}
		case "tail":
			if r.State != plugin.StateRegistered {
				t.Errorf("tail state = %s, want registered", r.State)
			}
		}
	}
}

func TestRuntimeActionErrorFailsCommand(t *testing.T) {
	e := newEnv(t)
	e.addPlugin(t, "p", `{"name": "p", "entry": "main"}`, map[string]string{"main.lua": `
		return function(wdir)
			wdir.registerCommand({ name = "boom", action = function() error("action failed") end })
		end
	`})
	e.load(t)

	err := e.run("boom")
	if err == nil || !strings.Contains(err.Error(), "action failed") {
		t.Errorf("run(boom) error = %v, want action failure", err)
	}
}

func TestRuntimePrintGoesToLogger(t *testing.T) {
	e := newEnv(t)
	e.addPlugin(t, "p", `{"name": "printer", "entry": "main"}`, map[string]string{"main.lua": `
		print("printed", "from", "lua")
		return nil
	`})
	_, results := e.load(t)

	if got := stateOf(results, "printer"); got != plugin.StateLoaded {
		t.Errorf("printer state = %s, want loaded", got)
	}
	if !strings.Contains(e.out.String(), "printed") || !strings.Contains(e.out.String(), "lua") {
		t.Errorf("print output missing:\n%s", e.out.String())
	}
}

func TestRuntimeParserTableOverridesStringDefault(t *testing.T) {
	e := newEnv(t)
	e.addPlugin(t, "p", `{"name": "collector", "entry": "main"}`, map[string]string{"main.lua": `
		return function(wdir)
			wdir.registerCommand({
				name = "collect",
				options = {
					{ flag = "--tag <t>", default = "x", parser = function(raw, prev)
						local out = {}
						if type(prev) == "table" then
							for _, v in ipairs(prev) do out[#out + 1] = v end
						end
						out[#out + 1] = raw
						return out
					end },
				},
				action = function(_, opts)
					wdir.logger.info("tags " .. table.concat(opts.tag, "+"))
				end,
			})
		end
	`})
	_, results := e.load(t)
	if got := stateOf(results, "collector"); got != plugin.StateRegistered {
		t.Fatalf("collector state = %s\n%s", got, e.out.String())
	}

	if err := e.run("collect", "--tag", "a", "--tag", "b"); err != nil {
		t.Fatalf("run(collect) error = %v", err)
	}
	out := e.out.String()
	if !strings.Contains(out, "tags a+b") {
		t.Errorf("action output missing:\n%s", out)
	}
	if !strings.Contains(out, "does not match its parser") {
		t.Errorf("mismatch warning missing:\n%s", out)
	}
}
