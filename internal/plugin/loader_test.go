package plugin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/wdir/internal/command"
	"github.com/dshills/wdir/internal/config"
	"github.com/dshills/wdir/internal/config/notify"
	"github.com/dshills/wdir/internal/logger"
	"github.com/dshills/wdir/internal/watch"
)

// fakeRuntime interprets an entry file's content as a behavior keyword.
type fakeRuntime struct {
	mu      sync.Mutex
	order   []string
	bundles map[string]*Bundle
	closed  int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{bundles: make(map[string]*Bundle)}
}

func (rt *fakeRuntime) Load(ctx context.Context, spec ModuleSpec) (Module, error) {
	data, err := os.ReadFile(spec.Entry)
	if err != nil {
		return nil, err
	}
	script := strings.TrimSpace(string(data))
	switch script {
	case "load-error":
		return nil, errors.New("syntax error near 'end'")
	case "load-panic":
		panic("boom")
	case "hang":
		<-ctx.Done()
		return nil, ctx.Err()
	}

	rt.mu.Lock()
	rt.order = append(rt.order, spec.Name)
	rt.mu.Unlock()
	return &fakeModule{rt: rt, script: script}, nil
}

type fakeModule struct {
	rt     *fakeRuntime
	script string
}

func (m *fakeModule) Default() (EntryFunc, bool) {
	switch m.script {
	case "no-export":
		return nil, false
	case "throw":
		return func(context.Context, *Bundle) error { return errors.New("entry exploded") }, true
	case "panic":
		return func(context.Context, *Bundle) error { panic("entry panic") }, true
	}
	return func(_ context.Context, b *Bundle) error {
		m.rt.mu.Lock()
		m.rt.bundles[b.Plugin.Name] = b
		m.rt.mu.Unlock()
		return nil
	}, true
}

func (m *fakeModule) Close() error {
	m.rt.mu.Lock()
	m.rt.closed++
	m.rt.mu.Unlock()
	return nil
}

type loaderHarness struct {
	root  string
	store *config.Store
	log   *bytes.Buffer
	rt    *fakeRuntime
	cmd   *cobra.Command
	bus   *watch.Bus
	env   Env
	path  string
}

func newLoaderHarness(t *testing.T) *loaderHarness {
	t.Helper()
	h := &loaderHarness{
		root: t.TempDir(),
		log:  &bytes.Buffer{},
		rt:   newFakeRuntime(),
		cmd:  &cobra.Command{Use: "wdir"},
		path: "/watched",
	}
	h.store = config.NewStore(config.NewMemPersister(nil), config.WithDefaults(config.Defaults(h.root)))
	log := logger.New(logger.Settings{Level: logger.Verbose, Console: h.log})
	h.bus = watch.NewBus(log)
	h.env = Env{
		Logger:    log,
		Config:    h.store,
		Watch:     h.bus,
		Commands:  command.NewRegistrar(h.cmd, func() string { return h.path }, log),
		WatchPath: func() string { return h.path },
		Version:   "1.2.3",
	}
	return h
}

// addPlugin creates folder/src with a manifest and, when script is not
// empty, an entry file holding it.
func (h *loaderHarness) addPlugin(t *testing.T, folder, manifest, entryFile, script string) {
	t.Helper()
	dir := filepath.Join(h.root, folder)
	if manifest != "" {
		writeManifest(t, dir, manifest)
	} else if err := os.MkdirAll(filepath.Join(dir, SourceDir), 0755); err != nil {
		t.Fatal(err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(dir, SourceDir, entryFile), []byte(script), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func (h *loaderHarness) loader(opts ...LoaderOption) *Loader {
	return NewLoader(append([]LoaderOption{WithRuntime(".lua", h.rt)}, opts...)...)
}

func resultFor(results []*Result, name string) *Result {
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func TestLoaderSkipsFolderWithoutManifest(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "a-bare", "", "", "")
	h.addPlugin(t, "b-good", `{"name": "good", "entry": "main"}`, "main.lua", "ok")

	results := h.loader().LoadAll(context.Background(), h.env)
	if len(results) != 2 {
		t.Fatalf("LoadAll() returned %d results, want 2", len(results))
	}

	bare := resultFor(results, "a-bare")
	if bare == nil || bare.State != StateSkipped {
		t.Fatalf("bare folder result = %+v, want skipped", bare)
	}
	if !errors.Is(bare.Err, ErrNoManifest) {
		t.Errorf("bare folder Err = %v, want ErrNoManifest", bare.Err)
	}
	if !strings.Contains(h.log.String(), "Skipping folder without manifest") {
		t.Errorf("log missing debug skip line:\n%s", h.log.String())
	}
	if strings.Contains(h.log.String(), "ERRO") {
		t.Errorf("skipping a bare folder should not log an error:\n%s", h.log.String())
	}

	if r := resultFor(results, "good"); r == nil || r.State != StateRegistered {
		t.Errorf("good result = %+v, want registered", r)
	}
}

func TestLoaderSkipsMissingEntryWithWarning(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "ghost", `{"name": "ghost", "entry": "main"}`, "", "")

	results := h.loader().LoadAll(context.Background(), h.env)
	r := resultFor(results, "ghost")
	if r == nil {
		t.Fatal("no result for ghost")
	}
	if r.State != StateSkipped {
		t.Errorf("State = %s, want skipped", r.State)
	}
	if !errors.Is(r.Err, ErrNoEntryPoint) {
		t.Errorf("Err = %v, want ErrNoEntryPoint", r.Err)
	}

	var le *LoadError
	if !errors.As(r.Err, &le) || le.State != StateManifestValid {
		t.Errorf("LoadError = %+v, want state manifest-valid", le)
	}
	if !strings.Contains(h.log.String(), "Entry not found") {
		t.Errorf("log missing warning:\n%s", h.log.String())
	}
}

func TestLoaderIsolatesFailures(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "1-throw", `{"name": "thrower", "entry": "main"}`, "main.lua", "throw")
	h.addPlugin(t, "2-panic", `{"name": "panicker", "entry": "main"}`, "main.lua", "panic")
	h.addPlugin(t, "3-syntax", `{"name": "broken", "entry": "main"}`, "main.lua", "load-error")
	h.addPlugin(t, "4-loadpanic", `{"name": "loadpanic", "entry": "main"}`, "main.lua", "load-panic")
	h.addPlugin(t, "5-manifest", `{"name": `, "main.lua", "ok")
	h.addPlugin(t, "6-good", `{"name": "good", "entry": "main"}`, "main.lua", "ok")

	results := h.loader().LoadAll(context.Background(), h.env)
	if len(results) != 6 {
		t.Fatalf("LoadAll() returned %d results, want 6", len(results))
	}

	for _, name := range []string{"thrower", "panicker", "broken", "loadpanic", "5-manifest"} {
		r := resultFor(results, name)
		if r == nil || r.State != StateFailed {
			t.Errorf("%s result = %+v, want failed", name, r)
		}
	}
	if r := resultFor(results, "panicker"); r != nil && !errors.Is(r.Err, ErrPanic) {
		t.Errorf("panicker Err = %v, want ErrPanic", r.Err)
	}
	if r := resultFor(results, "good"); r == nil || r.State != StateRegistered {
		t.Errorf("good result = %+v, want registered", r)
	}

	out := h.log.String()
	for _, want := range []string{"Failed to load: entry exploded", "Failed to load: syntax error", "Loaded successfully", "Loaded 1 plugins"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestLoaderNoDefaultExport(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "lib", `{"name": "lib", "entry": "main"}`, "main.lua", "no-export")

	results := h.loader().LoadAll(context.Background(), h.env)
	if r := resultFor(results, "lib"); r == nil || r.State != StateLoaded || r.Err != nil {
		t.Errorf("lib result = %+v, want loaded without error", r)
	}
}

func TestLoaderSequentialOrder(t *testing.T) {
	h := newLoaderHarness(t)
	for _, name := range []string{"c", "a", "b"} {
		h.addPlugin(t, name, `{"name": "`+name+`", "entry": "main"}`, "main.lua", "ok")
	}
	if err := os.WriteFile(filepath.Join(h.root, "README"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	results := h.loader().LoadAll(context.Background(), h.env)
	if len(results) != 3 {
		t.Fatalf("LoadAll() returned %d results, want 3", len(results))
	}
	got := strings.Join(h.rt.order, ",")
	if got != "a,b,c" {
		t.Errorf("load order = %s, want a,b,c", got)
	}
}

func TestLoaderDuplicateName(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "one", `{"name": "same", "entry": "main"}`, "main.lua", "ok")
	h.addPlugin(t, "two", `{"name": "same", "entry": "main"}`, "main.lua", "ok")

	results := h.loader().LoadAll(context.Background(), h.env)
	if results[0].State != StateRegistered {
		t.Errorf("first State = %s, want registered", results[0].State)
	}
	if results[1].State != StateFailed || !errors.Is(results[1].Err, ErrDuplicateName) {
		t.Errorf("second = %+v, want duplicate failure", results[1])
	}
}

func TestLoaderSkippedPluginDoesNotReserveName(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "a-ghost", `{"name": "same", "entry": "main"}`, "", "")
	h.addPlugin(t, "b-real", `{"name": "same", "entry": "main"}`, "main.lua", "ok")

	results := h.loader().LoadAll(context.Background(), h.env)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].State != StateSkipped {
		t.Errorf("first State = %s, want skipped", results[0].State)
	}
	if results[1].State != StateRegistered {
		t.Errorf("second = %+v, want registered", results[1])
	}
}

func TestLoaderUnknownRuntime(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "js", `{"name": "js", "entry": "main.js"}`, "main.js", "ok")

	results := h.loader().LoadAll(context.Background(), h.env)
	if r := resultFor(results, "js"); r == nil || !errors.Is(r.Err, ErrNoRuntime) {
		t.Errorf("js result = %+v, want ErrNoRuntime", r)
	}
}

func TestLoaderTimeout(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "slow", `{"name": "slow", "entry": "main"}`, "main.lua", "hang")
	h.addPlugin(t, "zfast", `{"name": "fast", "entry": "main"}`, "main.lua", "ok")

	start := time.Now()
	results := h.loader(WithTimeout(50*time.Millisecond)).LoadAll(context.Background(), h.env)
	if time.Since(start) > 5*time.Second {
		t.Fatal("LoadAll() did not honor the timeout")
	}

	if r := resultFor(results, "slow"); r == nil || !errors.Is(r.Err, ErrTimeout) {
		t.Errorf("slow result = %+v, want ErrTimeout", r)
	}
	if r := resultFor(results, "fast"); r == nil || r.State != StateRegistered {
		t.Errorf("fast result = %+v, want registered", r)
	}
}

func TestLoaderInactive(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "p", `{"name": "p", "entry": "main"}`, "main.lua", "ok")
	if err := h.store.Overwrite("plugin.active", false); err != nil {
		t.Fatal(err)
	}

	if results := h.loader().LoadAll(context.Background(), h.env); results != nil {
		t.Errorf("LoadAll() = %v, want nil when inactive", results)
	}
	if len(h.rt.order) != 0 {
		t.Error("no plugin should load when inactive")
	}
}

func TestLoaderMissingDirectory(t *testing.T) {
	h := newLoaderHarness(t)
	if err := h.store.Overwrite("plugin.path", filepath.Join(h.root, "absent")); err != nil {
		t.Fatal(err)
	}
	if results := h.loader().LoadAll(context.Background(), h.env); results != nil {
		t.Errorf("LoadAll() = %v, want nil", results)
	}
}

func TestLoaderLevelResolution(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "a", `{"name": "byconfig", "entry": "main", "logLevel": "debug"}`, "main.lua", "ok")
	h.addPlugin(t, "b", `{"name": "bymanifest", "entry": "main", "logLevel": "warn"}`, "main.lua", "ok")
	h.addPlugin(t, "c", `{"name": "byglobal", "entry": "main"}`, "main.lua", "ok")
	if err := h.store.Overwrite("log.pluginLevels.byconfig", "error"); err != nil {
		t.Fatal(err)
	}
	if err := h.store.Overwrite("log.level", "info"); err != nil {
		t.Fatal(err)
	}
	h.env.Logger.SetLevel(logger.Info)

	results := h.loader().LoadAll(context.Background(), h.env)

	tests := []struct {
		name string
		want logger.Level
	}{
		{"byconfig", logger.Error},
		{"bymanifest", logger.Warn},
		{"byglobal", logger.Info},
	}
	for _, tt := range tests {
		r := resultFor(results, tt.name)
		if r == nil {
			t.Fatalf("no result for %s", tt.name)
		}
		if r.Level != tt.want {
			t.Errorf("%s Level = %s, want %s", tt.name, r.Level, tt.want)
		}
		b := h.rt.bundles[tt.name]
		if b == nil {
			t.Fatalf("no bundle for %s", tt.name)
		}
		if b.Config.Log.Level != tt.want.String() {
			t.Errorf("%s bundle config level = %q, want %q", tt.name, b.Config.Log.Level, tt.want)
		}
		if b.Logger.Name() != tt.name {
			t.Errorf("bundle logger name = %q, want %q", b.Logger.Name(), tt.name)
		}
	}

	if got := h.store.Snapshot().Log.Level; got != "info" {
		t.Errorf("store log.level = %q, bundle snapshot must not leak into the store", got)
	}
}

func TestBundleCapabilities(t *testing.T) {
	h := newLoaderHarness(t)
	h.addPlugin(t, "tagger", `{"name": "tagger", "entry": "main", "version": "0.1.0"}`, "main.lua", "ok")

	var changes []string
	h.store.Subscribe("", func(c notify.Change) { changes = append(changes, c.Source+":"+c.Path) })

	l := h.loader()
	l.LoadAll(context.Background(), h.env)
	b := h.rt.bundles["tagger"]
	if b == nil {
		t.Fatal("no bundle for tagger")
	}

	if b.Version != "1.2.3" || b.Path != "/watched" {
		t.Errorf("Version/Path = %q/%q", b.Version, b.Path)
	}
	if b.Plugin.Name != "tagger" || b.Plugin.Meta["version"] != "0.1.0" {
		t.Errorf("Plugin = %+v", b.Plugin)
	}
	if b.Plugin.Dir != filepath.Join(h.root, "tagger") {
		t.Errorf("Plugin.Dir = %q", b.Plugin.Dir)
	}

	h.path = "/moved"
	if got := b.GetPath(); got != "/moved" {
		t.Errorf("GetPath() = %q, want live path", got)
	}

	if err := b.Overwrite("log.level", "debug"); err != nil {
		t.Fatalf("Overwrite() error = %v", err)
	}
	if err := b.Overwrite("plugin.active", "nope"); !errors.Is(err, config.ErrInvalidValue) {
		t.Errorf("Overwrite(invalid) error = %v, want ErrInvalidValue", err)
	}
	if len(changes) != 1 || changes[0] != "tagger:log.level" {
		t.Errorf("changes = %v, want [tagger:log.level]", changes)
	}

	var gotPath string
	err := b.RegisterCommand(command.Descriptor{
		Name:   "tag",
		Action: func(path string, _ command.Options) error { gotPath = path; return nil },
	})
	if err != nil {
		t.Fatalf("RegisterCommand() error = %v", err)
	}
	h.cmd.SetArgs([]string{"tag"})
	if err := h.cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotPath != "/moved" {
		t.Errorf("action path = %q, want /moved", gotPath)
	}

	id, err := b.Watch.On(watch.Add, func(string) error { return nil })
	if err != nil || id == "" {
		t.Errorf("Watch.On() = %q, %v", id, err)
	}
	if h.bus.Count(watch.Add) != 1 {
		t.Errorf("bus Count(add) = %d, want 1", h.bus.Count(watch.Add))
	}

	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if h.rt.closed != 1 {
		t.Errorf("closed = %d, want 1", h.rt.closed)
	}
	if got := len(l.Results()); got != 1 {
		t.Errorf("Results() len = %d, want 1", got)
	}
}

func TestBundleWithoutServices(t *testing.T) {
	b := &Bundle{Path: "/p"}
	if b.GetPath() != "/p" {
		t.Errorf("GetPath() = %q, want /p", b.GetPath())
	}
	if err := b.Overwrite("log.level", "info"); !errors.Is(err, ErrNoStore) {
		t.Errorf("Overwrite() error = %v, want ErrNoStore", err)
	}
	if err := b.RegisterCommand(command.Descriptor{Name: "x"}); !errors.Is(err, ErrNoRegistrar) {
		t.Errorf("RegisterCommand() error = %v, want ErrNoRegistrar", err)
	}
}
