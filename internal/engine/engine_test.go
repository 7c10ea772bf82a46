package engine

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/luahook/internal/config"
	"github.com/dshills/luahook/internal/entity"
	"github.com/dshills/luahook/internal/hook"
	"github.com/dshills/luahook/internal/logging"
	"github.com/dshills/luahook/internal/lua"
)

// recorder collects record(...) calls made by scripts.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) fn(L *glua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	r.mu.Lock()
	r.calls = append(r.calls, strings.Join(parts, " "))
	r.mu.Unlock()
	return 0
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.calls
	r.calls = nil
	return out
}

type fixture struct {
	eng *Engine
	rec *recorder
	dir string
	cfg *config.Cache
	env map[string]string
}

func writeScripts(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, src := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// replaceScript swaps in new content with the given modification time in
// one rename, so a concurrent scan never reads a partial file.
func replaceScript(t *testing.T, path, src string, mod time.Time) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(tmp, mod, mod); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
}

// newFixture starts an engine over files with scripting enabled.
// env entries override the defaults.
func newFixture(t *testing.T, files map[string]string, env map[string]string, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeScripts(t, dir, files)

	environ := map[string]string{
		"LUAHOOK_ENABLED":     "true",
		"LUAHOOK_SCRIPT_PATH": dir,
	}
	for k, v := range env {
		environ[k] = v
	}
	cfg := config.New(config.WithEnvironment(environ))
	if err := cfg.Initialize(false); err != nil {
		t.Fatalf("config Initialize() error = %v", err)
	}

	rec := &recorder{}
	opts = append([]Option{
		WithLogger(logging.New(logging.ProfileTest, io.Discard)),
		WithGlobals(map[string]glua.LGFunction{"record": rec.fn}),
	}, opts...)
	eng := New(cfg, opts...)
	if err := eng.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	return &fixture{eng: eng, rec: rec, dir: dir, cfg: cfg, env: environ}
}

// reconfigure sets environment overrides, re-reads the config, and applies it
// the way a hangup does.
func (f *fixture) reconfigure(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		f.env[k] = v
	}
	if err := f.cfg.Initialize(true); err != nil {
		t.Fatalf("config Initialize(true) error = %v", err)
	}
	if err := f.eng.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if err := f.eng.Reconfigure(); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
}

func (f *fixture) stackTop() int {
	f.eng.mu.Lock()
	defer f.eng.mu.Unlock()
	return f.eng.state.LuaState().GetTop()
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(want) == 0 {
		want = nil
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

var (
	orc  = &entity.Creature{GUID: 7, Entry: 3000, Name: "Orc", Level: 10, MapID: 1}
	wolf = &entity.Creature{GUID: 8, Entry: 3001, Name: "Wolf", Level: 4, MapID: 1}
	tmpl = &entity.CreatureTemplate{Entry: 3000, Name: "Orc", MinLevel: 8, MaxLevel: 12}
)

func TestFastPathTakesNoLock(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.eng.mu.Lock()
	done := make(chan uint8)
	go func() {
		level := uint8(5)
		f.eng.OnAllCreatureAddToWorld(orc)
		f.eng.OnMapUpdate(&entity.Map{ID: 1}, 10)
		f.eng.OnAllCreatureBeforeSelectLevel(tmpl, orc, &level)
		done <- level
	}()

	var (
		level   uint8
		blocked bool
	)
	select {
	case level = <-done:
	case <-time.After(time.Second):
		blocked = true
	}
	f.eng.mu.Unlock()

	if blocked {
		t.Fatal("dispatch without bindings blocked on the execution lock")
	}
	if level != 5 {
		t.Errorf("level = %d, want 5", level)
	}
}

func TestDisabledEngineDoesNotLoad(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `RegisterAllCreatureEvent(1, function() record("add") end)`,
	}, map[string]string{"LUAHOOK_ENABLED": "false"})

	if f.eng.Loaded() {
		t.Fatal("Loaded() = true with scripting disabled")
	}
	if f.eng.Registry().Len() != 0 {
		t.Errorf("Registry().Len() = %d, want 0", f.eng.Registry().Len())
	}
	f.eng.OnAllCreatureAddToWorld(orc)
	assertCalls(t, f.rec.take())
	if f.eng.Generation() != uuid.Nil {
		t.Error("Generation() set without a state")
	}
}

func TestBroadcastRunsAllInOrder(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterAllCreatureEvent(1, function(event, c) record("first", event, c:GetName()) return 42 end)
RegisterAllCreatureEvent(1, function(event, c) record("second", c:GetGUID()) return "ignored" end)
RegisterAllCreatureEvent(1, function(event, c) record("third") end)
`,
	}, nil)

	f.eng.OnAllCreatureAddToWorld(orc)
	assertCalls(t, f.rec.take(), "first 1 Orc", "second 7", "third")

	f.eng.OnAllCreatureRemoveFromWorld(orc)
	assertCalls(t, f.rec.take())

	if top := f.stackTop(); top != 0 {
		t.Errorf("stack top = %d after dispatch, want 0", top)
	}
}

func TestOverrideLastValidResponderWins(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterAllCreatureEvent(4, function() return nil end)
RegisterAllCreatureEvent(4, function() return 42 end)
RegisterAllCreatureEvent(4, function() end)
`,
	}, nil)

	level := uint8(10)
	f.eng.OnAllCreatureBeforeSelectLevel(tmpl, orc, &level)
	if level != 42 {
		t.Errorf("level = %d, want 42", level)
	}
}

func TestOverrideVisibleToLaterCallbacks(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterAllCreatureEvent(4, function(event, t, c, level) record("b1", level) return 10 end)
RegisterAllCreatureEvent(4, function(event, t, c, level) record("b2", level) return 20 end)
RegisterAllCreatureEvent(4, function(event, t, c, level) record("b3", level) end)
`,
	}, nil)

	level := uint8(5)
	f.eng.OnAllCreatureBeforeSelectLevel(tmpl, orc, &level)
	if level != 20 {
		t.Errorf("level = %d, want 20", level)
	}
	assertCalls(t, f.rec.take(), "b1 5", "b2 10", "b3 20")

	// Each dispatch starts from the host's value.
	level = 1
	f.eng.OnAllCreatureBeforeSelectLevel(tmpl, orc, &level)
	assertCalls(t, f.rec.take(), "b1 1", "b2 10", "b3 20")
}

func TestOverrideTolerantIgnoresMismatch(t *testing.T) {
	tests := []struct {
		name   string
		result string
	}{
		{"string", `"high"`},
		{"too large", `300`},
		{"negative", `-1`},
		{"fraction", `1.5`},
		{"table", `{}`},
		{"boolean", `true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{
				"a.lua": `RegisterAllCreatureEvent(4, function() return ` + tt.result + ` end)
RegisterAllCreatureEvent(4, function(event, t, c, level) record(level) end)`,
			}, nil)

			level := uint8(5)
			f.eng.OnAllCreatureBeforeSelectLevel(tmpl, orc, &level)
			if level != 5 {
				t.Errorf("level = %d, want unchanged 5", level)
			}
			assertCalls(t, f.rec.take(), "5")
		})
	}
}

func TestOverrideTolerantAcceptsNumericString(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `RegisterAllCreatureEvent(4, function() return "20" end)
RegisterAllCreatureEvent(4, function(event, t, c, level) record(level) end)`,
	}, nil)

	level := uint8(10)
	f.eng.OnAllCreatureBeforeSelectLevel(tmpl, orc, &level)
	if level != 20 {
		t.Errorf("level = %d, want 20", level)
	}
	assertCalls(t, f.rec.take(), "20")
}

func TestStrictOverrideSurfacesMismatch(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterServerEvent(4, function(event, motd) return 7 end)
RegisterServerEvent(4, function(event, motd) record(motd) return motd .. "!" end)
`,
	}, nil)

	motd := "welcome"
	err := f.eng.OnMotdChange(&motd)
	if !errors.Is(err, lua.ErrTypeMismatch) {
		t.Fatalf("OnMotdChange() error = %v, want ErrTypeMismatch", err)
	}
	var kerr *hook.KeyError
	if !errors.As(err, &kerr) || kerr.Key != hook.Key(hook.CategoryServer, hook.ServerEventMotdChange) {
		t.Errorf("error does not carry the event key: %v", err)
	}
	if motd != "welcome!" {
		t.Errorf("motd = %q, want welcome!", motd)
	}
	assertCalls(t, f.rec.take(), "welcome")
}

func TestStrictOverrideAcceptsValid(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `RegisterServerEvent(4, function(event, motd) return "hello" end)`,
	}, nil)

	motd := "welcome"
	if err := f.eng.OnMotdChange(&motd); err != nil {
		t.Fatalf("OnMotdChange() error = %v", err)
	}
	if motd != "hello" {
		t.Errorf("motd = %q, want hello", motd)
	}
}

func TestScopedBindings(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterCreatureEvent(7, 1, function(event, c) record("scoped", c:GetGUID()) end)
RegisterAllCreatureEvent(1, function(event, c) record("global", c:GetGUID()) end)
`,
	}, nil)

	f.eng.OnAllCreatureAddToWorld(wolf)
	assertCalls(t, f.rec.take(), "global 8")

	// Global bindings run before scoped ones regardless of registration order.
	f.eng.OnAllCreatureAddToWorld(orc)
	assertCalls(t, f.rec.take(), "global 7", "scoped 7")
}

func TestScopedMapBindings(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterInstanceMapEvent(530, 3, function(event, m, diff)
	record(m:GetMapId(), m:GetInstanceId(), m:IsDungeon(), diff)
end)
`,
	}, nil)

	f.eng.OnMapUpdate(&entity.Map{ID: 1, Name: "Kalimdor"}, 100)
	assertCalls(t, f.rec.take())

	f.eng.OnMapUpdate(&entity.Map{ID: 530, InstanceID: 2, Name: "Outland"}, 50)
	assertCalls(t, f.rec.take(), "530 2 true 50")
}

func TestFaultingCallbackIsIsolated(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterAllCreatureEvent(1, function() error("boom") end)
RegisterAllCreatureEvent(1, function(event, c) record("after", c:GetName()) end)

RegisterAllCreatureEvent(4, function() return 3 end)
RegisterAllCreatureEvent(4, function() local x = nil; return x.field end)
RegisterAllCreatureEvent(4, function(event, t, c, level) record("level", level) end)
`,
	}, map[string]string{"LUAHOOK_TRACEBACK": "true"})

	f.eng.OnAllCreatureAddToWorld(orc)
	assertCalls(t, f.rec.take(), "after Orc")
	if top := f.stackTop(); top != 0 {
		t.Errorf("stack top = %d after faulting dispatch, want 0", top)
	}

	level := uint8(9)
	f.eng.OnAllCreatureBeforeSelectLevel(tmpl, orc, &level)
	if level != 3 {
		t.Errorf("level = %d, want 3", level)
	}
	assertCalls(t, f.rec.take(), "level 3")
	if top := f.stackTop(); top != 0 {
		t.Errorf("stack top = %d after faulting chain, want 0", top)
	}
}

func TestInvalidRegistrationRaisesInScript(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
local ok, err = pcall(RegisterAllCreatureEvent, 99, function() end)
record(ok, string.find(err, "invalid event key", 1, true) ~= nil)
ok = pcall(RegisterServerEvent, 0, function() end)
record(ok)
ok = pcall(RegisterAllCreatureEvent, 1, "not a function")
record(ok)
ok = pcall(RegisterCreatureEvent, 1.5, 1, function() end)
record(ok)
ok = pcall(RegisterInstanceMapEvent, -2, 1, function() end)
record(ok)
`,
		"b.lua": `RegisterMapEvent(42, function() end)`,
	}, nil)

	assertCalls(t, f.rec.take(), "false true", "false", "false", "false", "false")

	errs := f.eng.LoadErrors()
	if len(errs) != 1 || filepath.Base(errs[0].Path) != "b.lua" {
		t.Fatalf("LoadErrors() = %v, want b.lua", errs)
	}
	if f.eng.Registry().Len() != 0 {
		t.Errorf("Registry().Len() = %d, want 0", f.eng.Registry().Len())
	}
}

func TestShotsLimitFirings(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `RegisterAllCreatureEvent(1, function() record("fired") end, 2)`,
	}, nil)

	key := hook.Key(hook.CategoryAllCreature, hook.AllCreatureEventOnAdd)
	for i := 0; i < 3; i++ {
		f.eng.OnAllCreatureAddToWorld(orc)
	}
	assertCalls(t, f.rec.take(), "fired", "fired")
	if n := f.eng.Registry().Count(key); n != 0 {
		t.Errorf("Count() = %d after shots exhausted, want 0", n)
	}
}

func TestCancelDuringDispatch(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
local cancelSecond
RegisterAllCreatureEvent(1, function()
	record("b1", cancelSecond())
end)
cancelSecond = RegisterAllCreatureEvent(1, function() record("b2") end)
RegisterAllCreatureEvent(1, function() record("b3") end)
`,
	}, nil)

	f.eng.OnAllCreatureAddToWorld(orc)
	assertCalls(t, f.rec.take(), "b1 true", "b3")

	f.eng.OnAllCreatureAddToWorld(orc)
	assertCalls(t, f.rec.take(), "b1 false", "b3")
}

func TestRegisterDuringDispatchNotVisited(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterAllCreatureEvent(1, function()
	record("outer")
	RegisterAllCreatureEvent(1, function() record("inner") end, 1)
end, 1)
`,
	}, nil)

	f.eng.OnAllCreatureAddToWorld(orc)
	assertCalls(t, f.rec.take(), "outer")
	f.eng.OnAllCreatureAddToWorld(orc)
	assertCalls(t, f.rec.take(), "inner")
}

func TestReloadRebuildsRegistry(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `RegisterAllCreatureEvent(1, function() record("old") end)`,
	}, nil)

	addKey := hook.Key(hook.CategoryAllCreature, hook.AllCreatureEventOnAdd)
	removeKey := hook.Key(hook.CategoryAllCreature, hook.AllCreatureEventOnRemove)

	// A binding made outside the scripts does not survive a reload.
	f.eng.mu.Lock()
	fn := f.eng.state.LuaState().NewFunction(func(*glua.LState) int { return 0 })
	f.eng.mu.Unlock()
	if _, err := f.eng.Registry().Register(removeKey, hook.Binding{Callback: fn}); err != nil {
		t.Fatal(err)
	}

	before := f.eng.Generation()
	writeScripts(t, f.dir, map[string]string{
		"a.lua": `RegisterMapEvent(1, function(event, m) record("new", m:GetName()) end)`,
	})
	if err := f.eng.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if f.eng.Registry().HasBindings(addKey) || f.eng.Registry().HasBindings(removeKey) {
		t.Error("bindings from before the reload survived")
	}
	f.eng.OnAllCreatureAddToWorld(orc)
	f.eng.OnMapCreate(&entity.Map{ID: 1, Name: "Kalimdor"})
	assertCalls(t, f.rec.take(), "new Kalimdor")

	if after := f.eng.Generation(); after == before || after == uuid.Nil {
		t.Errorf("Generation() = %v after reload, before %v", after, before)
	}
}

func TestLifecycleEvents(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterServerEvent(1, function() record("open", B_LOADED) end)
RegisterServerEvent(2, function() record("close") end)
`,
		"b.lua": `B_LOADED = true`,
	}, nil)

	assertCalls(t, f.rec.take(), "open true")

	if err := f.eng.Reload(); err != nil {
		t.Fatal(err)
	}
	assertCalls(t, f.rec.take(), "close", "open true")

	if err := f.eng.Close(); err != nil {
		t.Fatal(err)
	}
	assertCalls(t, f.rec.take(), "close")

	if err := f.eng.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := f.eng.Reload(); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Reload() after Close error = %v, want ErrEngineClosed", err)
	}
	if err := f.eng.Start(); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Start() after Close error = %v, want ErrEngineClosed", err)
	}
	f.eng.OnAllCreatureAddToWorld(orc)
	assertCalls(t, f.rec.take())
}

func TestConfigLoadEvent(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `RegisterServerEvent(3, function(event, reload) record("config", reload) end)`,
	}, nil)

	f.eng.OnConfigLoad(true)
	assertCalls(t, f.rec.take(), "config true")
}

func TestReloadBeforeStart(t *testing.T) {
	eng := New(config.New())
	if err := eng.Reload(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Reload() error = %v, want ErrNotStarted", err)
	}
}

func TestScriptLoadOrder(t *testing.T) {
	f := newFixture(t, map[string]string{
		"b.lua":       `record("b")`,
		"a.lua":       `record("a")`,
		"sub/c.lua":   `record("c")`,
		"z.ext":       `record("z.ext")`,
		"lib/y.ext":   `record("y.ext")`,
		"bad.lua":     `this is not lua (`,
		"skip.moon":   `record "moon"`,
		"notes.txt":   `record("txt")`,
		"later/d.lua": `record("d")`,
	}, nil)

	assertCalls(t, f.rec.take(), "y.ext", "z.ext", "a", "b", "d", "c")

	errs := f.eng.LoadErrors()
	if len(errs) != 1 {
		t.Fatalf("LoadErrors() = %v, want one", errs)
	}
	if filepath.Base(errs[0].Path) != "bad.lua" {
		t.Errorf("failed script = %s, want bad.lua", errs[0].Path)
	}
}

func TestMissingScriptPath(t *testing.T) {
	f := newFixture(t, nil, map[string]string{
		"LUAHOOK_SCRIPT_PATH": filepath.Join(t.TempDir(), "absent"),
	})
	if !f.eng.Loaded() {
		t.Fatal("state not loaded")
	}
	if errs := f.eng.LoadErrors(); len(errs) != 1 || !errors.Is(errs[0], os.ErrNotExist) {
		t.Errorf("LoadErrors() = %v, want one not-exist error", errs)
	}
}

func TestRequireFromScriptPath(t *testing.T) {
	f := newFixture(t, map[string]string{
		"lib/util.lua":      `local M = {} function M.answer() return 42 end return M`,
		"pkg/init.lua":      `return { name = "pkg" }`,
		"main.lua":          `record(require("lib.util").answer(), require("pkg").name)`,
		"shared/extra.luam": `unused`,
	}, map[string]string{"LUAHOOK_REQUIRE_CPATHS": "/opt/lib/?.so"})

	calls := f.rec.take()
	if len(calls) != 1 || calls[0] != "42 pkg" {
		t.Errorf("calls = %q, want [\"42 pkg\"]", calls)
	}
}

func TestBytecodeCache(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `record("a")`,
		"b.lua": `record("b")`,
	}, map[string]string{"LUAHOOK_BYTECODE_CACHE": "true"})

	assertCalls(t, f.rec.take(), "a", "b")
	if n := f.eng.protos.Len(); n != 2 {
		t.Errorf("cached chunks = %d, want 2", n)
	}

	if err := f.eng.Reload(); err != nil {
		t.Fatal(err)
	}
	assertCalls(t, f.rec.take(), "a", "b")

	// A changed script is recompiled.
	replaceScript(t, filepath.Join(f.dir, "b.lua"), `record("b2")`, time.Now().Add(time.Minute))
	if err := f.eng.Reload(); err != nil {
		t.Fatal(err)
	}
	assertCalls(t, f.rec.take(), "a", "b2")
}

func TestStateGeneration(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `RegisterServerEvent(3, function() record(GetStateGeneration()) end)`,
	}, nil)

	f.eng.OnConfigLoad(false)
	calls := f.rec.take()
	if len(calls) != 1 || calls[0] != f.eng.Generation().String() {
		t.Errorf("GetStateGeneration() = %q, want %s", calls, f.eng.Generation())
	}
}

func TestEntityMethods(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
RegisterAllCreatureEvent(3, function(event, t, c)
	record(tostring(t), t:GetEntry(), t:GetName(), t:GetMinLevel(), t:GetMaxLevel())
	record(tostring(c), c:GetEntry(), c:GetLevel(), c:GetMapId())
end)
RegisterAllCreatureEvent(4, function(event, t, c, level)
	return t:GetMaxLevel()
end)
`,
	}, nil)

	f.eng.OnAllCreatureSelectLevel(tmpl, orc)
	assertCalls(t, f.rec.take(),
		"CreatureTemplate 3000 Orc 8 12",
		"Creature 3000 10 1",
	)

	level := uint8(1)
	f.eng.OnAllCreatureBeforeSelectLevel(tmpl, orc, &level)
	if level != 12 {
		t.Errorf("level = %d, want 12", level)
	}
}

func TestAutoReload(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `record("v1")`,
	}, map[string]string{"LUAHOOK_AUTORELOAD": "true"}, WithWatchNotify(true))

	if !f.eng.Watching() {
		t.Fatal("watcher not started with auto reload enabled")
	}
	assertCalls(t, f.rec.take(), "v1")
	before := f.eng.Generation()

	replaceScript(t, filepath.Join(f.dir, "a.lua"), `record("v2")`, time.Now().Add(time.Minute))

	deadline := time.Now().Add(5 * time.Second)
	for f.eng.Generation() == before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if f.eng.Generation() == before {
		t.Fatal("script change did not trigger a reload")
	}

	if err := f.eng.Close(); err != nil {
		t.Fatal(err)
	}
	if f.eng.Watching() {
		t.Error("watcher still running after Close")
	}
	calls := f.rec.take()
	if len(calls) == 0 || calls[len(calls)-1] != "v2" {
		t.Errorf("calls = %q, want the reloaded script last", calls)
	}
}

func TestReconfigureFollowsConfig(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `RegisterAllCreatureEvent(1, function() end)`,
	}, map[string]string{
		"LUAHOOK_ENABLED":    "false",
		"LUAHOOK_AUTORELOAD": "true",
	})

	if f.eng.Loaded() || f.eng.Watching() {
		t.Fatalf("Loaded() = %v, Watching() = %v with scripting disabled", f.eng.Loaded(), f.eng.Watching())
	}

	f.reconfigure(t, map[string]string{"LUAHOOK_ENABLED": "true"})
	if !f.eng.Loaded() || !f.eng.Watching() {
		t.Fatalf("after enabling: Loaded() = %v, Watching() = %v, want both", f.eng.Loaded(), f.eng.Watching())
	}
	if got := f.eng.watcher.Root(); got != f.dir {
		t.Errorf("watcher root = %q, want %q", got, f.dir)
	}

	other := t.TempDir()
	f.reconfigure(t, map[string]string{
		"LUAHOOK_SCRIPT_PATH":         other,
		"LUAHOOK_AUTORELOAD_INTERVAL": "2",
	})
	if got := f.eng.watcher.Root(); got != other {
		t.Errorf("watcher root = %q after retarget, want %q", got, other)
	}
	if got, want := f.eng.watcher.Interval(), f.cfg.Duration(config.AutoReloadInterval); got != want {
		t.Errorf("watcher interval = %v, want %v", got, want)
	}
	if !f.eng.Watching() {
		t.Error("watcher stopped by retarget")
	}

	f.reconfigure(t, map[string]string{"LUAHOOK_AUTORELOAD": "false"})
	if f.eng.Watching() {
		t.Error("watcher still running with auto reload off")
	}
	if !f.eng.Loaded() {
		t.Error("scripts unloaded by turning auto reload off")
	}

	f.reconfigure(t, map[string]string{"LUAHOOK_AUTORELOAD": "true", "LUAHOOK_ENABLED": "false"})
	if f.eng.Watching() || f.eng.Loaded() {
		t.Errorf("after disabling: Loaded() = %v, Watching() = %v, want neither", f.eng.Loaded(), f.eng.Watching())
	}
}

func TestReconfigureLifecycle(t *testing.T) {
	cfg := config.New(config.WithEnvironment(map[string]string{"LUAHOOK_ENABLED": "false"}))
	if err := cfg.Initialize(false); err != nil {
		t.Fatal(err)
	}
	eng := New(cfg)
	if err := eng.Reconfigure(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Reconfigure() before Start = %v, want ErrNotStarted", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatal(err)
	}
	if err := eng.Close(); err != nil {
		t.Fatal(err)
	}
	if err := eng.Reconfigure(); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Reconfigure() after Close = %v, want ErrEngineClosed", err)
	}
}

func TestConcurrentDispatchAndReload(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.lua": `
COUNT = 0
RegisterAllCreatureEvent(1, function() COUNT = COUNT + 1 end)
RegisterAllCreatureEvent(4, function(event, t, c, level) return level + 1 end)
`,
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.eng.OnAllCreatureAddToWorld(orc)
				level := uint8(1)
				f.eng.OnAllCreatureBeforeSelectLevel(tmpl, orc, &level)
				if level != 1 && level != 2 {
					t.Errorf("level = %d", level)
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		if err := f.eng.Reload(); err != nil {
			t.Error(err)
		}
	}
	wg.Wait()

	if top := f.stackTop(); top != 0 {
		t.Errorf("stack top = %d, want 0", top)
	}
}
