package pipeline

import (
	"testing"
	"time"

	"github.com/Iron-Ham/testrun/internal/runtime/runtimetest"
)

type counterKey struct{}

func TestFactory_DistinctEntitiesAndScopes(t *testing.T) {
	client := runtimetest.NewFake()
	f := NewFactory(&Scope{Runtime: client}, WithPollInterval(5*time.Millisecond))

	a, b := f.New(), f.New()
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("ids = %q, %q, want distinct non-empty", a.ID(), b.ID())
	}
	if a.Scope() == b.Scope() {
		t.Fatal("entities share a scope")
	}
	if a.Scope().PipelineID != a.ID() {
		t.Errorf("scope PipelineID = %q, want %q", a.Scope().PipelineID, a.ID())
	}
	if a.Scope().Runtime != client || b.Scope().Runtime != client {
		t.Error("child scopes should share the runtime client")
	}

	ca := a.Scope().LoadOrInit(counterKey{}, func() any { return new(int) }).(*int)
	*ca = 42
	cb := b.Scope().LoadOrInit(counterKey{}, func() any { return new(int) }).(*int)
	if *cb != 0 {
		t.Errorf("state leaked between scopes: %d", *cb)
	}
	if again := a.Scope().LoadOrInit(counterKey{}, func() any { return new(int) }).(*int); again != ca {
		t.Error("LoadOrInit should return the stored value")
	}
	if f.PollInterval() != 5*time.Millisecond {
		t.Errorf("PollInterval() = %v", f.PollInterval())
	}
}

func TestFactory_PluginsConstructedPerRun(t *testing.T) {
	f := NewFactory(nil)

	var scopes []*Scope
	ctor := func(s *Scope) Plugin {
		scopes = append(scopes, s)
		return funcPlugin{name: "spy", apply: func(*Entity) error { return nil }}
	}

	for range 2 {
		if err := f.New().Init(Options{Plugins: []PluginConstructor{ctor}}); err != nil {
			t.Fatal(err)
		}
	}
	if len(scopes) != 2 || scopes[0] == scopes[1] {
		t.Errorf("plugin constructor should get one scope per run, got %v", scopes)
	}
}

func TestScope_StoreLoadAndGlobals(t *testing.T) {
	s := &Scope{GlobalVariables: func() map[string]any { return map[string]any{"env": "dev"} }}
	if _, ok := s.Load("k"); ok {
		t.Error("Load() on an empty scope should report false")
	}
	s.Store("k", 1)
	if v, _ := s.Load("k"); v != 1 {
		t.Errorf("Load(k) = %v, want 1", v)
	}

	g := s.Globals()
	g["env"] = "prod"
	if s.Globals()["env"] != "dev" {
		t.Error("Globals() should return a copy")
	}
	if (&Scope{}).Globals() != nil {
		t.Error("Globals() without a source should be nil")
	}

	child := s.Child("p1")
	if child.Notifier == nil || child.Logger == nil {
		t.Error("Child() should default the notifier and logger")
	}
	if _, ok := child.Load("k"); ok {
		t.Error("Child() should not inherit stored values")
	}
}
