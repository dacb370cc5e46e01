package testrun

import (
	"context"
	"testing"

	"github.com/Iron-Ham/testrun/internal/form"
	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

func boolPtr(b bool) *bool { return &b }

func TestService_IsEnabled(t *testing.T) {
	cfg := DefaultConfig().Merge(Config{Nodes: map[string]NodeConfig{
		"llm":        {},
		"code":       {Enabled: boolPtr(false)},
		"http_*":     {},
		"*_internal": {Enabled: boolPtr(false)},
	}})
	s, err := NewService(pipeline.NewFactory(nil), cfg)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		nodeType string
		want     bool
	}{
		{"start", true},
		{"llm", true},
		{"code", false},
		{"http_get", true},
		{"http_internal", false}, // "*_internal" sorts before "http_*"
		{"db_internal", false},
		{"end", false},
	}
	for _, tt := range tests {
		t.Run(tt.nodeType, func(t *testing.T) {
			if got := s.IsEnabled(tt.nodeType); got != tt.want {
				t.Errorf("IsEnabled(%q) = %v, want %v", tt.nodeType, got, tt.want)
			}
		})
	}
}

func TestService_IsEnabledIgnoresCase(t *testing.T) {
	// Config files arrive with lower-cased keys; documents keep their casing.
	cfg := Config{Nodes: map[string]NodeConfig{
		"customNode": {Properties: map[string]*form.Schema{"a": {Type: form.TypeString}}},
		"Batch*":     {},
	}}.Merge(Config{Nodes: map[string]NodeConfig{
		"customnode": {Enabled: boolPtr(false)},
	}})
	s, err := NewService(pipeline.NewFactory(nil), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if s.IsEnabled("customNode") {
		t.Error("customNode should be disabled by the lower-cased override")
	}
	if got := cfg.Nodes["customnode"]; got.Properties == nil {
		t.Error("Merge should keep properties across key casing")
	}
	for _, nodeType := range []string{"batchLoop", "BATCH", "batch"} {
		if !s.IsEnabled(nodeType) {
			t.Errorf("IsEnabled(%q) = false, want a pattern match", nodeType)
		}
	}
}

func TestConfig_MergeKeepsFields(t *testing.T) {
	cfg := DefaultConfig().Merge(Config{Nodes: map[string]NodeConfig{
		workflow.NodeTypeStart: {Enabled: boolPtr(false)},
	}})
	start := cfg.Nodes[workflow.NodeTypeStart]
	if start.IsEnabled() {
		t.Error("override should disable start")
	}
	if start.PropertiesFunc == nil {
		t.Error("enabling override dropped the default PropertiesFunc")
	}
	if DefaultConfig().Nodes[workflow.NodeTypeStart].Enabled != nil {
		t.Error("Merge() mutated its receiver")
	}
}

func TestNewService_InvalidPattern(t *testing.T) {
	_, err := NewService(pipeline.NewFactory(nil), Config{Nodes: map[string]NodeConfig{"[": {}}})
	if err == nil {
		t.Error("NewService() should reject an invalid glob")
	}
}

func TestStartNodeProperties(t *testing.T) {
	node := &workflow.FileNode{
		NodeID:   "start_0",
		NodeType: workflow.NodeTypeStart,
		NodeData: map[string]any{
			"outputs": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":   map[string]any{"type": "string", "description": "Search query"},
					"verbose": map[string]any{"type": "boolean", "default": false},
					"tags":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"meta":    map[string]any{"type": "object", "extra": map[string]any{"index": 0}},
					"count":   map[string]any{"type": "number"},
				},
				"required": []any{"query"},
			},
		},
	}

	props, err := StartNodeProperties(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	if len(props) != 5 {
		t.Fatalf("len(props) = %d, want 5", len(props))
	}

	tests := []struct {
		name      string
		component string
		required  bool
	}{
		{"query", form.ComponentInputString, true},
		{"verbose", form.ComponentSelectBoolean, false},
		{"tags", form.ComponentInputJSON, false},
		{"meta", form.ComponentInputJSON, false},
		{"count", form.ComponentInputString, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := props[tt.name]
			if p.Component != tt.component {
				t.Errorf("Component = %q, want %q", p.Component, tt.component)
			}
			if p.Required != tt.required {
				t.Errorf("Required = %v, want %v", p.Required, tt.required)
			}
			if p.Decorator != form.DecoratorFieldItem || p.DecoratorProps["label"] != tt.name {
				t.Errorf("decorator = %q %v", p.Decorator, p.DecoratorProps)
			}
		})
	}

	if props["verbose"].DefaultValue != false {
		t.Errorf("verbose default = %v", props["verbose"].DefaultValue)
	}
	if props["tags"].DecoratorProps["itemsType"] != "string" {
		t.Errorf("tags itemsType = %v", props["tags"].DecoratorProps["itemsType"])
	}
	if props["query"].DecoratorProps["description"] != "Search query" {
		t.Errorf("query description = %v", props["query"].DecoratorProps["description"])
	}
	if idx := props["meta"].Index; idx == nil || *idx != 0 {
		t.Errorf("meta index = %v, want 0", idx)
	}

	ordered := form.NewModel(&form.Schema{Type: form.TypeObject, Properties: props}).Properties()
	if ordered[0].UniqueName() != "meta" {
		t.Errorf("first field = %q, want meta", ordered[0].UniqueName())
	}
}

func TestStartNodeProperties_NoOutputs(t *testing.T) {
	props, err := StartNodeProperties(context.Background(), &workflow.FileNode{NodeID: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if len(props) != 0 {
		t.Errorf("props = %v, want empty", props)
	}
}
