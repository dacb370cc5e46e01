package testrun

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/testrun/internal/form"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

// PropertiesFunc derives a node's form fields at the time the form is built.
type PropertiesFunc func(ctx context.Context, node workflow.Node) (map[string]*form.Schema, error)

// NodeConfig describes how nodes of one type take part in test runs.
type NodeConfig struct {
	// Enabled defaults to true when nil.
	Enabled *bool
	// Properties is a static field set. PropertiesFunc takes precedence.
	Properties     map[string]*form.Schema
	PropertiesFunc PropertiesFunc
}

// IsEnabled reports whether the node type may be test-run.
func (c NodeConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Config is the test-run configuration.
type Config struct {
	// Nodes maps a node type, or a glob pattern over node types, to its
	// configuration. Keys and node types compare case-insensitively, since
	// config files reach us with lower-cased keys. Exact types win over
	// patterns; patterns are tried in lexical order.
	Nodes map[string]NodeConfig
}

// DefaultConfig enables the start node with fields derived from its outputs.
func DefaultConfig() Config {
	return Config{
		Nodes: map[string]NodeConfig{
			workflow.NodeTypeStart: {PropertiesFunc: StartNodeProperties},
		},
	}
}

// Merge returns a copy of c with other's entries layered on top. An entry in
// other that only sets Enabled keeps the fields defined by c.
func (c Config) Merge(other Config) Config {
	out := Config{Nodes: make(map[string]NodeConfig, len(c.Nodes)+len(other.Nodes))}
	for k, v := range c.Nodes {
		out.Nodes[strings.ToLower(k)] = v
	}
	for k, v := range other.Nodes {
		k = strings.ToLower(k)
		base := out.Nodes[k]
		if v.Enabled != nil {
			base.Enabled = v.Enabled
		}
		if v.Properties != nil {
			base.Properties = v.Properties
		}
		if v.PropertiesFunc != nil {
			base.PropertiesFunc = v.PropertiesFunc
		}
		out.Nodes[k] = base
	}
	return out
}

type nodePattern struct {
	pattern string
	glob    glob.Glob
	cfg     NodeConfig
}

// nodeTable resolves node types to their configuration.
type nodeTable struct {
	exact    map[string]NodeConfig
	patterns []nodePattern
}

func compileNodes(nodes map[string]NodeConfig) (*nodeTable, error) {
	t := &nodeTable{exact: make(map[string]NodeConfig)}

	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, raw := range keys {
		cfg := nodes[raw]
		key := strings.ToLower(raw)
		if !hasMeta(key) {
			t.exact[key] = cfg
			continue
		}
		g, err := glob.Compile(key)
		if err != nil {
			return nil, fmt.Errorf("invalid node pattern %q: %w", key, err)
		}
		t.patterns = append(t.patterns, nodePattern{pattern: key, glob: g, cfg: cfg})
	}
	return t, nil
}

func (t *nodeTable) lookup(nodeType string) (NodeConfig, bool) {
	nodeType = strings.ToLower(nodeType)
	if cfg, ok := t.exact[nodeType]; ok {
		return cfg, true
	}
	for _, p := range t.patterns {
		if p.glob.Match(nodeType) {
			return p.cfg, true
		}
	}
	return NodeConfig{}, false
}

func hasMeta(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[', '{', '\\':
			return true
		}
	}
	return false
}
