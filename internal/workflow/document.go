// Package workflow provides the workflow document consumed by the test-run
// pipeline: a graph of nodes, each optionally carrying a form that can be
// validated locally, serializable to the schema accepted by the runtime.
package workflow

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/testrun/internal/errors"
)

// Well-known node types.
const (
	NodeTypeStart = "start"
	NodeTypeEnd   = "end"
)

// NodeForm is the locally-validatable form attached to a node.
type NodeForm interface {
	// Validate returns every problem found; an empty result means valid.
	Validate() []error
}

// Node is one vertex of a workflow document.
type Node interface {
	ID() string
	Type() string
	// Form returns the node's form, or nil if the node has none.
	Form() NodeForm
	// Data returns the node's raw data bag (title, inputs, outputs...).
	Data() map[string]any
}

// Document is a workflow graph.
type Document interface {
	AllNodes() []Node
	// ToJSON returns a JSON-serializable representation of the whole graph.
	ToJSON() map[string]any
}

// Edge connects two nodes.
type Edge struct {
	SourceNodeID string `yaml:"sourceNodeID" json:"sourceNodeID"`
	TargetNodeID string `yaml:"targetNodeID" json:"targetNodeID"`
	SourcePortID string `yaml:"sourcePortID,omitempty" json:"sourcePortID,omitempty"`
	TargetPortID string `yaml:"targetPortID,omitempty" json:"targetPortID,omitempty"`
}

// FileNode is a node decoded from a workflow file.
type FileNode struct {
	NodeID   string         `yaml:"id"`
	NodeType string         `yaml:"type"`
	Meta     map[string]any `yaml:"meta,omitempty"`
	NodeData map[string]any `yaml:"data,omitempty"`
	Blocks   []*FileNode    `yaml:"blocks,omitempty"`
	Edges    []Edge         `yaml:"edges,omitempty"`
}

// ID implements Node.
func (n *FileNode) ID() string { return n.NodeID }

// Type implements Node.
func (n *FileNode) Type() string { return n.NodeType }

// Data implements Node.
func (n *FileNode) Data() map[string]any {
	if n.NodeData == nil {
		return map[string]any{}
	}
	return n.NodeData
}

// Form implements Node. Every file node carries a form checking its title
// and required inputs.
func (n *FileNode) Form() NodeForm {
	return nodeForm{node: n}
}

func (n *FileNode) toJSON() map[string]any {
	out := map[string]any{
		"id":   n.NodeID,
		"type": n.NodeType,
		"data": n.Data(),
	}
	if n.Meta != nil {
		out["meta"] = n.Meta
	}
	if len(n.Blocks) > 0 {
		blocks := make([]any, 0, len(n.Blocks))
		for _, b := range n.Blocks {
			blocks = append(blocks, b.toJSON())
		}
		out["blocks"] = blocks
	}
	if len(n.Edges) > 0 {
		out["edges"] = edgesJSON(n.Edges)
	}
	return out
}

// FileDocument is a Document loaded from a YAML or JSON file.
type FileDocument struct {
	Nodes []*FileNode `yaml:"nodes"`
	Edges []Edge      `yaml:"edges"`

	path string
}

// Load reads a workflow document from path. JSON files are accepted since
// JSON is valid YAML.
func Load(path string) (*FileDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow %s: %w", path, err)
	}
	doc.path = path
	return doc, nil
}

// Parse decodes a workflow document and checks its structure.
func Parse(data []byte) (*FileDocument, error) {
	var doc FileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *FileDocument) check() error {
	seen := make(map[string]bool)
	for _, n := range d.AllNodes() {
		if n.ID() == "" {
			return errors.NewValidationError("node id is required").WithField("nodes.id")
		}
		if seen[n.ID()] {
			return errors.NewValidationError("duplicate node id").WithField("nodes.id").WithValue(n.ID())
		}
		seen[n.ID()] = true
	}
	for _, e := range d.Edges {
		if !seen[e.SourceNodeID] || !seen[e.TargetNodeID] {
			return errors.NewValidationError("edge references an unknown node").
				WithField("edges").
				WithValue(e.SourceNodeID + "->" + e.TargetNodeID)
		}
	}
	return nil
}

// Path returns the file the document was loaded from, if any.
func (d *FileDocument) Path() string { return d.path }

// AllNodes implements Document. Nested block nodes follow their parent.
func (d *FileDocument) AllNodes() []Node {
	var out []Node
	var walk func([]*FileNode)
	walk = func(nodes []*FileNode) {
		for _, n := range nodes {
			out = append(out, n)
			walk(n.Blocks)
		}
	}
	walk(d.Nodes)
	return out
}

// ToJSON implements Document.
func (d *FileDocument) ToJSON() map[string]any {
	nodes := make([]any, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		nodes = append(nodes, n.toJSON())
	}
	return map[string]any{
		"nodes": nodes,
		"edges": edgesJSON(d.Edges),
	}
}

// StartNode returns the first node of type start, or nil.
func StartNode(doc Document) Node {
	for _, n := range doc.AllNodes() {
		if n.Type() == NodeTypeStart {
			return n
		}
	}
	return nil
}

// NodeByID returns the node with the given id, or nil.
func NodeByID(doc Document, id string) Node {
	for _, n := range doc.AllNodes() {
		if n.ID() == id {
			return n
		}
	}
	return nil
}

func edgesJSON(edges []Edge) []any {
	out := make([]any, 0, len(edges))
	for _, e := range edges {
		m := map[string]any{
			"sourceNodeID": e.SourceNodeID,
			"targetNodeID": e.TargetNodeID,
		}
		if e.SourcePortID != "" {
			m["sourcePortID"] = e.SourcePortID
		}
		if e.TargetPortID != "" {
			m["targetPortID"] = e.TargetPortID
		}
		out = append(out, m)
	}
	return out
}

// nodeForm validates the fields every node must fill in: a title and each
// input listed as required in the node's inputs schema.
type nodeForm struct {
	node *FileNode
}

func (f nodeForm) Validate() []error {
	var errs []error
	data := f.node.Data()

	if title, _ := data["title"].(string); title == "" {
		errs = append(errs, errors.NewValidationError("title is required").
			WithField(f.node.NodeID+".title"))
	}

	inputs, _ := data["inputs"].(map[string]any)
	values, _ := data["inputsValues"].(map[string]any)
	for _, name := range RequiredFields(inputs) {
		if v, ok := values[name]; !ok || isEmpty(v) {
			errs = append(errs, errors.NewValidationError("input is required").
				WithField(f.node.NodeID+".inputsValues."+name))
		}
	}
	return errs
}

// RequiredFields returns the sorted names listed in a JSON schema's
// required array.
func RequiredFields(schema map[string]any) []string {
	raw, _ := schema["required"].([]any)
	names := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			names = append(names, s)
		}
	}
	sort.Strings(names)
	return names
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		// Flow values wrap the payload: {type: constant, content: ...}.
		if c, ok := t["content"]; ok {
			return isEmpty(c)
		}
		return len(t) == 0
	}
	return false
}

var _ Document = (*FileDocument)(nil)
