// Package form implements the schema-driven test-run input form: a JSON
// schema-like field description, the ordered field model derived from it,
// per-field validation rules, and the form entity holding current values.
package form

import (
	"cmp"
	"slices"
	"strings"
)

// Field types understood by the validator.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Component and decorator names used by generated schemas.
const (
	ComponentInputString   = "InputString"
	ComponentInputJSON     = "InputJson"
	ComponentSelectBoolean = "SelectBoolean"
	DecoratorFieldItem     = "FieldItem"
)

// Validator checks one field value. values holds the whole form.
type Validator func(value any, values map[string]any) error

// Schema describes a form or one of its fields.
type Schema struct {
	Name           string             `json:"name,omitempty" yaml:"name,omitempty"`
	Type           string             `json:"type,omitempty" yaml:"type,omitempty"`
	Title          string             `json:"title,omitempty" yaml:"title,omitempty"`
	Description    string             `json:"description,omitempty" yaml:"description,omitempty"`
	Properties     map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required       bool               `json:"required,omitempty" yaml:"required,omitempty"`
	DefaultValue   any                `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Index          *int               `json:"x-index,omitempty" yaml:"x-index,omitempty"`
	Component      string             `json:"x-component,omitempty" yaml:"x-component,omitempty"`
	ComponentProps map[string]any     `json:"x-component-props,omitempty" yaml:"x-component-props,omitempty"`
	Decorator      string             `json:"x-decorator,omitempty" yaml:"x-decorator,omitempty"`
	DecoratorProps map[string]any     `json:"x-decorator-props,omitempty" yaml:"x-decorator-props,omitempty"`

	// Validator is an optional custom rule run after the built-in checks.
	Validator Validator `json:"-" yaml:"-"`
}

// IsEmpty reports whether the schema declares no fields at all.
func (s *Schema) IsEmpty() bool {
	return s == nil || (s.Type == "" && len(s.Properties) == 0)
}

// UniqueFieldName joins the non-empty path segments with dots.
func UniqueFieldName(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// Model is a schema positioned at a path within its form.
type Model struct {
	*Schema
	Path []string
}

// NewModel wraps schema at path.
func NewModel(schema *Schema, path ...string) *Model {
	if schema == nil {
		schema = &Schema{}
	}
	return &Model{Schema: schema, Path: path}
}

// UniqueName is the dotted field name used as the value key.
func (m *Model) UniqueName() string {
	return UniqueFieldName(m.Path...)
}

// Properties returns the child fields in display order: fields with an
// x-index first by index, then the rest by name.
func (m *Model) Properties() []*Model {
	var indexed, rest []*Model
	for key, child := range m.Schema.Properties {
		if child == nil {
			continue
		}
		path := append(slices.Clone(m.Path), key)
		cm := NewModel(child, path...)
		if child.Index != nil {
			indexed = append(indexed, cm)
		} else {
			rest = append(rest, cm)
		}
	}
	slices.SortFunc(indexed, func(a, b *Model) int {
		if c := cmp.Compare(*a.Index, *b.Index); c != 0 {
			return c
		}
		return cmp.Compare(a.key(), b.key())
	})
	slices.SortFunc(rest, func(a, b *Model) int {
		return cmp.Compare(a.key(), b.key())
	})
	return append(indexed, rest...)
}

// Fields returns every leaf field below m in display order, depth first.
func (m *Model) Fields() []*Model {
	var out []*Model
	for _, child := range m.Properties() {
		if child.Type == TypeObject && len(child.Schema.Properties) > 0 {
			out = append(out, child.Fields()...)
			continue
		}
		out = append(out, child)
	}
	return out
}

func (m *Model) key() string {
	if len(m.Path) == 0 {
		return ""
	}
	return m.Path[len(m.Path)-1]
}

// Label is the human-facing field name.
func (m *Model) Label() string {
	if l, ok := m.DecoratorProps["label"].(string); ok && l != "" {
		return l
	}
	if m.Title != "" {
		return m.Title
	}
	if m.Name != "" {
		return m.Name
	}
	return m.key()
}
