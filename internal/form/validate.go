package form

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Iron-Ham/testrun/internal/errors"
)

// Rule validates one field's value.
type Rule func(value any, values map[string]any) error

// CreateValidate collects a rule for every field of schema, keyed by the
// field's unique name. Nested object fields are visited recursively.
func CreateValidate(schema *Schema) map[string]Rule {
	rules := make(map[string]Rule)
	var visit func(m *Model)
	visit = func(m *Model) {
		for _, child := range m.Properties() {
			name := child.UniqueName()
			rules[name] = fieldRule(name, child.Schema)
			if child.Type == TypeObject && len(child.Schema.Properties) > 0 {
				visit(child)
			}
		}
	}
	visit(NewModel(schema))
	return rules
}

func fieldRule(name string, s *Schema) Rule {
	return func(value any, values map[string]any) error {
		if isBlank(value) {
			if s.Required {
				return errors.NewValidationError("is required").WithField(name)
			}
			return nil
		}
		if !matchesType(s.Type, value) {
			return errors.NewValidationError("must be of type " + s.Type).
				WithField(name).
				WithValue(value)
		}
		if s.Validator != nil {
			if err := s.Validator(value, values); err != nil {
				return errors.NewValidationError(err.Error()).WithField(name).WithValue(value)
			}
		}
		return nil
	}
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "":
		return true
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		_, ok := toFloat(v)
		return ok
	case TypeInteger:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ParseValue converts a raw command-line string into a value of the
// field's type. Strings and untyped fields are returned unchanged.
func ParseValue(s *Schema, raw string) (any, error) {
	typ := ""
	if s != nil {
		typ = s.Type
	}
	switch typ {
	case TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a boolean: %w", err)
		}
		return b, nil
	case TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number: %w", err)
		}
		return f, nil
	case TypeInteger:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected an integer: %w", err)
		}
		return i, nil
	case TypeObject, TypeArray:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("expected JSON: %w", err)
		}
		return v, nil
	}
	return raw, nil
}
