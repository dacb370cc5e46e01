package testrun

import (
	"context"
	"sort"

	"github.com/Iron-Ham/testrun/internal/form"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

var typeToComponent = map[string]string{
	form.TypeString:  form.ComponentInputString,
	form.TypeBoolean: form.ComponentSelectBoolean,
	form.TypeObject:  form.ComponentInputJSON,
	form.TypeArray:   form.ComponentInputJSON,
}

// StartNodeProperties derives test-run form fields from the JSON schema
// stored under the start node's "outputs": one field per property, required
// when listed in the schema's required array.
func StartNodeProperties(_ context.Context, node workflow.Node) (map[string]*form.Schema, error) {
	outputs, _ := node.Data()["outputs"].(map[string]any)
	props, _ := outputs["properties"].(map[string]any)

	required := make(map[string]bool)
	for _, name := range workflow.RequiredFields(outputs) {
		required[name] = true
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]*form.Schema, len(names))
	for _, name := range names {
		p, _ := props[name].(map[string]any)
		typ, _ := p["type"].(string)
		desc, _ := p["description"].(string)

		decoratorProps := map[string]any{
			"label":       name,
			"description": desc,
		}
		if items, ok := p["items"].(map[string]any); ok {
			decoratorProps["itemsType"] = items["type"]
		}

		component, ok := typeToComponent[typ]
		if !ok {
			component = form.ComponentInputString
		}

		out[name] = &form.Schema{
			Name:           name,
			Type:           typ,
			DefaultValue:   p["default"],
			Required:       required[name],
			Index:          extraIndex(p),
			Component:      component,
			Decorator:      form.DecoratorFieldItem,
			DecoratorProps: decoratorProps,
		}
	}
	return out, nil
}

// extraIndex reads the display position some editors store under
// extra.index.
func extraIndex(p map[string]any) *int {
	extra, _ := p["extra"].(map[string]any)
	switch v := extra["index"].(type) {
	case int:
		return &v
	case float64:
		i := int(v)
		return &i
	}
	return nil
}
