package form

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/testrun/internal/errors"
)

func intPtr(i int) *int { return &i }

func sampleSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"zeta":  {Type: TypeString},
			"alpha": {Type: TypeString},
			"query": {Type: TypeString, Required: true, Index: intPtr(0)},
			"count": {Type: TypeInteger, Index: intPtr(1), DefaultValue: 3},
			"opts": {
				Type: TypeObject,
				Properties: map[string]*Schema{
					"verbose": {Type: TypeBoolean, Required: true},
				},
			},
		},
	}
}

func names(models []*Model) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		out = append(out, m.UniqueName())
	}
	return out
}

func TestUniqueFieldName(t *testing.T) {
	assert.Equal(t, "a.b", UniqueFieldName("a", "", "b"))
	assert.Equal(t, "", UniqueFieldName())
	assert.Equal(t, "x", UniqueFieldName("", "x"))
}

func TestModel_PropertiesOrder(t *testing.T) {
	m := NewModel(sampleSchema())

	assert.Equal(t, []string{"query", "count", "alpha", "opts", "zeta"}, names(m.Properties()))
	assert.Equal(t, []string{"query", "count", "alpha", "opts.verbose", "zeta"}, names(m.Fields()))
}

func TestModel_Label(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
		want   string
	}{
		{"decorator label", &Schema{DecoratorProps: map[string]any{"label": "Query"}, Title: "t"}, "Query"},
		{"title", &Schema{Title: "Title"}, "Title"},
		{"name", &Schema{Name: "n"}, "n"},
		{"path", &Schema{}, "leaf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewModel(tt.schema, "root", "leaf").Label())
		})
	}
}

func TestCreateValidate(t *testing.T) {
	rules := CreateValidate(sampleSchema())

	for _, name := range []string{"query", "count", "alpha", "zeta", "opts", "opts.verbose"} {
		assert.Contains(t, rules, name)
	}

	assert.Error(t, rules["query"](nil, nil))
	assert.Error(t, rules["query"]("  ", nil))
	assert.NoError(t, rules["query"]("hi", nil))
	assert.NoError(t, rules["alpha"](nil, nil))
	assert.Error(t, rules["count"](1.5, nil))
	assert.NoError(t, rules["count"](2.0, nil))
	assert.Error(t, rules["opts.verbose"]("yes", nil))
}

func TestCreateValidate_CustomValidator(t *testing.T) {
	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"port": {
				Type: TypeInteger,
				Validator: func(v any, _ map[string]any) error {
					if v.(int) > 65535 {
						return fmt.Errorf("out of range")
					}
					return nil
				},
			},
		},
	}
	rules := CreateValidate(schema)

	err := rules["port"](70000, nil)
	require.Error(t, err)
	var vErr *errors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "port", vErr.Field)
	assert.NoError(t, rules["port"](8080, nil))
}

func TestForm_Validate(t *testing.T) {
	f := New(sampleSchema())

	errs := f.Validate()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "query")
	assert.Contains(t, errs[1].Error(), "opts.verbose")

	f.SetValue("query", "hello")
	f.SetValue("opts.verbose", true)
	assert.Empty(t, f.Validate())
}

func TestForm_DefaultsAndValues(t *testing.T) {
	f := New(sampleSchema())
	assert.NotEmpty(t, f.ID())
	assert.Equal(t, 3, f.Value("count"))

	f.SetValue("opts.verbose", false)
	values := f.Values()
	values["opts"].(map[string]any)["verbose"] = true

	assert.Equal(t, false, f.Value("opts.verbose"), "Values() must return a copy")

	f.SetValues(map[string]any{"alpha": "a"})
	assert.Equal(t, "a", f.Value("alpha"))
	assert.Nil(t, f.Value("missing.path"))
	assert.NotNil(t, f.Field("opts.verbose"))
	assert.Nil(t, f.Field("opts"))
}

func TestForm_UnmountAndDispose(t *testing.T) {
	f := New(&Schema{})

	calls := 0
	f.OnUnmounted(func(got *Form) {
		assert.Same(t, f, got)
		calls++
	})
	f.Unmount()
	assert.Equal(t, 1, calls)

	f.Dispose()
	f.Dispose()
	assert.True(t, f.Disposed())

	f.Unmount()
	assert.Equal(t, 1, calls, "listeners are released on dispose")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		typ     string
		raw     string
		want    any
		wantErr bool
	}{
		{TypeString, "x", "x", false},
		{"", "x", "x", false},
		{TypeBoolean, "true", true, false},
		{TypeBoolean, "nah", nil, true},
		{TypeNumber, "1.5", 1.5, false},
		{TypeInteger, "7", 7, false},
		{TypeInteger, "7.5", nil, true},
		{TypeObject, `{"a":1}`, map[string]any{"a": float64(1)}, false},
		{TypeArray, `[1`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.raw, func(t *testing.T) {
			got, err := ParseValue(&Schema{Type: tt.typ}, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchema_IsEmpty(t *testing.T) {
	assert.True(t, (*Schema)(nil).IsEmpty())
	assert.True(t, (&Schema{}).IsEmpty())
	assert.False(t, (&Schema{Type: TypeObject}).IsEmpty())
}
