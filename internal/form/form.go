package form

import (
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Iron-Ham/testrun/internal/event"
)

// Form is one mounted test-run input form. It is safe for concurrent use.
type Form struct {
	id     string
	schema *Schema
	model  *Model
	rules  map[string]Rule

	mu       sync.Mutex
	values   map[string]any
	disposed bool

	unmounted event.Emitter[*Form]
	toDispose *event.DisposableCollection
}

// New creates a form for schema, seeding values from field defaults.
func New(schema *Schema) *Form {
	if schema == nil {
		schema = &Schema{}
	}
	f := &Form{
		id:        uuid.NewString(),
		schema:    schema,
		model:     NewModel(schema),
		rules:     CreateValidate(schema),
		values:    make(map[string]any),
		toDispose: event.NewDisposableCollection(),
	}
	for _, field := range f.model.Fields() {
		if field.DefaultValue != nil {
			setPath(f.values, field.Path, field.DefaultValue)
		}
	}
	f.toDispose.Push(event.OnDispose(f.unmounted.Clear))
	return f
}

// ID returns the form's unique id.
func (f *Form) ID() string { return f.id }

// Schema returns the schema the form was created from.
func (f *Form) Schema() *Schema { return f.schema }

// Model returns the root field model.
func (f *Form) Model() *Model { return f.model }

// Fields returns the leaf fields in display order.
func (f *Form) Fields() []*Model { return f.model.Fields() }

// Field returns the field with the given dotted name, or nil.
func (f *Form) Field(name string) *Model {
	for _, field := range f.model.Fields() {
		if field.UniqueName() == name {
			return field
		}
	}
	return nil
}

// Values returns a copy of the current values, nested by field path.
func (f *Form) Values() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return deepClone(f.values)
}

// Value returns the value of the field with the given dotted name.
func (f *Form) Value(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return getPath(f.values, strings.Split(name, "."))
}

// SetValue sets the field with the given dotted name.
func (f *Form) SetValue(name string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	setPath(f.values, strings.Split(name, "."), value)
}

// SetValues merges values into the form by top-level key.
func (f *Form) SetValues(values map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	maps.Copy(f.values, values)
}

// Validate runs every field rule in display order and returns the
// failures. An empty result means the form is valid.
func (f *Form) Validate() []error {
	values := f.Values()

	var errs []error
	var visit func(m *Model)
	visit = func(m *Model) {
		for _, child := range m.Properties() {
			name := child.UniqueName()
			if rule, ok := f.rules[name]; ok {
				if err := rule(getPath(values, child.Path), values); err != nil {
					errs = append(errs, err)
				}
			}
			if child.Type == TypeObject && len(child.Schema.Properties) > 0 {
				visit(child)
			}
		}
	}
	visit(f.model)
	return errs
}

// OnUnmounted registers fn to run when the form is unmounted.
func (f *Form) OnUnmounted(fn func(*Form)) event.Disposable {
	return f.unmounted.Subscribe(fn)
}

// Unmount signals that the form is no longer displayed.
func (f *Form) Unmount() {
	f.unmounted.Fire(f)
}

// Dispose releases the form's listeners. Idempotent.
func (f *Form) Dispose() {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	f.disposed = true
	f.mu.Unlock()
	f.toDispose.Dispose()
}

// Disposed reports whether Dispose has been called.
func (f *Form) Disposed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposed
}

func getPath(values map[string]any, path []string) any {
	var cur any = values
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func setPath(values map[string]any, path []string, value any) {
	if len(path) == 0 {
		return
	}
	cur := values
	for _, p := range path[:len(path)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}

func deepClone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepClone(nested)
			continue
		}
		out[k] = v
	}
	return out
}
