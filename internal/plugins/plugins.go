// Package plugins provides the flow test-run plugins: local form
// validation, document validation against the runtime, task submission, and
// progress reporting.
package plugins

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/Iron-Ham/testrun/internal/errors"
	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/store"
)

// Data keys read and written by the plugins.
const (
	DataMode   = "mode"
	DataForm   = "form"
	DataValues = "values"
	DataTaskID = "taskId"
)

// Input modes.
const (
	ModeForm = "form"
	ModeJSON = "json"
)

// User-facing notification messages.
const (
	MsgFormInvalid       = "TestRun form has error!"
	MsgDocumentInvalid   = "Document has error!"
	MsgInternalError     = "Internal Server Error"
	MsgReportSyncFailure = "Sync task report failed"
)

// DataGlobalVariable is the key under which global variables are merged
// into the serialized document.
const DataGlobalVariable = "globalVariable"

// Validator is anything with a list-of-errors validation, such as a form.
type Validator interface {
	Validate() []error
}

// Default returns the full test-run plugin list in stage order.
func Default() []pipeline.PluginConstructor {
	return []pipeline.PluginConstructor{
		FormValidate,
		DocumentValidate,
		Execute,
		Progress,
	}
}

// ValidateOnly returns the prepare-stage plugins without execution.
func ValidateOnly() []pipeline.PluginConstructor {
	return []pipeline.PluginConstructor{
		FormValidate,
		DocumentValidate,
	}
}

// Values returns the input values stored in a run's data.
func Values(st store.State) map[string]any {
	v, _ := st.Data[DataValues].(map[string]any)
	if v == nil {
		return map[string]any{}
	}
	return v
}

// serializeDocument renders the scope's document plus global variables as
// the schema string accepted by the runtime.
func serializeDocument(scope *pipeline.Scope) (string, error) {
	if scope.Document == nil {
		return "", errors.NewValidationError("no workflow document").WithField("document")
	}
	schema := maps.Clone(scope.Document.ToJSON())
	if schema == nil {
		schema = map[string]any{}
	}
	if globals := scope.Globals(); globals != nil {
		schema[DataGlobalVariable] = globals
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to serialize workflow: %w", err)
	}
	return string(raw), nil
}

// reject records reasons in the run's data and cancels it.
func reject(run *pipeline.Run, reasons ...string) {
	prev, _ := run.State().Data[pipeline.DataErrors].([]string)
	errs := append(append([]string(nil), prev...), reasons...)
	run.Operate.Update(map[string]any{pipeline.DataErrors: errs})
	run.Operate.Cancel()
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}
