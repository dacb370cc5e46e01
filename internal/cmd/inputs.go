package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Iron-Ham/testrun/internal/errors"
	"github.com/Iron-Ham/testrun/internal/form"
	"github.com/Iron-Ham/testrun/internal/plugins"
	"github.com/Iron-Ham/testrun/internal/testrun"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

// inputOptions are the input flags shared by run and validate.
type inputOptions struct {
	mode       string
	pairs      []string
	inputsJSON string
}

func (o inputOptions) validate() error {
	switch o.mode {
	case plugins.ModeForm, plugins.ModeJSON:
		return nil
	}
	return errors.NewValidationError("must be form or json").WithField("mode").WithValue(o.mode)
}

// splitPair splits a k=v flag value.
func splitPair(pair string) (string, string, error) {
	k, v, ok := strings.Cut(pair, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", errors.NewValidationError("expected key=value").WithField("input").WithValue(pair)
	}
	return strings.TrimSpace(k), v, nil
}

func parseInputsJSON(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, errors.NewValidationError("must be a JSON object").WithField("inputs-json").WithValue(raw)
	}
	return values, nil
}

// initialData builds the data a run starts with. In form mode the inputs
// fill a registered form built from the start node; release unmounts it.
func initialData(ctx context.Context, svc *testrun.Service, doc workflow.Document, opts inputOptions) (data map[string]any, release func(), err error) {
	release = func() {}

	jsonValues, err := parseInputsJSON(opts.inputsJSON)
	if err != nil {
		return nil, release, err
	}

	if opts.mode == plugins.ModeJSON {
		values := make(map[string]any, len(jsonValues)+len(opts.pairs))
		for k, v := range jsonValues {
			values[k] = v
		}
		for _, pair := range opts.pairs {
			k, v, err := splitPair(pair)
			if err != nil {
				return nil, release, err
			}
			values[k] = v
		}
		return map[string]any{
			plugins.DataMode:   plugins.ModeJSON,
			plugins.DataValues: values,
		}, release, nil
	}

	start := workflow.StartNode(doc)
	if start == nil {
		return nil, release, errors.NewValidationError("workflow has no start node").WithField("document")
	}
	f, err := svc.CreateForm(ctx, start)
	if err != nil {
		return nil, release, err
	}
	release = f.Unmount

	if jsonValues != nil {
		f.SetValues(jsonValues)
	}
	for _, pair := range opts.pairs {
		k, raw, err := splitPair(pair)
		if err != nil {
			release()
			return nil, func() {}, err
		}
		field := f.Field(k)
		if field == nil {
			release()
			return nil, func() {}, errors.NewValidationError("unknown input").WithField(k)
		}
		v, err := form.ParseValue(field.Schema, raw)
		if err != nil {
			release()
			return nil, func() {}, errors.NewValidationError(err.Error()).WithField(k).WithValue(raw)
		}
		f.SetValue(k, v)
	}

	return map[string]any{
		plugins.DataMode:   plugins.ModeForm,
		plugins.DataForm:   f,
		plugins.DataValues: f.Values(),
	}, release, nil
}
