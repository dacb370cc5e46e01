package plugins

import (
	"context"

	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/runtime"
)

type formValidate struct {
	scope *pipeline.Scope
}

// FormValidate rejects the run when, in form mode, the form in the run's
// data reports errors.
func FormValidate(scope *pipeline.Scope) pipeline.Plugin {
	return &formValidate{scope: scope}
}

func (p *formValidate) Name() string { return "form-validate" }

func (p *formValidate) Apply(e *pipeline.Entity) error {
	return e.TapPrepare("TestRunFormValidate", p.prepare)
}

func (p *formValidate) prepare(ctx context.Context, run *pipeline.Run) error {
	st := run.State()
	if st.String(DataMode) != ModeForm {
		return nil
	}
	f, ok := st.Data[DataForm].(Validator)
	if !ok {
		return nil
	}
	if errs := f.Validate(); len(errs) > 0 {
		p.scope.Logger.Info("form validation failed", "errors", len(errs))
		p.scope.Notifier.Info(MsgFormInvalid)
		reject(run, errorStrings(errs)...)
	}
	return nil
}

type documentValidate struct {
	scope *pipeline.Scope
}

// DocumentValidate rejects the run when any node form is invalid or the
// runtime refuses the serialized document.
func DocumentValidate(scope *pipeline.Scope) pipeline.Plugin {
	return &documentValidate{scope: scope}
}

func (p *documentValidate) Name() string { return "document-validate" }

func (p *documentValidate) Apply(e *pipeline.Entity) error {
	return e.TapPrepare("DocumentValidate", p.prepare)
}

func (p *documentValidate) prepare(ctx context.Context, run *pipeline.Run) error {
	if p.scope.Document != nil {
		var reasons []string
		for _, node := range p.scope.Document.AllNodes() {
			form := node.Form()
			if form == nil {
				continue
			}
			reasons = append(reasons, errorStrings(form.Validate())...)
		}
		if len(reasons) > 0 {
			p.scope.Logger.Info("document validation failed", "errors", len(reasons))
			p.scope.Notifier.Info(MsgDocumentInvalid)
			reject(run, reasons...)
			return nil
		}
	}

	schema, err := serializeDocument(p.scope)
	if err != nil {
		return err
	}
	result, err := p.scope.Runtime.TaskValidate(ctx, runtime.TaskValidateInput{
		Schema: schema,
		Inputs: Values(run.State()),
	})
	if err != nil {
		p.scope.Logger.Warn("remote validation failed", "error", err.Error())
		p.scope.Notifier.Info(MsgInternalError)
		reject(run, err.Error())
		return nil
	}
	if result == nil || !result.Valid {
		msg := result.FirstError(MsgInternalError)
		p.scope.Notifier.Info(msg)
		reject(run, msg)
	}
	return nil
}
