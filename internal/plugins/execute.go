package plugins

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/testrun/internal/errors"
	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/runtime"
	"github.com/Iron-Ham/testrun/internal/store"
)

type execute struct {
	scope *pipeline.Scope
}

// Execute submits the document and input values to the runtime and records
// the task id.
func Execute(scope *pipeline.Scope) pipeline.Plugin {
	return &execute{scope: scope}
}

func (p *execute) Name() string { return "execute" }

func (p *execute) Apply(e *pipeline.Entity) error {
	return e.RegisterExecute("Execute", p.execute)
}

func (p *execute) execute(ctx context.Context, run *pipeline.Run) error {
	schema, err := serializeDocument(p.scope)
	if err != nil {
		return err
	}
	out, err := p.scope.Runtime.TaskRun(ctx, runtime.TaskRunInput{
		Schema: schema,
		Inputs: Values(run.State()),
	})
	if err != nil {
		return fmt.Errorf("submitting task: %w", err)
	}
	if out != nil && out.TaskID != "" {
		p.scope.Logger.Info("task submitted", "task_id", out.TaskID)
		run.Operate.Update(map[string]any{DataTaskID: out.TaskID})
	}
	return nil
}

type progress struct {
	scope *pipeline.Scope
	ticks int
}

// Progress fetches the task report once per tick and merges it into the
// run's data. The run is done once the remote workflow has terminated, or
// immediately if no task was submitted.
func Progress(scope *pipeline.Scope) pipeline.Plugin {
	return &progress{scope: scope}
}

func (p *progress) Name() string { return "progress" }

func (p *progress) Apply(e *pipeline.Entity) error {
	return e.RegisterProgress("Progress", p.progress)
}

func (p *progress) progress(ctx context.Context, run *pipeline.Run) (bool, error) {
	st := run.State()
	taskID := st.String(DataTaskID)
	if taskID == "" || st.Status != store.StatusPolling {
		return true, nil
	}

	p.ticks++
	report, err := p.scope.Runtime.TaskReport(ctx, runtime.TaskReportInput{TaskID: taskID})
	if err != nil || report == nil {
		p.scope.Notifier.Error(MsgReportSyncFailure)
		if err == nil {
			return false, errors.ErrReportUnavailable
		}
		return false, fmt.Errorf("%w: %w", errors.ErrReportUnavailable, err)
	}

	run.Operate.Update(report.Data())
	p.scope.Logger.Debug("task report synced",
		"task_id", taskID,
		"tick", p.ticks,
		"status", report.WorkflowStatus.Status,
		"terminated", report.Terminated())
	return report.Terminated(), nil
}
