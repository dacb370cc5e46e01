// Package runtimetest provides a scripted in-memory runtime.Client for tests.
package runtimetest

import (
	"context"
	"slices"
	"sync"

	"github.com/Iron-Ham/testrun/internal/runtime"
)

// Operation names used with Fake.Calls.
const (
	OpValidate = "TaskValidate"
	OpRun      = "TaskRun"
	OpReport   = "TaskReport"
	OpCancel   = "TaskCancel"
)

// ReportStep is one scripted TaskReport response.
type ReportStep struct {
	Report *runtime.TaskReportOutput
	Err    error
}

// Fake is a runtime.Client whose responses are scripted by the test. The
// zero value is not usable; create one with NewFake. It is safe for
// concurrent use.
type Fake struct {
	mu sync.Mutex

	validate func(runtime.TaskValidateInput) (*runtime.TaskValidateOutput, error)
	run      func(runtime.TaskRunInput) (*runtime.TaskRunOutput, error)
	reports  []ReportStep
	next     int

	calls       map[string]int
	lastRun     *runtime.TaskRunInput
	lastReport  string
	cancelled   []string
	reportHooks []func(n int)
}

// NewFake returns a Fake that accepts every validation, assigns task id
// "T1" on run, and reports a terminated workflow.
func NewFake() *Fake {
	return &Fake{
		validate: func(runtime.TaskValidateInput) (*runtime.TaskValidateOutput, error) {
			return &runtime.TaskValidateOutput{Valid: true}, nil
		},
		run: func(runtime.TaskRunInput) (*runtime.TaskRunOutput, error) {
			return &runtime.TaskRunOutput{TaskID: "T1"}, nil
		},
		reports: []ReportStep{{Report: Report("T1", true, nil)}},
		calls:   make(map[string]int),
	}
}

// OnValidate scripts the TaskValidate response.
func (f *Fake) OnValidate(fn func(runtime.TaskValidateInput) (*runtime.TaskValidateOutput, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validate = fn
	return f
}

// OnRun scripts the TaskRun response.
func (f *Fake) OnRun(fn func(runtime.TaskRunInput) (*runtime.TaskRunOutput, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.run = fn
	return f
}

// ScriptReports sets the TaskReport responses returned in order. Once the
// script is exhausted the last step repeats.
func (f *Fake) ScriptReports(steps ...ReportStep) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = steps
	f.next = 0
	return f
}

// OnReportCall registers fn to be called after every TaskReport call with
// the running call count.
func (f *Fake) OnReportCall(fn func(n int)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportHooks = append(f.reportHooks, fn)
	return f
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// LastRun returns the input of the most recent TaskRun call.
func (f *Fake) LastRun() *runtime.TaskRunInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRun
}

// LastReportTaskID returns the task id of the most recent TaskReport call.
func (f *Fake) LastReportTaskID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReport
}

// Cancelled returns the task ids passed to TaskCancel.
func (f *Fake) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

// TaskValidate implements runtime.Client.
func (f *Fake) TaskValidate(ctx context.Context, in runtime.TaskValidateInput) (*runtime.TaskValidateOutput, error) {
	f.mu.Lock()
	f.calls[OpValidate]++
	fn := f.validate
	f.mu.Unlock()
	return fn(in)
}

// TaskRun implements runtime.Client.
func (f *Fake) TaskRun(ctx context.Context, in runtime.TaskRunInput) (*runtime.TaskRunOutput, error) {
	f.mu.Lock()
	f.calls[OpRun]++
	f.lastRun = &in
	fn := f.run
	f.mu.Unlock()
	return fn(in)
}

// TaskReport implements runtime.Client.
func (f *Fake) TaskReport(ctx context.Context, in runtime.TaskReportInput) (*runtime.TaskReportOutput, error) {
	f.mu.Lock()
	f.calls[OpReport]++
	n := f.calls[OpReport]
	f.lastReport = in.TaskID

	var step ReportStep
	if len(f.reports) > 0 {
		idx := f.next
		if idx >= len(f.reports) {
			idx = len(f.reports) - 1
		} else {
			f.next++
		}
		step = f.reports[idx]
	}
	hooks := slices.Clone(f.reportHooks)
	f.mu.Unlock()

	for _, h := range hooks {
		h(n)
	}
	return step.Report, step.Err
}

// TaskCancel implements runtime.Client.
func (f *Fake) TaskCancel(ctx context.Context, in runtime.TaskCancelInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpCancel]++
	f.cancelled = append(f.cancelled, in.TaskID)
	return nil
}

// Report builds a report for taskID with the given per-node statuses.
func Report(taskID string, terminated bool, nodes map[string]string) *runtime.TaskReportOutput {
	status := "processing"
	if terminated {
		status = "succeeded"
	}
	r := &runtime.TaskReportOutput{
		ID: taskID,
		WorkflowStatus: runtime.WorkflowStatus{
			Status:     status,
			Terminated: terminated,
		},
		Reports: make(map[string]runtime.NodeReport, len(nodes)),
	}
	for id, s := range nodes {
		r.Reports[id] = runtime.NodeReport{
			ID:         id,
			Status:     s,
			Terminated: s == "succeeded" || s == "failed" || s == "canceled",
		}
	}
	return r
}

var _ runtime.Client = (*Fake)(nil)
