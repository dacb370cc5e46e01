// Package runtime defines the contract for the remote workflow execution
// backend and provides an HTTP implementation of it.
//
// Pipeline plugins depend only on [Client]; the transport behind it is not
// their concern. [HTTPClient] talks to a runtime server exposing
//
//	POST /api/task/validate
//	POST /api/task/run
//	GET  /api/task/report?taskID=...
//	PUT  /api/task/cancel
package runtime

import "context"

// Client is the remote execution backend consumed by pipeline plugins.
type Client interface {
	// TaskValidate checks a serialized workflow schema and its inputs.
	TaskValidate(ctx context.Context, in TaskValidateInput) (*TaskValidateOutput, error)

	// TaskRun submits a workflow for execution and returns the task id.
	TaskRun(ctx context.Context, in TaskRunInput) (*TaskRunOutput, error)

	// TaskReport returns the current progress snapshot of a task. A nil
	// report with a nil error means the backend had nothing to report and
	// is treated like a failed call by callers.
	TaskReport(ctx context.Context, in TaskReportInput) (*TaskReportOutput, error)

	// TaskCancel aborts a remote task.
	TaskCancel(ctx context.Context, in TaskCancelInput) error
}

// TaskValidateInput is the request body of TaskValidate.
type TaskValidateInput struct {
	Schema string         `json:"schema"`
	Inputs map[string]any `json:"inputs"`
}

// TaskValidateOutput is the response of TaskValidate.
type TaskValidateOutput struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// FirstError returns the first validation message, or fallback if there is
// none.
func (o *TaskValidateOutput) FirstError(fallback string) string {
	if o == nil || len(o.Errors) == 0 || o.Errors[0] == "" {
		return fallback
	}
	return o.Errors[0]
}

// TaskRunInput is the request body of TaskRun.
type TaskRunInput struct {
	Schema string         `json:"schema"`
	Inputs map[string]any `json:"inputs"`
}

// TaskRunOutput is the response of TaskRun.
type TaskRunOutput struct {
	TaskID string `json:"taskID"`
}

// TaskReportInput identifies the task to report on.
type TaskReportInput struct {
	TaskID string `json:"taskID"`
}

// TaskCancelInput identifies the task to cancel.
type TaskCancelInput struct {
	TaskID string `json:"taskID"`
}

// WorkflowStatus is the status of the whole workflow within a report.
type WorkflowStatus struct {
	Status     string `json:"status"`
	Terminated bool   `json:"terminated"`
	StartTime  int64  `json:"startTime,omitempty"`
	EndTime    int64  `json:"endTime,omitempty"`
	TimeCost   int64  `json:"timeCost,omitempty"`
}

// NodeReport is the execution status of a single node.
type NodeReport struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Terminated bool           `json:"terminated"`
	StartTime  int64          `json:"startTime,omitempty"`
	EndTime    int64          `json:"endTime,omitempty"`
	TimeCost   int64          `json:"timeCost,omitempty"`
	Snapshots  []NodeSnapshot `json:"snapshots,omitempty"`
}

// NodeSnapshot captures the inputs and outputs of one node execution.
type NodeSnapshot struct {
	ID      string         `json:"id"`
	NodeID  string         `json:"nodeID"`
	Inputs  map[string]any `json:"inputs,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// TaskReportOutput is a progress snapshot of a remote task.
type TaskReportOutput struct {
	ID             string                `json:"id"`
	Inputs         map[string]any        `json:"inputs,omitempty"`
	Outputs        map[string]any        `json:"outputs,omitempty"`
	WorkflowStatus WorkflowStatus        `json:"workflowStatus"`
	Reports        map[string]NodeReport `json:"reports,omitempty"`
	Messages       map[string][]Message  `json:"messages,omitempty"`
}

// Message is a log, warning or error message emitted by a node.
type Message struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	NodeID    string `json:"nodeID,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Terminated reports whether the remote workflow has stopped.
func (r *TaskReportOutput) Terminated() bool {
	return r != nil && r.WorkflowStatus.Terminated
}

// Report data keys written into pipeline state by the progress plugin.
const (
	DataReport         = "report"
	DataInputs         = "inputs"
	DataOutputs        = "outputs"
	DataWorkflowStatus = "workflowStatus"
	DataReports        = "reports"
	DataMessages       = "messages"
)

// Data flattens the report into pipeline data entries, keeping the full
// report under DataReport as well.
func (r *TaskReportOutput) Data() map[string]any {
	return map[string]any{
		DataReport:         r,
		DataInputs:         r.Inputs,
		DataOutputs:        r.Outputs,
		DataWorkflowStatus: r.WorkflowStatus,
		DataReports:        r.Reports,
		DataMessages:       r.Messages,
	}
}

// ReportFromData extracts the report stored by [TaskReportOutput.Data].
func ReportFromData(data map[string]any) *TaskReportOutput {
	r, _ := data[DataReport].(*TaskReportOutput)
	return r
}
