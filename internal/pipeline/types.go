package pipeline

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/testrun/internal/event"
	"github.com/Iron-Ham/testrun/internal/store"
)

// Stage names a point in the run where plugins attach behavior.
type Stage string

const (
	StagePrepare  Stage = "prepare"
	StageExecute  Stage = "execute"
	StageProgress Stage = "progress"
)

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}

// DataErrors is the data key holding the reasons a run was rejected.
const DataErrors = "errors"

// PrepareHook validates or normalizes a run before execution. It rejects the
// run by calling run.Operate.Cancel or by returning an error.
type PrepareHook func(ctx context.Context, run *Run) error

// ExecuteHook submits the run. A returned error fails the run.
type ExecuteHook func(ctx context.Context, run *Run) error

// ProgressHook performs one progress check. It returns done once the remote
// work has terminated. A returned error skips the tick; the entity retries
// after a backoff.
type ProgressHook func(ctx context.Context, run *Run) (done bool, err error)

// Plugin is a named unit of behavior registered against one or more stages.
type Plugin interface {
	Name() string
	// Apply registers the plugin's hooks on the entity.
	Apply(p *Entity) error
}

// PluginConstructor builds a plugin from a run's scope. It is called once
// per run.
type PluginConstructor func(scope *Scope) Plugin

// Options configures an Entity in Init.
type Options struct {
	// Plugins are constructed and applied in order.
	Plugins []PluginConstructor
}

// Run is what hooks see of the pipeline they run in.
type Run struct {
	PipelineID string
	Operate    *Operate
	Scope      *Scope

	store *store.Store
}

// State returns a snapshot of the run's state.
func (r *Run) State() store.State {
	return r.store.State()
}

// Status returns the run's current status.
func (r *Run) Status() store.Status {
	return r.store.Status()
}

// Event types published by entities and relayed by the test-run service.
const (
	EventProgress = "pipeline.progress"
	EventFinished = "pipeline.finished"
)

// ProgressEvent is emitted on every change of a run's state.
type ProgressEvent struct {
	event.Base
	PipelineID string
	State      store.State
}

// FinishedEvent is emitted once when a run reaches a terminal status.
type FinishedEvent struct {
	event.Base
	PipelineID string
	State      store.State
	// Err is the execution error for failed runs.
	Err error
}

// String returns a one-line description of the event.
func (e FinishedEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline %s %s: %v", e.PipelineID, e.State.Status, e.Err)
	}
	return fmt.Sprintf("pipeline %s %s", e.PipelineID, e.State.Status)
}
