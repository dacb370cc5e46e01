package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/testrun/internal/logging"
	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/plugins"
	"github.com/Iron-Ham/testrun/internal/runtime"
	"github.com/Iron-Ham/testrun/internal/store"
	"github.com/Iron-Ham/testrun/internal/testrun"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

// remoteCancelTimeout bounds the TaskCancel call made when a run is
// abandoned, which often happens after the command context is done.
const remoteCancelTimeout = 5 * time.Second

// activeRun is a connected pipeline and, once launched, the result of its
// Start call.
type activeRun struct {
	pipeline *pipeline.Entity
	data     map[string]any
	release  func()
	done     chan error
	logger   *logging.Logger
}

// launch starts the pipeline in the background.
func (a *activeRun) launch(ctx context.Context) {
	a.logger.Info("test run started", "pipeline_id", a.pipeline.ID())
	go func() {
		err := a.pipeline.Start(ctx, a.data)
		a.release()
		a.done <- err
	}()
}

// wait blocks until the run's Start returns.
func (a *activeRun) wait() error {
	err := <-a.done
	a.done <- err
	return err
}

// runner starts test runs of a workflow through the service, keeping at
// most one run connected to the service's bus.
type runner struct {
	service *testrun.Service
	client  runtime.Client
	logger  *logging.Logger
	plugins []pipeline.PluginConstructor
	inputs  inputOptions

	mu      sync.Mutex
	current *activeRun
}

func newRunner(d *deps, pluginList []pipeline.PluginConstructor, inputs inputOptions) *runner {
	return &runner{
		service: d.service,
		client:  d.client,
		logger:  d.logger,
		plugins: pluginList,
		inputs:  inputs,
	}
}

// start prepares a run for doc and launches it.
func (r *runner) start(ctx context.Context, doc workflow.Document) (*activeRun, error) {
	run, err := r.prepare(ctx, doc)
	if err != nil {
		return nil, err
	}
	run.launch(ctx)
	return run, nil
}

// prepare creates a pipeline for doc and connects it in place of the
// current run without starting it. The previous run, if any, is
// disconnected and cancelled together with its remote task.
func (r *runner) prepare(ctx context.Context, doc workflow.Document) (*activeRun, error) {
	data, release, err := initialData(ctx, r.service, doc, r.inputs)
	if err != nil {
		return nil, err
	}

	p, err := r.service.CreatePipeline(pipeline.Options{Plugins: r.plugins})
	if err != nil {
		release()
		return nil, err
	}
	// Pin the document so a reload does not change a run in flight.
	p.Scope().Document = doc

	r.mu.Lock()
	prev := r.current
	run := &activeRun{
		pipeline: p,
		data:     data,
		release:  release,
		done:     make(chan error, 1),
		logger:   r.logger,
	}
	r.current = run
	r.mu.Unlock()

	r.service.DisconnectAllPipeline()
	if prev != nil {
		r.abandon(ctx, prev.pipeline)
	}
	r.service.ConnectPipeline(p)
	return run, nil
}

// abandon cancels p and its remote task unless the run already ended on
// its own. A run cancelled through its context still has a live remote task.
func (r *runner) abandon(ctx context.Context, p *pipeline.Entity) {
	switch p.Status() {
	case store.StatusFinished, store.StatusFailed:
		return
	}
	p.Cancel()
	r.cancelRemote(ctx, p)
}

// cancelRemote aborts the remote task of p, if one was submitted.
func (r *runner) cancelRemote(ctx context.Context, p *pipeline.Entity) {
	taskID := p.State().String(plugins.DataTaskID)
	if taskID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteCancelTimeout)
	defer cancel()
	if err := r.client.TaskCancel(ctx, runtime.TaskCancelInput{TaskID: taskID}); err != nil {
		r.logger.Warn("failed to cancel remote task", "task_id", taskID, "error", err.Error())
		return
	}
	r.logger.Info("remote task cancelled", "task_id", taskID, "pipeline_id", p.ID())
}

// cancelCurrent cancels the connected run and its remote task.
func (r *runner) cancelCurrent(ctx context.Context) {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()
	if cur != nil {
		r.abandon(ctx, cur.pipeline)
	}
}

// currentRun returns the connected run.
func (r *runner) currentRun() *activeRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// watch restarts the run each time the workflow file at path changes,
// until ctx is done. onSwitch is called with every new run.
func (r *runner) watch(ctx context.Context, path string, debounce time.Duration, onSwitch func(*activeRun)) error {
	changes := make(chan *workflow.FileDocument, 1)
	w, err := workflow.NewWatcher(path, debounce, r.logger, func(doc *workflow.FileDocument) {
		// Only the latest document matters.
		select {
		case <-changes:
		default:
		}
		changes <- doc
	})
	if err != nil {
		return err
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			r.cancelCurrent(ctx)
			<-watchErr
			return nil
		case err := <-watchErr:
			if ctx.Err() != nil {
				r.cancelCurrent(ctx)
				return nil
			}
			return err
		case doc := <-changes:
			r.logger.Info("workflow changed, restarting test run", "path", path)
			run, err := r.prepare(ctx, doc)
			if err != nil {
				r.logger.Warn("failed to restart test run", "error", err.Error())
				continue
			}
			if onSwitch != nil {
				onSwitch(run)
			}
			run.launch(ctx)
		}
	}
}

// outcome summarizes how a finished run ended, for the command's exit
// status.
func outcome(p *pipeline.Entity, startErr error) error {
	if startErr != nil {
		return startErr
	}
	st := p.State()
	switch st.Status {
	case store.StatusCancelled:
		if errs, _ := st.Data[pipeline.DataErrors].([]string); len(errs) > 0 {
			return &runRejectedError{reasons: errs}
		}
		return errRunCancelled
	case store.StatusFailed:
		return errRunFailed
	}
	return nil
}
