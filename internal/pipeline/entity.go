package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/testrun/internal/errors"
	"github.com/Iron-Ham/testrun/internal/event"
	"github.com/Iron-Ham/testrun/internal/logging"
	"github.com/Iron-Ham/testrun/internal/store"
)

// labeled pairs a hook with the plugin label it was registered under.
type labeled[H any] struct {
	label string
	hook  H
}

// Entity is one pipeline run. Create it with Factory.New, configure it with
// Init and drive it with Start.
type Entity struct {
	id           string
	scope        *Scope
	store        *store.Store
	operate      *Operate
	logger       *logging.Logger
	pollInterval time.Duration
	maxBackoff   time.Duration

	mu          sync.Mutex
	initialized bool
	plugins     []string
	prepare     []labeled[PrepareHook]
	execute     *labeled[ExecuteHook]
	progress    *labeled[ProgressHook]
	execErr     error
	finished    bool
	finishedAt  time.Time

	onProgress event.Emitter[ProgressEvent]
	onFinished event.Emitter[FinishedEvent]
	toDispose  *event.DisposableCollection
}

func newEntity(id string, scope *Scope, cfg factoryConfig) *Entity {
	s := store.New()
	e := &Entity{
		id:           id,
		scope:        scope,
		store:        s,
		operate:      newOperate(s),
		logger:       cfg.logger.WithPipeline(id),
		pollInterval: cfg.pollInterval,
		maxBackoff:   cfg.maxBackoff,
		toDispose:    event.NewDisposableCollection(),
	}

	last := store.StatusIdle
	e.toDispose.Push(
		s.Subscribe(func(st store.State) {
			if st.Status != last {
				e.logger.Debug("status changed", "from", last.String(), "to", st.Status.String())
				last = st.Status
			}
			e.onProgress.Fire(ProgressEvent{
				Base:       event.NewBase(EventProgress),
				PipelineID: e.id,
				State:      st,
			})
			if st.Status.IsTerminal() {
				e.finish(st)
			}
		}),
		event.OnDispose(e.onProgress.Clear),
		event.OnDispose(e.onFinished.Clear),
	)
	return e
}

// ID returns the run's unique id.
func (e *Entity) ID() string { return e.id }

// Scope returns the run's private plugin scope.
func (e *Entity) Scope() *Scope { return e.scope }

// State returns a snapshot of the run's state.
func (e *Entity) State() store.State { return e.store.State() }

// Status returns the run's current status.
func (e *Entity) Status() store.Status { return e.store.Status() }

// Operate returns the run's control surface.
func (e *Entity) Operate() *Operate { return e.operate }

// Cancel cancels the run. It does not cancel the remote task.
func (e *Entity) Cancel() { e.operate.Cancel() }

// Plugins returns the names of the applied plugins in order.
func (e *Entity) Plugins() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.plugins...)
}

// FinishedAt returns when the run reached a terminal status.
func (e *Entity) FinishedAt() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishedAt, e.finished
}

// OnProgress registers fn for every state change.
func (e *Entity) OnProgress(fn func(ProgressEvent)) event.Disposable {
	return e.onProgress.Subscribe(fn)
}

// OnFinished registers fn for the terminal state change.
func (e *Entity) OnFinished(fn func(FinishedEvent)) event.Disposable {
	return e.onFinished.Subscribe(fn)
}

// Dispose drops every listener. The run itself is not cancelled.
func (e *Entity) Dispose() {
	e.toDispose.Dispose()
}

// Init constructs and applies opts.Plugins in order. It may be called once.
func (e *Entity) Init(opts Options) error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return errors.ErrPipelineInitialized
	}
	e.initialized = true
	e.mu.Unlock()

	for _, construct := range opts.Plugins {
		p := construct(e.scope)
		if err := p.Apply(e); err != nil {
			return fmt.Errorf("applying plugin %s: %w", p.Name(), err)
		}
		e.mu.Lock()
		e.plugins = append(e.plugins, p.Name())
		e.mu.Unlock()
		e.logger.Debug("plugin applied", "plugin", p.Name())
	}
	return nil
}

// TapPrepare appends a prepare hook. Hooks run in the order tapped.
func (e *Entity) TapPrepare(label string, hook PrepareHook) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIdleLocked(); err != nil {
		return err
	}
	e.prepare = append(e.prepare, labeled[PrepareHook]{label: label, hook: hook})
	return nil
}

// RegisterExecute sets the execute hook. Only one may be registered.
func (e *Entity) RegisterExecute(label string, hook ExecuteHook) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIdleLocked(); err != nil {
		return err
	}
	if e.execute != nil {
		return fmt.Errorf("%w: %s already registered %s", errors.ErrHookRegistered, e.execute.label, StageExecute)
	}
	e.execute = &labeled[ExecuteHook]{label: label, hook: hook}
	return nil
}

// RegisterProgress sets the progress hook. Only one may be registered.
func (e *Entity) RegisterProgress(label string, hook ProgressHook) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkIdleLocked(); err != nil {
		return err
	}
	if e.progress != nil {
		return fmt.Errorf("%w: %s already registered %s", errors.ErrHookRegistered, e.progress.label, StageProgress)
	}
	e.progress = &labeled[ProgressHook]{label: label, hook: hook}
	return nil
}

func (e *Entity) checkIdleLocked() error {
	if st := e.store.Status(); st != store.StatusIdle {
		return fmt.Errorf("%w: cannot register hooks while %s", errors.ErrPipelineStarted, st)
	}
	return nil
}

// Start runs the pipeline to completion and blocks until the run reaches a
// terminal status. It returns an error only when the execute hook fails or
// when the pipeline was already started. Cancelling ctx cancels the run.
func (e *Entity) Start(ctx context.Context, initial map[string]any) error {
	ok, err := e.store.AdvanceWith(store.StatusIdle, store.StatusPreparing, initial)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: status is %s", errors.ErrPipelineStarted, e.store.Status())
	}

	stop := context.AfterFunc(ctx, e.operate.Cancel)
	defer stop()

	e.mu.Lock()
	prepare := append([]labeled[PrepareHook](nil), e.prepare...)
	execute := e.execute
	progress := e.progress
	e.mu.Unlock()

	run := &Run{
		PipelineID: e.id,
		Operate:    e.operate,
		Scope:      e.scope,
		store:      e.store,
	}

	if !e.runPrepare(ctx, run, prepare) {
		return nil
	}

	if ok, err := e.store.Advance(store.StatusPreparing, store.StatusExecuting); !ok {
		return err
	}
	if execute != nil {
		if err := e.runExecute(ctx, run, execute); err != nil {
			return err
		}
	}

	if ok, err := e.store.Advance(store.StatusExecuting, store.StatusPolling); !ok {
		return err
	}
	e.poll(ctx, run, progress)
	return nil
}

// runPrepare reports whether the run is still preparing after every hook.
func (e *Entity) runPrepare(ctx context.Context, run *Run, hooks []labeled[PrepareHook]) bool {
	for _, p := range hooks {
		if e.store.Status() != store.StatusPreparing {
			return false
		}
		log := e.logger.WithStage(StagePrepare.String()).With("hook", p.label)
		log.Debug("running prepare hook")

		if err := p.hook(ctx, run); err != nil {
			log.Info("prepare hook rejected run", "error", err.Error())
			e.operate.Update(map[string]any{DataErrors: appendError(run.State(), err)})
			e.operate.Cancel()
			return false
		}
	}
	return e.store.Status() == store.StatusPreparing
}

func (e *Entity) runExecute(ctx context.Context, run *Run, h *labeled[ExecuteHook]) error {
	log := e.logger.WithStage(StageExecute.String()).With("hook", h.label)
	log.Debug("running execute hook")

	err := h.hook(ctx, run)
	if err == nil {
		return nil
	}
	// A run cancelled while executing ends cancelled, not failed.
	if e.store.Status().IsTerminal() {
		log.Info("execute hook returned after cancel", "error", err.Error())
		return nil
	}

	perr := errors.NewPipelineError(StageExecute.String(), err).WithPipelineID(e.id)
	e.mu.Lock()
	e.execErr = perr
	e.mu.Unlock()

	log.Error("execute hook failed", "error", err.Error())
	e.store.Terminate(store.StatusFailed)
	return perr
}

// poll drives the progress hook until it reports done or the run leaves
// polling. Ticks are spaced by the poll interval, growing with consecutive
// failures up to the max backoff.
func (e *Entity) poll(ctx context.Context, run *Run, h *labeled[ProgressHook]) {
	if h == nil {
		_, _ = e.store.Advance(store.StatusPolling, store.StatusFinished)
		return
	}
	log := e.logger.WithStage(StageProgress.String()).With("hook", h.label)

	failures := 0
	for {
		if e.store.Status() != store.StatusPolling {
			return
		}

		done, err := h.hook(ctx, run)
		if e.store.Status() != store.StatusPolling {
			return
		}
		switch {
		case err != nil:
			failures++
			log.Warn("progress tick failed", "error", err.Error(), "failures", failures)
		case done:
			_, _ = e.store.Advance(store.StatusPolling, store.StatusFinished)
			return
		default:
			failures = 0
		}

		if !e.sleep(ctx, e.delay(failures)) {
			return
		}
	}
}

func (e *Entity) delay(failures int) time.Duration {
	d := e.pollInterval
	for range failures {
		if d >= e.maxBackoff/2 {
			return max(e.maxBackoff, e.pollInterval)
		}
		d *= 2
	}
	return d
}

// sleep waits for d and reports false if the run was cancelled meanwhile.
func (e *Entity) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-e.operate.Cancelled():
		return false
	case <-ctx.Done():
		e.operate.Cancel()
		return false
	}
}

func (e *Entity) finish(st store.State) {
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return
	}
	e.finished = true
	e.finishedAt = time.Now()
	err := e.execErr
	e.mu.Unlock()

	e.logger.Info("pipeline finished", "status", st.Status.String())
	e.onFinished.Fire(FinishedEvent{
		Base:       event.NewBase(EventFinished),
		PipelineID: e.id,
		State:      st,
		Err:        err,
	})
}

func appendError(st store.State, err error) []string {
	prev, _ := st.Data[DataErrors].([]string)
	return append(append([]string(nil), prev...), err.Error())
}
