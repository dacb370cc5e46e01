// Package testrun provides the process-wide test-run service: it creates
// pipelines and forms, keeps a registry of both, and relays the events of
// connected pipelines onto one shared bus so the presentation layer can
// subscribe once regardless of how many runs come and go.
//
// Only one pipeline is expected to be connected at a time. Callers switch
// runs with DisconnectAllPipeline followed by ConnectPipeline; the service
// does not enforce this. Disconnecting a pipeline only silences it; callers
// that want it stopped must also cancel it.
package testrun

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/testrun/internal/errors"
	"github.com/Iron-Ham/testrun/internal/event"
	"github.com/Iron-Ham/testrun/internal/form"
	"github.com/Iron-Ham/testrun/internal/logging"
	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

// DefaultEvictAfter is how long an unobserved finished pipeline is kept.
const DefaultEvictAfter = 5 * time.Minute

// Service is the test-run registry. It is safe for concurrent use.
type Service struct {
	factory    *pipeline.Factory
	nodes      *nodeTable
	bus        *event.Bus
	logger     *logging.Logger
	evictAfter time.Duration

	mu            sync.Mutex
	forms         map[string]*form.Form
	pipelines     map[string]*pipeline.Entity
	pipelineOrder []string
	bindings      map[string]event.Disposable
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBus sets the shared bus events are relayed onto.
func WithBus(b *event.Bus) Option {
	return func(s *Service) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithEvictAfter sets how long finished, disconnected pipelines are kept.
func WithEvictAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.evictAfter = d
		}
	}
}

// NewService creates a service building pipelines with factory.
func NewService(factory *pipeline.Factory, cfg Config, opts ...Option) (*Service, error) {
	nodes, err := compileNodes(cfg.Nodes)
	if err != nil {
		return nil, err
	}
	s := &Service{
		factory:    factory,
		nodes:      nodes,
		bus:        event.NewBus(),
		logger:     logging.NopLogger(),
		evictAfter: DefaultEvictAfter,
		forms:      make(map[string]*form.Form),
		pipelines:  make(map[string]*pipeline.Entity),
		bindings:   make(map[string]event.Disposable),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Bus returns the shared bus.
func (s *Service) Bus() *event.Bus { return s.bus }

// IsEnabled reports whether nodes of nodeType can be test-run. Types with no
// configuration are disabled.
func (s *Service) IsEnabled(nodeType string) bool {
	cfg, ok := s.nodes.lookup(nodeType)
	return ok && cfg.IsEnabled()
}

// ToSchema returns the test-run form schema for node, or an empty schema
// when the node's type is not enabled.
func (s *Service) ToSchema(ctx context.Context, node workflow.Node) (*form.Schema, error) {
	if !s.IsEnabled(node.Type()) {
		return &form.Schema{}, nil
	}
	cfg, _ := s.nodes.lookup(node.Type())

	props := cfg.Properties
	if cfg.PropertiesFunc != nil {
		var err error
		props, err = cfg.PropertiesFunc(ctx, node)
		if err != nil {
			return nil, errors.Wrapf(err, "building test-run fields for node %s", node.ID())
		}
	}
	return &form.Schema{Type: form.TypeObject, Properties: props}, nil
}

// CreateFormWithSchema creates and registers a form. Unmounting the form
// disposes it and removes it from the registry.
func (s *Service) CreateFormWithSchema(schema *form.Schema) *form.Form {
	f := form.New(schema)

	s.mu.Lock()
	s.forms[f.ID()] = f
	s.mu.Unlock()

	f.OnUnmounted(func(f *form.Form) {
		f.Dispose()
		s.mu.Lock()
		delete(s.forms, f.ID())
		s.mu.Unlock()
	})
	return f
}

// CreateForm creates a form for node from its test-run schema.
func (s *Service) CreateForm(ctx context.Context, node workflow.Node) (*form.Form, error) {
	schema, err := s.ToSchema(ctx, node)
	if err != nil {
		return nil, err
	}
	return s.CreateFormWithSchema(schema), nil
}

// Form returns a registered form.
func (s *Service) Form(id string) (*form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return nil, errors.NewNotFoundError("form", id)
	}
	return f, nil
}

// FormCount returns the number of registered forms.
func (s *Service) FormCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.forms)
}

// CreatePipeline builds, registers and initializes a pipeline. It does not
// start it.
func (s *Service) CreatePipeline(opts pipeline.Options) (*pipeline.Entity, error) {
	p := s.factory.New()

	s.mu.Lock()
	s.pipelines[p.ID()] = p
	s.pipelineOrder = append(s.pipelineOrder, p.ID())
	s.mu.Unlock()

	if err := p.Init(opts); err != nil {
		s.remove(p.ID())
		return nil, err
	}
	s.logger.Debug("pipeline created", "pipeline_id", p.ID(), "plugins", p.Plugins())
	return p, nil
}

// Pipeline returns a registered pipeline.
func (s *Service) Pipeline(id string) (*pipeline.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[id]
	if !ok {
		return nil, errors.NewNotFoundError("pipeline", id)
	}
	return p, nil
}

// Pipelines returns the registered pipelines in creation order.
func (s *Service) Pipelines() []*pipeline.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*pipeline.Entity, 0, len(s.pipelineOrder))
	for _, id := range s.pipelineOrder {
		out = append(out, s.pipelines[id])
	}
	return out
}

// ConnectPipeline relays p's progress and finished events onto the shared
// bus. Connecting an already connected pipeline does nothing.
func (s *Service) ConnectPipeline(p *pipeline.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bindings[p.ID()]; ok {
		return
	}
	s.bindings[p.ID()] = event.NewDisposableCollection(
		p.OnProgress(func(ev pipeline.ProgressEvent) { s.bus.Publish(ev) }),
		p.OnFinished(func(ev pipeline.FinishedEvent) { s.bus.Publish(ev) }),
	)
	s.logger.Debug("pipeline connected", "pipeline_id", p.ID())
}

// IsConnected reports whether the pipeline's events are being relayed.
func (s *Service) IsConnected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bindings[id]
	return ok
}

// DisconnectPipeline stops relaying the pipeline's events. The pipeline
// keeps running.
func (s *Service) DisconnectPipeline(id string) {
	s.mu.Lock()
	binding, ok := s.bindings[id]
	delete(s.bindings, id)
	s.mu.Unlock()

	if ok {
		binding.Dispose()
		s.logger.Debug("pipeline disconnected", "pipeline_id", id)
	}
}

// DisconnectAllPipeline disconnects every connected pipeline.
func (s *Service) DisconnectAllPipeline() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.bindings))
	for id := range s.bindings {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.DisconnectPipeline(id)
	}
}

// OnPipelineProgress subscribes fn to progress events of connected
// pipelines.
func (s *Service) OnPipelineProgress(fn func(pipeline.ProgressEvent)) event.Disposable {
	return s.bus.Listen(pipeline.EventProgress, func(e event.Event) {
		if ev, ok := e.(pipeline.ProgressEvent); ok {
			fn(ev)
		}
	})
}

// OnPipelineFinished subscribes fn to finished events of connected
// pipelines.
func (s *Service) OnPipelineFinished(fn func(pipeline.FinishedEvent)) event.Disposable {
	return s.bus.Listen(pipeline.EventFinished, func(e event.Event) {
		if ev, ok := e.(pipeline.FinishedEvent); ok {
			fn(ev)
		}
	})
}

// Evict drops pipelines that finished at least the eviction delay before
// now and are not connected. It returns the evicted ids.
func (s *Service) Evict(now time.Time) []string {
	s.mu.Lock()
	var evicted []*pipeline.Entity
	kept := s.pipelineOrder[:0]
	for _, id := range s.pipelineOrder {
		p := s.pipelines[id]
		_, connected := s.bindings[id]
		finishedAt, finished := p.FinishedAt()
		if finished && !connected && now.Sub(finishedAt) >= s.evictAfter {
			delete(s.pipelines, id)
			evicted = append(evicted, p)
			continue
		}
		kept = append(kept, id)
	}
	s.pipelineOrder = kept
	s.mu.Unlock()

	ids := make([]string, 0, len(evicted))
	for _, p := range evicted {
		p.Dispose()
		ids = append(ids, p.ID())
	}
	if len(ids) > 0 {
		s.logger.Debug("pipelines evicted", "count", len(ids))
	}
	return ids
}

// RunJanitor calls Evict every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Evict(now)
		}
	}
}

func (s *Service) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pipelines, id)
	for i, pid := range s.pipelineOrder {
		if pid == id {
			s.pipelineOrder = append(s.pipelineOrder[:i], s.pipelineOrder[i+1:]...)
			break
		}
	}
}
