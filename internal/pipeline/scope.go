package pipeline

import (
	"maps"
	"sync"

	"github.com/Iron-Ham/testrun/internal/logging"
	"github.com/Iron-Ham/testrun/internal/runtime"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

// Notifier is the host's user-facing notification channel.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Scope holds the dependencies plugins are constructed from. The factory
// derives one child scope per run; values stored in a child are private to
// that run.
type Scope struct {
	Runtime  runtime.Client
	Document workflow.Document
	// GlobalVariables, if set, returns variables merged into the serialized
	// document under "globalVariable".
	GlobalVariables func() map[string]any
	Notifier        Notifier
	Logger          *logging.Logger

	// PipelineID is empty for the root scope.
	PipelineID string

	mu     sync.Mutex
	values map[any]any
}

// Child returns a scope sharing s's dependencies with its own empty value
// store.
func (s *Scope) Child(pipelineID string) *Scope {
	logger := s.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	notifier := s.Notifier
	if notifier == nil {
		notifier = LogNotifier(logger)
	}
	return &Scope{
		Runtime:         s.Runtime,
		Document:        s.Document,
		GlobalVariables: s.GlobalVariables,
		Notifier:        notifier,
		Logger:          logger.WithPipeline(pipelineID),
		PipelineID:      pipelineID,
	}
}

// Store saves a per-scope value.
func (s *Scope) Store(key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[any]any)
	}
	s.values[key] = value
}

// Load returns a per-scope value.
func (s *Scope) Load(key any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// LoadOrInit returns the value for key, creating it with init on first use.
func (s *Scope) LoadOrInit(key any, init func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	if s.values == nil {
		s.values = make(map[any]any)
	}
	v := init()
	s.values[key] = v
	return v
}

// Globals returns a copy of the global variables, or nil.
func (s *Scope) Globals() map[string]any {
	if s.GlobalVariables == nil {
		return nil
	}
	return maps.Clone(s.GlobalVariables())
}

type logNotifier struct {
	logger *logging.Logger
}

// LogNotifier returns a Notifier that writes to logger.
func LogNotifier(logger *logging.Logger) Notifier {
	return logNotifier{logger: logger.With("channel", "notify")}
}

func (n logNotifier) Info(msg string)  { n.logger.Info(msg) }
func (n logNotifier) Warn(msg string)  { n.logger.Warn(msg) }
func (n logNotifier) Error(msg string) { n.logger.Error(msg) }
