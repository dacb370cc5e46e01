package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/testrun/internal/logging"
)

// Defaults for the progress loop.
const (
	DefaultPollInterval = time.Second
	DefaultMaxBackoff   = 10 * time.Second
)

type factoryConfig struct {
	pollInterval time.Duration
	maxBackoff   time.Duration
	logger       *logging.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*factoryConfig)

// WithPollInterval sets the delay between progress ticks.
func WithPollInterval(d time.Duration) FactoryOption {
	return func(c *factoryConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxBackoff caps the delay after consecutive failed progress ticks.
func WithMaxBackoff(d time.Duration) FactoryOption {
	return func(c *factoryConfig) {
		if d > 0 {
			c.maxBackoff = d
		}
	}
}

// WithLogger sets the logger entities derive their loggers from.
func WithLogger(l *logging.Logger) FactoryOption {
	return func(c *factoryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Factory builds a fresh Entity, with its own child Scope, per run.
type Factory struct {
	base *Scope
	cfg  factoryConfig
}

// NewFactory creates a factory whose entities inherit base's dependencies.
func NewFactory(base *Scope, opts ...FactoryOption) *Factory {
	cfg := factoryConfig{
		pollInterval: DefaultPollInterval,
		maxBackoff:   DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if base == nil {
		base = &Scope{}
	}
	if cfg.logger == nil {
		cfg.logger = base.Logger
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if base.Logger == nil {
		base.Logger = cfg.logger
	}
	return &Factory{base: base, cfg: cfg}
}

// Scope returns the root scope.
func (f *Factory) Scope() *Scope { return f.base }

// PollInterval returns the configured delay between progress ticks.
func (f *Factory) PollInterval() time.Duration { return f.cfg.pollInterval }

// New returns an idle, uninitialized entity with a unique id.
func (f *Factory) New() *Entity {
	id := uuid.NewString()
	return newEntity(id, f.base.Child(id), f.cfg)
}
