package cmd

import (
	"fmt"
	"io"

	"github.com/Iron-Ham/testrun/internal/config"
	"github.com/Iron-Ham/testrun/internal/logging"
	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/runtime"
	"github.com/Iron-Ham/testrun/internal/testrun"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

// newRuntimeClient builds the runtime client. Tests replace it.
var newRuntimeClient = func(cfg *config.Config) (runtime.Client, error) {
	return runtime.NewHTTPClient(cfg.Runtime.BaseURL, runtime.WithTimeout(cfg.Runtime.Timeout()))
}

// deps are the process-wide collaborators shared by the commands.
type deps struct {
	cfg     *config.Config
	logger  *logging.Logger
	client  runtime.Client
	service *testrun.Service
}

type depsOptions struct {
	// notify receives user-facing notifications; nil only logs them.
	notify io.Writer
	// quiet drops stderr logging, as when the terminal belongs to the TUI.
	quiet bool
}

// newDeps wires the runtime client, pipeline factory and test-run service
// for doc.
func newDeps(cfg *config.Config, doc workflow.Document, opts depsOptions) (*deps, error) {
	var logger *logging.Logger
	if cfg.Logging.Dir == "" && opts.quiet {
		logger = logging.NopLogger()
	} else {
		var err error
		logger, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	client, err := newRuntimeClient(cfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	var notifier pipeline.Notifier = pipeline.LogNotifier(logger)
	if opts.notify != nil {
		notifier = newWriterNotifier(opts.notify, logger)
	}

	factory := pipeline.NewFactory(&pipeline.Scope{
		Runtime:  client,
		Document: doc,
		Notifier: notifier,
		Logger:   logger,
	},
		pipeline.WithPollInterval(cfg.Pipeline.PollInterval()),
		pipeline.WithMaxBackoff(cfg.Pipeline.MaxBackoff()),
	)

	service, err := testrun.NewService(factory, nodeConfig(cfg),
		testrun.WithLogger(logger),
		testrun.WithEvictAfter(cfg.Pipeline.EvictAfter()),
	)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &deps{cfg: cfg, logger: logger, client: client, service: service}, nil
}

// nodeConfig layers the configured node enablement over the built-in node
// test-run configuration.
func nodeConfig(cfg *config.Config) testrun.Config {
	overrides := testrun.Config{Nodes: make(map[string]testrun.NodeConfig, len(cfg.Nodes))}
	for nodeType, n := range cfg.Nodes {
		enabled := n.IsEnabled()
		overrides.Nodes[nodeType] = testrun.NodeConfig{Enabled: &enabled}
	}
	return testrun.DefaultConfig().Merge(overrides)
}

func (d *deps) Close() error {
	return d.logger.Close()
}
