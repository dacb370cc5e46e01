// Package tui renders the live progress of a test run in the terminal.
//
// The model only consumes pipeline events relayed by the test-run service;
// it never drives a pipeline itself. Cancelling from the view calls back
// into the host, which is responsible for cancelling both the pipeline and
// the remote task.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/store"
)

// ProgressMsg carries a relayed pipeline state change.
type ProgressMsg struct{ Event pipeline.ProgressEvent }

// FinishedMsg carries a relayed terminal state change.
type FinishedMsg struct{ Event pipeline.FinishedEvent }

// SwitchMsg points the view at a new run, as happens when a watched
// workflow file changes.
type SwitchMsg struct{ PipelineID string }

// cancelDoneMsg is returned once the host's cancel callback has returned.
type cancelDoneMsg struct{}

// Model is the bubbletea model of the progress view.
type Model struct {
	pipelineID   string
	state        store.State
	finished     bool
	err          error
	runs         int
	cancel       func()
	cancelling   bool
	exitOnFinish bool
	width        int
	quitting     bool
}

// Option configures a Model.
type Option func(*Model)

// WithCancel sets the callback invoked when the user cancels the run.
func WithCancel(fn func()) Option {
	return func(m *Model) { m.cancel = fn }
}

// WithExitOnFinish makes the view quit as soon as the run finishes.
func WithExitOnFinish() Option {
	return func(m *Model) { m.exitOnFinish = true }
}

// NewModel creates a view following pipelineID.
func NewModel(pipelineID string, opts ...Option) Model {
	m := Model{
		pipelineID: pipelineID,
		state:      store.State{Status: store.StatusIdle},
		runs:       1,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case ProgressMsg:
		if msg.Event.PipelineID != m.pipelineID {
			return m, nil
		}
		m.state = msg.Event.State
		return m, nil

	case FinishedMsg:
		if msg.Event.PipelineID != m.pipelineID {
			return m, nil
		}
		m.state = msg.Event.State
		m.finished = true
		m.err = msg.Event.Err
		m.cancelling = false
		if m.exitOnFinish {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case SwitchMsg:
		m.pipelineID = msg.PipelineID
		m.state = store.State{Status: store.StatusIdle}
		m.finished = false
		m.err = nil
		m.cancelling = false
		m.runs++
		return m, nil

	case cancelDoneMsg:
		return m, nil
	}
	return m, nil
}

func (m Model) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "c":
		if m.finished || m.cancelling || m.cancel == nil {
			return m, nil
		}
		m.cancelling = true
		return m, m.cancelCmd()

	case "ctrl+c":
		m.quitting = true
		if !m.finished && m.cancel != nil {
			return m, tea.Sequence(m.cancelCmd(), tea.Quit)
		}
		return m, tea.Quit

	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) cancelCmd() tea.Cmd {
	cancel := m.cancel
	return func() tea.Msg {
		cancel()
		return cancelDoneMsg{}
	}
}

// PipelineID returns the run the view follows.
func (m Model) PipelineID() string { return m.pipelineID }

// State returns the last state received for the followed run.
func (m Model) State() store.State { return m.state }

// Finished reports whether the followed run reached a terminal status.
func (m Model) Finished() bool { return m.finished }

// Err returns the execution error of a failed run.
func (m Model) Err() error { return m.err }
