package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/testrun/internal/event"
	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/testrun"
)

// App runs the progress view against a test-run service.
type App struct {
	program *tea.Program
	relay   event.Disposable
}

// NewApp creates an App following pipelineID. It subscribes to the
// service right away; relayed events wait for Run to be delivered.
func NewApp(service *testrun.Service, pipelineID string, opts ...Option) *App {
	program := tea.NewProgram(NewModel(pipelineID, opts...))
	return &App{
		program: program,
		relay:   Relay(service, program.Send),
	}
}

// Relay forwards the service's relayed pipeline events to send.
func Relay(service *testrun.Service, send func(tea.Msg)) event.Disposable {
	return event.NewDisposableCollection(
		service.OnPipelineProgress(func(ev pipeline.ProgressEvent) { send(ProgressMsg{Event: ev}) }),
		service.OnPipelineFinished(func(ev pipeline.FinishedEvent) { send(FinishedMsg{Event: ev}) }),
	)
}

// Switch points the view at another pipeline. Events of that pipeline
// relayed after Switch returns are shown.
func (a *App) Switch(pipelineID string) {
	a.program.Send(SwitchMsg{PipelineID: pipelineID})
}

// Quit stops the view.
func (a *App) Quit() {
	a.program.Quit()
}

// Run starts the view and blocks until the user quits or, with
// WithExitOnFinish, the run finishes.
func (a *App) Run() error {
	defer a.relay.Dispose()
	_, err := a.program.Run()
	return err
}
