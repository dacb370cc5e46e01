package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/testrun/internal/errors"
	"github.com/Iron-Ham/testrun/internal/event"
	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/plugins"
	"github.com/Iron-Ham/testrun/internal/runtime"
	"github.com/Iron-Ham/testrun/internal/store"
	"github.com/Iron-Ham/testrun/internal/testrun"
)

var (
	errRunCancelled = errors.New("test run cancelled")
	errRunFailed    = errors.New("test run failed")
)

// runRejectedError reports a run cancelled by validation.
type runRejectedError struct {
	reasons []string
}

func (e *runRejectedError) Error() string {
	return "test run rejected: " + strings.Join(e.reasons, "; ")
}

func (e *runRejectedError) Is(target error) bool {
	return target == errRunCancelled
}

// lineReporter prints the progress of connected runs as plain lines, for
// terminals without the TUI and for piped output.
type lineReporter struct {
	mu     sync.Mutex
	w      io.Writer
	status map[string]store.Status
	nodes  map[string]map[string]string
}

// newLineReporter subscribes a reporter writing to w to the service's
// relayed events.
func newLineReporter(svc *testrun.Service, w io.Writer) event.Disposable {
	r := &lineReporter{
		w:      w,
		status: make(map[string]store.Status),
		nodes:  make(map[string]map[string]string),
	}
	return event.NewDisposableCollection(
		svc.OnPipelineProgress(r.progress),
		svc.OnPipelineFinished(r.finished),
	)
}

func (r *lineReporter) progress(ev pipeline.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := shortID(ev.PipelineID)
	if st := ev.State.Status; st != r.status[ev.PipelineID] && !st.IsTerminal() {
		r.status[ev.PipelineID] = st
		fmt.Fprintf(r.w, "[%s] %s\n", id, st)
		if st == store.StatusPolling {
			if taskID := ev.State.String(plugins.DataTaskID); taskID != "" {
				fmt.Fprintf(r.w, "[%s] task %s\n", id, taskID)
			}
		}
	}

	report := runtime.ReportFromData(ev.State.Data)
	if report == nil {
		return
	}
	seen := r.nodes[ev.PipelineID]
	if seen == nil {
		seen = make(map[string]string)
		r.nodes[ev.PipelineID] = seen
	}
	nodeIDs := make([]string, 0, len(report.Reports))
	for nodeID := range report.Reports {
		nodeIDs = append(nodeIDs, nodeID)
	}
	slices.Sort(nodeIDs)
	for _, nodeID := range nodeIDs {
		status := report.Reports[nodeID].Status
		if seen[nodeID] != status {
			seen[nodeID] = status
			fmt.Fprintf(r.w, "[%s]   %s: %s\n", id, nodeID, status)
		}
	}
}

func (r *lineReporter) finished(ev pipeline.FinishedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := shortID(ev.PipelineID)
	fmt.Fprintf(r.w, "[%s] %s\n", id, ev.State.Status)
	if errs, _ := ev.State.Data[pipeline.DataErrors].([]string); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(r.w, "[%s]   error: %s\n", id, e)
		}
	}
	if ev.Err != nil {
		fmt.Fprintf(r.w, "[%s]   error: %v\n", id, ev.Err)
	}

	if report := runtime.ReportFromData(ev.State.Data); report != nil && len(report.Outputs) > 0 {
		out, err := yaml.Marshal(map[string]any{"outputs": report.Outputs})
		if err == nil {
			_, _ = r.w.Write(out)
		}
	}
	delete(r.status, ev.PipelineID)
	delete(r.nodes, ev.PipelineID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
