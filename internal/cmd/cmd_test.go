package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Iron-Ham/testrun/internal/config"
	"github.com/Iron-Ham/testrun/internal/errors"
	"github.com/Iron-Ham/testrun/internal/plugins"
	"github.com/Iron-Ham/testrun/internal/runtime"
	"github.com/Iron-Ham/testrun/internal/runtime/runtimetest"
	"github.com/Iron-Ham/testrun/internal/store"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

const testWorkflow = `
nodes:
  - id: start_0
    type: start
    data:
      title: Start
      outputs:
        type: object
        properties:
          query: {type: string}
          limit: {type: integer}
        required: [query]
  - id: end_0
    type: end
    data: {title: End}
edges:
  - sourceNodeID: start_0
    targetNodeID: end_0
`

// setupTest isolates config and swaps in a fake runtime client.
func setupTest(t *testing.T) *runtimetest.Fake {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TESTRUN_PIPELINE_POLL_INTERVAL_MS", "1")
	t.Setenv("TESTRUN_PIPELINE_MAX_BACKOFF_MS", "5")
	t.Setenv("TESTRUN_LOGGING_LEVEL", "error")

	fake := runtimetest.NewFake()
	orig := newRuntimeClient
	newRuntimeClient = func(*config.Config) (runtime.Client, error) { return fake, nil }
	t.Cleanup(func() { newRuntimeClient = orig })
	return fake
}

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// resetFlags restores every flag to its default; cobra keeps flag values
// between executions of the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommand runs the root command with args and returns stdout and
// stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "testrun" {
		t.Errorf("rootCmd.Use = %q, want testrun", rootCmd.Use)
	}

	want := []string{"run", "validate", "cancel", "config"}
	have := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRunCommand_Success(t *testing.T) {
	fake := setupTest(t)
	fake.ScriptReports(
		runtimetest.ReportStep{Report: runtimetest.Report("T1", false, map[string]string{"start_0": "processing"})},
		runtimetest.ReportStep{Report: runtimetest.Report("T1", false, map[string]string{"start_0": "succeeded"})},
		runtimetest.ReportStep{Report: runtimetest.Report("T1", true, map[string]string{"start_0": "succeeded", "end_0": "succeeded"})},
	)
	path := writeWorkflow(t, testWorkflow)

	out, _, err := executeCommand(t, "run", path, "--no-tui", "-i", "query=hello", "-i", "limit=3")
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, out)
	}

	for _, want := range []string{"preparing", "executing", "polling", "task T1", "start_0: succeeded", "end_0: succeeded", "finished"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	last := fake.LastRun()
	if last == nil {
		t.Fatal("TaskRun was not called")
	}
	if last.Inputs["query"] != "hello" || last.Inputs["limit"] != 3 {
		t.Errorf("run inputs = %v", last.Inputs)
	}
	if n := fake.Calls(runtimetest.OpReport); n != 3 {
		t.Errorf("TaskReport calls = %d, want 3", n)
	}
	if len(fake.Cancelled()) != 0 {
		t.Errorf("finished run should not cancel the task: %v", fake.Cancelled())
	}
}

func TestRunCommand_FormRejected(t *testing.T) {
	fake := setupTest(t)
	path := writeWorkflow(t, testWorkflow)

	out, stderr, err := executeCommand(t, "run", path, "--no-tui")
	if !errors.Is(err, errRunCancelled) {
		t.Fatalf("err = %v, want a rejected run", err)
	}
	if !strings.Contains(stderr, plugins.MsgFormInvalid) {
		t.Errorf("stderr missing notification:\n%s", stderr)
	}
	if !strings.Contains(out, "cancelled") {
		t.Errorf("output missing cancelled status:\n%s", out)
	}
	if n := fake.Calls(runtimetest.OpRun); n != 0 {
		t.Errorf("TaskRun calls = %d, want 0", n)
	}
}

func TestRunCommand_JSONMode(t *testing.T) {
	fake := setupTest(t)
	path := writeWorkflow(t, testWorkflow)

	_, _, err := executeCommand(t, "run", path, "--no-tui", "--mode", "json",
		"--inputs-json", `{"query": "from json", "extra": [1, 2]}`, "-i", "limit=7")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	inputs := fake.LastRun().Inputs
	if inputs["query"] != "from json" {
		t.Errorf("query = %v", inputs["query"])
	}
	// JSON mode sends pair values as given.
	if inputs["limit"] != "7" {
		t.Errorf("limit = %#v, want the raw string", inputs["limit"])
	}
	if _, ok := inputs["extra"]; !ok {
		t.Error("json mode should pass unknown keys through")
	}
}

func TestRunCommand_InputErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown field", []string{"-i", "nope=1"}},
		{"bad integer", []string{"-i", "query=x", "-i", "limit=many"}},
		{"missing equals", []string{"-i", "query"}},
		{"bad json", []string{"--inputs-json", "[1"}},
		{"bad mode", []string{"--mode", "yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := setupTest(t)
			path := writeWorkflow(t, testWorkflow)

			args := append([]string{"run", path, "--no-tui"}, tt.args...)
			_, _, err := executeCommand(t, args...)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("err = %v, want invalid input", err)
			}
			if fake.Calls(runtimetest.OpValidate) != 0 {
				t.Error("no pipeline should run on bad input")
			}
		})
	}
}

func TestRunCommand_ExecuteFailure(t *testing.T) {
	fake := setupTest(t)
	fake.OnRun(func(runtime.TaskRunInput) (*runtime.TaskRunOutput, error) {
		return nil, errors.NewRuntimeError("TaskRun", errors.New("boom")).WithStatusCode(500)
	})
	path := writeWorkflow(t, testWorkflow)

	out, _, err := executeCommand(t, "run", path, "--no-tui", "-i", "query=x")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want the execute failure", err)
	}
	if !strings.Contains(out, string(store.StatusFailed)) {
		t.Errorf("output missing failed status:\n%s", out)
	}
}

func TestRunCommand_MissingWorkflow(t *testing.T) {
	setupTest(t)
	if _, _, err := executeCommand(t, "run", filepath.Join(t.TempDir(), "missing.yaml"), "--no-tui"); err == nil {
		t.Error("run should fail for a missing workflow file")
	}
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		fake := setupTest(t)
		path := writeWorkflow(t, testWorkflow)

		out, _, err := executeCommand(t, "validate", path, "-i", "query=x")
		if err != nil {
			t.Fatalf("validate error = %v", err)
		}
		if !strings.Contains(out, "is valid") {
			t.Errorf("output = %q", out)
		}
		if fake.Calls(runtimetest.OpValidate) != 1 || fake.Calls(runtimetest.OpRun) != 0 {
			t.Errorf("validate=%d run=%d, want 1 and 0",
				fake.Calls(runtimetest.OpValidate), fake.Calls(runtimetest.OpRun))
		}
	})

	t.Run("rejected by runtime", func(t *testing.T) {
		fake := setupTest(t)
		fake.OnValidate(func(runtime.TaskValidateInput) (*runtime.TaskValidateOutput, error) {
			return &runtime.TaskValidateOutput{Valid: false, Errors: []string{"node end_0 is unreachable"}}, nil
		})
		path := writeWorkflow(t, testWorkflow)

		_, _, err := executeCommand(t, "validate", path, "-i", "query=x")
		if err == nil || !strings.Contains(err.Error(), "node end_0 is unreachable") {
			t.Errorf("err = %v, want the runtime's first error", err)
		}
	})
}

func TestCancelCommand(t *testing.T) {
	fake := setupTest(t)

	out, _, err := executeCommand(t, "cancel", "T9")
	if err != nil {
		t.Fatalf("cancel error = %v", err)
	}
	if got := fake.Cancelled(); len(got) != 1 || got[0] != "T9" {
		t.Errorf("Cancelled() = %v, want [T9]", got)
	}
	if !strings.Contains(out, "Cancelled task T9") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigShowCommand(t *testing.T) {
	setupTest(t)

	out, _, err := executeCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"base_url: http://localhost:4000", "poll_interval_ms: 1", "start:", "enabled: true"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunner_WatchSwapsRuns(t *testing.T) {
	fake := setupTest(t)
	// Runs never terminate on their own so the swap has something to cancel.
	fake.ScriptReports(runtimetest.ReportStep{Report: runtimetest.Report("T1", false, nil)})
	path := writeWorkflow(t, testWorkflow)

	d := newTestDeps(t, path)
	r := newRunner(d, plugins.Default(), inputOptions{mode: plugins.ModeForm, pairs: []string{"query=x"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc := loadWorkflow(t, path)
	first, err := r.start(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "first run polling", func() bool { return first.pipeline.Status() == store.StatusPolling })

	switched := make(chan *activeRun, 1)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- r.watch(ctx, path, 10*time.Millisecond, func(next *activeRun) { switched <- next })
	}()

	// Give the watcher time to register before changing the file.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(testWorkflow+"\n# edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var second *activeRun
	select {
	case second = <-switched:
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not restart the run")
	}

	if first.wait() != nil || first.pipeline.Status() != store.StatusCancelled {
		t.Errorf("first run status = %s, want cancelled", first.pipeline.Status())
	}
	if got := fake.Cancelled(); len(got) != 1 || got[0] != "T1" {
		t.Errorf("Cancelled() = %v, want the first run's task", got)
	}
	if !d.service.IsConnected(second.pipeline.ID()) || d.service.IsConnected(first.pipeline.ID()) {
		t.Error("only the new run should be connected")
	}

	waitUntil(t, "second run polling", func() bool { return second.pipeline.Status() == store.StatusPolling })
	cancel()
	if err := <-watchDone; err != nil {
		t.Errorf("watch() = %v", err)
	}
	_ = second.wait()
	if second.pipeline.Status() != store.StatusCancelled {
		t.Errorf("second run status = %s, want cancelled", second.pipeline.Status())
	}
	if got := fake.Cancelled(); len(got) != 2 {
		t.Errorf("Cancelled() = %v, want both tasks", got)
	}
}

func newTestDeps(t *testing.T, path string) *deps {
	t.Helper()
	cfg := config.Default()
	cfg.Pipeline.PollIntervalMs = 1
	cfg.Pipeline.MaxBackoffMs = 5
	cfg.Logging.Level = "error"

	d, err := newDeps(cfg, loadWorkflow(t, path), depsOptions{})
	if err != nil {
		t.Fatalf("newDeps() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func loadWorkflow(t *testing.T, path string) *workflow.FileDocument {
	t.Helper()
	doc, err := workflow.Load(path)
	if err != nil {
		t.Fatalf("workflow.Load() error = %v", err)
	}
	return doc
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
