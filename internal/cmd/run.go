package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/testrun/internal/config"
	"github.com/Iron-Ham/testrun/internal/plugins"
	"github.com/Iron-Ham/testrun/internal/tui"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Test-run a workflow",
	Long: `Validate a workflow and its inputs, submit it to the runtime and follow the
task until it finishes.

Inputs fill the start node's form by default. With --mode json they are sent
as given, without local form validation.

With --watch the run restarts whenever the workflow file changes; the
previous run and its remote task are cancelled.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addInputFlags(runCmd)
	runCmd.Flags().Bool("watch", false, "restart the run when the workflow file changes")
	runCmd.Flags().Bool("no-tui", false, "print progress lines instead of the live view")
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("input", "i", nil, "input value as key=value (repeatable)")
	cmd.Flags().String("inputs-json", "", "input values as a JSON object")
	cmd.Flags().String("mode", plugins.ModeForm, "input mode: form or json")
}

func inputFlags(cmd *cobra.Command) (inputOptions, error) {
	pairs, _ := cmd.Flags().GetStringArray("input")
	raw, _ := cmd.Flags().GetString("inputs-json")
	mode, _ := cmd.Flags().GetString("mode")
	opts := inputOptions{mode: mode, pairs: pairs, inputsJSON: raw}
	return opts, opts.validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	inputs, err := inputFlags(cmd)
	if err != nil {
		return err
	}
	watch, _ := cmd.Flags().GetBool("watch")
	noTUI, _ := cmd.Flags().GetBool("no-tui")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	doc, err := workflow.Load(args[0])
	if err != nil {
		return err
	}

	useTUI := cfg.TUI.Enabled && !noTUI && term.IsTerminal(int(os.Stdout.Fd()))
	opts := depsOptions{quiet: useTUI}
	if !useTUI {
		opts.notify = cmd.ErrOrStderr()
	}
	d, err := newDeps(cfg, doc, opts)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go d.service.RunJanitor(ctx, cfg.Pipeline.JanitorInterval())

	r := newRunner(d, plugins.Default(), inputs)
	watchPath := ""
	if watch {
		watchPath = args[0]
	}
	if useTUI {
		return runWithTUI(ctx, r, doc, watchPath)
	}
	return runWithLines(ctx, cmd.OutOrStdout(), r, doc, watchPath)
}

// runWithLines runs doc printing progress lines to w. With a watch path it
// keeps restarting the run until ctx is done.
func runWithLines(ctx context.Context, w io.Writer, r *runner, doc workflow.Document, watchPath string) error {
	reporter := newLineReporter(r.service, w)
	defer reporter.Dispose()

	run, err := r.start(ctx, doc)
	if err != nil {
		return err
	}

	if watchPath != "" {
		fmt.Fprintf(w, "watching %s for changes (Ctrl-C to stop)\n", watchPath)
		return r.watch(ctx, watchPath, 0, nil)
	}

	err = run.wait()
	if ctx.Err() != nil {
		r.cancelRemote(ctx, run.pipeline)
	}
	return outcome(run.pipeline, err)
}

// runWithTUI runs doc under the live view. Without a watch path the view
// exits when the run finishes.
func runWithTUI(ctx context.Context, r *runner, doc workflow.Document, watchPath string) error {
	run, err := r.prepare(ctx, doc)
	if err != nil {
		return err
	}

	opts := []tui.Option{tui.WithCancel(func() { r.cancelCurrent(ctx) })}
	if watchPath == "" {
		opts = append(opts, tui.WithExitOnFinish())
	}
	app := tui.NewApp(r.service, run.pipeline.ID(), opts...)
	stopQuit := context.AfterFunc(ctx, app.Quit)
	defer stopQuit()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	watchDone := make(chan error, 1)
	if watchPath != "" {
		go func() {
			watchDone <- r.watch(watchCtx, watchPath, 0, func(next *activeRun) {
				app.Switch(next.pipeline.ID())
			})
		}()
	} else {
		watchDone <- nil
	}

	run.launch(ctx)
	uiErr := app.Run()

	// Leaving the view abandons whatever is still running.
	cancelWatch()
	if err := <-watchDone; err != nil {
		return err
	}
	r.cancelCurrent(ctx)
	if uiErr != nil {
		return fmt.Errorf("TUI error: %w", uiErr)
	}
	if watchPath != "" {
		return nil
	}
	return outcome(run.pipeline, run.wait())
}
