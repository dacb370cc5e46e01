package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/testrun/internal/config"
	"github.com/Iron-Ham/testrun/internal/plugins"
	"github.com/Iron-Ham/testrun/internal/workflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow>",
	Short: "Validate a workflow and its inputs without running it",
	Long: `Run the form and document validation of a test run, including the runtime's
own validation, without submitting the workflow for execution.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addInputFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	inputs, err := inputFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	doc, err := workflow.Load(args[0])
	if err != nil {
		return err
	}

	d, err := newDeps(cfg, doc, depsOptions{notify: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	r := newRunner(d, plugins.ValidateOnly(), inputs)
	run, err := r.start(cmd.Context(), doc)
	if err != nil {
		return err
	}
	if err := outcome(run.pipeline, run.wait()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
	return nil
}
