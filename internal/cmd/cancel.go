package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/testrun/internal/config"
	"github.com/Iron-Ham/testrun/internal/runtime"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a remote task",
	Long: `Ask the runtime to abort a task, for example one left running by a
test run that was interrupted before it could cancel it.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client, err := newRuntimeClient(cfg)
	if err != nil {
		return err
	}
	if err := client.TaskCancel(cmd.Context(), runtime.TaskCancelInput{TaskID: args[0]}); err != nil {
		return fmt.Errorf("failed to cancel task %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cancelled task %s\n", args[0])
	return nil
}
