// run.go implements 'stackctl run': process the generated task file,
// or report existing outputs under --dry-run.
package main

import (
	"fmt"

	"github.com/example/stackctl/internal/pipeline"
	"github.com/example/stackctl/internal/runner"
	"github.com/spf13/cobra"
)

func newRunCommand(logLevel *string) *cobra.Command {
	var (
		taskDescFile string
		tag          string
		dryRun       bool
		workers      int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the generated task file inside the PBS allocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskDescFile == "" {
				return fmt.Errorf("--task-desc is required")
			}
			log, err := buildLogger(*logLevel)
			if err != nil {
				return err
			}
			log.Info("starting run stage", "tag", tag)
			return pipeline.Run(cmd.Context(), log, taskDescFile, dryRun, cmd.OutOrStdout(), func() runner.TaskRunner {
				return runner.NewLocal(workers, log)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&taskDescFile, "task-desc", "", "Task environment description file")
	cmd.Flags().StringVar(&tag, "tag", "notset", "Unique id for the job")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check if output files already exist instead of running tasks")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool width, 0 for one per CPU")
	return cmd
}
