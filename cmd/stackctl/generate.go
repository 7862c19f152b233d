// generate.go implements 'stackctl generate': enumerate tasks into a
// file and queue the PBS job that processes them.
package main

import (
	"fmt"

	"github.com/example/stackctl/internal/config"
	"github.com/example/stackctl/internal/jobsize"
	"github.com/example/stackctl/internal/pbs"
	"github.com/example/stackctl/internal/pipeline"
	"github.com/spf13/cobra"
)

func newGenerateCommand(logLevel *string) *cobra.Command {
	opts := config.NewOptions()
	var taskDescFile string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate tasks into a file and queue a PBS job to process them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskDescFile == "" {
				return fmt.Errorf("--task-desc is required")
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			log, err := buildLogger(*logLevel)
			if err != nil {
				return err
			}
			client := pbs.NewClient(log)
			return pipeline.Generate(cmd.Context(), log, taskDescFile, opts, jobsize.DefaultParams(), client, executablePath())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&taskDescFile, "task-desc", "", "Task environment description file")
	opts.BindGenerateFlags(cmd.Flags())
	return cmd
}
