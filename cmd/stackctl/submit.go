// submit.go implements 'stackctl submit', the entry point that
// records a task description and queues the generate job.
package main

import (
	"fmt"

	"github.com/example/stackctl/internal/config"
	"github.com/example/stackctl/internal/pbs"
	"github.com/example/stackctl/internal/pipeline"
	"github.com/spf13/cobra"
)

func newSubmitCommand(logLevel *string) *cobra.Command {
	opts := config.NewOptions()
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Kick off the two remaining PBS stages for a stacking run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.AppConfig == "" {
				return fmt.Errorf("--app-config is required")
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			log, err := buildLogger(*logLevel)
			if err != nil {
				return err
			}
			client := pbs.NewClient(log)
			return pipeline.Submit(cmd.Context(), log, opts, client, executablePath())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.BindSubmitFlags(cmd.Flags())
	return cmd
}
