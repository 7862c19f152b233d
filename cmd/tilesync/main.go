// main.go implements tilesync, the standalone submitter that farms
// per-tile sync jobs across PBS with a slot-based concurrency cap.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/example/stackctl/internal/logging"
	"github.com/example/stackctl/internal/pbs"
	"github.com/example/stackctl/internal/tilesync"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := tilesync.Options{
		Project:  "v10",
		Queue:    "express",
		Walltime: "20:00:00",
		Memory:   "4GB",
		NCPUs:    2,
		RunDir:   "runs",
	}
	logLevel := "info"
	qsubExtra := "-l jobfs=1GB,other=gdata"
	syncCommand := "datacube-sync -j 4"
	cmd := &cobra.Command{
		Use:   "tilesync NAME FOLDER SUBMIT_LIMIT [CONCURRENCY]",
		Short: "Submit dependency-chained PBS sync jobs for tile folders",
		Long: "tilesync lists the tile folders under FOLDER, derives the unique tile X values, " +
			"and submits one sync job per tile. Jobs are chained through CONCURRENCY dependency " +
			"slots (default 4) so the scheduler never runs more than that many at once.",
		Args:          cobra.RangeArgs(3, 4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			opts.Folder = args[1]
			limit, err := strconv.Atoi(args[2])
			if err != nil || limit < 0 {
				return fmt.Errorf("invalid SUBMIT_LIMIT %q", args[2])
			}
			opts.SubmitLimit = limit
			if len(args) == 4 {
				concurrency, err := strconv.Atoi(args[3])
				if err != nil || concurrency < 1 {
					return fmt.Errorf("invalid CONCURRENCY %q", args[3])
				}
				opts.Concurrency = concurrency
			}
			if opts.ExtraArgs, err = shellwords.Parse(qsubExtra); err != nil {
				return fmt.Errorf("parse --qsub-extra: %w", err)
			}
			if opts.SyncCommand, err = shellwords.Parse(syncCommand); err != nil {
				return fmt.Errorf("parse --sync-command: %w", err)
			}
			if len(opts.SyncCommand) == 0 {
				return fmt.Errorf("--sync-command must not be empty")
			}
			log, err := logging.New(logLevel)
			if err != nil {
				return err
			}
			runner := tilesync.New(opts, pbs.NewClient(log), log)
			runner.Out = cmd.OutOrStdout()
			return runner.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&opts.Project, "project", opts.Project, "PBS project to charge")
	cmd.Flags().StringVar(&opts.Queue, "queue", opts.Queue, "PBS queue")
	cmd.Flags().StringVar(&opts.RunDir, "run-dir", opts.RunDir, "Directory for per-tile output and error files")
	cmd.Flags().StringVar(&opts.Walltime, "walltime", opts.Walltime, "Walltime for each sync job")
	cmd.Flags().StringVar(&opts.Memory, "memory", opts.Memory, "Memory for each sync job")
	cmd.Flags().IntVar(&opts.NCPUs, "ncpus", opts.NCPUs, "CPUs for each sync job")
	cmd.Flags().StringVar(&opts.MailTo, "mail-to", "", "Address mailed when each job ends")
	cmd.Flags().StringVar(&qsubExtra, "qsub-extra", qsubExtra, "Extra raw qsub arguments, split shell-style")
	cmd.Flags().StringVar(&syncCommand, "sync-command", syncCommand, "Per-tile sync command; matching tile folders are appended")
	cmd.Flags().StringVar(&logLevel, "log-level", logLevel, "Log level (debug, info, warn, or error)")
	return cmd
}
