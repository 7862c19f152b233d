// Package pipeline coordinates the three-stage stacking workflow.
// Each stage runs as its own PBS job; no state is held across stages
// beyond the task description on disk. Stages never retry: a failed
// scheduler call is fatal to the current process.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/example/stackctl/internal/config"
	"github.com/example/stackctl/internal/index"
	"github.com/example/stackctl/internal/jobsize"
	"github.com/example/stackctl/internal/pbs"
	"github.com/example/stackctl/internal/runner"
	"github.com/example/stackctl/internal/stacking"
	"github.com/example/stackctl/internal/taskdesc"
	"github.com/fatih/color"
	"github.com/go-logr/logr"
)

const jobType = "stacking"

// Memory requests carried over from the tuned production values.
const (
	generateJobMemory = "20GB"
	runJobMemory      = "4GB"
)

// Submit resolves the app config, persists a task description, and
// queues the generate job. exe is the binary re-invoked inside PBS.
func Submit(ctx context.Context, log logr.Logger, opts *config.Options, submit pbs.Submitter, exe string) error {
	log.Info("starting submit stage", "tag", opts.Tag)
	cfg, err := taskdesc.LoadAppConfig(opts.AppConfig)
	if err != nil {
		return err
	}
	q := taskdesc.Query{Product: cfg.SourceProduct, Time: opts.TimeRange}
	desc, descPath, err := taskdesc.Init(cfg.JobsDir, jobType, opts.Tag, q,
		taskdesc.PBSParams{Project: opts.Project, Queue: opts.Queue}, opts.AppConfig)
	if err != nil {
		return err
	}
	log.Info("created task description", "path", descPath)

	if opts.NoQsub {
		log.Info("skipping submission due to --no-qsub")
		return nil
	}

	req := pbs.Request{
		Name:       "stack-generate-" + opts.Tag,
		Project:    desc.PBS.Project,
		Queue:      desc.PBS.Queue,
		Memory:     generateJobMemory,
		Walltime:   "1h",
		NCPUs:      1,
		CurrentDir: true,
		OutputPath: filepath.Join(desc.LogDir(), "generate.out"),
		ErrorPath:  filepath.Join(desc.LogDir(), "generate.err"),
		ExtraArgs:  opts.ExtraArgs,
		Command:    []string{exe, "generate", "--task-desc", descPath, "--tag", opts.Tag},
	}
	_, err = submit.Submit(ctx, req)
	return err
}

// Generate enumerates per-cell tasks from the dataset index, persists
// them, and queues a right-sized run job. Zero tasks is a deliberate
// early success with no submission.
func Generate(ctx context.Context, log logr.Logger, descPath string, opts *config.Options, params jobsize.Params, submit pbs.Submitter, exe string) error {
	log.Info("starting generate stage", "tag", opts.Tag)
	desc, err := taskdesc.Load(descPath)
	if err != nil {
		return err
	}
	// Re-read the app config: the index may have moved on since the
	// submit stage ran.
	cfg, err := taskdesc.LoadAppConfig(desc.AppConfigPath)
	if err != nil {
		return err
	}
	ix, err := index.Open(cfg.IndexPath)
	if err != nil {
		return err
	}
	defer ix.Close()

	tasks, err := stacking.GenerateTasks(ctx, ix, cfg, desc.Query)
	if err != nil {
		return err
	}
	n, err := stacking.SaveTasks(desc.TaskFilePath, tasks)
	if err != nil {
		return err
	}
	log.Info("found tasks", "count", n, "path", desc.TaskFilePath)

	if n == 0 {
		log.Info("no tasks, finishing")
		return nil
	}

	est := params.Estimate(n, opts.Policy)
	log.Info("sized run job", "nodes", est.Nodes, "walltime", est.Walltime, "policy", string(opts.Policy))

	if opts.NoQsub {
		log.Info("skipping submission due to --no-qsub")
		return nil
	}

	req := pbs.Request{
		Name:       "stack-run-" + opts.Tag,
		Project:    desc.PBS.Project,
		Queue:      desc.PBS.Queue,
		Memory:     runJobMemory,
		Walltime:   est.Walltime,
		Nodes:      est.Nodes,
		CurrentDir: true,
		OutputPath: filepath.Join(desc.LogDir(), "run.out"),
		ErrorPath:  filepath.Join(desc.LogDir(), "run.err"),
		ExtraArgs:  opts.ExtraArgs,
		Command:    []string{exe, "run", "--task-desc", descPath, "--tag", opts.Tag},
	}
	_, err = submit.Submit(ctx, req)
	return err
}

// Run loads the persisted task list and either dry-runs the output
// existence check or hands the tasks to the runner. The runner's Stop
// hook fires on every exit path.
func Run(ctx context.Context, log logr.Logger, descPath string, dryRun bool, out io.Writer, newRunner func() runner.TaskRunner) error {
	desc, err := taskdesc.Load(descPath)
	if err != nil {
		return err
	}
	cfg, err := taskdesc.LoadAppConfig(desc.AppConfigPath)
	if err != nil {
		return err
	}
	tasks, err := stacking.LoadTasks(desc.TaskFilePath)
	if err != nil {
		return err
	}
	log.Info("loaded tasks", "count", len(tasks), "tag", desc.Tag)

	if dryRun {
		reportExisting(out, stacking.CheckExisting(tasks))
		return nil
	}

	r := newRunner()
	defer func() {
		if stopErr := r.Stop(); stopErr != nil {
			log.Error(stopErr, "runner stop failed")
		}
	}()
	return r.Run(ctx, tasks, func(ctx context.Context, task stacking.Task) error {
		return stacking.Exec(ctx, cfg, desc.Query, task)
	})
}

func reportExisting(out io.Writer, report stacking.ExistReport) {
	fmt.Fprintf(out, "%d outputs already exist, %d to produce\n", len(report.Present), len(report.Missing))
	for _, path := range report.Present {
		fmt.Fprintf(out, "%s %s\n", color.GreenString("exists "), path)
	}
	for _, path := range report.Missing {
		fmt.Fprintf(out, "%s %s\n", color.RedString("missing"), path)
	}
}
