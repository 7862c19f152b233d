// Package tilesync discovers tile folders and submits one sync job
// per tile X value, chaining jobs through a fixed number of
// dependency slots so only a bounded number run at once. The
// scheduler enforces the dependencies; this process is a plain
// sequential loop.
package tilesync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/stackctl/internal/pbs"
	"github.com/fatih/color"
	"github.com/go-logr/logr"
)

// Reserved folder name that never holds tile data.
const reservedFolder = "ncml"

// DefaultThrottle spaces submissions out so the PBS front end isn't
// hammered.
const DefaultThrottle = time.Second

// Options configures one submission run.
type Options struct {
	// Name prefixes every sub-job: "<name>_<tileX>".
	Name        string
	Folder      string
	SubmitLimit int
	Concurrency int
	// RunDir receives per-tile output (.tsv) and error (.log) files;
	// an existing output file means the tile is done and is skipped.
	RunDir   string
	Project  string
	Queue    string
	Walltime string
	Memory   string
	NCPUs    int
	MailTo   string
	// ExtraArgs are raw qsub arguments passed through unchanged.
	ExtraArgs []string
	// SyncCommand is the per-tile command; matching tile folders are
	// appended to it.
	SyncCommand []string
	Throttle    time.Duration
}

// DiscoverTiles lists the unique tile X values under folder, sorted
// ascending. Folder names are "<x>_<y>"; the reserved ncml folder and
// entries without an integer leading token are ignored.
func DiscoverTiles(folder string) ([]int, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("tile folder: %w", err)
	}
	seen := make(map[int]struct{})
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == reservedFolder {
			continue
		}
		head, _, _ := strings.Cut(entry.Name(), "_")
		x, err := strconv.Atoi(head)
		if err != nil {
			continue
		}
		seen[x] = struct{}{}
	}
	tiles := make([]int, 0, len(seen))
	for x := range seen {
		tiles = append(tiles, x)
	}
	sort.Ints(tiles)
	return tiles, nil
}

// Runner drives the submission loop against an injected Submitter.
type Runner struct {
	Opts   Options
	Submit pbs.Submitter
	Log    logr.Logger
	Out    io.Writer
	// Sleep is swapped out in tests.
	Sleep func(time.Duration)
}

// New wires a Runner with production defaults.
func New(opts Options, submit pbs.Submitter, log logr.Logger) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Throttle <= 0 {
		opts.Throttle = DefaultThrottle
	}
	return &Runner{Opts: opts, Submit: submit, Log: log, Out: os.Stdout, Sleep: time.Sleep}
}

// Run discovers tiles and submits their sync jobs. The first
// submission failure aborts the run; jobs already submitted are
// independent scheduler entities and stand.
func (r *Runner) Run(ctx context.Context) error {
	folder, err := filepath.Abs(r.Opts.Folder)
	if err != nil {
		return err
	}
	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		return fmt.Errorf("folder doesn't exist: %s", folder)
	}
	runDir, err := filepath.Abs(r.Opts.RunDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	tiles, err := DiscoverTiles(folder)
	if err != nil {
		return err
	}
	r.Log.Info("discovered tiles", "count", len(tiles), "folder", folder)
	fmt.Fprintf(r.Out, "Found %d total jobs\n", len(tiles))

	// Slot number -> last job id submitted in it. Chaining each new
	// job after the slot's previous one caps in-flight jobs at
	// Concurrency without any coordinator process.
	lastJobSlots := make(map[int]string)

	for i, tileX := range tiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == r.Opts.SubmitLimit {
			fmt.Fprintf(r.Out, "Submit limit (%d) reached, done.\n", r.Opts.SubmitLimit)
			break
		}

		subName := fmt.Sprintf("%s_%d", r.Opts.Name, tileX)
		outputPath := filepath.Join(runDir, subName+".tsv")
		errorPath := filepath.Join(runDir, subName+".log")

		if _, err := os.Stat(outputPath); err == nil {
			fmt.Fprintf(r.Out, "[%d] %s: %s\n", i, subName, color.YellowString("output exists, skipping"))
			continue
		}

		inputFolders, err := filepath.Glob(filepath.Join(folder, fmt.Sprintf("%d_*", tileX)))
		if err != nil {
			return err
		}

		req := pbs.Request{
			Name:       "sync-" + subName,
			Project:    r.Opts.Project,
			Queue:      r.Opts.Queue,
			Memory:     r.Opts.Memory,
			Walltime:   r.Opts.Walltime,
			NCPUs:      r.Opts.NCPUs,
			CurrentDir: true,
			AfterOK:    lastJobSlots[i%r.Opts.Concurrency],
			OutputPath: outputPath,
			ErrorPath:  errorPath,
			MailOnEnd:  r.Opts.MailTo != "",
			MailTo:     r.Opts.MailTo,
			ExtraArgs:  r.Opts.ExtraArgs,
			Command:    append(append([]string(nil), r.Opts.SyncCommand...), inputFolders...),
		}
		jobID, err := r.Submit.Submit(ctx, req)
		if err != nil {
			return fmt.Errorf("submit tile %d: %w", tileX, err)
		}
		fmt.Fprintf(r.Out, "[%d] %s: %s\n", i, subName, color.GreenString("submitted %s", jobID))
		lastJobSlots[i%r.Opts.Concurrency] = jobID

		r.Sleep(r.Opts.Throttle)
	}
	return nil
}
