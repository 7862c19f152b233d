// Package stacking generates and persists the per-cell task list and
// invokes the external stacker tool for each task. The stacking
// computation itself lives in that tool; this package only describes
// the work and shells out.
package stacking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/example/stackctl/internal/index"
	"github.com/example/stackctl/internal/taskdesc"
	"gopkg.in/yaml.v3"
)

// Task is one unit of work: stack every dataset of a product in one
// grid cell into a single output file.
type Task struct {
	Product      string     `yaml:"product"`
	Cell         index.Cell `yaml:"cell"`
	DatasetCount int        `yaml:"dataset_count"`
	Filename     string     `yaml:"filename"`
}

// GenerateTasks enumerates one task per cell holding datasets for the
// query. Cells with no datasets in range produce no task, so the list
// may legitimately be empty.
func GenerateTasks(ctx context.Context, ix *index.Index, cfg *taskdesc.AppConfig, q taskdesc.Query) ([]Task, error) {
	cells, err := ix.Cells(ctx, q.Product, q.Time)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	for _, cell := range cells {
		count, err := ix.CountDatasets(ctx, q.Product, cell, q.Time)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			continue
		}
		tasks = append(tasks, Task{
			Product:      q.Product,
			Cell:         cell,
			DatasetCount: count,
			Filename:     outputFilename(cfg, q, cell),
		})
	}
	return tasks, nil
}

func outputFilename(cfg *taskdesc.AppConfig, q taskdesc.Query, cell index.Cell) string {
	start := ""
	if !q.Time.IsZero() {
		start = q.Time.Start.UTC().Format("20060102")
	}
	name := strings.NewReplacer(
		"{product}", q.Product,
		"{x}", strconv.Itoa(cell.X),
		"{y}", strconv.Itoa(cell.Y),
		"{start}", start,
	).Replace(cfg.FilenameTemplate)
	return filepath.Join(cfg.OutputDir, name)
}

// SaveTasks writes the task list as a YAML document stream and
// returns how many tasks were written.
func SaveTasks(path string, tasks []Task) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create task file: %w", err)
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	for _, task := range tasks {
		if err := enc.Encode(task); err != nil {
			return 0, fmt.Errorf("encode task %s: %w", task.Cell, err)
		}
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("write task file: %w", err)
	}
	return len(tasks), nil
}

// LoadTasks reads a task list written by SaveTasks.
func LoadTasks(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open task file: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	var tasks []Task
	for {
		var task Task
		if err := dec.Decode(&task); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode task file %s: %w", path, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ExistReport partitions expected outputs into already-present and
// still-missing files; the run stage prints it under --dry-run so
// incremental re-runs can be judged before burning node hours.
type ExistReport struct {
	Present []string
	Missing []string
}

// CheckExisting stats each task's output file.
func CheckExisting(tasks []Task) ExistReport {
	var report ExistReport
	for _, task := range tasks {
		if _, err := os.Stat(task.Filename); err == nil {
			report.Present = append(report.Present, task.Filename)
		} else {
			report.Missing = append(report.Missing, task.Filename)
		}
	}
	return report
}

// Command builds the argv that stacks one task with the external tool.
func Command(cfg *taskdesc.AppConfig, q taskdesc.Query, task Task) []string {
	args := append([]string(nil), cfg.StackerCommand...)
	args = append(args,
		"--product", task.Product,
		"--cell", task.Cell.String(),
		"--output", task.Filename,
	)
	if !q.Time.IsZero() {
		args = append(args,
			"--time-start", q.Time.Start.UTC().Format(time.RFC3339),
			"--time-end", q.Time.End.UTC().Format(time.RFC3339),
		)
	}
	return args
}
