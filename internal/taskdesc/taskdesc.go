// Package taskdesc owns the task description document persisted
// between pipeline stages. The submit stage writes it, generate and
// run read it back; it is the only state shared across the PBS jobs.
package taskdesc

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TimeRange bounds a query; Start is inclusive, End exclusive.
type TimeRange struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// YearRange covers a single calendar year in UTC.
func YearRange(year int) TimeRange {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return TimeRange{Start: start, End: start.AddDate(1, 0, 0)}
}

// IsZero reports whether the range is unset.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls inside the range. A zero range
// contains everything.
func (r TimeRange) Contains(t time.Time) bool {
	if r.IsZero() {
		return true
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// Query describes what the generate stage should enumerate.
type Query struct {
	Product string    `yaml:"product"`
	Time    TimeRange `yaml:"time"`
}

// PBSParams names the scheduler project and queue for submissions.
type PBSParams struct {
	Project string `yaml:"project"`
	Queue   string `yaml:"queue"`
}

// Description is the persisted record of one pipeline run.
type Description struct {
	JobType       string    `yaml:"job_type"`
	Tag           string    `yaml:"tag"`
	CreatedAt     time.Time `yaml:"created_at"`
	Query         Query     `yaml:"query"`
	PBS           PBSParams `yaml:"pbs"`
	AppConfigPath string    `yaml:"app_config_path"`
	TaskFilePath  string    `yaml:"task_file_path"`
	JobDir        string    `yaml:"job_dir"`
}

const descFileName = "task-description.yaml"

// Init creates the job directory under baseDir, writes the task
// description into it, and returns the description plus its path.
func Init(baseDir, jobType, tag string, q Query, pbs PBSParams, appConfigPath string) (*Description, string, error) {
	now := time.Now().UTC()
	jobDir, err := filepath.Abs(filepath.Join(baseDir, fmt.Sprintf("%s-%s-%s", jobType, now.Format("20060102T150405"), tag)))
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(filepath.Join(jobDir, "logs"), 0o755); err != nil {
		return nil, "", fmt.Errorf("create job dir: %w", err)
	}
	absConfig, err := filepath.Abs(appConfigPath)
	if err != nil {
		return nil, "", err
	}
	desc := &Description{
		JobType:       jobType,
		Tag:           tag,
		CreatedAt:     now,
		Query:         q,
		PBS:           pbs,
		AppConfigPath: absConfig,
		TaskFilePath:  filepath.Join(jobDir, "tasks.yaml"),
		JobDir:        jobDir,
	}
	descPath := filepath.Join(jobDir, descFileName)
	if err := desc.Save(descPath); err != nil {
		return nil, "", err
	}
	return desc, descPath, nil
}

// Load reads a task description from disk.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task description: %w", err)
	}
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse task description %s: %w", path, err)
	}
	return &desc, nil
}

// Save writes the description as YAML.
func (d *Description) Save(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write task description: %w", err)
	}
	return nil
}

// LogDir is where submitted jobs direct their stdout/stderr.
func (d *Description) LogDir() string {
	return filepath.Join(d.JobDir, "logs")
}
