// Package config defines the flag plumbing shared by the stackctl
// pipeline commands, translating Cobra/Viper flag values into the
// typed options the stages consume.
package config

import (
	"fmt"
	"strings"

	"github.com/example/stackctl/internal/jobsize"
	"github.com/example/stackctl/internal/taskdesc"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/pflag"
)

// Options holds CLI configuration for the pipeline commands.
type Options struct {
	Project   string
	Queue     string
	Year      int
	Tag       string
	AppConfig string
	NoQsub    bool
	JobSizing string
	QsubExtra string

	// Derived by Validate.
	TimeRange taskdesc.TimeRange
	Policy    jobsize.Policy
	ExtraArgs []string
}

// NewOptions returns Options with defaults applied.
func NewOptions() *Options {
	return &Options{
		Project:   "u46",
		Queue:     "normal",
		Tag:       "notset",
		JobSizing: string(jobsize.PolicyFixed),
	}
}

// BindSubmitFlags attaches the submit-stage flags.
func (o *Options) BindSubmitFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Project, "project", "P", o.Project, "PBS project to charge")
	fs.StringVarP(&o.Queue, "queue", "q", o.Queue, "PBS queue (normal or express)")
	fs.IntVar(&o.Year, "year", 0, "Limit the run to a particular year")
	fs.StringVar(&o.AppConfig, "app-config", "", "Path to the application config document")
	o.bindCommonFlags(fs)
}

// BindGenerateFlags attaches the generate-stage flags.
func (o *Options) BindGenerateFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.JobSizing, "job-sizing", o.JobSizing,
		"Run-job sizing policy: fixed keeps the production one-node/120m override, dynamic applies proportional scaling")
	o.bindCommonFlags(fs)
}

func (o *Options) bindCommonFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Tag, "tag", o.Tag, "Unique id for the job")
	fs.BoolVar(&o.NoQsub, "no-qsub", false, "Do all local work but skip the scheduler submission")
	fs.StringVar(&o.QsubExtra, "qsub-extra", "", "Extra raw qsub arguments, split shell-style")
}

// Validate checks flag coherence and computes the derived fields.
func (o *Options) Validate() error {
	switch o.Queue {
	case "normal", "express":
	default:
		return fmt.Errorf("invalid --queue value %q (allowed: normal, express)", o.Queue)
	}
	if o.Year != 0 {
		if o.Year < 1970 || o.Year > 9999 {
			return fmt.Errorf("invalid --year value %d", o.Year)
		}
		o.TimeRange = taskdesc.YearRange(o.Year)
	}
	policy, err := jobsize.ParsePolicy(o.JobSizing)
	if err != nil {
		return err
	}
	o.Policy = policy
	if extra := strings.TrimSpace(o.QsubExtra); extra != "" {
		args, err := shellwords.Parse(extra)
		if err != nil {
			return fmt.Errorf("parse --qsub-extra: %w", err)
		}
		o.ExtraArgs = args
	}
	return nil
}
