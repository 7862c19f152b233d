// Package pbs is the narrow boundary to the cluster scheduler: it
// builds qsub invocations and parses the job id they return. Nothing
// here retries; a failed submission is fatal to the caller.
package pbs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
)

// Request describes one job submission.
type Request struct {
	Name     string
	Project  string
	Queue    string
	Memory   string
	Walltime string
	// Nodes and NCPUs are alternative sizings; zero values are omitted.
	Nodes int
	NCPUs int
	// CurrentDir submits with `-l wd` so the job runs from the
	// submission directory.
	CurrentDir bool
	// AfterOK makes the job wait for successful completion of the
	// given job id.
	AfterOK    string
	OutputPath string
	ErrorPath  string
	MailOnEnd  bool
	MailTo     string
	// ExtraArgs are raw qsub arguments appended before the command.
	ExtraArgs []string
	Command   []string
}

// Submitter submits a job and returns the scheduler's job id.
type Submitter interface {
	Submit(ctx context.Context, req Request) (string, error)
}

// Client shells out to the site qsub binary.
type Client struct {
	// QsubPath overrides the binary looked up on PATH.
	QsubPath string
	Log      logr.Logger
}

// NewClient returns a Client using `qsub` from PATH.
func NewClient(log logr.Logger) *Client {
	return &Client{QsubPath: "qsub", Log: log}
}

// Submit runs qsub and returns the job id printed on stdout.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	if len(req.Command) == 0 {
		return "", fmt.Errorf("submit %s: empty command", req.Name)
	}
	args := buildArgs(req)
	c.Log.V(1).Info("submitting job", "name", req.Name, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, c.QsubPath, args...)
	output, err := cmd.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		if stderr != "" {
			return "", fmt.Errorf("qsub %s: %w: %s", req.Name, err, stderr)
		}
		return "", fmt.Errorf("qsub %s: %w", req.Name, err)
	}
	jobID := strings.TrimSpace(string(output))
	if jobID == "" {
		return "", fmt.Errorf("qsub %s: no job id in output", req.Name)
	}
	c.Log.Info("job submitted", "name", req.Name, "jobID", jobID)
	return jobID, nil
}

func buildArgs(req Request) []string {
	args := []string{"-V"}
	if req.Project != "" {
		args = append(args, "-P", req.Project)
	}
	if req.Queue != "" {
		args = append(args, "-q", req.Queue)
	}
	if res := resourceList(req); res != "" {
		args = append(args, "-l", res)
	}
	if req.CurrentDir {
		args = append(args, "-l", "wd")
	}
	if req.Name != "" {
		args = append(args, "-N", req.Name)
	}
	if req.MailOnEnd {
		args = append(args, "-m", "e")
		if req.MailTo != "" {
			args = append(args, "-M", req.MailTo)
		}
	}
	if req.OutputPath != "" {
		args = append(args, "-o", req.OutputPath)
	}
	if req.ErrorPath != "" {
		args = append(args, "-e", req.ErrorPath)
	}
	if req.AfterOK != "" {
		args = append(args, "-W", "depend=afterok:"+strings.TrimSpace(req.AfterOK))
	}
	args = append(args, req.ExtraArgs...)
	args = append(args, "--")
	args = append(args, req.Command...)
	return args
}

func resourceList(req Request) string {
	var parts []string
	if req.Walltime != "" {
		parts = append(parts, "walltime="+req.Walltime)
	}
	if req.Memory != "" {
		parts = append(parts, "mem="+req.Memory)
	}
	if req.Nodes > 0 {
		parts = append(parts, fmt.Sprintf("nodes=%d", req.Nodes))
	}
	if req.NCPUs > 0 {
		parts = append(parts, fmt.Sprintf("ncpus=%d", req.NCPUs))
	}
	return strings.Join(parts, ",")
}
