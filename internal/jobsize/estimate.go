// Package jobsize translates a stacking task count into the node count
// and walltime to request from PBS for the run stage.
package jobsize

import (
	"fmt"
	"strings"
)

// Policy selects how the estimate is produced.
//
// PolicyFixed reproduces the long-standing production override: every
// run job asks for one node and 120 minutes regardless of task count.
// PolicyDynamic applies the documented proportional formula instead.
// Fixed is the default; dynamic is opt-in via --job-sizing.
type Policy string

const (
	PolicyFixed   Policy = "fixed"
	PolicyDynamic Policy = "dynamic"
)

// ParsePolicy validates a --job-sizing flag value.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyFixed, "":
		return PolicyFixed, nil
	case PolicyDynamic:
		return PolicyDynamic, nil
	default:
		return "", fmt.Errorf("unknown job-sizing policy %q (expected fixed or dynamic)", value)
	}
}

// Params holds the cluster constants the estimate is computed from.
type Params struct {
	MaxNodes     int
	CoresPerNode int
	// TaskMinutes is the assumed duration of a single stacking task.
	TaskMinutes int
}

// DefaultParams returns the constants tuned for the NCI stacking queues.
func DefaultParams() Params {
	return Params{
		MaxNodes:     20,
		CoresPerNode: 16,
		TaskMinutes:  5,
	}
}

// Estimate is a PBS resource recommendation.
type Estimate struct {
	Nodes    int
	Walltime string
}

// Estimate recommends nodes and walltime for the given task count.
// It is a pure function: identical inputs always produce identical
// results. Negative counts are treated as zero.
func (p Params) Estimate(count int, policy Policy) Estimate {
	if policy == PolicyFixed {
		return Estimate{Nodes: 1, Walltime: "120m"}
	}
	if count < 0 {
		count = 0
	}
	if count == 0 {
		// A zero count should never request zero nodes; keep the
		// minimum allocation for one task slot.
		return Estimate{Nodes: 1, Walltime: fmt.Sprintf("%dm", p.TaskMinutes)}
	}

	var nodes int
	if count < p.MaxNodes*p.CoresPerNode {
		// Fewer tasks than max cores: aim for 4 tasks per core so
		// small jobs don't over-allocate.
		nodes = ceilDiv(count, p.CoresPerNode*4)
	} else {
		nodes = p.MaxNodes
	}
	if nodes < 1 {
		nodes = 1
	}

	tasksPerCore := ceilDiv(count, nodes*p.CoresPerNode)
	return Estimate{
		Nodes:    nodes,
		Walltime: fmt.Sprintf("%dm", tasksPerCore*p.TaskMinutes),
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
