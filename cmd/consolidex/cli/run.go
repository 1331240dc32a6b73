package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/consolidex/consolidex/jobs"
)

// TriggerOptions defines available flags for the jobs trigger command.
type TriggerOptions struct {
	Job        string
	TenantID   string
	PeriodID   string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// TriggerSummary describes the JSON response for jobs trigger.
type TriggerSummary struct {
	TaskID string `json:"taskId"`
	Type   string `json:"type"`
	Queue  string `json:"queue"`
}

// TriggerCommand enqueues a background job and prints the outcome.
func (c *JobsCLI) TriggerCommand(ctx context.Context, opts TriggerOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Job == "" {
		opts.Job = jobs.TaskConsolidationRun
	}
	if opts.PeriodID == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs trigger: --period is required")
		return 1
	}
	info, err := c.Trigger(ctx, opts.Job, opts.TenantID, opts.PeriodID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		summary := TriggerSummary{TaskID: info.ID, Type: info.Type, Queue: info.Queue}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}

// StatsCommand prints queue statistics.
func (c *JobsCLI) StatsCommand(ctx context.Context, jsonOutput bool, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
		return 1
	}
	if jsonOutput {
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return 0
}
