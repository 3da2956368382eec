package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/paydash/internal/ingest"
	"github.com/odyssey-erp/paydash/jobs"
)

// Enqueuer submits background jobs.
type Enqueuer interface {
	EnqueueLedgerImport(ctx context.Context, payload jobs.LedgerImportPayload) (*asynq.TaskInfo, error)
	EnqueueAnalyticsWarmup(ctx context.Context, reason string) (*asynq.TaskInfo, error)
}

// QueueInspector reads queue state.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	queue     Enqueuer
	inspector QueueInspector
	readFile  func(string) ([]byte, error)
}

// NewJobsCLI builds the helpers. Either dependency may be nil when the
// corresponding commands are not used.
func NewJobsCLI(queue Enqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{queue: queue, inspector: inspector, readFile: os.ReadFile}
}

// TriggerParams names the job to enqueue and its inputs.
type TriggerParams struct {
	Name   string
	File   string
	Mode   string
	Reason string
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, params TriggerParams) (*asynq.TaskInfo, error) {
	if c == nil || c.queue == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch params.Name {
	case jobs.TaskAnalyticsWarmup:
		reason := params.Reason
		if reason == "" {
			reason = "manual"
		}
		return c.queue.EnqueueAnalyticsWarmup(ctx, reason)
	case jobs.TaskLedgerImport:
		if params.File == "" {
			return nil, errors.New("jobs cli: --file is required for ledger:import")
		}
		if _, ok := ingest.ContentType(params.File); !ok {
			return nil, fmt.Errorf("jobs cli: %s is not an excel workbook", params.File)
		}
		mode := params.Mode
		if mode == "" {
			mode = jobs.ModeAppend
		}
		if mode != jobs.ModeAppend && mode != jobs.ModeReplace {
			return nil, fmt.Errorf("jobs cli: unsupported mode %q", mode)
		}
		content, err := c.readFile(params.File)
		if err != nil {
			return nil, fmt.Errorf("jobs cli: read %s: %w", params.File, err)
		}
		return c.queue.EnqueueLedgerImport(ctx, jobs.LedgerImportPayload{
			Filename: filepath.Base(params.File),
			Mode:     mode,
			Content:  content,
		})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", params.Name)
	}
}

// TriggerOptions defines available flags for the jobs trigger command.
type TriggerOptions struct {
	TriggerParams
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

type triggerSummary struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Queue string `json:"queue"`
}

// TriggerCommand enqueues a job and prints the task identifier.
func (c *JobsCLI) TriggerCommand(ctx context.Context, opts TriggerOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	info, err := c.Trigger(ctx, opts.TriggerParams)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
		return 1
	}
	summary := triggerSummary{ID: info.ID, Type: info.Type, Queue: info.Queue}
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "enqueued %s as %s on queue %s\n", summary.Type, summary.ID, summary.Queue)
	return 0
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue. A queue that
// has never seen a task reports zeros.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return stats, nil
		}
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// StatsOptions defines available flags for the jobs stats command.
type StatsOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// StatsCommand prints the default queue counters.
func (c *JobsCLI) StatsCommand(ctx context.Context, opts StatsOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "queue %s: pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return 0
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// ScheduledCommand prints the next scheduled tasks, one per line.
func (c *JobsCLI) ScheduledCommand(ctx context.Context, size int, opts StatsOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	tasks, err := c.ListScheduled(ctx, size)
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		_, _ = fmt.Fprintf(stderr, "jobs scheduled: %v\n", err)
		return 1
	}
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(stdout, "no scheduled tasks")
		return 0
	}
	for _, task := range tasks {
		line := []string{task.ID, task.Type}
		if !task.NextProcessAt.IsZero() {
			line = append(line, task.NextProcessAt.Format("2006-01-02 15:04:05"))
		}
		_, _ = fmt.Fprintln(stdout, strings.Join(line, "\t"))
	}
	return 0
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
