package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-utility/jobs"
)

// Enqueuer submits report jobs; *jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueWarmup(ctx context.Context, names ...string) (*asynq.TaskInfo, error)
	EnqueueCacheBump(ctx context.Context, reason string) (*asynq.TaskInfo, error)
	Close() error
}

// Inspector reads queue state; *asynq.Inspector satisfies it.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for the report jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
}

// NewJobsCLI initialises the helpers against the given Redis connection.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a job by short name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, reports []string, reason string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case "warmup", jobs.TaskReportsWarmup:
		return c.client.EnqueueWarmup(ctx, reports...)
	case "cache-bump", jobs.TaskReportsCacheBump:
		if reason == "" {
			reason = "manual"
		}
		return c.client.EnqueueCacheBump(ctx, reason)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
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

// InspectQueue reports the metrics of the default queue. A queue that has
// never seen a task reports zeros.
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

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	tasks, err := c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	return tasks, err
}

// Command dispatches the jobs subcommands and returns the process exit code.
func (c *JobsCLI) Command(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		reportList := fs.String("reports", "", "comma separated reports to warm (default all)")
		reason := fs.String("reason", "", "cache bump reason")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			_, _ = fmt.Fprintln(stderr, "jobs trigger: exactly one job name required (warmup or cache-bump)")
			return 2
		}
		info, err := c.Trigger(ctx, fs.Arg(0), splitList(*reportList), *reason)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "inspect":
		fs := flag.NewFlagSet("jobs inspect", flag.ContinueOnError)
		fs.SetOutput(stderr)
		asJSON := fs.Bool("json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs inspect: %v\n", err)
			return 1
		}
		if *asJSON {
			if err := json.NewEncoder(stdout).Encode(stats); err != nil {
				_, _ = fmt.Fprintf(stderr, "jobs inspect: encode json: %v\n", err)
				return 1
			}
			return 0
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		_ = tw.Flush()
		return 0
	case "scheduled":
		fs := flag.NewFlagSet("jobs scheduled", flag.ContinueOnError)
		fs.SetOutput(stderr)
		size := fs.Int("n", 10, "number of tasks")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		tasks, err := c.ListScheduled(ctx, *size)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs scheduled: %v\n", err)
			return 1
		}
		for _, task := range tasks {
			_, _ = fmt.Fprintf(stdout, "%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
		}
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "jobs: unknown subcommand %q\n", args[0])
		return 2
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
