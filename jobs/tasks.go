package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-utility/internal/reports"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup precomputes the default report set into the cache.
	TaskReportsWarmup = "reports:warmup"
	// TaskReportsCacheBump invalidates every cached report.
	TaskReportsCacheBump = "reports:cache-bump"
)

// WarmupPayload selects the reports to precompute. Empty means every report.
type WarmupPayload struct {
	Reports []string `json:"reports,omitempty"`
}

// CacheBumpPayload records why the cache was invalidated.
type CacheBumpPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewWarmupTask constructs a warmup task for the given reports.
func NewWarmupTask(names ...string) (*asynq.Task, error) {
	for _, name := range names {
		if !knownReport(name) {
			return nil, fmt.Errorf("jobs: unknown report %q", name)
		}
	}
	body, err := json.Marshal(WarmupPayload{Reports: names})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, body, asynq.Queue(QueueDefault)), nil
}

// NewCacheBumpTask constructs a cache bump task.
func NewCacheBumpTask(reason string) (*asynq.Task, error) {
	body, err := json.Marshal(CacheBumpPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsCacheBump, body, asynq.Queue(QueueDefault)), nil
}

func knownReport(name string) bool {
	for _, candidate := range reports.Names {
		if candidate == name {
			return true
		}
	}
	return false
}
