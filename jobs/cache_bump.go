package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-utility/internal/jobs"
)

// CacheRefresher bumps the report cache version.
type CacheRefresher interface {
	Refresh(ctx context.Context) (int64, error)
}

// CacheBumpJob invalidates cached reports, typically after a billing import.
type CacheBumpJob struct {
	Cache   CacheRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCacheBumpJob wires dependencies for the cache bump handler.
func NewCacheBumpJob(cache CacheRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheBumpJob {
	return &CacheBumpJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes cache bump tasks.
func (j *CacheBumpJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Cache == nil {
		return errors.New("cache bump: handler not configured")
	}
	var payload CacheBumpPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskReportsCacheBump)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	version, err := j.Cache.Refresh(ctx)
	if err != nil {
		logger.Error("bump report cache", slog.String("job", TaskReportsCacheBump), slog.Any("error", err))
		return err
	}
	logger.Info("report cache bumped", slog.String("job", TaskReportsCacheBump), slog.String("reason", payload.Reason), slog.Int64("version", version))
	return nil
}
