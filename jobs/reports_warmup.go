package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
	jobmetrics "github.com/odyssey-erp/odyssey-utility/internal/jobs"
	"github.com/odyssey-erp/odyssey-utility/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// revenueWindowMonths is the trailing window warmed for the revenue report.
const revenueWindowMonths = 12

// ReportWarmer is the subset of the report service the warmup job drives.
type ReportWarmer interface {
	Today() time.Time
	UnpaidBills(ctx context.Context, filter reports.UnpaidFilter) (reports.UnpaidBillsReport, error)
	MonthlyRevenue(ctx context.Context, filter reports.RevenueFilter) (reports.RevenueReport, error)
	TopConsumers(ctx context.Context, filter reports.ConsumerFilter) (reports.TopConsumersReport, error)
	CustomerBilling(ctx context.Context, filter reports.CustomerBillingFilter) (reports.CustomerBillingReport, error)
}

// ReportsWarmupJob computes the dashboard's default reports so the first
// request of the day is served from the cache.
type ReportsWarmupJob struct {
	Reports ReportWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(warmer ReportWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{Reports: warmer, Logger: logger, Metrics: metrics}
}

// Handle processes warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	names := payload.Reports
	if len(names) == 0 {
		names = reports.Names
	}

	tracker := j.metrics().Track(TaskReportsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	started := time.Now()
	today := j.Reports.Today()
	for _, name := range names {
		if err := j.warm(ctx, name, today); err != nil {
			logger.Error("warm report", slog.String("report", name), slog.Any("error", err))
			return err
		}
		j.metrics().AddWarmed(name, 1)
	}
	logger.Info("completed reports warmup", slog.Int("reports", len(names)), slog.Duration("duration", time.Since(started)))
	return nil
}

func (j *ReportsWarmupJob) warm(ctx context.Context, name string, today time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var err error
	switch name {
	case reports.ReportUnpaidBills:
		_, err = j.Reports.UnpaidBills(ctx, reports.UnpaidFilter{})
	case reports.ReportMonthlyRevenue:
		_, err = j.Reports.MonthlyRevenue(ctx, DefaultRevenueFilter(today))
	case reports.ReportTopConsumers:
		_, err = j.Reports.TopConsumers(ctx, reports.ConsumerFilter{Limit: reports.DefaultConsumerLimit})
	case reports.ReportCustomerBilling:
		_, err = j.Reports.CustomerBilling(ctx, reports.CustomerBillingFilter{})
	default:
		return asynq.SkipRetry
	}
	return err
}

// DefaultRevenueFilter covers the trailing twelve months ending with today's month.
func DefaultRevenueFilter(today time.Time) reports.RevenueFilter {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	return reports.RevenueFilter{
		StartMonth: first.AddDate(0, -(revenueWindowMonths - 1), 0).Format(billing.MonthLayout),
		EndMonth:   first.Format(billing.MonthLayout),
	}
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
