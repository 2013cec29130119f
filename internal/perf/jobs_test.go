package perf

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
	jobmetrics "github.com/odyssey-erp/odyssey-utility/internal/jobs"
	"github.com/odyssey-erp/odyssey-utility/internal/reports"
	"github.com/odyssey-erp/odyssey-utility/jobs"
)

func TestWarmupJobThroughput(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	svc := reports.NewService(billing.NewMemorySource(synthSnapshot(200, 12)), nil,
		reports.WithClock(func() time.Time { return benchNow }))
	job := jobs.NewReportsWarmupJob(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

	task, err := jobs.NewWarmupTask()
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := job.Handle(context.Background(), task); err != nil {
			t.Fatalf("warmup run %d: %v", i, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var runs, warmed, durationSum float64
	var durationCount uint64
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			switch fam.GetName() {
			case "odyssey_jobs_total":
				runs += metric.GetCounter().GetValue()
			case "odyssey_reports_warmed_total":
				warmed += metric.GetCounter().GetValue()
			case "odyssey_job_duration_seconds":
				durationSum += metric.GetHistogram().GetSampleSum()
				durationCount += metric.GetHistogram().GetSampleCount()
			}
		}
	}
	if runs != 5 {
		t.Fatalf("expected 5 tracked runs, got %v", runs)
	}
	if warmed != float64(5*len(reports.Names)) {
		t.Fatalf("expected %d warmed reports, got %v", 5*len(reports.Names), warmed)
	}
	if durationCount == 0 {
		t.Fatal("job duration histogram missing samples")
	}
	if mean := durationSum / float64(durationCount); mean > 2.0 {
		t.Fatalf("warmup duration above budget: %f", mean)
	}
}
