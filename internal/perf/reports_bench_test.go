package perf

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
	"github.com/odyssey-erp/odyssey-utility/internal/reports"
	"github.com/odyssey-erp/odyssey-utility/internal/tariff"
)

var benchNow = time.Date(2024, 6, 20, 8, 0, 0, 0, time.UTC)

func BenchmarkSummarizeUnpaidBills(b *testing.B) {
	snap := synthSnapshot(1000, 12)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reports.SummarizeUnpaidBills(snap.Bills, snap.Customers, reports.UnpaidFilter{}, benchNow); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAggregateMonthlyRevenue(b *testing.B) {
	snap := synthSnapshot(1000, 12)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reports.AggregateMonthlyRevenue(snap.Bills, reports.RevenueFilter{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRankTopConsumers(b *testing.B) {
	snap := synthSnapshot(1000, 12)
	rates, err := tariff.ParseTable("Electricity=1.45,Water=0.85,Gas=1.10")
	if err != nil {
		b.Fatal(err)
	}
	filter := reports.ConsumerFilter{Limit: reports.DefaultConsumerLimit}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reports.RankTopConsumers(snap.MeterReadings, snap.Customers, snap.Bills, rates, filter); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSummarizeCustomerBilling(b *testing.B) {
	snap := synthSnapshot(1000, 12)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reports.SummarizeCustomerBilling(snap.Bills, snap.Customers, snap.Payments, reports.CustomerBillingFilter{}); err != nil {
			b.Fatal(err)
		}
	}
}

func TestReportLatencyTargets(t *testing.T) {
	if testing.Short() {
		t.Skip("latency targets skipped in short mode")
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := reports.NewCache(client, time.Minute)
	svc := reports.NewService(billing.NewMemorySource(synthSnapshot(300, 12)), cache,
		reports.WithClock(func() time.Time { return benchNow }))
	ctx := context.Background()

	runAll := func() {
		t.Helper()
		if _, err := svc.UnpaidBills(ctx, reports.UnpaidFilter{}); err != nil {
			t.Fatalf("unpaid bills: %v", err)
		}
		if _, err := svc.MonthlyRevenue(ctx, reports.RevenueFilter{}); err != nil {
			t.Fatalf("monthly revenue: %v", err)
		}
		if _, err := svc.TopConsumers(ctx, reports.ConsumerFilter{}); err != nil {
			t.Fatalf("top consumers: %v", err)
		}
		if _, err := svc.CustomerBilling(ctx, reports.CustomerBillingFilter{}); err != nil {
			t.Fatalf("customer billing: %v", err)
		}
	}

	var cold, cached []time.Duration
	for i := 0; i < 5; i++ {
		if _, err := svc.Refresh(ctx); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		start := time.Now()
		runAll()
		cold = append(cold, time.Since(start))

		start = time.Now()
		runAll()
		cached = append(cached, time.Since(start))
	}

	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{name: "cold", samples: cold, threshold: 2 * time.Second},
		{name: "cached", samples: cached, threshold: 500 * time.Millisecond},
	}
	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}
