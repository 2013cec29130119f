package reports

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
	"github.com/odyssey-erp/odyssey-utility/internal/tariff"
)

// Report names used for cache keys, metrics and routes.
const (
	ReportUnpaidBills     = "unpaid-bills"
	ReportMonthlyRevenue  = "monthly-revenue"
	ReportTopConsumers    = "top-consumers"
	ReportCustomerBilling = "customer-billing"
)

// Names lists every report.
var Names = []string{ReportUnpaidBills, ReportMonthlyRevenue, ReportTopConsumers, ReportCustomerBilling}

// Recorder observes report executions.
type Recorder interface {
	ObserveReport(report, outcome string, elapsed time.Duration, skipped int)
}

// Service fetches snapshots from the data source, runs the aggregations and
// caches the rendered reports.
type Service struct {
	source   billing.DataSource
	rates    tariff.Source
	cache    *Cache
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
	location *time.Location
	flights  singleflight.Group

	computeTimeout time.Duration
}

// DefaultComputeTimeout bounds a shared report computation once no single
// request owns it.
const DefaultComputeTimeout = 30 * time.Second

// Option customises the service.
type Option func(*Service)

// WithRates sets the tariff source used to price consumption.
func WithRates(rates tariff.Source) Option {
	return func(s *Service) { s.rates = rates }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithComputeTimeout bounds each shared report computation.
func WithComputeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.computeTimeout = d
		}
	}
}

// WithLocation sets the time zone that decides the current calendar day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewService wires the data source with the cache helper.
func NewService(source billing.DataSource, cache *Cache, opts ...Option) *Service {
	svc := &Service{
		source:   source,
		cache:    cache,
		logger:   slog.Default(),
		now:      time.Now,
		location: time.UTC,

		computeTimeout: DefaultComputeTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Today returns the current instant in the service's time zone.
func (s *Service) Today() time.Time {
	return s.now().In(s.location)
}

// UnpaidBills summarises bills past due as of today.
func (s *Service) UnpaidBills(ctx context.Context, filter UnpaidFilter) (UnpaidBillsReport, error) {
	if err := filter.Validate(); err != nil {
		return UnpaidBillsReport{}, err
	}
	today := s.Today()
	var report UnpaidBillsReport
	err := s.run(ctx, ReportUnpaidBills, []string{today.Format(DateLayout), filter.cacheKey()}, &report, func(ctx context.Context) (interface{}, int, error) {
		var (
			bills     []billing.Bill
			customers []billing.Customer
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			bills, err = s.source.ListBills(gctx, billing.BillFilter{UtilityType: filter.UtilityType, UnpaidOnly: true})
			return wrapSource("list bills", err)
		})
		g.Go(func() error {
			var err error
			customers, err = s.source.ListCustomers(gctx, billing.CustomerFilter{})
			return wrapSource("list customers", err)
		})
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
		result, err := SummarizeUnpaidBills(bills, customers, filter, today)
		return result, result.SkippedRecords, err
	})
	return report, err
}

// MonthlyRevenue groups billed and paid amounts per month and utility type.
func (s *Service) MonthlyRevenue(ctx context.Context, filter RevenueFilter) (RevenueReport, error) {
	if err := filter.Validate(); err != nil {
		return RevenueReport{}, err
	}
	var report RevenueReport
	err := s.run(ctx, ReportMonthlyRevenue, []string{filter.cacheKey()}, &report, func(ctx context.Context) (interface{}, int, error) {
		bills, err := s.source.ListBills(ctx, billing.BillFilter{
			UtilityType: filter.UtilityType,
			FromMonth:   filter.StartMonth,
			ToMonth:     filter.EndMonth,
		})
		if err != nil {
			return nil, 0, wrapSource("list bills", err)
		}
		result, err := AggregateMonthlyRevenue(bills, filter)
		return result, result.SkippedRecords, err
	})
	return report, err
}

// TopConsumers ranks customers by metered consumption.
func (s *Service) TopConsumers(ctx context.Context, filter ConsumerFilter) (TopConsumersReport, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultConsumerLimit
	}
	if err := filter.Validate(); err != nil {
		return TopConsumersReport{}, err
	}
	var report TopConsumersReport
	err := s.run(ctx, ReportTopConsumers, []string{filter.cacheKey()}, &report, func(ctx context.Context) (interface{}, int, error) {
		var (
			readings  []billing.MeterReading
			customers []billing.Customer
			bills     []billing.Bill
			rates     tariff.Table
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			readings, err = s.source.ListMeterReadings(gctx, billing.ReadingFilter{
				UtilityType: filter.UtilityType,
				FromMonth:   filter.StartMonth,
				ToMonth:     filter.EndMonth,
			})
			return wrapSource("list meter readings", err)
		})
		g.Go(func() error {
			var err error
			customers, err = s.source.ListCustomers(gctx, billing.CustomerFilter{Type: filter.CustomerType})
			return wrapSource("list customers", err)
		})
		g.Go(func() error {
			var err error
			bills, err = s.source.ListBills(gctx, billing.BillFilter{
				UtilityType: filter.UtilityType,
				FromMonth:   filter.StartMonth,
				ToMonth:     filter.EndMonth,
			})
			return wrapSource("list bills", err)
		})
		if s.rates != nil {
			g.Go(func() error {
				var err error
				rates, err = s.rates.Rates(gctx)
				return wrapSource("load tariff rates", err)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
		result, err := RankTopConsumers(readings, customers, bills, rates, filter)
		return result, result.SkippedRecords, err
	})
	return report, err
}

// CustomerBilling totals billed, paid and outstanding amounts per customer.
func (s *Service) CustomerBilling(ctx context.Context, filter CustomerBillingFilter) (CustomerBillingReport, error) {
	if err := filter.Validate(); err != nil {
		return CustomerBillingReport{}, err
	}
	var report CustomerBillingReport
	err := s.run(ctx, ReportCustomerBilling, []string{filter.cacheKey()}, &report, func(ctx context.Context) (interface{}, int, error) {
		var (
			bills     []billing.Bill
			customers []billing.Customer
			payments  []billing.Payment
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			bills, err = s.source.ListBills(gctx, billing.BillFilter{})
			return wrapSource("list bills", err)
		})
		g.Go(func() error {
			var err error
			customers, err = s.source.ListCustomers(gctx, billing.CustomerFilter{Type: filter.CustomerType})
			return wrapSource("list customers", err)
		})
		g.Go(func() error {
			var err error
			payments, err = s.source.ListPayments(gctx, billing.PaymentFilter{})
			return wrapSource("list payments", err)
		})
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
		result, err := SummarizeCustomerBilling(bills, customers, payments, filter)
		return result, result.SkippedRecords, err
	})
	return report, err
}

// Refresh invalidates every cached report.
func (s *Service) Refresh(ctx context.Context) (int64, error) {
	version, err := s.cache.Bump(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "report cache bumped", slog.Int64("version", version))
	return version, nil
}

type computeFunc func(context.Context) (interface{}, int, error)

type loadResult struct {
	payload json.RawMessage
	hit     bool
	skipped int
}

// run resolves a report through the cache and decodes it into dest.
func (s *Service) run(ctx context.Context, report string, parts []string, dest interface{}, compute computeFunc) error {
	start := time.Now()
	key, err := s.cache.BuildKey(ctx, append([]string{report}, parts...)...)
	if err != nil {
		s.logger.WarnContext(ctx, "report cache unavailable", slog.String("report", report), slog.Any("error", err))
		key = ""
	}

	res, err := s.load(ctx, key, compute)
	if err == nil {
		err = json.Unmarshal(res.payload, dest)
	}
	if s.recorder != nil {
		s.recorder.ObserveReport(report, outcomeLabel(res.hit, err), time.Since(start), res.skipped)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidFilter):
		case errors.Is(err, context.Canceled):
			s.logger.DebugContext(ctx, "report request canceled", slog.String("report", report))
		default:
			s.logger.ErrorContext(ctx, "report failed", slog.String("report", report), slog.Any("error", err))
		}
		return err
	}
	if res.skipped > 0 {
		s.logger.WarnContext(ctx, "malformed records skipped", slog.String("report", report), slog.Int("skipped", res.skipped))
	}
	return nil
}

// load collapses concurrent requests for the same key into one computation.
// The shared computation is detached from any single caller so one caller
// leaving does not fail the others; each caller stops waiting on its own ctx.
// Cache failures degrade to serving the freshly computed report.
func (s *Service) load(ctx context.Context, key string, compute computeFunc) (loadResult, error) {
	if err := ctx.Err(); err != nil {
		return loadResult{}, err
	}
	if key == "" {
		return computePayload(ctx, compute)
	}
	results := s.flights.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.computeTimeout)
		defer cancel()
		var (
			res        loadResult
			computed   bool
			computeErr error
		)
		hit, err := s.cache.FetchJSON(fctx, key, &res.payload, func(ctx context.Context) (interface{}, error) {
			computed = true
			value, skipped, err := compute(ctx)
			res.skipped = skipped
			computeErr = err
			return value, err
		})
		switch {
		case err == nil:
			res.hit = hit
			return res, nil
		case computeErr != nil:
			return nil, computeErr
		case errors.Is(err, ErrCacheWrite):
			s.logger.WarnContext(fctx, "report cache write failed", slog.String("key", key), slog.Any("error", err))
			return res, nil
		case !computed:
			s.logger.WarnContext(fctx, "report cache read failed", slog.String("key", key), slog.Any("error", err))
			return computePayload(fctx, compute)
		default:
			return nil, err
		}
	})
	select {
	case <-ctx.Done():
		return loadResult{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return loadResult{}, res.Err
		}
		return res.Val.(loadResult), nil
	}
}

func computePayload(ctx context.Context, compute computeFunc) (loadResult, error) {
	value, skipped, err := compute(ctx)
	if err != nil {
		return loadResult{}, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return loadResult{}, err
	}
	return loadResult{payload: raw, skipped: skipped}, nil
}

func outcomeLabel(hit bool, err error) string {
	switch {
	case err == nil && hit:
		return "cache_hit"
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidFilter):
		return "invalid_filter"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrDataSourceUnavailable):
		return "source_unavailable"
	default:
		return "error"
	}
}

// wrapSource marks data source failures. Caller cancellation passes through
// unwrapped.
func wrapSource(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return sourceError(op, err)
}
