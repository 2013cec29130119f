package reportshttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
	"github.com/odyssey-erp/odyssey-utility/internal/reports"
	"github.com/odyssey-erp/odyssey-utility/internal/reports/export"
)

var fixedNow = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func snapshot() billing.Snapshot {
	amount := decimal.RequireFromString
	return billing.Snapshot{
		Customers: []billing.Customer{
			{ID: 1, Name: "Ayu Lestari", Type: billing.CustomerHousehold, Status: "Active"},
			{ID: 2, Name: "Budi Bakery", Type: billing.CustomerBusiness, Status: "Active"},
		},
		Bills: []billing.Bill{
			{ID: 1, CustomerID: 1, UtilityType: billing.UtilityElectricity, BillingMonth: "2024-04", BilledAmount: amount("200"), PaidAmount: amount("0"), DueDate: day(2024, 5, 5), Status: billing.BillUnpaid},
			{ID: 2, CustomerID: 2, UtilityType: billing.UtilityWater, BillingMonth: "2024-03", BilledAmount: amount("100"), PaidAmount: amount("50"), DueDate: day(2024, 4, 5), Status: billing.BillPartiallyPaid},
			{ID: 3, CustomerID: 1, UtilityType: billing.UtilityGas, BillingMonth: "2024-04", BilledAmount: amount("80"), PaidAmount: amount("80"), DueDate: day(2024, 5, 3), Status: billing.BillPaid},
		},
		Payments: []billing.Payment{
			{ID: 1, BillID: 2, CustomerID: 2, Amount: amount("50"), Method: billing.PaymentCard, PaidAt: day(2024, 4, 20)},
			{ID: 2, BillID: 3, CustomerID: 1, Amount: amount("80"), Method: billing.PaymentCash, PaidAt: day(2024, 5, 1)},
		},
		MeterReadings: []billing.MeterReading{
			{ID: 1, MeterID: 10, CustomerID: 1, UtilityType: billing.UtilityElectricity, ConsumptionValue: amount("320"), Unit: "kWh", ReadingDate: day(2024, 4, 25)},
			{ID: 2, MeterID: 20, CustomerID: 2, UtilityType: billing.UtilityWater, ConsumptionValue: amount("45"), Unit: "m3", ReadingDate: day(2024, 4, 25)},
		},
	}
}

type failingSource struct{}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func (failingSource) ListBills(context.Context, billing.BillFilter) ([]billing.Bill, error) {
	return nil, errConnRefused
}

func (failingSource) ListPayments(context.Context, billing.PaymentFilter) ([]billing.Payment, error) {
	return nil, errConnRefused
}

func (failingSource) ListCustomers(context.Context, billing.CustomerFilter) ([]billing.Customer, error) {
	return nil, errConnRefused
}

func (failingSource) ListMeterReadings(context.Context, billing.ReadingFilter) ([]billing.MeterReading, error) {
	return nil, errConnRefused
}

type stubPDF struct {
	last export.Document
	err  error
}

func (s *stubPDF) Render(_ context.Context, doc export.Document, _ time.Time) ([]byte, error) {
	s.last = doc
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.4\n"), nil
}

func newRouter(t *testing.T, source billing.DataSource, pdf PDFService) http.Handler {
	t.Helper()
	service := reports.NewService(source, nil, reports.WithClock(func() time.Time { return fixedNow }))
	handler := NewHandler(nil, service, pdf)
	handler.WithNow(func() time.Time { return fixedNow })
	r := chi.NewRouter()
	r.Route("/api/reports", handler.MountRoutes)
	return r
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func problemFields(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decodeBody(t, rec)
	fields, ok := body["errors"].(map[string]interface{})
	require.True(t, ok, rec.Body.String())
	return fields
}

func TestUnpaidBillsEndpoint(t *testing.T) {
	router := newRouter(t, billing.NewMemorySource(snapshot()), nil)

	rec := get(t, router, "/api/reports/unpaid-bills")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	summary := body["summary"].(map[string]interface{})
	require.Equal(t, float64(2), summary["totalUnpaidBills"])
	require.Equal(t, float64(250), summary["totalAmount"])
	require.Equal(t, "2024-05-15", body["asOf"])

	bills := body["bills"].([]interface{})
	require.Equal(t, float64(2), bills[0].(map[string]interface{})["id"])
	require.Equal(t, float64(40), bills[0].(map[string]interface{})["daysOverdue"])

	rec = get(t, router, "/api/reports/unpaid-bills?utilityType=water&minDaysOverdue=30")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["bills"], 1)

	rec = get(t, router, "/api/reports/unpaid-bills?utilityType=All")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["bills"], 2)
}

func TestUnpaidBillsRejectsBadFilters(t *testing.T) {
	router := newRouter(t, billing.NewMemorySource(snapshot()), nil)

	rec := get(t, router, "/api/reports/unpaid-bills?utilityType=Steam")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, problemFields(t, rec), "utilityType")

	rec = get(t, router, "/api/reports/unpaid-bills?minDaysOverdue=-3")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "number", problemFields(t, rec)["minDaysOverdue"])
}

func TestMonthlyRevenueEndpoint(t *testing.T) {
	router := newRouter(t, billing.NewMemorySource(snapshot()), nil)

	rec := get(t, router, "/api/reports/monthly-revenue?startMonth=2024-03&endMonth=2024-04")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	summary := body["summary"].(map[string]interface{})
	require.Equal(t, float64(380), summary["totalBilled"])
	require.Equal(t, float64(130), summary["totalPaid"])

	chart := body["chartData"].([]interface{})
	require.Len(t, chart, 2)
	first := chart[0].(map[string]interface{})
	require.Equal(t, "2024-03", first["yearMonth"])
	require.Contains(t, first, "Electricity")

	rec = get(t, router, "/api/reports/monthly-revenue?startMonth=2024-05&endMonth=2024-03")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, problemFields(t, rec), "endMonth")

	rec = get(t, router, "/api/reports/monthly-revenue?startMonth=2024-5")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "datetime", problemFields(t, rec)["startMonth"])
}

func TestTopConsumersEndpoint(t *testing.T) {
	router := newRouter(t, billing.NewMemorySource(snapshot()), nil)

	rec := get(t, router, "/api/reports/top-consumers")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	consumers := decodeBody(t, rec)["consumers"].([]interface{})
	require.Len(t, consumers, 2)
	top := consumers[0].(map[string]interface{})
	require.Equal(t, float64(1), top["rank"])
	require.Equal(t, float64(1), top["customerId"])

	rec = get(t, router, "/api/reports/top-consumers?limit=1&customerType=business")
	require.Equal(t, http.StatusOK, rec.Code)
	consumers = decodeBody(t, rec)["consumers"].([]interface{})
	require.Len(t, consumers, 1)
	require.Equal(t, float64(2), consumers[0].(map[string]interface{})["customerId"])

	rec = get(t, router, "/api/reports/top-consumers?limit=0")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, problemFields(t, rec), "limit")
}

func TestCustomerBillingEndpoint(t *testing.T) {
	router := newRouter(t, billing.NewMemorySource(snapshot()), nil)

	rec := get(t, router, "/api/reports/customer-billing?sortBy=customerName&sortOrder=asc")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	customers := decodeBody(t, rec)["customers"].([]interface{})
	require.Len(t, customers, 2)
	require.Equal(t, "Ayu Lestari", customers[0].(map[string]interface{})["customerName"])

	rec = get(t, router, "/api/reports/customer-billing?minOutstanding=100")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["customers"], 1)

	rec = get(t, router, "/api/reports/customer-billing?sortBy=balance")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "oneof", problemFields(t, rec)["sortBy"])
}

func TestDataSourceFailureMapsTo503(t *testing.T) {
	router := newRouter(t, failingSource{}, nil)

	for _, path := range []string{
		"/api/reports/unpaid-bills",
		"/api/reports/monthly-revenue",
		"/api/reports/top-consumers",
		"/api/reports/customer-billing",
	} {
		rec := get(t, router, path)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		require.NotContains(t, rec.Body.String(), "5432")
	}
}

func TestCanceledRequestIsNotReportedAsOutage(t *testing.T) {
	router := newRouter(t, billing.NewMemorySource(snapshot()), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reports/monthly-revenue", nil).WithContext(ctx)
	router.ServeHTTP(rec, req)
	require.Equal(t, statusClientClosedRequest, rec.Code)
	require.NotContains(t, rec.Header(), "Retry-After")
}

func TestCSVExport(t *testing.T) {
	router := newRouter(t, billing.NewMemorySource(snapshot()), nil)

	rec := get(t, router, "/api/reports/unpaid-bills/export.csv")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="unpaid-bills-20240515.csv"`)
	require.True(t, strings.HasPrefix(rec.Body.String(), "Summary\n"))
	require.Contains(t, rec.Body.String(), "Total Amount,250.00")

	rec = get(t, router, "/api/reports/meter-audit/export.csv")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, router, "/api/reports/top-consumers/export.csv?limit=-1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPDFExport(t *testing.T) {
	pdf := &stubPDF{}
	router := newRouter(t, billing.NewMemorySource(snapshot()), pdf)

	rec := get(t, router, "/api/reports/customer-billing/export.pdf")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Equal(t, reports.ReportCustomerBilling, pdf.last.Report)

	pdf.err = errors.New("gotenberg: status 500")
	rec = get(t, router, "/api/reports/customer-billing/export.pdf")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	router = newRouter(t, billing.NewMemorySource(snapshot()), nil)
	rec = get(t, router, "/api/reports/customer-billing/export.pdf")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefresh(t *testing.T) {
	router := newRouter(t, billing.NewMemorySource(snapshot()), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decodeBody(t, rec), "version")
}

func TestExportRateLimitKeyedBySession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5000"
	key, err := rateLimitKey(req)
	require.NoError(t, err)
	require.Equal(t, "ip:10.0.0.7", key)
}
