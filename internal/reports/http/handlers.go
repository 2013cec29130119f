// Package reportshttp exposes the billing reports over JSON, CSV and PDF.
package reportshttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-utility/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-utility/internal/reports"
	"github.com/odyssey-erp/odyssey-utility/internal/reports/export"
)

const requestTimeout = 10 * time.Second

// statusClientClosedRequest follows the nginx convention for callers that left.
const statusClientClosedRequest = 499

var errUnknownReport = errors.New("reports: unknown report")

// ReportService defines the report contract used by the handler.
type ReportService interface {
	UnpaidBills(ctx context.Context, filter reports.UnpaidFilter) (reports.UnpaidBillsReport, error)
	MonthlyRevenue(ctx context.Context, filter reports.RevenueFilter) (reports.RevenueReport, error)
	TopConsumers(ctx context.Context, filter reports.ConsumerFilter) (reports.TopConsumersReport, error)
	CustomerBilling(ctx context.Context, filter reports.CustomerBillingFilter) (reports.CustomerBillingReport, error)
	Refresh(ctx context.Context) (int64, error)
}

// PDFService renders an export document to PDF bytes.
type PDFService interface {
	Render(ctx context.Context, doc export.Document, generatedAt time.Time) ([]byte, error)
}

// Handler coordinates HTTP requests for the billing reports.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	pdf       PDFService
	validator *validator.Validate
	csvPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the reports HTTP handler. pdf may be nil, in which
// case PDF exports answer 503.
func NewHandler(logger *slog.Logger, service ReportService, pdf PDFService) *Handler {
	h := &Handler{
		logger:    logger,
		service:   service,
		pdf:       pdf,
		validator: newValidator(),
		now:       time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleUnpaid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.unpaid(ctx, r)
	h.respond(w, "unpaid bills", report, err)
}

func (h *Handler) handleRevenue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.revenue(ctx, r)
	h.respond(w, "monthly revenue", report, err)
}

func (h *Handler) handleConsumers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.consumers(ctx, r)
	h.respond(w, "top consumers", report, err)
}

func (h *Handler) handleCustomerBilling(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.customerBilling(ctx, r)
	h.respond(w, "customer billing", report, err)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	version, err := h.service.Refresh(r.Context())
	if err != nil {
		h.handleServerError(w, "refresh cache", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"version": version})
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	name := chi.URLParam(r, "report")
	doc, err := h.document(ctx, name, r)
	if err != nil {
		h.handleReportError(w, "export csv", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WriteCSV(buf, doc); err != nil {
		h.handleServerError(w, "write csv", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", h.filename(name, "csv")))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "pdf exporter not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	name := chi.URLParam(r, "report")
	doc, err := h.document(ctx, name, r)
	if err != nil {
		h.handleReportError(w, "export pdf", err)
		return
	}

	pdfBytes, err := h.pdf.Render(ctx, doc, h.now())
	if err != nil {
		h.logError("render pdf", err)
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "pdf rendering failed")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", h.filename(name, "pdf")))
	if _, err := w.Write(pdfBytes); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) unpaid(ctx context.Context, r *http.Request) (reports.UnpaidBillsReport, error) {
	var query unpaidQuery
	if err := h.bind(r, &query); err != nil {
		return reports.UnpaidBillsReport{}, err
	}
	filter, err := query.filter()
	if err != nil {
		return reports.UnpaidBillsReport{}, err
	}
	return h.service.UnpaidBills(ctx, filter)
}

func (h *Handler) revenue(ctx context.Context, r *http.Request) (reports.RevenueReport, error) {
	var query revenueQuery
	if err := h.bind(r, &query); err != nil {
		return reports.RevenueReport{}, err
	}
	filter, err := query.filter()
	if err != nil {
		return reports.RevenueReport{}, err
	}
	return h.service.MonthlyRevenue(ctx, filter)
}

func (h *Handler) consumers(ctx context.Context, r *http.Request) (reports.TopConsumersReport, error) {
	var query consumerQuery
	if err := h.bind(r, &query); err != nil {
		return reports.TopConsumersReport{}, err
	}
	filter, err := query.filter()
	if err != nil {
		return reports.TopConsumersReport{}, err
	}
	return h.service.TopConsumers(ctx, filter)
}

func (h *Handler) customerBilling(ctx context.Context, r *http.Request) (reports.CustomerBillingReport, error) {
	var query customerBillingQuery
	if err := h.bind(r, &query); err != nil {
		return reports.CustomerBillingReport{}, err
	}
	filter, err := query.filter()
	if err != nil {
		return reports.CustomerBillingReport{}, err
	}
	return h.service.CustomerBilling(ctx, filter)
}

func (h *Handler) document(ctx context.Context, name string, r *http.Request) (export.Document, error) {
	var (
		value interface{}
		err   error
	)
	switch name {
	case reports.ReportUnpaidBills:
		value, err = h.unpaid(ctx, r)
	case reports.ReportMonthlyRevenue:
		value, err = h.revenue(ctx, r)
	case reports.ReportTopConsumers:
		value, err = h.consumers(ctx, r)
	case reports.ReportCustomerBilling:
		value, err = h.customerBilling(ctx, r)
	default:
		return export.Document{}, errUnknownReport
	}
	if err != nil {
		return export.Document{}, err
	}
	return export.Build(value)
}

func (h *Handler) bind(r *http.Request, dest interface{}) error {
	bindQuery(r.URL.Query(), dest)
	return h.validator.Struct(dest)
}

func (h *Handler) filename(report, ext string) string {
	return fmt.Sprintf("%s-%s.%s", report, h.now().Format("20060102"), ext)
}

func (h *Handler) respond(w http.ResponseWriter, op string, report interface{}, err error) {
	if err != nil {
		h.handleReportError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleReportError(w http.ResponseWriter, op string, err error) {
	var (
		fieldErrs validator.ValidationErrors
		filterErr *reports.FilterError
	)
	switch {
	case errors.As(err, &fieldErrs):
		fields := make(map[string]string, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
		httpx.ValidationProblem(w, "invalid report filter", fields)
	case errors.As(err, &filterErr):
		httpx.ValidationProblem(w, "invalid report filter", map[string]string{filterErr.Field: filterErr.Reason})
	case errors.Is(err, errUnknownReport):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown report")
	case errors.Is(err, reports.ErrDataSourceUnavailable):
		h.logError(op, err)
		httpx.RespondError(w, fmt.Errorf("billing data source: %w", httpx.ErrUnavailable))
	case errors.Is(err, context.Canceled):
		httpx.Problem(w, statusClientClosedRequest, "Client Closed Request", "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		h.logError(op, err)
		httpx.Problem(w, http.StatusGatewayTimeout, "Gateway Timeout", "report took too long")
	default:
		h.handleServerError(w, op, err)
	}
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	httpx.RespondError(w, err)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}
