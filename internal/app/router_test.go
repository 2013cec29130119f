package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-utility/internal/auth"
	"github.com/odyssey-erp/odyssey-utility/internal/billing"
	"github.com/odyssey-erp/odyssey-utility/internal/observability"
	"github.com/odyssey-erp/odyssey-utility/internal/reports"
	reportshttp "github.com/odyssey-erp/odyssey-utility/internal/reports/http"
	"github.com/odyssey-erp/odyssey-utility/internal/shared"
	_ "github.com/odyssey-erp/odyssey-utility/testing"
)

type routerFixture struct {
	handler http.Handler
	redis   *miniredis.Miniredis
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{
		AppEnv:             "development",
		AppRequestTimeout:  5 * time.Second,
		CORSAllowedOrigins: []string{"https://billing.example.com"},
	}
	sessions := shared.NewSessionManager(client, "utility_session", "test-secret", time.Hour, false)

	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	users := auth.NewMemoryRepository(auth.User{ID: 1, Email: "ops@utility.local", Name: "Ops", PasswordHash: hash, IsActive: true})

	amount := decimal.RequireFromString
	source := billing.NewMemorySource(billing.Snapshot{
		Customers: []billing.Customer{{ID: 1, Name: "Ayu Lestari", Type: billing.CustomerHousehold, Status: "Active"}},
		Bills: []billing.Bill{{
			ID: 1, CustomerID: 1, UtilityType: billing.UtilityWater, BillingMonth: "2024-04",
			BilledAmount: amount("120"), PaidAmount: amount("0"),
			DueDate: time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC), Status: billing.BillUnpaid,
		}},
	})
	metrics := observability.NewMetrics()
	service := reports.NewService(source, reports.NewCache(client, time.Minute),
		reports.WithRecorder(metrics),
		reports.WithLogger(logger),
		reports.WithClock(func() time.Time { return time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC) }),
	)

	handler := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		AuthHandler:    auth.NewHandler(logger, auth.NewService(users), sessions),
		ReportsHandler: reportshttp.NewHandler(logger, service, nil),
		Metrics:        metrics,
	})
	return routerFixture{handler: handler, redis: mr}
}

func (f routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f routerFixture) login(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"ops@utility.local","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.NotEmpty(t, payload.Token)
	return payload.Token
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestReportsRequireSession(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports/unpaid-bills", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestReportsWithBearerToken(t *testing.T) {
	f := newRouterFixture(t)
	token := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/unpaid-bills", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Summary struct {
			TotalUnpaidBills int     `json:"totalUnpaidBills"`
			TotalAmount      float64 `json:"totalAmount"`
		} `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, 1, body.Summary.TotalUnpaidBills)
	require.Equal(t, float64(120), body.Summary.TotalAmount)
}

func TestExpiredTokenClearsCookie(t *testing.T) {
	f := newRouterFixture(t)
	token := f.login(t)
	f.redis.FastForward(2 * time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/unpaid-bills", nil)
	req.AddCookie(&http.Cookie{Name: "utility_session", Value: token})
	rec := f.do(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "utility_session", cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Less(t, cookies[0].MaxAge, 0)
}

func TestSessionStoreOutageReturns503(t *testing.T) {
	f := newRouterFixture(t)
	f.redis.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/reports/unpaid-bills", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	rec := f.do(req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/reports/unpaid-bills", nil)
	req.Header.Set("Origin", "https://billing.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := f.do(req)
	require.Equal(t, "https://billing.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	other := httptest.NewRequest(http.MethodOptions, "/api/reports/unpaid-bills", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	other.Header.Set("Access-Control-Request-Method", http.MethodGet)
	otherRec := f.do(other)
	require.Empty(t, otherRec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpointExposesReportSeries(t *testing.T) {
	f := newRouterFixture(t)
	token := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/unpaid-bills", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, f.do(req).Code)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "unpaid-bills")
}

func TestUnknownRouteIsProblem(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
