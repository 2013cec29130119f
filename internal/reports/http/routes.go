package reportshttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-utility/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-utility/internal/shared"
)

// MountRoutes registers the report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached, retry later")
		}),
	)

	r.Get("/unpaid-bills", h.handleUnpaid)
	r.Get("/monthly-revenue", h.handleRevenue)
	r.Get("/top-consumers", h.handleConsumers)
	r.Get("/customer-billing", h.handleCustomerBilling)
	r.Post("/refresh", h.handleRefresh)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/{report}/export.csv", h.handleCSV)
		gr.Get("/{report}/export.pdf", h.handlePDF)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if user := strings.TrimSpace(sess.User()); user != "" {
			return "user:" + user, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
