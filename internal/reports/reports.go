// Package reports derives the billing dashboard reports from snapshots of
// bills, payments, customers and meter readings. The aggregation functions
// are pure: they never mutate their inputs and take "today" as a parameter.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

// DateLayout formats calendar dates in report payloads.
const DateLayout = "2006-01-02"

func init() {
	// Report payloads carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

func indexCustomers(customers []billing.Customer) map[int64]billing.Customer {
	index := make(map[int64]billing.Customer, len(customers))
	for _, customer := range customers {
		index[customer.ID] = customer
	}
	return index
}

// dayNumber counts calendar days since the epoch for the date t carries in its
// own location, so comparisons ignore the time of day.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// roundedMean returns sum/n rounded half away from zero for non-negative sums.
func roundedMean(sum int64, n int) int {
	if n == 0 {
		return 0
	}
	return int((2*sum + int64(n)) / (2 * int64(n)))
}

func percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(decimal.NewFromInt(100)).Div(whole).Round(1)
}
