package perf

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

// synthSnapshot builds a deterministic snapshot with one bill and one reading
// per customer, utility and month.
func synthSnapshot(customers, months int) billing.Snapshot {
	var snap billing.Snapshot
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	var billID, paymentID, readingID int64
	for c := 1; c <= customers; c++ {
		ctype := billing.CustomerTypes[c%len(billing.CustomerTypes)]
		snap.Customers = append(snap.Customers, billing.Customer{ID: int64(c), Name: fmt.Sprintf("Customer %05d", c), Type: ctype, Status: "Active"})
		for m := 0; m < months; m++ {
			month := start.AddDate(0, m, 0)
			for u, utility := range billing.UtilityTypes {
				billID++
				readingID++
				consumption := decimal.NewFromInt(int64(50 + (c*7+m*13+u*29)%400))
				billed := consumption.Mul(decimal.RequireFromString("1.25"))
				paid := decimal.Zero
				status := billing.BillUnpaid
				switch (c + m + u) % 4 {
				case 0, 1:
					paid, status = billed, billing.BillPaid
				case 2:
					paid, status = billed.Div(decimal.NewFromInt(2)).Round(2), billing.BillPartiallyPaid
				}
				snap.Bills = append(snap.Bills, billing.Bill{
					ID: billID, CustomerID: int64(c), UtilityType: utility,
					BillingMonth: month.Format(billing.MonthLayout),
					BilledAmount: billed, PaidAmount: paid,
					IssueDate: month.AddDate(0, 1, 0), DueDate: month.AddDate(0, 1, 14),
					Status: status,
				})
				if paid.IsPositive() {
					paymentID++
					snap.Payments = append(snap.Payments, billing.Payment{
						ID: paymentID, BillID: billID, CustomerID: int64(c), Amount: paid,
						Method: billing.PaymentOnline, PaidAt: month.AddDate(0, 1, 10),
					})
				}
				snap.MeterReadings = append(snap.MeterReadings, billing.MeterReading{
					ID: readingID, MeterID: int64(c*10 + u), CustomerID: int64(c), UtilityType: utility,
					ConsumptionValue: consumption, Unit: utility.DefaultUnit(), ReadingDate: month.AddDate(0, 0, 27),
				})
			}
		}
	}
	return snap
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
