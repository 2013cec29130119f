package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

// UnpaidBill is an overdue bill annotated for display.
type UnpaidBill struct {
	ID                int64               `json:"id"`
	CustomerID        int64               `json:"customerId"`
	CustomerName      string              `json:"customerName"`
	UtilityType       billing.UtilityType `json:"utilityType"`
	BillingMonth      string              `json:"billingMonth"`
	BilledAmount      decimal.Decimal     `json:"billedAmount"`
	PaidAmount        decimal.Decimal     `json:"paidAmount"`
	OutstandingAmount decimal.Decimal     `json:"outstandingAmount"`
	DueDate           string              `json:"dueDate"`
	Status            billing.BillStatus  `json:"status"`
	DaysOverdue       int                 `json:"daysOverdue"`
}

// UnpaidSummary totals the overdue bills.
type UnpaidSummary struct {
	TotalUnpaidBills int             `json:"totalUnpaidBills"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	AvgDaysOverdue   int             `json:"avgDaysOverdue"`
}

// UtilityAmount is one slice of a per-utility breakdown.
type UtilityAmount struct {
	UtilityType billing.UtilityType `json:"utilityType"`
	Amount      decimal.Decimal     `json:"amount"`
}

// UnpaidBillsReport is the overdue bills view.
type UnpaidBillsReport struct {
	AsOf           string          `json:"asOf"`
	Summary        UnpaidSummary   `json:"summary"`
	ChartData      []UtilityAmount `json:"chartData"`
	Bills          []UnpaidBill    `json:"bills"`
	SkippedRecords int             `json:"skippedRecords"`
}

// SummarizeUnpaidBills selects bills that are not paid and past due as of
// today, then totals their outstanding amounts overall and per utility type.
// Bills are ordered by days overdue, longest first.
func SummarizeUnpaidBills(bills []billing.Bill, customers []billing.Customer, filter UnpaidFilter, today time.Time) (UnpaidBillsReport, error) {
	if err := filter.Validate(); err != nil {
		return UnpaidBillsReport{}, err
	}
	report := UnpaidBillsReport{
		AsOf:      today.Format(DateLayout),
		ChartData: []UtilityAmount{},
		Bills:     []UnpaidBill{},
	}
	names := indexCustomers(customers)
	todayDay := dayNumber(today)
	byUtility := make(map[billing.UtilityType]decimal.Decimal)
	total := decimal.Zero
	var daysSum int64

	for _, bill := range bills {
		if !bill.Valid() {
			report.SkippedRecords++
			continue
		}
		if bill.Status == billing.BillPaid {
			continue
		}
		days := int(todayDay - dayNumber(bill.DueDate))
		if days <= 0 {
			continue
		}
		if filter.UtilityType != nil && bill.UtilityType != *filter.UtilityType {
			continue
		}
		if filter.MinDaysOverdue != nil && days < *filter.MinDaysOverdue {
			continue
		}
		outstanding := bill.Outstanding()
		report.Bills = append(report.Bills, UnpaidBill{
			ID:                bill.ID,
			CustomerID:        bill.CustomerID,
			CustomerName:      names[bill.CustomerID].Name,
			UtilityType:       bill.UtilityType,
			BillingMonth:      bill.BillingMonth,
			BilledAmount:      bill.BilledAmount,
			PaidAmount:        bill.PaidAmount,
			OutstandingAmount: outstanding,
			DueDate:           bill.DueDate.Format(DateLayout),
			Status:            bill.Status,
			DaysOverdue:       days,
		})
		total = total.Add(outstanding)
		byUtility[bill.UtilityType] = byUtility[bill.UtilityType].Add(outstanding)
		daysSum += int64(days)
	}

	sort.SliceStable(report.Bills, func(i, j int) bool {
		a, b := report.Bills[i], report.Bills[j]
		if a.DaysOverdue != b.DaysOverdue {
			return a.DaysOverdue > b.DaysOverdue
		}
		return a.ID < b.ID
	})
	for _, utility := range billing.UtilityTypes {
		amount, ok := byUtility[utility]
		if !ok {
			continue
		}
		report.ChartData = append(report.ChartData, UtilityAmount{UtilityType: utility, Amount: amount})
	}
	report.Summary = UnpaidSummary{
		TotalUnpaidBills: len(report.Bills),
		TotalAmount:      total,
		AvgDaysOverdue:   roundedMean(daysSum, len(report.Bills)),
	}
	return report, nil
}
