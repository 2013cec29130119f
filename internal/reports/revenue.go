package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

// RevenueRow totals one utility type for one billing month.
type RevenueRow struct {
	YearMonth         string              `json:"yearMonth"`
	UtilityType       billing.UtilityType `json:"utilityType"`
	BillCount         int                 `json:"billCount"`
	TotalBilled       decimal.Decimal     `json:"totalBilled"`
	TotalPaid         decimal.Decimal     `json:"totalPaid"`
	OutstandingAmount decimal.Decimal     `json:"outstandingAmount"`
}

// RevenueSummary totals every row of the report.
type RevenueSummary struct {
	TotalBilled      decimal.Decimal `json:"totalBilled"`
	TotalPaid        decimal.Decimal `json:"totalPaid"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	CollectionRate   decimal.Decimal `json:"collectionRate"`
}

// RevenueReport is the monthly revenue view. ChartData holds paid amounts.
type RevenueReport struct {
	Summary        RevenueSummary `json:"summary"`
	Revenue        []RevenueRow   `json:"revenue"`
	ChartData      []ChartRow     `json:"chartData"`
	SkippedRecords int            `json:"skippedRecords"`
}

type revenueKey struct {
	month   string
	utility billing.UtilityType
}

// AggregateMonthlyRevenue groups bills by billing month and utility type.
// Rows are ordered by month, then by the fixed utility order.
func AggregateMonthlyRevenue(bills []billing.Bill, filter RevenueFilter) (RevenueReport, error) {
	if err := filter.Validate(); err != nil {
		return RevenueReport{}, err
	}
	report := RevenueReport{
		Revenue:   []RevenueRow{},
		ChartData: []ChartRow{},
	}
	groups := make(map[revenueKey]*RevenueRow)
	for _, bill := range bills {
		if !bill.Valid() {
			report.SkippedRecords++
			continue
		}
		if !inMonthRange(bill.BillingMonth, filter.StartMonth, filter.EndMonth) {
			continue
		}
		if filter.UtilityType != nil && bill.UtilityType != *filter.UtilityType {
			continue
		}
		key := revenueKey{month: bill.BillingMonth, utility: bill.UtilityType}
		row, ok := groups[key]
		if !ok {
			row = &RevenueRow{YearMonth: key.month, UtilityType: key.utility}
			groups[key] = row
		}
		row.BillCount++
		row.TotalBilled = row.TotalBilled.Add(bill.BilledAmount)
		row.TotalPaid = row.TotalPaid.Add(bill.PaidAmount)
	}

	for _, row := range groups {
		row.OutstandingAmount = row.TotalBilled.Sub(row.TotalPaid)
		report.Revenue = append(report.Revenue, *row)
	}
	sort.Slice(report.Revenue, func(i, j int) bool {
		a, b := report.Revenue[i], report.Revenue[j]
		if a.YearMonth != b.YearMonth {
			return a.YearMonth < b.YearMonth
		}
		return a.UtilityType.Order() < b.UtilityType.Order()
	})

	keys := billing.UtilityTypes
	if filter.UtilityType != nil {
		keys = []billing.UtilityType{*filter.UtilityType}
	}
	summary := RevenueSummary{TotalBilled: decimal.Zero, TotalPaid: decimal.Zero}
	for _, row := range report.Revenue {
		summary.TotalBilled = summary.TotalBilled.Add(row.TotalBilled)
		summary.TotalPaid = summary.TotalPaid.Add(row.TotalPaid)
		last := len(report.ChartData) - 1
		if last < 0 || report.ChartData[last].YearMonth != row.YearMonth {
			chartRow, err := NewChartRow(row.YearMonth, keys)
			if err != nil {
				return RevenueReport{}, err
			}
			report.ChartData = append(report.ChartData, chartRow)
			last++
		}
		if err := report.ChartData[last].Add(row.UtilityType, row.TotalPaid); err != nil {
			return RevenueReport{}, err
		}
	}
	summary.TotalOutstanding = summary.TotalBilled.Sub(summary.TotalPaid)
	summary.CollectionRate = percentage(summary.TotalPaid, summary.TotalBilled)
	report.Summary = summary
	return report, nil
}
