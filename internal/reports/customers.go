package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

// CustomerBilling aggregates a customer's bills and payments.
type CustomerBilling struct {
	CustomerID         int64                `json:"customerId"`
	CustomerName       string               `json:"customerName"`
	CustomerType       billing.CustomerType `json:"customerType"`
	BillCount          int                  `json:"billCount"`
	TotalBilled        decimal.Decimal      `json:"totalBilled"`
	TotalPaid          decimal.Decimal      `json:"totalPaid"`
	OutstandingBalance decimal.Decimal      `json:"outstandingBalance"`
	PaymentCount       int                  `json:"paymentCount"`
	LastPaymentAt      *time.Time           `json:"lastPaymentAt,omitempty"`
}

// CustomerBillingSummary totals the listed customers.
type CustomerBillingSummary struct {
	TotalCustomers   int             `json:"totalCustomers"`
	TotalBilled      decimal.Decimal `json:"totalBilled"`
	TotalPaid        decimal.Decimal `json:"totalPaid"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
}

// CustomerBillingReport is the per-customer billing view.
type CustomerBillingReport struct {
	Summary        CustomerBillingSummary `json:"summary"`
	Customers      []CustomerBilling      `json:"customers"`
	SkippedRecords int                    `json:"skippedRecords"`
}

// SummarizeCustomerBilling totals billed and paid amounts per customer.
// Customers without bills are listed with zero totals. Bills referencing an
// unknown customer are listed under that id unless a customer type filter
// applies.
func SummarizeCustomerBilling(bills []billing.Bill, customers []billing.Customer, payments []billing.Payment, filter CustomerBillingFilter) (CustomerBillingReport, error) {
	if err := filter.Validate(); err != nil {
		return CustomerBillingReport{}, err
	}
	filter = filter.normalized()
	report := CustomerBillingReport{Customers: []CustomerBilling{}}

	rows := make(map[int64]*CustomerBilling)
	for _, customer := range customers {
		if filter.CustomerType != nil && customer.Type != *filter.CustomerType {
			continue
		}
		rows[customer.ID] = &CustomerBilling{
			CustomerID:   customer.ID,
			CustomerName: customer.Name,
			CustomerType: customer.Type,
		}
	}
	for _, bill := range bills {
		if !bill.Valid() {
			report.SkippedRecords++
			continue
		}
		row, ok := rows[bill.CustomerID]
		if !ok {
			if filter.CustomerType != nil {
				continue
			}
			row = &CustomerBilling{CustomerID: bill.CustomerID}
			rows[bill.CustomerID] = row
		}
		row.BillCount++
		row.TotalBilled = row.TotalBilled.Add(bill.BilledAmount)
		row.TotalPaid = row.TotalPaid.Add(bill.PaidAmount)
	}
	for _, payment := range payments {
		if !payment.Valid() {
			report.SkippedRecords++
			continue
		}
		row, ok := rows[payment.CustomerID]
		if !ok {
			continue
		}
		row.PaymentCount++
		if row.LastPaymentAt == nil || payment.PaidAt.After(*row.LastPaymentAt) {
			paidAt := payment.PaidAt
			row.LastPaymentAt = &paidAt
		}
	}

	summary := CustomerBillingSummary{TotalBilled: decimal.Zero, TotalPaid: decimal.Zero}
	for _, row := range rows {
		row.OutstandingBalance = row.TotalBilled.Sub(row.TotalPaid)
		if filter.MinOutstanding != nil && row.OutstandingBalance.LessThan(*filter.MinOutstanding) {
			continue
		}
		report.Customers = append(report.Customers, *row)
		summary.TotalBilled = summary.TotalBilled.Add(row.TotalBilled)
		summary.TotalPaid = summary.TotalPaid.Add(row.TotalPaid)
	}
	sortCustomerBilling(report.Customers, filter.SortBy, filter.SortOrder)

	summary.TotalCustomers = len(report.Customers)
	summary.TotalOutstanding = summary.TotalBilled.Sub(summary.TotalPaid)
	report.Summary = summary
	return report, nil
}

// sortCustomerBilling orders rows by field; ties always fall back to ascending customer id.
func sortCustomerBilling(rows []CustomerBilling, field SortField, order SortOrder) {
	compare := func(a, b CustomerBilling) int {
		switch field {
		case SortByCustomerName:
			switch {
			case a.CustomerName < b.CustomerName:
				return -1
			case a.CustomerName > b.CustomerName:
				return 1
			}
			return 0
		case SortByTotalBilled:
			return a.TotalBilled.Cmp(b.TotalBilled)
		case SortByTotalPaid:
			return a.TotalPaid.Cmp(b.TotalPaid)
		default:
			return a.OutstandingBalance.Cmp(b.OutstandingBalance)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		cmp := compare(rows[i], rows[j])
		if cmp == 0 {
			return rows[i].CustomerID < rows[j].CustomerID
		}
		if order == SortAsc {
			return cmp < 0
		}
		return cmp > 0
	})
}
