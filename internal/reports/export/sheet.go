// Package export renders reports as CSV sheets and PDF documents.
package export

import (
	"fmt"
	"strconv"

	"github.com/odyssey-erp/odyssey-utility/internal/reports"
)

// ColumnKind controls how a cell is formatted in PDF output.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindAmount
	KindQuantity
	KindInteger
)

// Column describes one sheet column.
type Column struct {
	Title string
	Kind  ColumnKind
}

// Sheet is a titled table of raw cell values. Numeric cells hold decimal strings.
type Sheet struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

// Document groups the sheets of one report.
type Document struct {
	Report string
	Title  string
	Sheets []Sheet
}

// Build converts a report value into a Document.
func Build(value interface{}) (Document, error) {
	switch report := value.(type) {
	case reports.UnpaidBillsReport:
		return unpaidDocument(report), nil
	case reports.RevenueReport:
		return revenueDocument(report), nil
	case reports.TopConsumersReport:
		return consumersDocument(report), nil
	case reports.CustomerBillingReport:
		return customerBillingDocument(report), nil
	default:
		return Document{}, fmt.Errorf("export: unsupported report %T", value)
	}
}

func unpaidDocument(report reports.UnpaidBillsReport) Document {
	summary := Sheet{
		Title:   "Summary",
		Columns: []Column{{Title: "Metric"}, {Title: "Value"}},
		Rows: [][]string{
			{"As Of", report.AsOf},
			{"Total Unpaid Bills", strconv.Itoa(report.Summary.TotalUnpaidBills)},
			{"Total Amount", report.Summary.TotalAmount.StringFixed(2)},
			{"Average Days Overdue", strconv.Itoa(report.Summary.AvgDaysOverdue)},
		},
	}
	byUtility := Sheet{
		Title:   "Outstanding by Utility",
		Columns: []Column{{Title: "Utility Type"}, {Title: "Amount", Kind: KindAmount}},
	}
	for _, slice := range report.ChartData {
		byUtility.Rows = append(byUtility.Rows, []string{string(slice.UtilityType), slice.Amount.StringFixed(2)})
	}
	bills := Sheet{
		Title: "Overdue Bills",
		Columns: []Column{
			{Title: "Bill ID"},
			{Title: "Customer"},
			{Title: "Utility Type"},
			{Title: "Billing Month"},
			{Title: "Due Date"},
			{Title: "Days Overdue", Kind: KindInteger},
			{Title: "Billed", Kind: KindAmount},
			{Title: "Paid", Kind: KindAmount},
			{Title: "Outstanding", Kind: KindAmount},
		},
	}
	for _, bill := range report.Bills {
		bills.Rows = append(bills.Rows, []string{
			strconv.FormatInt(bill.ID, 10),
			bill.CustomerName,
			string(bill.UtilityType),
			bill.BillingMonth,
			bill.DueDate,
			strconv.Itoa(bill.DaysOverdue),
			bill.BilledAmount.StringFixed(2),
			bill.PaidAmount.StringFixed(2),
			bill.OutstandingAmount.StringFixed(2),
		})
	}
	return Document{Report: reports.ReportUnpaidBills, Title: "Unpaid Bills", Sheets: []Sheet{summary, byUtility, bills}}
}

func revenueDocument(report reports.RevenueReport) Document {
	summary := Sheet{
		Title:   "Summary",
		Columns: []Column{{Title: "Metric"}, {Title: "Value"}},
		Rows: [][]string{
			{"Total Billed", report.Summary.TotalBilled.StringFixed(2)},
			{"Total Paid", report.Summary.TotalPaid.StringFixed(2)},
			{"Total Outstanding", report.Summary.TotalOutstanding.StringFixed(2)},
			{"Collection Rate (%)", report.Summary.CollectionRate.StringFixed(1)},
		},
	}
	rows := Sheet{
		Title: "Revenue by Month",
		Columns: []Column{
			{Title: "Month"},
			{Title: "Utility Type"},
			{Title: "Bills", Kind: KindInteger},
			{Title: "Billed", Kind: KindAmount},
			{Title: "Paid", Kind: KindAmount},
			{Title: "Outstanding", Kind: KindAmount},
		},
	}
	for _, row := range report.Revenue {
		rows.Rows = append(rows.Rows, []string{
			row.YearMonth,
			string(row.UtilityType),
			strconv.Itoa(row.BillCount),
			row.TotalBilled.StringFixed(2),
			row.TotalPaid.StringFixed(2),
			row.OutstandingAmount.StringFixed(2),
		})
	}
	return Document{Report: reports.ReportMonthlyRevenue, Title: "Monthly Revenue", Sheets: []Sheet{summary, rows}}
}

func consumersDocument(report reports.TopConsumersReport) Document {
	summary := Sheet{
		Title:   "Summary",
		Columns: []Column{{Title: "Metric"}, {Title: "Value"}},
		Rows: [][]string{
			{"Consumers", strconv.Itoa(report.Summary.TotalConsumers)},
			{"Total Consumption", report.Summary.TotalConsumption.String()},
			{"Average Consumption", report.Summary.AvgConsumption.String()},
		},
	}
	ranking := Sheet{
		Title: "Top Consumers",
		Columns: []Column{
			{Title: "Rank", Kind: KindInteger},
			{Title: "Customer"},
			{Title: "Customer Type"},
			{Title: "Utility Type"},
			{Title: "Consumption", Kind: KindQuantity},
			{Title: "Unit"},
			{Title: "Amount", Kind: KindAmount},
		},
	}
	for _, consumer := range report.Consumers {
		ranking.Rows = append(ranking.Rows, []string{
			strconv.Itoa(consumer.Rank),
			consumer.CustomerName,
			string(consumer.CustomerType),
			string(consumer.UtilityType),
			consumer.TotalConsumption.String(),
			consumer.Unit,
			consumer.TotalAmount.StringFixed(2),
		})
	}
	return Document{Report: reports.ReportTopConsumers, Title: "Top Consumers", Sheets: []Sheet{summary, ranking}}
}

func customerBillingDocument(report reports.CustomerBillingReport) Document {
	summary := Sheet{
		Title:   "Summary",
		Columns: []Column{{Title: "Metric"}, {Title: "Value"}},
		Rows: [][]string{
			{"Customers", strconv.Itoa(report.Summary.TotalCustomers)},
			{"Total Billed", report.Summary.TotalBilled.StringFixed(2)},
			{"Total Paid", report.Summary.TotalPaid.StringFixed(2)},
			{"Total Outstanding", report.Summary.TotalOutstanding.StringFixed(2)},
		},
	}
	customers := Sheet{
		Title: "Customers",
		Columns: []Column{
			{Title: "Customer ID"},
			{Title: "Customer"},
			{Title: "Customer Type"},
			{Title: "Bills", Kind: KindInteger},
			{Title: "Billed", Kind: KindAmount},
			{Title: "Paid", Kind: KindAmount},
			{Title: "Outstanding", Kind: KindAmount},
			{Title: "Payments", Kind: KindInteger},
			{Title: "Last Payment"},
		},
	}
	for _, row := range report.Customers {
		lastPayment := ""
		if row.LastPaymentAt != nil {
			lastPayment = row.LastPaymentAt.Format(reports.DateLayout)
		}
		customers.Rows = append(customers.Rows, []string{
			strconv.FormatInt(row.CustomerID, 10),
			row.CustomerName,
			string(row.CustomerType),
			strconv.Itoa(row.BillCount),
			row.TotalBilled.StringFixed(2),
			row.TotalPaid.StringFixed(2),
			row.OutstandingBalance.StringFixed(2),
			strconv.Itoa(row.PaymentCount),
			lastPayment,
		})
	}
	return Document{Report: reports.ReportCustomerBilling, Title: "Customer Billing", Sheets: []Sheet{summary, customers}}
}
