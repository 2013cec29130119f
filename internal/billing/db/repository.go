// Package billingdb implements the billing DataSource on PostgreSQL.
package billingdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository reads billing records. Numeric columns are selected as text so
// amounts round-trip into decimal.Decimal without float conversion.
type Repository struct {
	db dbtx
}

// New constructs a Repository over a pool or transaction.
func New(db dbtx) *Repository {
	return &Repository{db: db}
}

var _ billing.DataSource = (*Repository)(nil)

type whereBuilder struct {
	conditions []string
	args       []interface{}
}

func (w *whereBuilder) add(format string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) clause() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

func (r *Repository) ListBills(ctx context.Context, filter billing.BillFilter) ([]billing.Bill, error) {
	var where whereBuilder
	if filter.UtilityType != nil {
		where.add("utility_type = $%d", string(*filter.UtilityType))
	}
	if filter.FromMonth != "" {
		where.add("billing_month >= $%d", filter.FromMonth)
	}
	if filter.ToMonth != "" {
		where.add("billing_month <= $%d", filter.ToMonth)
	}
	if filter.UnpaidOnly {
		where.add("status <> $%d", string(billing.BillPaid))
	}
	query := `SELECT id, customer_id, utility_type, billing_month, billed_amount::text, paid_amount::text,
	       due_date, issue_date, status
	FROM bills` + where.clause() + ` ORDER BY id`

	rows, err := r.db.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("billingdb: list bills: %w", err)
	}
	defer rows.Close()

	var bills []billing.Bill
	for rows.Next() {
		var (
			bill               billing.Bill
			customerID         pgtype.Int8
			utility, month     pgtype.Text
			billed, paid       pgtype.Text
			dueDate, issueDate pgtype.Date
			status             pgtype.Text
		)
		if err := rows.Scan(&bill.ID, &customerID, &utility, &month, &billed, &paid, &dueDate, &issueDate, &status); err != nil {
			return nil, fmt.Errorf("billingdb: scan bill: %w", err)
		}
		bill.CustomerID = customerID.Int64
		bill.UtilityType = billing.UtilityType(utility.String)
		bill.BillingMonth = month.String
		bill.BilledAmount = parseDecimal(billed)
		bill.PaidAmount = parseDecimal(paid)
		bill.DueDate = dateValue(dueDate)
		bill.IssueDate = dateValue(issueDate)
		bill.Status = billing.BillStatus(status.String)
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

func (r *Repository) ListPayments(ctx context.Context, filter billing.PaymentFilter) ([]billing.Payment, error) {
	var where whereBuilder
	if filter.CustomerID != nil {
		where.add("customer_id = $%d", *filter.CustomerID)
	}
	query := `SELECT id, bill_id, customer_id, amount::text, method, paid_at FROM payments` + where.clause() + ` ORDER BY id`

	rows, err := r.db.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("billingdb: list payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		var (
			payment billing.Payment
			amount  pgtype.Text
			method  pgtype.Text
			paidAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&payment.ID, &payment.BillID, &payment.CustomerID, &amount, &method, &paidAt); err != nil {
			return nil, fmt.Errorf("billingdb: scan payment: %w", err)
		}
		payment.Amount = parseDecimal(amount)
		payment.Method = billing.PaymentMethod(method.String)
		if paidAt.Valid {
			payment.PaidAt = paidAt.Time.UTC()
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (r *Repository) ListCustomers(ctx context.Context, filter billing.CustomerFilter) ([]billing.Customer, error) {
	var where whereBuilder
	if filter.Type != nil {
		where.add("customer_type = $%d", string(*filter.Type))
	}
	query := `SELECT id, name, customer_type, status FROM customers` + where.clause() + ` ORDER BY id`

	rows, err := r.db.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("billingdb: list customers: %w", err)
	}
	defer rows.Close()

	var customers []billing.Customer
	for rows.Next() {
		var (
			customer billing.Customer
			kind     pgtype.Text
			status   pgtype.Text
		)
		if err := rows.Scan(&customer.ID, &customer.Name, &kind, &status); err != nil {
			return nil, fmt.Errorf("billingdb: scan customer: %w", err)
		}
		customer.Type = billing.CustomerType(kind.String)
		customer.Status = status.String
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

func (r *Repository) ListMeterReadings(ctx context.Context, filter billing.ReadingFilter) ([]billing.MeterReading, error) {
	var where whereBuilder
	if filter.UtilityType != nil {
		where.add("utility_type = $%d", string(*filter.UtilityType))
	}
	if filter.FromMonth != "" {
		where.add("to_char(reading_date, 'YYYY-MM') >= $%d", filter.FromMonth)
	}
	if filter.ToMonth != "" {
		where.add("to_char(reading_date, 'YYYY-MM') <= $%d", filter.ToMonth)
	}
	query := `SELECT id, meter_id, customer_id, utility_type, consumption_value::text, unit, reading_date
	FROM meter_readings` + where.clause() + ` ORDER BY id`

	rows, err := r.db.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("billingdb: list meter readings: %w", err)
	}
	defer rows.Close()

	var readings []billing.MeterReading
	for rows.Next() {
		var (
			reading     billing.MeterReading
			customerID  pgtype.Int8
			utility     pgtype.Text
			consumption pgtype.Text
			unit        pgtype.Text
			readingDate pgtype.Date
		)
		if err := rows.Scan(&reading.ID, &reading.MeterID, &customerID, &utility, &consumption, &unit, &readingDate); err != nil {
			return nil, fmt.Errorf("billingdb: scan meter reading: %w", err)
		}
		reading.CustomerID = customerID.Int64
		reading.UtilityType = billing.UtilityType(utility.String)
		reading.ConsumptionValue = parseDecimal(consumption)
		reading.Unit = unit.String
		reading.ReadingDate = dateValue(readingDate)
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

// parseDecimal maps NULL or unparsable numerics to a negative sentinel so the
// record fails validation instead of silently counting as zero.
func parseDecimal(v pgtype.Text) decimal.Decimal {
	if !v.Valid {
		return decimal.NewFromInt(-1)
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return decimal.NewFromInt(-1)
	}
	return d
}

func dateValue(v pgtype.Date) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return v.Time.UTC()
}
