package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UtilityType identifies the metered service a bill or reading belongs to.
type UtilityType string

const (
	UtilityElectricity UtilityType = "Electricity"
	UtilityWater       UtilityType = "Water"
	UtilityGas         UtilityType = "Gas"
)

// UtilityTypes lists utility types in their fixed presentation order.
var UtilityTypes = []UtilityType{UtilityElectricity, UtilityWater, UtilityGas}

// Order returns the position of the utility type in the presentation order.
// Unknown types sort last.
func (u UtilityType) Order() int {
	for i, candidate := range UtilityTypes {
		if candidate == u {
			return i
		}
	}
	return len(UtilityTypes)
}

// Valid reports whether u is a known utility type.
func (u UtilityType) Valid() bool {
	return u.Order() < len(UtilityTypes)
}

// DefaultUnit is the consumption unit assumed when a reading carries none.
func (u UtilityType) DefaultUnit() string {
	switch u {
	case UtilityElectricity:
		return "kWh"
	case UtilityWater, UtilityGas:
		return "m3"
	default:
		return ""
	}
}

// ParseUtilityType resolves a utility type case-insensitively.
func ParseUtilityType(raw string) (UtilityType, error) {
	value := strings.TrimSpace(raw)
	for _, candidate := range UtilityTypes {
		if strings.EqualFold(string(candidate), value) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("billing: unknown utility type %q", raw)
}

// CustomerType classifies customers for segmentation.
type CustomerType string

const (
	CustomerHousehold  CustomerType = "Household"
	CustomerBusiness   CustomerType = "Business"
	CustomerGovernment CustomerType = "Government"
)

// CustomerTypes lists all customer types.
var CustomerTypes = []CustomerType{CustomerHousehold, CustomerBusiness, CustomerGovernment}

// Valid reports whether c is a known customer type.
func (c CustomerType) Valid() bool {
	for _, candidate := range CustomerTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCustomerType resolves a customer type case-insensitively.
func ParseCustomerType(raw string) (CustomerType, error) {
	value := strings.TrimSpace(raw)
	for _, candidate := range CustomerTypes {
		if strings.EqualFold(string(candidate), value) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("billing: unknown customer type %q", raw)
}

// BillStatus tracks settlement of a bill.
type BillStatus string

const (
	BillPaid          BillStatus = "Paid"
	BillPartiallyPaid BillStatus = "PartiallyPaid"
	BillUnpaid        BillStatus = "Unpaid"
)

// Valid reports whether s is a known settlement status.
func (s BillStatus) Valid() bool {
	switch s {
	case BillPaid, BillPartiallyPaid, BillUnpaid:
		return true
	}
	return false
}

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentCard   PaymentMethod = "Card"
	PaymentOnline PaymentMethod = "Online"
	PaymentCheque PaymentMethod = "Cheque"
)

// MonthLayout is the layout of billing months (zero padded, lexicographically ordered).
const MonthLayout = "2006-01"

// ValidMonth reports whether s is a well-formed YYYY-MM month.
func ValidMonth(s string) bool {
	if len(s) != len(MonthLayout) {
		return false
	}
	_, err := time.Parse(MonthLayout, s)
	return err == nil
}

// Bill is a billing-period charge for one utility type to one customer.
type Bill struct {
	ID           int64           `json:"id"`
	CustomerID   int64           `json:"customerId"`
	UtilityType  UtilityType     `json:"utilityType"`
	BillingMonth string          `json:"billingMonth"`
	BilledAmount decimal.Decimal `json:"billedAmount"`
	PaidAmount   decimal.Decimal `json:"paidAmount"`
	DueDate      time.Time       `json:"dueDate"`
	IssueDate    time.Time       `json:"issueDate"`
	Status       BillStatus      `json:"status"`
}

// Outstanding returns the unpaid remainder of the bill.
func (b Bill) Outstanding() decimal.Decimal {
	return b.BilledAmount.Sub(b.PaidAmount)
}

// Valid reports whether the bill carries every field aggregation depends on.
func (b Bill) Valid() bool {
	if b.CustomerID <= 0 || !b.UtilityType.Valid() || !ValidMonth(b.BillingMonth) || !b.Status.Valid() {
		return false
	}
	if b.DueDate.IsZero() {
		return false
	}
	if b.BilledAmount.IsNegative() || b.PaidAmount.IsNegative() {
		return false
	}
	return b.PaidAmount.LessThanOrEqual(b.BilledAmount)
}

// Payment is a settlement applied against a bill.
type Payment struct {
	ID         int64           `json:"id"`
	BillID     int64           `json:"billId"`
	CustomerID int64           `json:"customerId"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	PaidAt     time.Time       `json:"paidAt"`
}

// Valid reports whether the payment can be attributed to a customer.
func (p Payment) Valid() bool {
	return p.CustomerID > 0 && p.BillID > 0 && !p.PaidAt.IsZero() && p.Amount.IsPositive()
}

// Customer is an account holder.
type Customer struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Type   CustomerType `json:"type"`
	Status string       `json:"status"`
}

// MeterReading records consumption measured on a customer's meter.
type MeterReading struct {
	ID               int64           `json:"id"`
	MeterID          int64           `json:"meterId"`
	CustomerID       int64           `json:"customerId"`
	UtilityType      UtilityType     `json:"utilityType"`
	ConsumptionValue decimal.Decimal `json:"consumptionValue"`
	Unit             string          `json:"unit"`
	ReadingDate      time.Time       `json:"readingDate"`
}

// Valid reports whether the reading can be attributed and summed.
func (m MeterReading) Valid() bool {
	if m.CustomerID <= 0 || !m.UtilityType.Valid() || m.ReadingDate.IsZero() {
		return false
	}
	return !m.ConsumptionValue.IsNegative()
}
