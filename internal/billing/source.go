package billing

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by sources that were shut down.
var ErrSourceClosed = errors.New("billing: data source closed")

// BillFilter narrows bill listings. Zero values mean "no restriction".
type BillFilter struct {
	UtilityType *UtilityType
	FromMonth   string
	ToMonth     string
	UnpaidOnly  bool
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	CustomerID *int64
}

// CustomerFilter narrows customer listings.
type CustomerFilter struct {
	Type *CustomerType
}

// ReadingFilter narrows meter reading listings. Months are inclusive YYYY-MM bounds
// applied to the reading date.
type ReadingFilter struct {
	UtilityType *UtilityType
	FromMonth   string
	ToMonth     string
}

// DataSource exposes read access to billing records owned by an external store.
// Filters are push-down hints: callers must not rely on them for correctness.
type DataSource interface {
	ListBills(ctx context.Context, filter BillFilter) ([]Bill, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)
	ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, error)
	ListMeterReadings(ctx context.Context, filter ReadingFilter) ([]MeterReading, error)
}
