package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Snapshot is a full set of billing records, used for fixtures and the memory backend.
type Snapshot struct {
	Customers     []Customer     `json:"customers"`
	Bills         []Bill         `json:"bills"`
	Payments      []Payment      `json:"payments"`
	MeterReadings []MeterReading `json:"meterReadings"`
}

// MemorySource serves a Snapshot from memory. Every call returns fresh slices.
type MemorySource struct {
	mu   sync.RWMutex
	data Snapshot
}

// NewMemorySource wraps the provided snapshot.
func NewMemorySource(snapshot Snapshot) *MemorySource {
	return &MemorySource{data: snapshot}
}

// LoadMemorySource reads a JSON snapshot from disk.
func LoadMemorySource(path string) (*MemorySource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("billing: read fixtures: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("billing: decode fixtures: %w", err)
	}
	return NewMemorySource(snapshot), nil
}

// Replace swaps the served snapshot.
func (m *MemorySource) Replace(snapshot Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = snapshot
}

func (m *MemorySource) ListBills(ctx context.Context, filter BillFilter) ([]Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Bill, 0, len(m.data.Bills))
	for _, bill := range m.data.Bills {
		if filter.UtilityType != nil && bill.UtilityType != *filter.UtilityType {
			continue
		}
		if filter.FromMonth != "" && bill.BillingMonth < filter.FromMonth {
			continue
		}
		if filter.ToMonth != "" && bill.BillingMonth > filter.ToMonth {
			continue
		}
		if filter.UnpaidOnly && bill.Status == BillPaid {
			continue
		}
		out = append(out, bill)
	}
	return out, nil
}

func (m *MemorySource) ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Payment, 0, len(m.data.Payments))
	for _, payment := range m.data.Payments {
		if filter.CustomerID != nil && payment.CustomerID != *filter.CustomerID {
			continue
		}
		out = append(out, payment)
	}
	return out, nil
}

func (m *MemorySource) ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Customer, 0, len(m.data.Customers))
	for _, customer := range m.data.Customers {
		if filter.Type != nil && customer.Type != *filter.Type {
			continue
		}
		out = append(out, customer)
	}
	return out, nil
}

func (m *MemorySource) ListMeterReadings(ctx context.Context, filter ReadingFilter) ([]MeterReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MeterReading, 0, len(m.data.MeterReadings))
	for _, reading := range m.data.MeterReadings {
		if filter.UtilityType != nil && reading.UtilityType != *filter.UtilityType {
			continue
		}
		month := reading.ReadingDate.Format(MonthLayout)
		if filter.FromMonth != "" && month < filter.FromMonth {
			continue
		}
		if filter.ToMonth != "" && month > filter.ToMonth {
			continue
		}
		out = append(out, reading)
	}
	return out, nil
}
