// Package tariff resolves per-unit consumption rates used to price meter readings.
package tariff

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

type key struct {
	utility  billing.UtilityType
	customer billing.CustomerType
}

// Rate is a single tariff entry. An empty CustomerType applies to every
// customer type without a more specific entry.
type Rate struct {
	UtilityType  billing.UtilityType
	CustomerType billing.CustomerType
	PerUnit      decimal.Decimal
}

// Table is an immutable rate lookup.
type Table struct {
	rates map[key]decimal.Decimal
}

// NewTable builds a Table, rejecting negative rates and unknown utility types.
func NewTable(rates []Rate) (Table, error) {
	table := Table{rates: make(map[key]decimal.Decimal, len(rates))}
	for _, rate := range rates {
		if !rate.UtilityType.Valid() {
			return Table{}, fmt.Errorf("tariff: unknown utility type %q", rate.UtilityType)
		}
		if rate.CustomerType != "" && !rate.CustomerType.Valid() {
			return Table{}, fmt.Errorf("tariff: unknown customer type %q", rate.CustomerType)
		}
		if rate.PerUnit.IsNegative() {
			return Table{}, fmt.Errorf("tariff: negative rate for %s", rate.UtilityType)
		}
		table.rates[key{utility: rate.UtilityType, customer: rate.CustomerType}] = rate.PerUnit
	}
	return table, nil
}

// Lookup returns the rate for a utility and customer type, falling back to the
// utility-wide rate.
func (t Table) Lookup(utility billing.UtilityType, customer billing.CustomerType) (decimal.Decimal, bool) {
	if rate, ok := t.rates[key{utility: utility, customer: customer}]; ok {
		return rate, true
	}
	rate, ok := t.rates[key{utility: utility}]
	return rate, ok
}

// Len reports the number of entries.
func (t Table) Len() int {
	return len(t.rates)
}

// Rates lists entries ordered by utility then customer type.
func (t Table) Rates() []Rate {
	out := make([]Rate, 0, len(t.rates))
	for k, v := range t.rates {
		out = append(out, Rate{UtilityType: k.utility, CustomerType: k.customer, PerUnit: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UtilityType != out[j].UtilityType {
			return out[i].UtilityType.Order() < out[j].UtilityType.Order()
		}
		return out[i].CustomerType < out[j].CustomerType
	})
	return out
}

// ParseTable reads entries such as "Electricity:Household=0.145,Water=1.20".
func ParseTable(raw string) (Table, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Table{}, nil
	}
	var rates []Rate
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, found := strings.Cut(entry, "=")
		if !found {
			return Table{}, fmt.Errorf("tariff: entry %q missing '='", entry)
		}
		utilityRaw, customerRaw, scoped := strings.Cut(name, ":")
		utility, err := billing.ParseUtilityType(utilityRaw)
		if err != nil {
			return Table{}, fmt.Errorf("tariff: entry %q: %w", entry, err)
		}
		rate := Rate{UtilityType: utility}
		if scoped {
			customer, err := billing.ParseCustomerType(customerRaw)
			if err != nil {
				return Table{}, fmt.Errorf("tariff: entry %q: %w", entry, err)
			}
			rate.CustomerType = customer
		}
		perUnit, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return Table{}, fmt.Errorf("tariff: entry %q: invalid rate: %w", entry, err)
		}
		rate.PerUnit = perUnit
		rates = append(rates, rate)
	}
	return NewTable(rates)
}

// Source supplies the current rate table.
type Source interface {
	Rates(ctx context.Context) (Table, error)
}

// StaticSource serves a fixed table.
type StaticSource struct {
	Table Table
}

// Rates implements Source.
func (s StaticSource) Rates(context.Context) (Table, error) {
	return s.Table, nil
}

// Chain returns the first table with entries, consulting sources in order.
type Chain []Source

// Rates implements Source.
func (c Chain) Rates(ctx context.Context) (Table, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		table, err := src.Rates(ctx)
		if err != nil {
			return Table{}, err
		}
		if table.Len() > 0 {
			return table, nil
		}
	}
	return Table{}, nil
}
