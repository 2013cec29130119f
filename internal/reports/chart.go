package reports

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

// ChartRow is a wide-format chart row: one value per utility type for a month.
// The key set is fixed when the row is built; every key starts at zero.
type ChartRow struct {
	YearMonth string
	keys      []billing.UtilityType
	values    map[billing.UtilityType]decimal.Decimal
}

// NewChartRow builds a row for the given utility types, in the order given.
func NewChartRow(yearMonth string, keys []billing.UtilityType) (ChartRow, error) {
	row := ChartRow{
		YearMonth: yearMonth,
		keys:      make([]billing.UtilityType, 0, len(keys)),
		values:    make(map[billing.UtilityType]decimal.Decimal, len(keys)),
	}
	for _, key := range keys {
		if !key.Valid() {
			return ChartRow{}, fmt.Errorf("reports: chart key %q is not a utility type", key)
		}
		if _, dup := row.values[key]; dup {
			return ChartRow{}, fmt.Errorf("reports: duplicate chart key %q", key)
		}
		row.keys = append(row.keys, key)
		row.values[key] = decimal.Zero
	}
	return row, nil
}

// Add accumulates amount under key.
func (r ChartRow) Add(key billing.UtilityType, amount decimal.Decimal) error {
	current, ok := r.values[key]
	if !ok {
		return fmt.Errorf("reports: chart key %q not in row", key)
	}
	r.values[key] = current.Add(amount)
	return nil
}

// Value returns the value stored under key, zero when absent.
func (r ChartRow) Value(key billing.UtilityType) decimal.Decimal {
	return r.values[key]
}

// Keys returns the row's utility types in presentation order.
func (r ChartRow) Keys() []billing.UtilityType {
	return append([]billing.UtilityType(nil), r.keys...)
}

// Total sums every value in the row.
func (r ChartRow) Total() decimal.Decimal {
	total := decimal.Zero
	for _, key := range r.keys {
		total = total.Add(r.values[key])
	}
	return total
}

// MarshalJSON flattens the row into {"yearMonth": ..., "<utility>": value}.
func (r ChartRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"yearMonth":`)
	month, err := json.Marshal(r.YearMonth)
	if err != nil {
		return nil, err
	}
	buf.Write(month)
	for _, key := range r.keys {
		name, err := json.Marshal(string(key))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a row, rejecting keys that are not utility types.
func (r *ChartRow) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	known := 0
	var month string
	if raw, ok := fields["yearMonth"]; ok {
		if err := json.Unmarshal(raw, &month); err != nil {
			return fmt.Errorf("reports: chart yearMonth: %w", err)
		}
		known++
	}
	var keys []billing.UtilityType
	for _, utility := range billing.UtilityTypes {
		if _, ok := fields[string(utility)]; ok {
			keys = append(keys, utility)
			known++
		}
	}
	if known != len(fields) {
		return fmt.Errorf("reports: chart row has unknown keys")
	}
	row, err := NewChartRow(month, keys)
	if err != nil {
		return err
	}
	for _, key := range keys {
		var value decimal.Decimal
		if err := json.Unmarshal(fields[string(key)], &value); err != nil {
			return fmt.Errorf("reports: chart value %s: %w", key, err)
		}
		row.values[key] = value
	}
	*r = row
	return nil
}
