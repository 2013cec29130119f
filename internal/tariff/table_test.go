package tariff

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

func TestParseTableLookupFallback(t *testing.T) {
	table, err := ParseTable("Electricity:Household=0.145, Electricity=0.2,water=1.20")
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	rate, ok := table.Lookup(billing.UtilityElectricity, billing.CustomerHousehold)
	require.True(t, ok)
	require.True(t, rate.Equal(decimal.RequireFromString("0.145")))

	rate, ok = table.Lookup(billing.UtilityElectricity, billing.CustomerBusiness)
	require.True(t, ok)
	require.True(t, rate.Equal(decimal.RequireFromString("0.2")))

	_, ok = table.Lookup(billing.UtilityGas, billing.CustomerHousehold)
	require.False(t, ok)

	rates := table.Rates()
	require.Equal(t, billing.UtilityElectricity, rates[0].UtilityType)
	require.Equal(t, billing.UtilityWater, rates[2].UtilityType)
}

func TestParseTableRejectsMalformedEntries(t *testing.T) {
	for _, raw := range []string{"Steam=1", "Water", "Water=abc", "Gas:Farm=1", "Gas=-2"} {
		_, err := ParseTable(raw)
		require.Error(t, err, raw)
	}

	empty, err := ParseTable("  ")
	require.NoError(t, err)
	require.Zero(t, empty.Len())
}

type failingSource struct{}

func (failingSource) Rates(context.Context) (Table, error) {
	return Table{}, errors.New("boom")
}

func TestChainSkipsEmptyTables(t *testing.T) {
	fallback, err := ParseTable("Gas=0.9")
	require.NoError(t, err)

	table, err := Chain{StaticSource{}, nil, StaticSource{Table: fallback}}.Rates(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	_, err = Chain{failingSource{}, StaticSource{Table: fallback}}.Rates(context.Background())
	require.Error(t, err)
}
