package reports

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
	"github.com/odyssey-erp/odyssey-utility/internal/tariff"
)

// Consumer is one ranked (customer, utility type) consumption total.
type Consumer struct {
	Rank             int                  `json:"rank"`
	CustomerID       int64                `json:"customerId"`
	CustomerName     string               `json:"customerName"`
	CustomerType     billing.CustomerType `json:"customerType"`
	UtilityType      billing.UtilityType  `json:"utilityType"`
	TotalConsumption decimal.Decimal      `json:"totalConsumption"`
	Unit             string               `json:"unit"`
	TotalAmount      decimal.Decimal      `json:"totalAmount"`
	Priced           bool                 `json:"priced"`
}

// ConsumerBar shapes a ranked consumer for a horizontal bar chart.
type ConsumerBar struct {
	Label       string              `json:"label"`
	UtilityType billing.UtilityType `json:"utilityType"`
	Consumption decimal.Decimal     `json:"consumption"`
	Amount      decimal.Decimal     `json:"amount"`
}

// ConsumerSummary totals the ranked consumers.
type ConsumerSummary struct {
	TotalConsumers   int             `json:"totalConsumers"`
	TotalConsumption decimal.Decimal `json:"totalConsumption"`
	AvgConsumption   decimal.Decimal `json:"avgConsumption"`
}

// TopConsumersReport is the consumption ranking view.
type TopConsumersReport struct {
	Summary        ConsumerSummary `json:"summary"`
	Consumers      []Consumer      `json:"consumers"`
	ChartData      []ConsumerBar   `json:"chartData"`
	SkippedRecords int             `json:"skippedRecords"`
}

type consumerKey struct {
	customerID int64
	utility    billing.UtilityType
}

// RankTopConsumers sums readings per customer and utility type and ranks the
// totals by consumption, largest first, ties broken by customer name. Amounts
// are priced from rates when the table covers the pair; otherwise they fall
// back to the customer's billed total for the utility within the window.
// Readings whose unit differs from the first unit seen for their group are
// skipped so units never mix.
func RankTopConsumers(readings []billing.MeterReading, customers []billing.Customer, bills []billing.Bill, rates tariff.Table, filter ConsumerFilter) (TopConsumersReport, error) {
	if err := filter.Validate(); err != nil {
		return TopConsumersReport{}, err
	}
	report := TopConsumersReport{
		Consumers: []Consumer{},
		ChartData: []ConsumerBar{},
	}
	index := indexCustomers(customers)
	groups := make(map[consumerKey]*Consumer)
	for _, reading := range readings {
		if !reading.Valid() {
			report.SkippedRecords++
			continue
		}
		if filter.UtilityType != nil && reading.UtilityType != *filter.UtilityType {
			continue
		}
		if !inMonthRange(reading.ReadingDate.Format(billing.MonthLayout), filter.StartMonth, filter.EndMonth) {
			continue
		}
		customer, known := index[reading.CustomerID]
		if filter.CustomerType != nil && (!known || customer.Type != *filter.CustomerType) {
			continue
		}
		unit := strings.TrimSpace(reading.Unit)
		if unit == "" {
			unit = reading.UtilityType.DefaultUnit()
		}
		key := consumerKey{customerID: reading.CustomerID, utility: reading.UtilityType}
		group, ok := groups[key]
		if !ok {
			group = &Consumer{
				CustomerID:   reading.CustomerID,
				CustomerName: customer.Name,
				CustomerType: customer.Type,
				UtilityType:  reading.UtilityType,
				Unit:         unit,
			}
			groups[key] = group
		} else if !strings.EqualFold(group.Unit, unit) {
			report.SkippedRecords++
			continue
		}
		group.TotalConsumption = group.TotalConsumption.Add(reading.ConsumptionValue)
	}

	billed := make(map[consumerKey]decimal.Decimal)
	for _, bill := range bills {
		if !bill.Valid() || !inMonthRange(bill.BillingMonth, filter.StartMonth, filter.EndMonth) {
			continue
		}
		key := consumerKey{customerID: bill.CustomerID, utility: bill.UtilityType}
		if _, ok := groups[key]; ok {
			billed[key] = billed[key].Add(bill.BilledAmount)
		}
	}

	ranked := make([]Consumer, 0, len(groups))
	for key, group := range groups {
		if rate, ok := rates.Lookup(group.UtilityType, group.CustomerType); ok {
			group.TotalAmount = group.TotalConsumption.Mul(rate).Round(2)
			group.Priced = true
		} else {
			group.TotalAmount = billed[key]
		}
		ranked = append(ranked, *group)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if cmp := a.TotalConsumption.Cmp(b.TotalConsumption); cmp != 0 {
			return cmp > 0
		}
		if a.CustomerName != b.CustomerName {
			return a.CustomerName < b.CustomerName
		}
		if a.CustomerID != b.CustomerID {
			return a.CustomerID < b.CustomerID
		}
		return a.UtilityType.Order() < b.UtilityType.Order()
	})
	if len(ranked) > filter.Limit {
		ranked = ranked[:filter.Limit]
	}

	total := decimal.Zero
	for i := range ranked {
		ranked[i].Rank = i + 1
		total = total.Add(ranked[i].TotalConsumption)
		report.ChartData = append(report.ChartData, ConsumerBar{
			Label:       ranked[i].CustomerName,
			UtilityType: ranked[i].UtilityType,
			Consumption: ranked[i].TotalConsumption,
			Amount:      ranked[i].TotalAmount,
		})
	}
	report.Consumers = ranked
	report.Summary = ConsumerSummary{
		TotalConsumers:   len(ranked),
		TotalConsumption: total,
		AvgConsumption:   decimal.Zero,
	}
	if len(ranked) > 0 {
		report.Summary.AvgConsumption = total.Div(decimal.NewFromInt(int64(len(ranked)))).Round(2)
	}
	return report, nil
}
