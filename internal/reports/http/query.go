package reportshttp

import (
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
	"github.com/odyssey-erp/odyssey-utility/internal/reports"
)

// allValue selects every utility or customer type.
const allValue = "all"

type unpaidQuery struct {
	UtilityType    string `query:"utilityType" validate:"omitempty,alpha"`
	MinDaysOverdue string `query:"minDaysOverdue" validate:"omitempty,number"`
}

type revenueQuery struct {
	StartMonth  string `query:"startMonth" validate:"omitempty,datetime=2006-01"`
	EndMonth    string `query:"endMonth" validate:"omitempty,datetime=2006-01"`
	UtilityType string `query:"utilityType" validate:"omitempty,alpha"`
}

type consumerQuery struct {
	UtilityType  string `query:"utilityType" validate:"omitempty,alpha"`
	CustomerType string `query:"customerType" validate:"omitempty,alpha"`
	Limit        string `query:"limit" validate:"omitempty,numeric"`
	StartMonth   string `query:"startMonth" validate:"omitempty,datetime=2006-01"`
	EndMonth     string `query:"endMonth" validate:"omitempty,datetime=2006-01"`
}

type customerBillingQuery struct {
	CustomerType   string `query:"customerType" validate:"omitempty,alpha"`
	MinOutstanding string `query:"minOutstanding" validate:"omitempty,numeric"`
	SortBy         string `query:"sortBy" validate:"omitempty,oneof=customerName totalBilled totalPaid outstandingBalance"`
	SortOrder      string `query:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("query"); name != "" {
			return name
		}
		return field.Name
	})
	return v
}

// bindQuery copies query parameters into the string fields tagged with `query`.
func bindQuery(values url.Values, dest interface{}) {
	target := reflect.ValueOf(dest).Elem()
	kind := target.Type()
	for i := 0; i < kind.NumField(); i++ {
		name := kind.Field(i).Tag.Get("query")
		if name == "" {
			continue
		}
		target.Field(i).SetString(strings.TrimSpace(values.Get(name)))
	}
}

func (q unpaidQuery) filter() (reports.UnpaidFilter, error) {
	utility, err := parseUtility(q.UtilityType)
	if err != nil {
		return reports.UnpaidFilter{}, err
	}
	filter := reports.UnpaidFilter{UtilityType: utility}
	if q.MinDaysOverdue != "" {
		days, err := strconv.Atoi(q.MinDaysOverdue)
		if err != nil {
			return reports.UnpaidFilter{}, &reports.FilterError{Field: "minDaysOverdue", Reason: "must be an integer"}
		}
		filter.MinDaysOverdue = &days
	}
	return filter, nil
}

func (q revenueQuery) filter() (reports.RevenueFilter, error) {
	utility, err := parseUtility(q.UtilityType)
	if err != nil {
		return reports.RevenueFilter{}, err
	}
	return reports.RevenueFilter{StartMonth: q.StartMonth, EndMonth: q.EndMonth, UtilityType: utility}, nil
}

func (q consumerQuery) filter() (reports.ConsumerFilter, error) {
	utility, err := parseUtility(q.UtilityType)
	if err != nil {
		return reports.ConsumerFilter{}, err
	}
	customerType, err := parseCustomerType(q.CustomerType)
	if err != nil {
		return reports.ConsumerFilter{}, err
	}
	filter := reports.ConsumerFilter{
		UtilityType:  utility,
		CustomerType: customerType,
		Limit:        reports.DefaultConsumerLimit,
		StartMonth:   q.StartMonth,
		EndMonth:     q.EndMonth,
	}
	if q.Limit != "" {
		limit, err := strconv.Atoi(q.Limit)
		if err != nil || limit <= 0 {
			return reports.ConsumerFilter{}, &reports.FilterError{Field: "limit", Reason: "must be a positive integer"}
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (q customerBillingQuery) filter() (reports.CustomerBillingFilter, error) {
	customerType, err := parseCustomerType(q.CustomerType)
	if err != nil {
		return reports.CustomerBillingFilter{}, err
	}
	filter := reports.CustomerBillingFilter{
		CustomerType: customerType,
		SortBy:       reports.SortField(q.SortBy),
		SortOrder:    reports.SortOrder(q.SortOrder),
	}
	if q.MinOutstanding != "" {
		amount, err := decimal.NewFromString(q.MinOutstanding)
		if err != nil {
			return reports.CustomerBillingFilter{}, &reports.FilterError{Field: "minOutstanding", Reason: "must be a number"}
		}
		filter.MinOutstanding = &amount
	}
	return filter, nil
}

func parseUtility(raw string) (*billing.UtilityType, error) {
	if raw == "" || strings.EqualFold(raw, allValue) {
		return nil, nil
	}
	utility, err := billing.ParseUtilityType(raw)
	if err != nil {
		return nil, &reports.FilterError{Field: "utilityType", Reason: "unknown utility type " + strconv.Quote(raw)}
	}
	return &utility, nil
}

func parseCustomerType(raw string) (*billing.CustomerType, error) {
	if raw == "" || strings.EqualFold(raw, allValue) {
		return nil, nil
	}
	customerType, err := billing.ParseCustomerType(raw)
	if err != nil {
		return nil, &reports.FilterError{Field: "customerType", Reason: "unknown customer type " + strconv.Quote(raw)}
	}
	return &customerType, nil
}
