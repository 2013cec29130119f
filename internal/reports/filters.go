package reports

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

// DefaultConsumerLimit applies when a top consumers request carries no limit.
const DefaultConsumerLimit = 10

// UnpaidFilter scopes the unpaid bills summary.
type UnpaidFilter struct {
	UtilityType    *billing.UtilityType
	MinDaysOverdue *int
}

// Validate rejects filters that cannot be evaluated.
func (f UnpaidFilter) Validate() error {
	if err := validateUtility(f.UtilityType); err != nil {
		return err
	}
	if f.MinDaysOverdue != nil && *f.MinDaysOverdue < 0 {
		return invalidFilter("minDaysOverdue", "must not be negative")
	}
	return nil
}

func (f UnpaidFilter) cacheKey() string {
	return strings.Join([]string{utilityToken(f.UtilityType), intToken(f.MinDaysOverdue)}, ":")
}

// RevenueFilter scopes the monthly revenue report. Months are inclusive YYYY-MM bounds.
type RevenueFilter struct {
	StartMonth  string
	EndMonth    string
	UtilityType *billing.UtilityType
}

// Validate rejects filters that cannot be evaluated.
func (f RevenueFilter) Validate() error {
	if err := validateUtility(f.UtilityType); err != nil {
		return err
	}
	return validateMonthRange(f.StartMonth, f.EndMonth)
}

func (f RevenueFilter) cacheKey() string {
	return strings.Join([]string{monthToken(f.StartMonth), monthToken(f.EndMonth), utilityToken(f.UtilityType)}, ":")
}

// ConsumerFilter scopes the top consumers ranking.
type ConsumerFilter struct {
	UtilityType  *billing.UtilityType
	CustomerType *billing.CustomerType
	Limit        int
	StartMonth   string
	EndMonth     string
}

// Validate rejects filters that cannot be evaluated.
func (f ConsumerFilter) Validate() error {
	if err := validateUtility(f.UtilityType); err != nil {
		return err
	}
	if err := validateCustomerType(f.CustomerType); err != nil {
		return err
	}
	if f.Limit <= 0 {
		return invalidFilter("limit", "must be a positive integer")
	}
	return validateMonthRange(f.StartMonth, f.EndMonth)
}

func (f ConsumerFilter) cacheKey() string {
	return strings.Join([]string{
		utilityToken(f.UtilityType),
		customerTypeToken(f.CustomerType),
		strconv.Itoa(f.Limit),
		monthToken(f.StartMonth),
		monthToken(f.EndMonth),
	}, ":")
}

// SortField names a sortable customer billing column.
type SortField string

const (
	SortByCustomerName       SortField = "customerName"
	SortByTotalBilled        SortField = "totalBilled"
	SortByTotalPaid          SortField = "totalPaid"
	SortByOutstandingBalance SortField = "outstandingBalance"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// CustomerBillingFilter scopes the customer billing summary. Empty sort
// settings default to outstandingBalance descending.
type CustomerBillingFilter struct {
	CustomerType   *billing.CustomerType
	MinOutstanding *decimal.Decimal
	SortBy         SortField
	SortOrder      SortOrder
}

// Validate rejects filters that cannot be evaluated.
func (f CustomerBillingFilter) Validate() error {
	if err := validateCustomerType(f.CustomerType); err != nil {
		return err
	}
	if f.MinOutstanding != nil && f.MinOutstanding.IsNegative() {
		return invalidFilter("minOutstanding", "must not be negative")
	}
	switch f.SortBy {
	case "", SortByCustomerName, SortByTotalBilled, SortByTotalPaid, SortByOutstandingBalance:
	default:
		return invalidFilter("sortBy", "unknown field "+strconv.Quote(string(f.SortBy)))
	}
	switch f.SortOrder {
	case "", SortAsc, SortDesc:
	default:
		return invalidFilter("sortOrder", "must be asc or desc")
	}
	return nil
}

func (f CustomerBillingFilter) normalized() CustomerBillingFilter {
	if f.SortBy == "" {
		f.SortBy = SortByOutstandingBalance
	}
	if f.SortOrder == "" {
		f.SortOrder = SortDesc
	}
	return f
}

func (f CustomerBillingFilter) cacheKey() string {
	f = f.normalized()
	minOutstanding := "-"
	if f.MinOutstanding != nil {
		minOutstanding = f.MinOutstanding.String()
	}
	return strings.Join([]string{customerTypeToken(f.CustomerType), minOutstanding, string(f.SortBy), string(f.SortOrder)}, ":")
}

func validateUtility(u *billing.UtilityType) error {
	if u != nil && !u.Valid() {
		return invalidFilter("utilityType", "unknown utility type "+strconv.Quote(string(*u)))
	}
	return nil
}

func validateCustomerType(c *billing.CustomerType) error {
	if c != nil && !c.Valid() {
		return invalidFilter("customerType", "unknown customer type "+strconv.Quote(string(*c)))
	}
	return nil
}

func validateMonthRange(start, end string) error {
	if start != "" && !billing.ValidMonth(start) {
		return invalidFilter("startMonth", "must be formatted YYYY-MM")
	}
	if end != "" && !billing.ValidMonth(end) {
		return invalidFilter("endMonth", "must be formatted YYYY-MM")
	}
	if start != "" && end != "" && end < start {
		return invalidFilter("endMonth", "must not be before startMonth")
	}
	return nil
}

func inMonthRange(month, start, end string) bool {
	if start != "" && month < start {
		return false
	}
	if end != "" && month > end {
		return false
	}
	return true
}

func utilityToken(u *billing.UtilityType) string {
	if u == nil {
		return "all"
	}
	return string(*u)
}

func customerTypeToken(c *billing.CustomerType) string {
	if c == nil {
		return "all"
	}
	return string(*c)
}

func monthToken(m string) string {
	if m == "" {
		return "-"
	}
	return m
}

func intToken(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
