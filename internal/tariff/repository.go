package tariff

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-utility/internal/billing"
)

type querier interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

// Repository loads tariff rates from the tariff_rates table.
type Repository struct {
	db querier
}

// NewRepository constructs a Repository.
func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

// Load reads every active rate.
func (r *Repository) Load(ctx context.Context) (Table, error) {
	rows, err := r.db.Query(ctx, `SELECT utility_type, COALESCE(customer_type, ''), rate_per_unit::text
	FROM tariff_rates
	WHERE effective_from <= CURRENT_DATE
	ORDER BY utility_type, customer_type, effective_from`)
	if err != nil {
		return Table{}, fmt.Errorf("tariff: load rates: %w", err)
	}
	defer rows.Close()

	var rates []Rate
	for rows.Next() {
		var utility, customer, perUnit string
		if err := rows.Scan(&utility, &customer, &perUnit); err != nil {
			return Table{}, fmt.Errorf("tariff: scan rate: %w", err)
		}
		value, err := decimal.NewFromString(perUnit)
		if err != nil {
			return Table{}, fmt.Errorf("tariff: parse rate %q: %w", perUnit, err)
		}
		// Later effective dates overwrite earlier ones in NewTable.
		rates = append(rates, Rate{
			UtilityType:  billing.UtilityType(utility),
			CustomerType: billing.CustomerType(customer),
			PerUnit:      value,
		})
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("tariff: iterate rates: %w", err)
	}
	return NewTable(rates)
}

// Rates implements Source.
func (r *Repository) Rates(ctx context.Context) (Table, error) {
	return r.Load(ctx)
}
