package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-utility/internal/auth"
	"github.com/odyssey-erp/odyssey-utility/internal/billing"
	billingdb "github.com/odyssey-erp/odyssey-utility/internal/billing/db"
	"github.com/odyssey-erp/odyssey-utility/internal/platform/db"
	"github.com/odyssey-erp/odyssey-utility/internal/tariff"
)

// Backend bundles the stores selected by DATA_BACKEND.
type Backend struct {
	Source billing.DataSource
	Users  auth.Repository
	Rates  tariff.Source
	Pool   *pgxpool.Pool
}

// OpenBackend connects the configured data backend. Rates parsed from
// TARIFF_RATES back up the tariff_rates table when it is empty.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	static, err := tariff.ParseTable(cfg.TariffRates)
	if err != nil {
		return nil, err
	}

	if cfg.DataBackend == BackendMemory {
		source, err := billing.LoadMemorySource(cfg.FixturesPath)
		if err != nil {
			return nil, err
		}
		var users []auth.User
		if cfg.AdminPasswordHash != "" {
			users = append(users, auth.User{ID: 1, Email: cfg.AdminEmail, Name: "Administrator", PasswordHash: cfg.AdminPasswordHash, IsActive: true})
		} else {
			logger.Warn("ADMIN_PASSWORD_HASH not set, nobody can sign in")
		}
		logger.Info("serving billing fixtures", slog.String("path", cfg.FixturesPath))
		return &Backend{
			Source: source,
			Users:  auth.NewMemoryRepository(users...),
			Rates:  tariff.StaticSource{Table: static},
		}, nil
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart {
		version, err := db.Migrate(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("database migrated", slog.Uint64("version", uint64(version)))
	}
	return &Backend{
		Source: billingdb.New(pool),
		Users:  auth.NewRepository(pool),
		Rates:  tariff.Chain{tariff.NewRepository(pool), tariff.StaticSource{Table: static}},
		Pool:   pool,
	}, nil
}

// Close releases the database pool when one is open.
func (b *Backend) Close() {
	if b != nil && b.Pool != nil {
		b.Pool.Close()
	}
}
