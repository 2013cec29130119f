package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", name)
		}
	}
	require.Equal(t, ups, downs)
}

func TestMigrationsCreateReportTables(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/000001_billing.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"customers", "bills", "payments", "meter_readings", "tariff_rates"} {
		require.Contains(t, string(raw), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
