package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("FIXTURES_PATH", "testdata/fixtures.json")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, BackendMemory, cfg.DataBackend)
	require.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, 12*time.Hour, cfg.SessionTTL)
	require.Equal(t, "billing.imported", cfg.ReportInvalidateSub)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigParsesOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("REPORT_TIMEZONE", "Asia/Jakarta")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Jakarta", loc.String())
}

func TestValidateRejectsBadSettings(t *testing.T) {
	base := Config{SessionSecret: "s", DataBackend: BackendPostgres}
	require.NoError(t, base.Validate())

	unknown := base
	unknown.DataBackend = "sqlite"
	require.ErrorContains(t, unknown.Validate(), "unknown data backend")

	memory := base
	memory.DataBackend = BackendMemory
	require.Error(t, memory.Validate())

	zone := base
	zone.ReportTimezone = "Mars/Olympus"
	require.ErrorContains(t, zone.Validate(), "REPORT_TIMEZONE")

	ttl := base
	ttl.ReportCacheTTL = -time.Second
	require.Error(t, ttl.Validate())
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("report served", "report", "unpaid-bills")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "report served", entry["msg"])
	require.Equal(t, "production", entry["env"])
	require.Equal(t, "unpaid-bills", entry["report"])

	buf.Reset()
	text := newLogger(&Config{AppEnv: "development"}, &buf)
	text.Debug("visible")
	require.Contains(t, buf.String(), "msg=visible")
	require.Contains(t, buf.String(), "env=development")
}
