package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ledgerEnvKeys = []string{
	"LEDGER_APP_NAME",
	"LEDGER_APP_ENV",
	"LEDGER_STORE_BACKEND",
	"LEDGER_DATABASE_HOST",
	"LEDGER_DATABASE_PORT",
	"LEDGER_DATABASE_PASSWORD",
	"LEDGER_DATABASE_SSLMODE",
	"LEDGER_DATABASE_MAX_OPEN_CONNS",
	"LEDGER_DATABASE_MAX_IDLE_CONNS",
	"LEDGER_LEDGER_MAX_BUDGET_RETRIES",
	"LEDGER_LEDGER_MAX_LINKED_BUDGETS",
	"LEDGER_LEDGER_RETRY_INITIAL_INTERVAL",
	"LEDGER_LEDGER_RETRY_MAX_INTERVAL",
	"LEDGER_MONGO_URI",
	"LEDGER_TELEMETRY_SAMPLING_RATIO",
	"LEDGER_TELEMETRY_SLOW_QUERY_THRESHOLD",
	"LEDGER_TELEMETRY_PROFILING_ENABLED",
	"LEDGER_TELEMETRY_PROFILING_SERVER_ADDRESS",
}

// clearEnv unsets every LEDGER_ variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range ledgerEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "budget-ledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, BackendMemory, cfg.Store.Backend)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Ledger.MaxBudgetRetries)
		assert.Equal(t, 3, cfg.Ledger.MaxLinkedBudgets)
		assert.Equal(t, 10*time.Millisecond, cfg.Ledger.RetryInitialInterval)
		assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
		assert.Equal(t, "ledger.events", cfg.AMQP.Exchange)
		assert.Equal(t, 200*time.Millisecond, cfg.Telemetry.SlowQueryThreshold)
		assert.Equal(t, "budget-ledger", cfg.Telemetry.Profiling.ApplicationName)
		assert.False(t, cfg.Telemetry.Profiling.Enabled)
	})

	t.Run("loads values from environment variables with LEDGER prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEDGER_APP_NAME", "test-ledger")
		t.Setenv("LEDGER_STORE_BACKEND", "Postgres")
		t.Setenv("LEDGER_DATABASE_HOST", "testdb.local")
		t.Setenv("LEDGER_DATABASE_PORT", "5433")
		t.Setenv("LEDGER_LEDGER_MAX_BUDGET_RETRIES", "9")
		t.Setenv("LEDGER_LEDGER_RETRY_INITIAL_INTERVAL", "5ms")
		t.Setenv("LEDGER_MONGO_URI", "mongodb://mongo:27017")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-ledger", cfg.App.Name)
		assert.Equal(t, BackendPostgres, cfg.Store.Backend)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 9, cfg.Ledger.MaxBudgetRetries)
		assert.Equal(t, 5*time.Millisecond, cfg.Ledger.RetryInitialInterval)
		assert.Equal(t, "mongodb://mongo:27017", cfg.Mongo.URI)
	})

	t.Run("rejects unknown store backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEDGER_STORE_BACKEND", "cassandra")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.backend")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEDGER_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("LEDGER_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates retry interval ordering", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEDGER_LEDGER_RETRY_INITIAL_INTERVAL", "2s")
		t.Setenv("LEDGER_LEDGER_RETRY_MAX_INTERVAL", "1s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retry_max_interval")
	})

	t.Run("negative retries are rejected", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEDGER_LEDGER_MAX_BUDGET_RETRIES", "-2")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_budget_retries")
	})

	t.Run("production refuses the memory backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEDGER_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memory")
	})

	t.Run("production postgres requires password and ssl", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEDGER_APP_ENV", "production")
		t.Setenv("LEDGER_STORE_BACKEND", "postgres")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")

		t.Setenv("LEDGER_DATABASE_PASSWORD", "secret")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")

		t.Setenv("LEDGER_DATABASE_SSLMODE", "require")
		_, err = Load()
		assert.NoError(t, err)
	})

	t.Run("profiling requires a server address", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEDGER_TELEMETRY_PROFILING_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "profiling.server_address")

		t.Setenv("LEDGER_TELEMETRY_PROFILING_SERVER_ADDRESS", "http://pyroscope:4040")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "http://pyroscope:4040", cfg.Telemetry.Profiling.ServerAddress)
	})

	t.Run("sampling ratio out of range", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LEDGER_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.toml")
	content := `
[store]
backend = "sqlite"

[sqlite]
path = "/tmp/ledger-test.db"

[ledger]
max_budget_retries = 7
max_linked_budgets = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/ledger-test.db", cfg.SQLite.Path)
	assert.Equal(t, 7, cfg.Ledger.MaxBudgetRetries)
	assert.Equal(t, 2, cfg.Ledger.MaxLinkedBudgets)

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.toml"))
		assert.Error(t, err)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("LEDGER_LEDGER_MAX_BUDGET_RETRIES", "11")
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 11, cfg.Ledger.MaxBudgetRetries)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "ledger", Password: "p@ss word", DBName: "budget_master", SSLMode: "disable"}
	assert.Equal(t, "postgres://ledger:p%40ss%20word@db:5432/budget_master?sslmode=disable", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}
