package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Test School", "s1", "2025-2026")
	cfg.Broadcast.KafkaBrokers = []string{"localhost:9092"}

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.School, got.School)
	assert.Equal(t, cfg.Fiscal, got.Fiscal)
	assert.Equal(t, cfg.Storage, got.Storage)
	assert.Equal(t, cfg.API, got.API)
	assert.Equal(t, cfg.Git, got.Git)
	assert.Equal(t, []string{"localhost:9092"}, got.Broadcast.KafkaBrokers)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My School", "s1", "2025-2026")

	assert.Equal(t, "My School", cfg.School.Name)
	assert.Equal(t, "school", cfg.School.ChartTemplate)
	assert.Equal(t, "2025-2026", cfg.Fiscal.AcademicYear)
	assert.Equal(t, DriverJSON, cfg.Storage.Driver)
	assert.Equal(t, "data", cfg.Storage.Path)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Empty(t, cfg.API.JWTSecret)
	assert.True(t, cfg.Git.AutoCommit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default("Test School", "s1", "2025-2026")
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test School")
	assert.Contains(t, contents, "academic_year: 2025-2026")
	assert.Contains(t, contents, "driver: json")
	assert.Contains(t, contents, "auto_commit: true")
	assert.NotContains(t, contents, "jwt_secret")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SCHOOLLEDGER_STORAGE_DRIVER", "sqlite")
	t.Setenv("SCHOOLLEDGER_STORAGE_PATH", "ledger.db")
	t.Setenv("SCHOOLLEDGER_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SCHOOLLEDGER_JWT_SECRET", "s3cret")

	cfg := Default("School", "s1", "2025-2026")
	ApplyEnv(cfg)

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "ledger.db", cfg.Storage.Path)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broadcast.KafkaBrokers)
	assert.Equal(t, "s3cret", cfg.API.JWTSecret)
	assert.Equal(t, "s1", cfg.School.ID, "unset variables leave values alone")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCHOOLLEDGER_TEST_ONLY_VAR=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SCHOOLLEDGER_TEST_ONLY_VAR") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("SCHOOLLEDGER_TEST_ONLY_VAR"))

	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no school", func(c *Config) { c.School.ID = "" }, "school.id"},
		{"no year", func(c *Config) { c.Fiscal.AcademicYear = "" }, "academic_year"},
		{"no path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"no dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "database_url"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "redis" }, "unknown storage driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("School", "s1", "2025-2026")
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
