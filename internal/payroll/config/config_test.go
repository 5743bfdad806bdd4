package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gartstein/payroll/internal/payroll/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
GRPC_PORT: 6000
DB_DRIVER: sqlite
DB_PATH: /tmp/payroll.db
JWT_SECRET: file-secret
KAFKA_BROKERS: [a:9092]
MAX_BATCH_SIZE: 4
`)
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("KAFKA_BROKERS", "b:9092,c:9092")
	t.Setenv("ENFORCE_SCHEDULE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.GRPCPort)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "env-secret", cfg.JWTSecret)
	assert.Equal(t, []string{"b:9092", "c:9092"}, cfg.KafkaBrokers)

	settings := cfg.Settings()
	assert.Equal(t, 4, settings.MaxBatchSize)
	assert.Equal(t, uint64(1_000_000), settings.MinSalaryAmount)
	assert.Equal(t, uint16(1000), settings.MaxEmployees)
	assert.True(t, settings.EnforceSchedule)
	assert.False(t, settings.Sandbox)

	dbCfg := cfg.Database()
	assert.Equal(t, db.DriverSQLite, dbCfg.Driver)
	assert.Equal(t, "/tmp/payroll.db", dbCfg.Path)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "payroll")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, db.DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "db", cfg.DBHost)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeConfig(t, "GRPC_PORT: [not a port"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "DB_DRIVER: sqlite\nDB_PATH: x\nGRPC_PORT: 1"))
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.JWTSecret = "s"
		cfg.DBHost = "db"
		cfg.DBName = "payroll"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "unsupported DB_DRIVER"},
		{"postgres without host", func(c *Config) { c.DBHost = "" }, "DB_HOST"},
		{"sqlite without path", func(c *Config) { c.DBDriver = db.DriverSQLite }, "DB_PATH"},
		{"zero batch", func(c *Config) { c.MaxBatchSize = 0 }, "MAX_BATCH_SIZE"},
		{"zero min salary", func(c *Config) { c.MinSalaryAmount = 0 }, "MIN_SALARY_AMOUNT"},
		{"brokers without topic", func(c *Config) { c.KafkaBrokers = []string{"k:9092"}; c.Topic = "" }, "TOPIC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
