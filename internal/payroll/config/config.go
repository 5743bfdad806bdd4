// Package config loads the payroll service configuration: a YAML file,
// then environment overrides under the same names.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/gartstein/payroll/internal/payroll/controller"
	"github.com/gartstein/payroll/internal/payroll/db"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when no --config flag is given.
var DefaultPath = filepath.Join("internal", "payroll", "config", "config.yaml")

type Config struct {
	GRPCPort int `yaml:"GRPC_PORT" env:"GRPC_PORT"`
	HTTPPort int `yaml:"HTTP_PORT" env:"HTTP_PORT"`

	DBDriver   string `yaml:"DB_DRIVER" env:"DB_DRIVER"`
	DBHost     string `yaml:"DB_HOST" env:"DB_HOST"`
	DBPort     int    `yaml:"DB_PORT" env:"DB_PORT"`
	DBUser     string `yaml:"DB_USER" env:"DB_USER"`
	DBPassword string `yaml:"DB_PASSWORD" env:"DB_PASSWORD"`
	DBName     string `yaml:"DB_NAME" env:"DB_NAME"`
	DBSSLMode  string `yaml:"DB_SSLMODE" env:"DB_SSLMODE"`
	DBPath     string `yaml:"DB_PATH" env:"DB_PATH"`

	KafkaBrokers []string `yaml:"KAFKA_BROKERS" env:"KAFKA_BROKERS"`
	Topic        string   `yaml:"TOPIC" env:"TOPIC"`
	AuditGroupID string   `yaml:"AUDIT_GROUP_ID" env:"AUDIT_GROUP_ID"`

	JWTSecret string `yaml:"JWT_SECRET" env:"JWT_SECRET"`

	MinSalaryAmount uint64 `yaml:"MIN_SALARY_AMOUNT" env:"MIN_SALARY_AMOUNT"`
	MaxEmployees    uint16 `yaml:"MAX_EMPLOYEES" env:"MAX_EMPLOYEES"`
	MaxBatchSize    int    `yaml:"MAX_BATCH_SIZE" env:"MAX_BATCH_SIZE"`
	EnforceSchedule bool   `yaml:"ENFORCE_SCHEDULE" env:"ENFORCE_SCHEDULE"`
	LedgerSandbox   bool   `yaml:"LEDGER_SANDBOX" env:"LEDGER_SANDBOX"`
}

// Default returns the settings used for keys missing from both the file
// and the environment.
func Default() *Config {
	settings := controller.DefaultSettings()
	return &Config{
		GRPCPort:        50051,
		HTTPPort:        8080,
		DBDriver:        db.DriverPostgres,
		DBPort:          5432,
		DBSSLMode:       "disable",
		Topic:           "payroll-events",
		AuditGroupID:    "payroll-audit",
		MinSalaryAmount: settings.MinSalaryAmount,
		MaxEmployees:    settings.MaxEmployees,
		MaxBatchSize:    settings.MaxBatchSize,
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error; the environment alone may configure
// the service.
func Load(path string) (*Config, error) {
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case db.DriverPostgres:
		if c.DBHost == "" || c.DBName == "" {
			return errors.New("DB_HOST and DB_NAME are required for postgres")
		}
	case db.DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.MinSalaryAmount == 0 || c.MaxEmployees == 0 || c.MaxBatchSize <= 0 {
		return errors.New("MIN_SALARY_AMOUNT, MAX_EMPLOYEES and MAX_BATCH_SIZE must be positive")
	}
	if len(c.KafkaBrokers) > 0 && c.Topic == "" {
		return errors.New("TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func (c *Config) Database() *db.Config {
	return &db.Config{
		Driver:   c.DBDriver,
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		DBName:   c.DBName,
		SSLMode:  c.DBSSLMode,
		Path:     c.DBPath,
	}
}

// Settings returns the payroll limits and switches for the service.
func (c *Config) Settings() controller.Settings {
	return controller.Settings{
		MinSalaryAmount: c.MinSalaryAmount,
		MaxEmployees:    c.MaxEmployees,
		MaxBatchSize:    c.MaxBatchSize,
		EnforceSchedule: c.EnforceSchedule,
		Sandbox:         c.LedgerSandbox,
	}
}
