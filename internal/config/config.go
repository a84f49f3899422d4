package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendSQLite   = "sqlite"
)

type Config struct {
	Logger *zap.Logger `yaml:"-" ignored:"true"`

	Port              int      `yaml:"port"              envconfig:"PORT"`
	StorageBackend    string   `yaml:"storageBackend"    envconfig:"STORAGE_BACKEND"`
	DatabaseURL       string   `yaml:"databaseUrl"       envconfig:"DATABASE_URL"`
	SQLitePath        string   `yaml:"sqlitePath"        envconfig:"SQLITE_PATH"`
	CheckpointDir     string   `yaml:"checkpointDir"     envconfig:"CHECKPOINT_DIR"`
	DiscoveryCapacity int      `yaml:"discoveryCapacity" envconfig:"DISCOVERY_CAPACITY"`
	AllowedOrigins    []string `yaml:"allowedOrigins"    envconfig:"ALLOWED_ORIGINS"`
	LogLevel          string   `yaml:"logLevel"          envconfig:"LOG_LEVEL"`
}

func defaults() Config {
	return Config{
		Port:              8080,
		StorageBackend:    StorageBackendSQLite,
		DiscoveryCapacity: 100,
		AllowedOrigins:    []string{"*"},
		LogLevel:          "info",
	}
}

// Load applies the YAML file at path (when not empty) over the defaults,
// then the environment over both.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return Config{}, err
	}
	cfg.Logger = logger

	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageBackend {
	case StorageBackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case StorageBackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend '%s'", c.StorageBackend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	if c.DiscoveryCapacity <= 0 {
		return fmt.Errorf("discovery capacity must be positive, got %d", c.DiscoveryCapacity)
	}

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", level, err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)

	return zapConfig.Build()
}
