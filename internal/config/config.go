// Package config loads famgraph settings from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"famgraph/internal/blob"
	"famgraph/internal/core"
)

// Config holds all daemon and CLI configuration.
type Config struct {
	HTTPAddr        string        `env:"FAMGRAPH_HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"FAMGRAPH_LOG_LEVEL" envDefault:"info"`
	AdminToken      string        `env:"FAMGRAPH_ADMIN_TOKEN"`
	CORSOrigins     []string      `env:"FAMGRAPH_CORS_ORIGINS" envSeparator:","`
	TxTimeout       time.Duration `env:"FAMGRAPH_TX_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"FAMGRAPH_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Storage StorageConfig
	Blob    BlobConfig
	Tracing TracingConfig
}

// TracingConfig selects where service spans go. An OTLP endpoint wins over a
// trace file; with neither set spans are dropped.
type TracingConfig struct {
	OTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string  `env:"OTEL_SERVICE_NAME" envDefault:"famgraph"`
	SampleRatio  float64 `env:"FAMGRAPH_TRACE_SAMPLE_RATIO" envDefault:"1"`
	File         string  `env:"FAMGRAPH_TRACE_FILE"`
}

// OTLPEnabled reports whether spans are exported over OTLP.
func (t TracingConfig) OTLPEnabled() bool {
	return strings.TrimSpace(t.OTLPEndpoint) != ""
}

// StorageConfig selects the member store.
type StorageConfig struct {
	Driver      string `env:"FAMGRAPH_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"FAMGRAPH_SQLITE_PATH" envDefault:"famgraph.db"`
	PostgresDSN string `env:"FAMGRAPH_POSTGRES_DSN"`
}

// BlobConfig selects where graph exports are written.
type BlobConfig struct {
	Driver        string `env:"FAMGRAPH_BLOB_DRIVER" envDefault:"fs"`
	FSRoot        string `env:"FAMGRAPH_BLOB_FS_ROOT" envDefault:"./blobdata"`
	S3Bucket      string `env:"FAMGRAPH_BLOB_S3_BUCKET"`
	S3Region      string `env:"FAMGRAPH_BLOB_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint    string `env:"FAMGRAPH_BLOB_S3_ENDPOINT"`
	S3AccessKeyID string `env:"FAMGRAPH_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretKey   string `env:"FAMGRAPH_BLOB_S3_SECRET_ACCESS_KEY"`
	S3PathStyle   bool   `env:"FAMGRAPH_BLOB_S3_PATH_STYLE" envDefault:"false"`
}

// Load reads the given .env files, when present, and parses the environment.
// Values already set in the process environment win over file values.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and incomplete backend settings.
func (c *Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return fmt.Errorf("FAMGRAPH_POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if strings.TrimSpace(c.Blob.S3Bucket) == "" {
			return fmt.Errorf("FAMGRAPH_BLOB_S3_BUCKET is required for the s3 blob driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("FAMGRAPH_TX_TIMEOUT must be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("FAMGRAPH_TRACE_SAMPLE_RATIO must be between 0 and 1")
	}
	return nil
}

// StoreConfig converts the storage settings for core.OpenPersistentStore.
func (c *Config) StoreConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobStoreConfig converts the blob settings for blob.Open.
func (c *Config) BlobStoreConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          c.Blob.S3Bucket,
			Region:          c.Blob.S3Region,
			Endpoint:        c.Blob.S3Endpoint,
			AccessKeyID:     c.Blob.S3AccessKeyID,
			SecretAccessKey: c.Blob.S3SecretKey,
			PathStyle:       c.Blob.S3PathStyle,
		},
	}
}
