package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"famgraph/internal/blob"
	"famgraph/internal/core"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.TxTimeout != 5*time.Second || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if sc := cfg.StoreConfig(); sc.Driver != core.StorageSQLite || sc.SQLitePath != "famgraph.db" {
		t.Fatalf("unexpected store config %+v", sc)
	}
	if bc := cfg.BlobStoreConfig(); bc.Driver != blob.DriverFilesystem || bc.FSRoot != "./blobdata" {
		t.Fatalf("unexpected blob config %+v", bc)
	}
	if cfg.Tracing.OTLPEnabled() || cfg.Tracing.ServiceName != "famgraph" || cfg.Tracing.SampleRatio != 1 {
		t.Fatalf("unexpected tracing defaults %+v", cfg.Tracing)
	}
}

func TestLoadTracingSettings(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_SERVICE_NAME", "famgraph-test")
	t.Setenv("FAMGRAPH_TRACE_SAMPLE_RATIO", "0.25")
	t.Setenv("FAMGRAPH_TRACE_FILE", "/tmp/spans.jsonl")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tc := cfg.Tracing
	if !tc.OTLPEnabled() || tc.ServiceName != "famgraph-test" || tc.SampleRatio != 0.25 || tc.File != "/tmp/spans.jsonl" {
		t.Fatalf("unexpected tracing config %+v", tc)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FAMGRAPH_STORAGE_DRIVER", "postgres")
	t.Setenv("FAMGRAPH_POSTGRES_DSN", "postgres://db/famgraph")
	t.Setenv("FAMGRAPH_BLOB_DRIVER", "s3")
	t.Setenv("FAMGRAPH_BLOB_S3_BUCKET", "exports")
	t.Setenv("FAMGRAPH_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("FAMGRAPH_TX_TIMEOUT", "750ms")
	t.Setenv("FAMGRAPH_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TxTimeout != 750*time.Millisecond || len(cfg.CORSOrigins) != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	bc := cfg.BlobStoreConfig()
	if bc.Driver != blob.DriverS3 || bc.S3.Bucket != "exports" || !bc.S3.PathStyle {
		t.Fatalf("unexpected blob config %+v", bc)
	}
	if cfg.StoreConfig().PostgresDSN != "postgres://db/famgraph" {
		t.Fatalf("dsn not propagated")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("FAMGRAPH_ADMIN_TOKEN=from-file\nFAMGRAPH_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("FAMGRAPH_LOG_LEVEL", "warn")
	t.Setenv("FAMGRAPH_ADMIN_TOKEN", "")
	_ = os.Unsetenv("FAMGRAPH_ADMIN_TOKEN")

	cfg, err := Load(file, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AdminToken != "from-file" {
		t.Fatalf("expected token from file, got %q", cfg.AdminToken)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("process environment must win, got %q", cfg.LogLevel)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"storage driver": {"FAMGRAPH_STORAGE_DRIVER": "tape"},
		"postgres dsn":   {"FAMGRAPH_STORAGE_DRIVER": "postgres"},
		"blob driver":    {"FAMGRAPH_BLOB_DRIVER": "ftp"},
		"s3 bucket":      {"FAMGRAPH_BLOB_DRIVER": "s3"},
		"timeout":        {"FAMGRAPH_TX_TIMEOUT": "0s"},
		"bad duration":   {"FAMGRAPH_TX_TIMEOUT": "soon"},
		"sample ratio":   {"FAMGRAPH_TRACE_SAMPLE_RATIO": "1.5"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
