package blob

import (
	"context"
	"fmt"

	"famgraph/internal/infra/blob/fs"
	"famgraph/internal/infra/blob/memory"
	"famgraph/internal/infra/blob/s3"
)

// S3Config configures the S3 backend.
type S3Config = s3.Config

// Config selects a backend. An empty Driver selects the filesystem.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the configured blob store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
