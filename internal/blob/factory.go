package blob

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a blob driver.
type Config struct {
	Driver string   `yaml:"driver"`  // fs|s3|memory, default fs
	FSRoot string   `yaml:"fs_root"` // default ./photos
	S3     S3Config `yaml:"s3"`
}

// Open builds the Store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := Driver(strings.ToLower(strings.TrimSpace(cfg.Driver)))
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
