package blob

import (
	"context"

	"breadstamp/internal/infra/blob/fs"
	memorystore "breadstamp/internal/infra/blob/memory"
	infraS3 "breadstamp/internal/infra/blob/s3"
)

// S3Config re-exports the S3 driver configuration.
type S3Config = infraS3.Config

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMockS3ForTests exposes the fake-transport S3 store for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
