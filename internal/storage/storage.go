// Package storage provides temporary and persistent file storage capabilities.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3 storage.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary and persistent file storage.
// Implementations keep uploaded sources and written segments under a
// working directory and optionally publish segments to S3.
type Storage interface {
	// TempDir returns the root directory for temporary files.
	TempDir() string

	// WorkDir creates (if needed) and returns a directory under TempDir.
	// name may contain slashes to create nested directories.
	WorkDir(ctx context.Context, name string) (string, error)

	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files or directories.
	// It continues cleanup even if some paths fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)

	// DeleteFromS3 removes the objects stored under keys.
	// Returns ErrS3NotConfigured if S3 is not configured.
	DeleteFromS3(ctx context.Context, keys []string) error
}
