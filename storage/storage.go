// Package storage abstracts the object store that holds table data,
// manifest, and metadata files.
package storage

import "context"

// Storage is the file I/O surface the filesystem catalog needs. Paths are
// slash-separated and relative to the store's root (a local directory or an
// S3 bucket).
type Storage interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}
