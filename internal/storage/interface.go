package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the interface for object storage operations
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// UploadFile uploads a local file to storage under the given key
	UploadFile(ctx context.Context, key string, localPath string) error

	// UploadDir uploads every regular file under localDir to keys of the
	// form prefix/<basename>, returning the keys written
	UploadDir(ctx context.Context, prefix string, localDir string) ([]string, error)

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// DeletePrefix deletes every object under the given key prefix and
	// returns the number removed
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// ListPrefix lists object keys under the given prefix
	ListPrefix(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// EnsureBucket creates the bucket if it does not exist
	EnsureBucket(ctx context.Context) error
}
