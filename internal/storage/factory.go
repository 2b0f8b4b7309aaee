package storage

import "strings"

// NewStorage builds the ObjectStorage for the configured endpoint,
// inferring the backend flavor when cfg.Type is unset. Every flavor is
// served by the S3 client; the flavor only tweaks addressing and URLs.
// Parameters:
//   - cfg: endpoint, credentials, and bucket settings.
// Returns:
//   - ObjectStorage: ready storage client.
//   - error: non-nil if the client cannot be constructed.
func NewStorage(cfg *S3Config) (ObjectStorage, error) {
	if cfg.Type == "" {
		cfg.Type = flavorOf(cfg.Endpoint)
	}
	return NewS3Storage(cfg)
}

// flavorOf infers the storage flavor from the endpoint host. Anything
// unrecognized (MinIO, Ceph, localstack) is treated as generic
// S3-compatible with path-style addressing.
func flavorOf(endpoint string) StorageType {
	host := strings.ToLower(endpoint)
	switch {
	case strings.Contains(host, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(host, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
