package storage

import (
	"fmt"
	"strings"
)

// Config holds configuration for the archive backend.
type Config struct {
	Type      StorageType
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	Prefix    string // optional key prefix, e.g. "vibesearch/"
}

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage configuration including endpoint, credentials, and bucket.
//
// Returns:
//   - ObjectStorage: initialized storage client implementation.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(cfg *Config) (ObjectStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}

	storeType := cfg.Type
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	switch storeType {
	case StorageTypeMinIO:
		return NewMinIOStorage(cfg)
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
		c := *cfg
		c.Type = storeType
		return NewS3Storage(&c)
	default:
		return nil, fmt.Errorf("storage: unknown type %q", storeType)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeMinIO
	}
}

func prefixed(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(key, "/")
}
