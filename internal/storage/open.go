package storage

import (
	"context"
	"fmt"
	"strings"

	"lake-ingest/internal/config"
	"lake-ingest/internal/domain"
)

// Open returns the ObjectStore selected by the configured backend.
func Open(ctx context.Context, sc config.StorageConfig, region string) (domain.ObjectStore, error) {
	switch sc.Backend {
	case config.BackendS3, "":
		client, err := NewS3Client(ctx, sc, region)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client), nil
	case config.BackendGCS:
		return NewGCSStore(ctx, sc.GCSKeyFile)
	case config.BackendAzure:
		return NewAzureStore(sc.AzureAccountName, sc.AzureAccountKey)
	case config.BackendLocal:
		return NewLocalStore(sc.LocalRoot)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", sc.Backend)
	}
}

// ParsePath splits an object URL such as s3://bucket/key into bucket and key.
// The scheme is optional.
func ParsePath(url string) (bucket, key string, err error) {
	rest := url
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", domain.ErrValidation("invalid object path %q: missing bucket", url)
	}
	return bucket, key, nil
}
