package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"lake-ingest/internal/domain"
)

// GCSStore is an ObjectStore backed by Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
}

var _ domain.ObjectStore = (*GCSStore)(nil)

// NewGCSStore creates a client from a service account key file, or from
// application default credentials when keyFile is empty.
func NewGCSStore(ctx context.Context, keyFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if keyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, keyFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, domain.ErrNotFound("object gs://%s/%s not found", bucket, key)
		}
		return nil, fmt.Errorf("get gs://%s/%s: %w", bucket, key, err)
	}
	defer r.Close() //nolint:errcheck

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, key, err)
	}
	return body, nil
}

func (s *GCSStore) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("put gs://%s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("put gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *GCSStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat gs://%s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (s *GCSStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	it := s.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *GCSStore) Delete(ctx context.Context, bucket string, keys []string) error {
	for _, k := range keys {
		err := s.client.Bucket(bucket).Object(k).Delete(ctx)
		if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("delete gs://%s/%s: %w", bucket, k, err)
		}
	}
	return nil
}
