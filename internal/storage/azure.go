package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"lake-ingest/internal/domain"
)

// AzureStore is an ObjectStore backed by Azure Blob Storage. Buckets map to containers.
type AzureStore struct {
	client  *azblob.Client
	account string
}

var _ domain.ObjectStore = (*AzureStore)(nil)

// NewAzureStore creates a client authenticated with a shared account key.
func NewAzureStore(accountName, accountKey string) (*AzureStore, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("create Azure credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure client: %w", err)
	}
	return &AzureStore{client: client, account: accountName}, nil
}

func (s *AzureStore) url(container, key string) string {
	return fmt.Sprintf("az://%s/%s/%s", s.account, container, key)
}

func (s *AzureStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, bucket, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, domain.ErrNotFound("object %s not found", s.url(bucket, key))
		}
		return nil, fmt.Errorf("get %s: %w", s.url(bucket, key), err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.url(bucket, key), err)
	}
	return body, nil
}

func (s *AzureStore) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	_, err := s.client.UploadStream(ctx, bucket, key, body, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", s.url(bucket, key), err)
	}
	return nil
}

func (s *AzureStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(bucket).NewBlobClient(key)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", s.url(bucket, key), err)
	}
	return true, nil
}

func (s *AzureStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	pager := s.client.NewListBlobsFlatPager(bucket, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", s.url(bucket, prefix), err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}

func (s *AzureStore) Delete(ctx context.Context, bucket string, keys []string) error {
	for _, k := range keys {
		if _, err := s.client.DeleteBlob(ctx, bucket, k, nil); err != nil {
			if bloberror.HasCode(err, bloberror.BlobNotFound) {
				continue
			}
			return fmt.Errorf("delete %s: %w", s.url(bucket, k), err)
		}
	}
	return nil
}
