// Package storage implements domain.ObjectStore for S3, GCS, Azure Blob Storage
// and the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"lake-ingest/internal/config"
	"lake-ingest/internal/domain"
)

// maxDeleteBatch is the DeleteObjects limit per request.
const maxDeleteBatch = 1000

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store is an ObjectStore backed by Amazon S3 or an S3-compatible service.
type S3Store struct {
	client S3API
}

// Compile-time interface check.
var _ domain.ObjectStore = (*S3Store)(nil)

// NewS3Store wraps an existing client.
func NewS3Store(client S3API) *S3Store {
	return &S3Store{client: client}
}

// NewS3Client builds an S3 client. Static credentials are used when configured,
// otherwise the default AWS credential chain.
func NewS3Client(ctx context.Context, sc config.StorageConfig, region string) (*s3.Client, error) {
	var endpoint *string
	if sc.S3Endpoint != nil {
		ep := *sc.S3Endpoint
		if !strings.Contains(ep, "://") {
			ep = "https://" + ep
		}
		endpoint = aws.String(ep)
	}

	if sc.HasStaticS3Credentials() {
		return s3.New(s3.Options{
			Region: region,
			Credentials: credentials.NewStaticCredentialsProvider(
				*sc.S3KeyID, *sc.S3Secret, "",
			),
			BaseEndpoint: endpoint,
			UsePathStyle: sc.S3UsePathStyle,
		}), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for region %s: %w", region, err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = endpoint
		o.UsePathStyle = sc.S3UsePathStyle
	}), nil
}

// Get implements domain.ObjectStore.
func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, domain.ErrNotFound("object %s not found", domain.Location(bucket, key))
		}
		return nil, fmt.Errorf("get %s: %w", domain.Location(bucket, key), err)
	}
	defer out.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", domain.Location(bucket, key), err)
	}
	return body, nil
}

// Put implements domain.ObjectStore.
func (s *S3Store) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", domain.Location(bucket, key), err)
	}
	return nil
}

// Exists implements domain.ObjectStore.
func (s *S3Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", domain.Location(bucket, key), err)
	}
	return true, nil
}

// List implements domain.ObjectStore.
func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", domain.Location(bucket, prefix), err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Delete implements domain.ObjectStore.
func (s *S3Store) Delete(ctx context.Context, bucket string, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects in %s: %w", bucket, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("delete %s: %s: %s", domain.Location(bucket, aws.ToString(e.Key)),
				aws.ToString(e.Code), aws.ToString(e.Message))
		}
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}
