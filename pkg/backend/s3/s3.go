// Package s3 provides the S3-compatible ObjectStore implementation.
//
// Works against Amazon S3 and compatible stores (MinIO, Localstack) via a
// custom endpoint. Conditional writes map to the S3 If-Match /
// If-None-Match PutObject conditions and are advertised through
// Capabilities only when enabled, since not every S3-compatible store
// enforces them.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/podstore/podstore/pkg/backend"
)

// Config holds the S3 store configuration.
type Config struct {
	// Region is the AWS region.
	Region string

	// Bucket is the bucket holding all objects of the space.
	Bucket string

	// KeyPrefix is prepended to every object key, allowing multiple
	// spaces to share a bucket.
	KeyPrefix string

	// Endpoint overrides the S3 endpoint, for MinIO/Localstack.
	Endpoint string

	// AccessKeyID / SecretAccessKey are static credentials. When empty,
	// the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible stores.
	UsePathStyle bool

	// ConditionalWrites enables If-Match/If-None-Match on PutObject.
	// Leave off for stores that ignore the headers.
	ConditionalWrites bool
}

// Store is an S3-backed object store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	cfg       Config
}

// New creates an S3 object store from config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 store: region is required")
	}

	var loadOpts []func(*awsConfig.LoadOptions) error
	loadOpts = append(loadOpts, awsConfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		cfg:       cfg,
	}, nil
}

func (s *Store) fullKey(key string) string {
	return s.keyPrefix + key
}

// Head implements backend.ObjectStore.
func (s *Store) Head(ctx context.Context, key string) (*backend.ObjectMeta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &backend.ObjectMeta{
		Key:          key,
		ContentType:  aws.ToString(out.ContentType),
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// Get implements backend.ObjectStore.
func (s *Store) Get(ctx context.Context, key string) (*backend.Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &backend.Object{
		Meta: backend.ObjectMeta{
			Key:          key,
			ContentType:  aws.ToString(out.ContentType),
			Size:         aws.ToInt64(out.ContentLength),
			ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
			LastModified: aws.ToTime(out.LastModified),
		},
		Data: out.Body,
	}, nil
}

// Put implements backend.ObjectStore.
func (s *Store) Put(ctx context.Context, key string, data io.Reader, opts backend.PutOptions) (*backend.ObjectMeta, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   data,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if s.cfg.ConditionalWrites {
		if opts.IfNoneMatch {
			input.IfNoneMatch = aws.String("*")
		}
		if opts.IfMatch != "" {
			input.IfMatch = aws.String(opts.IfMatch)
		}
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}

	return &backend.ObjectMeta{
		Key:          key,
		ContentType:  opts.ContentType,
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: time.Now(),
	}, nil
}

// Delete implements backend.ObjectStore.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// List implements backend.ObjectStore.
func (s *Store) List(ctx context.Context, prefix string) ([]backend.Entry, error) {
	var entries []backend.Entry

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.fullKey(prefix)),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		for _, cp := range page.CommonPrefixes {
			key := strings.TrimPrefix(aws.ToString(cp.Prefix), s.keyPrefix)
			entries = append(entries, backend.Entry{Key: key, IsPrefix: true})
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix)
			if key == prefix {
				continue
			}
			entries = append(entries, backend.Entry{Key: key})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Capabilities implements backend.ObjectStore.
func (s *Store) Capabilities() backend.Capabilities {
	return backend.Capabilities{ConditionalPut: s.cfg.ConditionalWrites}
}

// Close implements backend.ObjectStore.
func (s *Store) Close() error {
	return nil
}

// mapError translates AWS SDK errors to backend sentinels, keeping the
// original error wrapped for context.
func mapError(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return backend.ErrKeyNotFound
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return backend.ErrKeyNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return backend.ErrKeyNotFound
		case "PreconditionFailed", "ConditionalRequestConflict":
			return backend.ErrPreconditionFailed
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	return fmt.Errorf("%w: %w", backend.ErrUnavailable, err)
}
