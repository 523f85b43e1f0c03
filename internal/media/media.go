package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultMaxObjectSize = 25 << 20
	s3Scheme             = "s3://"
)

// Store fetches the media bytes referenced by a submission's media locator.
type Store interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	useSSL          bool
	maxObjectSize   int64
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		useSSL:        false,
		maxObjectSize: defaultMaxObjectSize,
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

type MinioStore struct {
	cfg    *minioConfig
	client *minio.Client
}

// Make sure we conform to Store interface
var _ Store = (*MinioStore)(nil)

func NewMinioStore(opts ...MinioOpts) (*MinioStore, error) {
	cfg := newConfig(opts...)

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStore{cfg: cfg, client: client}, nil
}

func (s *MinioStore) Fetch(ctx context.Context, locator string) ([]byte, error) {
	bucket, key, err := ParseLocator(locator, s.cfg.bucket)
	if err != nil {
		return nil, err
	}

	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()

	info, err := object.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat media %q: %w", locator, err)
	}
	if info.Size > s.cfg.maxObjectSize {
		return nil, fmt.Errorf("media %q is %d bytes, above the %d bytes limit", locator, info.Size, s.cfg.maxObjectSize)
	}

	data, err := io.ReadAll(io.LimitReader(object, s.cfg.maxObjectSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read media %q: %w", locator, err)
	}
	if int64(len(data)) != info.Size {
		return nil, fmt.Errorf("failed to read the entire media %q. expected bytes %d received %d", locator, info.Size, len(data))
	}
	return data, nil
}

// ParseLocator splits "s3://bucket/key" into its parts. A bare key resolves against defaultBucket.
func ParseLocator(locator, defaultBucket string) (bucket string, key string, err error) {
	locator = strings.TrimSpace(locator)
	if rest, ok := strings.CutPrefix(locator, s3Scheme); ok {
		bucket, key, _ = strings.Cut(rest, "/")
	} else {
		bucket, key = defaultBucket, strings.TrimPrefix(locator, "/")
	}
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid media locator %q", locator)
	}
	return bucket, key, nil
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) {
		c.secretAccessKey = secretKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}

func WithMaxObjectSize(size int64) MinioOpts {
	return func(c *minioConfig) {
		if size > 0 {
			c.maxObjectSize = size
		}
	}
}
