package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config locates the bucket. Endpoint is set for S3-compatible services
// such as MinIO and switches to path-style addressing. AccessKey and
// SecretKey override the default AWS credential chain when both are set.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
}

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Overridable in tests.
var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3Store keeps files as objects under a key prefix.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Store builds an S3 client from cfg and the ambient AWS configuration.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{}

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Store(client s3API, bucket, prefix string, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3Store{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Put spools r to a temporary file so the object can be sent with a known
// length, then uploads it.
func (s *S3Store) Put(ctx context.Context, name string, r io.Reader, contentType string) (int64, error) {
	name, err := SanitizeName(name)
	if err != nil {
		return 0, err
	}

	spool, err := os.CreateTemp("", "upload-go-s3-*")
	if err != nil {
		return 0, fmt.Errorf("storage: creating spool file: %w", err)
	}

	defer func() {
		spool.Close()
		_ = os.Remove(spool.Name())
	}()

	n, err := io.Copy(spool, ctxReader{ctx: ctx, r: r})
	if err != nil {
		return 0, fmt.Errorf("storage: spooling %s: %w", name, err)
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("storage: rewinding spool: %w", err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := s.prefix + name

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          spool,
		ContentLength: aws.Int64(n),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return 0, fmt.Errorf("storage: putting s3://%s/%s: %w", s.bucket, key, err)
	}

	s.logger.Debug("stored upload",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.Int64("size", n),
	)

	return n, nil
}

// List returns the object names directly under the prefix.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var names []string

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: listing s3://%s/%s: %w", s.bucket, s.prefix, err)
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}

			names = append(names, name)
		}
	}

	sort.Strings(names)

	if names == nil {
		names = []string{}
	}

	return names, nil
}
