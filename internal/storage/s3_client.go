package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	relay_errors "bucketstream/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	DefaultPresignTTL = time.Hour
	// MaxPresignTTL is the longest expiry SigV4 allows.
	MaxPresignTTL = 7 * 24 * time.Hour
	// MaxObjectBytes bounds how much of an object a download reads into memory.
	MaxObjectBytes = 32 << 20
)

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PresignTTL time.Duration
}

// ObjectInfo is the subset of object metadata the relay reports.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
	Metadata     map[string]string
}

type Client struct {
	cfg     S3Config
	s3      *s3.Client
	presign *s3.PresignClient
}

func NewClient(ctx context.Context, cfg S3Config) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var endpoint string
	if cfg.Endpoint != "" {
		parsed, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse s3 endpoint: %w", err)
		}
		endpoint = parsed.String()
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		cfg:     cfg,
		s3:      s3Client,
		presign: s3.NewPresignClient(s3Client),
	}, nil
}

func (c *Client) Bucket() string { return c.cfg.Bucket }

// GetObject downloads key and returns its body along with its metadata. Bodies
// larger than MaxObjectBytes are rejected.
func (c *Client) GetObject(ctx context.Context, key string) ([]byte, ObjectInfo, error) {
	if key == "" {
		return nil, ObjectInfo{}, fmt.Errorf("%w: object key is required", relay_errors.ErrInvalidInput)
	}
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectInfo{}, mapError(key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectBytes+1))
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("read object %s: %w", key, err)
	}
	if len(body) > MaxObjectBytes {
		return nil, ObjectInfo{}, fmt.Errorf("%w: object %s exceeds %d bytes", relay_errors.ErrInvalidInput, key, MaxObjectBytes)
	}

	info := ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified).UTC(),
		ETag:         aws.ToString(out.ETag),
		Metadata:     out.Metadata,
	}
	if info.Size == 0 {
		info.Size = int64(len(body))
	}
	return body, info, nil
}

func (c *Client) HeadObject(ctx context.Context, key string) (ObjectInfo, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ObjectInfo{}, mapError(key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified).UTC(),
		ETag:         aws.ToString(out.ETag),
		Metadata:     out.Metadata,
	}, nil
}

// PresignGet returns a time-limited download URL for key. A non-positive ttl
// uses the configured default.
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: object key is required", relay_errors.ErrInvalidInput)
	}
	ttl = ClampPresignTTL(ttl, c.cfg.PresignTTL)

	presigned, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}

// ClampPresignTTL picks ttl, falling back to def and then DefaultPresignTTL,
// and caps the result at MaxPresignTTL.
func ClampPresignTTL(ttl, def time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = def
	}
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	if ttl > MaxPresignTTL {
		ttl = MaxPresignTTL
	}
	return ttl
}

func mapError(key string, err error) error {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%w: object %s", relay_errors.ErrNotFound, key)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return fmt.Errorf("%w: object %s", relay_errors.ErrNotFound, key)
	}
	return fmt.Errorf("s3 object %s: %w", key, err)
}
