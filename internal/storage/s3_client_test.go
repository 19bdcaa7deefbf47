package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	relay_errors "bucketstream/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresRegionAndBucket(t *testing.T) {
	_, err := NewClient(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = NewClient(context.Background(), S3Config{Bucket: "b"})
	assert.Error(t, err)
}

func TestClampPresignTTL(t *testing.T) {
	tests := []struct {
		name     string
		ttl, def time.Duration
		want     time.Duration
	}{
		{"explicit", 10 * time.Minute, time.Hour, 10 * time.Minute},
		{"falls back to configured", 0, 30 * time.Minute, 30 * time.Minute},
		{"falls back to default", -1, 0, DefaultPresignTTL},
		{"capped", 30 * 24 * time.Hour, 0, MaxPresignTTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampPresignTTL(tt.ttl, tt.def))
		})
	}
}

func TestPresignGet(t *testing.T) {
	c, err := NewClient(context.Background(), S3Config{
		Region:    "us-east-1",
		Bucket:    "uploads",
		AccessKey: "AKID",
		SecretKey: "SECRET",
		Endpoint:  "http://localhost:9000",
	})
	require.NoError(t, err)

	u, err := c.PresignGet(context.Background(), "dir/file.txt", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:9000/uploads/dir/file.txt?"), u)
	assert.Contains(t, u, "X-Amz-Expires=900")

	_, err = c.PresignGet(context.Background(), "", 0)
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
}

func TestMapError(t *testing.T) {
	err := mapError("k", &types.NoSuchKey{})
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)

	err = mapError("k", &smithy.GenericAPIError{Code: "NotFound"})
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)

	err = mapError("k", fmt.Errorf("wrapped: %w", errors.New("boom")))
	assert.NotErrorIs(t, err, relay_errors.ErrNotFound)
}
