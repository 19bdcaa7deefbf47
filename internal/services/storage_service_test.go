package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"bucketstream/internal/domain/event"
	"bucketstream/internal/repository"
	"bucketstream/internal/storage"
	relay_errors "bucketstream/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	objects map[string][]byte
	lastTTL time.Duration
}

func (f *fakeObjectStore) GetObject(ctx context.Context, key string) ([]byte, storage.ObjectInfo, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, relay_errors.ErrNotFound
	}
	return body, storage.ObjectInfo{Key: key, Size: int64(len(body)), ContentType: "text/plain"}, nil
}

func (f *fakeObjectStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.lastTTL = ttl
	return "https://example.test/" + key + "?sig=1", nil
}

func newStorageFixture(t *testing.T) (*StorageService, *repository.MemoryEventRepository, *repository.MemoryFileContentRepository) {
	t.Helper()
	events := repository.NewMemoryEventRepository()
	files := repository.NewMemoryFileContentRepository()
	store := &fakeObjectStore{objects: map[string][]byte{
		"small.txt": []byte("hello"),
		"big.txt":   []byte(strings.Repeat("x", 2000)),
	}}
	return NewStorageService(store, events, files, nil), events, files
}

func TestDownloadWithoutStoring(t *testing.T) {
	svc, _, files := newStorageFixture(t)

	res, err := svc.Download(context.Background(), "big.txt", false)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.Size)
	assert.Equal(t, "text/plain", res.ContentType)
	assert.Len(t, res.ContentPreview, previewBytes)
	assert.False(t, res.StoredInDB)

	list, err := files.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDownloadStoresContentLinkedToEvent(t *testing.T) {
	svc, events, files := newStorageFixture(t)
	ctx := context.Background()
	_, err := events.Create(ctx, event.Event{EventID: "e1", Key: "small.txt"})
	require.NoError(t, err)

	res, err := svc.Download(ctx, "small.txt", true)
	require.NoError(t, err)
	assert.True(t, res.StoredInDB)
	assert.Equal(t, "hello", res.ContentPreview)

	sum := sha256.Sum256([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(sum[:]), res.ContentHash)

	f, err := files.GetByEventID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "hello", f.Content)
	assert.Equal(t, "small.txt", f.S3Key)
	assert.Equal(t, res.ContentHash, f.ContentHash)
}

func TestDownloadStoresContentWithoutEvent(t *testing.T) {
	svc, _, files := newStorageFixture(t)

	_, err := svc.Download(context.Background(), "small.txt", true)
	require.NoError(t, err)

	list, err := files.List(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].EventID)
}

func TestDownloadErrors(t *testing.T) {
	svc, _, _ := newStorageFixture(t)

	_, err := svc.Download(context.Background(), " ", false)
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)

	_, err = svc.Download(context.Background(), "missing.txt", false)
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)

	unconfigured := NewStorageService(nil, nil, nil, nil)
	_, err = unconfigured.Download(context.Background(), "small.txt", false)
	assert.ErrorIs(t, err, relay_errors.ErrServiceUnavailable)
}

func TestPresignedURL(t *testing.T) {
	store := &fakeObjectStore{}
	svc := NewStorageService(store, nil, nil, nil)

	res, err := svc.PresignedURL(context.Background(), "/dir/a.txt", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "dir/a.txt", res.Key)
	assert.Equal(t, "https://example.test/dir/a.txt?sig=1", res.URL)
	assert.Equal(t, 10*time.Minute, res.ExpiresIn)
	assert.Equal(t, 10*time.Minute, store.lastTTL)

	res, err = svc.PresignedURL(context.Background(), "a.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultPresignTTL, res.ExpiresIn)

	_, err = svc.PresignedURL(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
}

func TestPreviewDropsInvalidUTF8(t *testing.T) {
	assert.Equal(t, "ab", preview([]byte{'a', 0xff, 'b'}))
}
