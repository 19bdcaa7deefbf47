package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"bucketstream/internal/domain/event"
	"bucketstream/internal/repository"
	"bucketstream/internal/storage"
	relay_errors "bucketstream/pkg/errors"

	"go.uber.org/zap"
)

const previewBytes = 500

// ObjectStore is the object-storage surface the relay reads from.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, storage.ObjectInfo, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type DownloadResult struct {
	Key            string
	Size           int64
	ContentType    string
	StoredInDB     bool
	ContentPreview string
	ContentHash    string
}

type PresignResult struct {
	Key       string
	URL       string
	ExpiresIn time.Duration
}

// StorageService fetches uploaded objects and keeps optional copies of their
// content alongside the events that announced them.
type StorageService struct {
	store  ObjectStore
	events repository.EventRepository
	files  repository.FileContentRepository
	logger *zap.Logger
}

func NewStorageService(store ObjectStore, events repository.EventRepository, files repository.FileContentRepository, logger *zap.Logger) *StorageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorageService{store: store, events: events, files: files, logger: logger}
}

func (s *StorageService) Download(ctx context.Context, key string, storeInDB bool) (DownloadResult, error) {
	if s.store == nil {
		return DownloadResult{}, fmt.Errorf("%w: object storage is not configured", relay_errors.ErrServiceUnavailable)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return DownloadResult{}, fmt.Errorf("%w: s3_key is required", relay_errors.ErrInvalidInput)
	}

	body, info, err := s.store.GetObject(ctx, key)
	if err != nil {
		return DownloadResult{}, err
	}

	result := DownloadResult{
		Key:            key,
		Size:           info.Size,
		ContentType:    info.ContentType,
		ContentPreview: preview(body),
		ContentHash:    contentHash(body),
	}

	if storeInDB {
		linked := ""
		if e, err := s.events.GetLatestByKey(ctx, key); err == nil {
			linked = e.EventID
		} else if !errors.Is(err, relay_errors.ErrNotFound) {
			return DownloadResult{}, err
		}
		if _, err := s.storeContent(ctx, linked, key, body, result.ContentHash); err != nil {
			return DownloadResult{}, err
		}
		result.StoredInDB = true
	}
	return result, nil
}

func (s *StorageService) PresignedURL(ctx context.Context, key string, ttl time.Duration) (PresignResult, error) {
	if s.store == nil {
		return PresignResult{}, fmt.Errorf("%w: object storage is not configured", relay_errors.ErrServiceUnavailable)
	}
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return PresignResult{}, fmt.Errorf("%w: s3 key is required", relay_errors.ErrInvalidInput)
	}
	ttl = storage.ClampPresignTTL(ttl, 0)
	url, err := s.store.PresignGet(ctx, key, ttl)
	if err != nil {
		return PresignResult{}, err
	}
	return PresignResult{Key: key, URL: url, ExpiresIn: ttl}, nil
}

func (s *StorageService) ListFiles(ctx context.Context, offset, limit int) ([]event.FileContent, error) {
	return s.files.List(ctx, offset, limit)
}

func (s *StorageService) GetFile(ctx context.Context, eventID string) (event.FileContent, error) {
	return s.files.GetByEventID(ctx, eventID)
}

// storeContent records body as a file_contents row, linked to eventID when
// one is known.
func (s *StorageService) storeContent(ctx context.Context, eventID, key string, body []byte, hash string) (event.FileContent, error) {
	f := event.FileContent{
		EventID:     eventID,
		S3Key:       key,
		Content:     strings.ToValidUTF8(string(body), ""),
		ContentHash: hash,
		StoredAt:    repository.Now(),
	}
	if err := s.files.Create(ctx, &f); err != nil {
		return event.FileContent{}, fmt.Errorf("store file content: %w", err)
	}
	s.logger.Info("stored file content",
		zap.String("s3_key", key),
		zap.String("event_id", eventID),
		zap.Int("bytes", len(body)),
	)
	return f, nil
}

func contentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// preview returns up to previewBytes of body with invalid UTF-8 dropped.
func preview(body []byte) string {
	if len(body) > previewBytes {
		body = body[:previewBytes]
	}
	return strings.ToValidUTF8(string(body), "")
}
