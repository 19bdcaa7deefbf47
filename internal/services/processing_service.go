package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"bucketstream/internal/domain/event"
	"bucketstream/internal/metrics"
	"bucketstream/internal/repository"
	"bucketstream/internal/storage"
	"bucketstream/internal/websocket"
	relay_errors "bucketstream/pkg/errors"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

const (
	DefaultProcessTimeout     = 30 * time.Second
	DefaultProcessConcurrency = 4
)

var gzipMagic = []byte{0x1f, 0x8b}

// MessageDispatcher sends an already encoded message to every subscriber.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, msg []byte) websocket.Report
}

// ProcessResult describes one processed object.
type ProcessResult struct {
	EventID     string
	Key         string
	Size        int
	ContentHash string
}

type ProcessingConfig struct {
	// Patterns are doublestar globs matched against object keys. Events whose
	// key matches none of them are not processed automatically.
	Patterns    []string
	Timeout     time.Duration
	Concurrency int
}

// ProcessingService fetches the JSON object behind an event, records its
// content linked to the event, flags the event processed and tells
// subscribers. Matching events are processed in the background after
// ingestion; any stored event can be processed on request.
type ProcessingService struct {
	storage    *StorageService
	events     repository.EventRepository
	cache      EventCache
	dispatcher MessageDispatcher
	cfg        ProcessingConfig
	logger     *zap.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewProcessingService(storage *StorageService, events repository.EventRepository, dispatcher MessageDispatcher, cache EventCache, cfg ProcessingConfig, logger *zap.Logger) (*ProcessingService, error) {
	for _, p := range cfg.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: invalid key pattern %q", relay_errors.ErrInvalidInput, p)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProcessTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultProcessConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessingService{
		storage:    storage,
		events:     events,
		cache:      cache,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		sem:        make(chan struct{}, cfg.Concurrency),
	}, nil
}

// Matches reports whether key is eligible for automatic processing.
func (s *ProcessingService) Matches(key string) bool {
	for _, p := range s.cfg.Patterns {
		if ok, _ := doublestar.Match(p, key); ok {
			return true
		}
	}
	return false
}

// Enqueue processes e in the background when its key matches. It reports
// whether work was scheduled.
func (s *ProcessingService) Enqueue(e event.StoredEvent) bool {
	if s.storage.store == nil || !s.Matches(e.Key) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		if _, err := s.process(ctx, e); err != nil {
			s.logger.Warn("failed to process object",
				zap.String("event_id", e.EventID),
				zap.String("key", e.Key),
				zap.Error(err),
			)
		}
	}()
	return true
}

// Process runs processing for a stored event regardless of its key.
func (s *ProcessingService) Process(ctx context.Context, eventID string) (ProcessResult, error) {
	if s.storage.store == nil {
		return ProcessResult{}, fmt.Errorf("%w: object storage is not configured", relay_errors.ErrServiceUnavailable)
	}
	e, err := s.events.GetByEventID(ctx, eventID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.process(ctx, e)
}

// Wait blocks until background processing has drained or ctx ends.
func (s *ProcessingService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ProcessingService) process(ctx context.Context, e event.StoredEvent) (ProcessResult, error) {
	ctx, span := tracer.Start(ctx, "process")
	defer span.End()

	body, _, err := s.storage.store.GetObject(ctx, e.Key)
	if err != nil {
		metrics.ProcessTotal.WithLabelValues("fetch_failed").Inc()
		return ProcessResult{}, err
	}
	body, err = decompress(body)
	if err != nil {
		metrics.ProcessTotal.WithLabelValues("invalid").Inc()
		return ProcessResult{}, fmt.Errorf("%w: decompress %s: %v", relay_errors.ErrInvalidInput, e.Key, err)
	}
	if !json.Valid(body) {
		metrics.ProcessTotal.WithLabelValues("invalid").Inc()
		return ProcessResult{}, fmt.Errorf("%w: object %s is not valid JSON", relay_errors.ErrInvalidInput, e.Key)
	}

	f, err := s.storage.storeContent(ctx, e.EventID, e.Key, body, contentHash(body))
	if err != nil {
		metrics.ProcessTotal.WithLabelValues("store_failure").Inc()
		return ProcessResult{}, fmt.Errorf("%w: %v", relay_errors.ErrStoreFailure, err)
	}
	if err := s.events.MarkProcessed(ctx, e.EventID); err != nil {
		metrics.ProcessTotal.WithLabelValues("store_failure").Inc()
		return ProcessResult{}, fmt.Errorf("%w: %v", relay_errors.ErrStoreFailure, err)
	}
	if s.cache != nil {
		// The cached copy still says processed=false.
		if err := s.cache.Delete(ctx, e.EventID); err != nil {
			s.logger.Warn("failed to invalidate cached event", zap.String("event_id", e.EventID), zap.Error(err))
		}
	}

	if s.dispatcher != nil {
		msg, err := websocket.EncodeProcessed(e.Event, f)
		if err != nil {
			return ProcessResult{}, err
		}
		report := s.dispatcher.Dispatch(context.WithoutCancel(ctx), msg)
		s.logger.Info("object processed",
			zap.String("event_id", e.EventID),
			zap.String("key", e.Key),
			zap.Int("delivered", report.Delivered()),
		)
	}
	metrics.ProcessTotal.WithLabelValues("processed").Inc()

	return ProcessResult{
		EventID:     e.EventID,
		Key:         e.Key,
		Size:        len(f.Content),
		ContentHash: f.ContentHash,
	}, nil
}

// decompress inflates gzip bodies and returns anything else unchanged.
func decompress(body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, storage.MaxObjectBytes+1))
	if err != nil {
		return nil, err
	}
	if len(out) > storage.MaxObjectBytes {
		return nil, fmt.Errorf("inflated object exceeds %d bytes", storage.MaxObjectBytes)
	}
	return out, nil
}
