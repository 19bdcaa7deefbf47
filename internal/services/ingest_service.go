package services

import (
	"context"
	"errors"
	"fmt"

	"bucketstream/internal/domain/event"
	"bucketstream/internal/metrics"
	"bucketstream/internal/repository"
	"bucketstream/internal/websocket"
	relay_errors "bucketstream/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("bucketstream/services")

// EventCache is a best-effort lookaside store for recently ingested events.
type EventCache interface {
	Set(ctx context.Context, e event.StoredEvent) error
	Get(ctx context.Context, eventID string) (event.StoredEvent, error)
	Delete(ctx context.Context, eventID string) error
}

// Notifier is told that a new event was persisted. The forwarding worker
// uses it to pick the event up ahead of its next poll.
type Notifier interface {
	Notify()
}

// PostProcessor picks up persisted events for follow-up work once they have
// been broadcast.
type PostProcessor interface {
	Enqueue(e event.StoredEvent) bool
}

// Broadcaster pushes an event to the live subscribers.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, e event.Event) (websocket.Report, error)
}

// IngestResult describes an accepted ingestion call.
type IngestResult struct {
	EventID   string
	Duplicate bool
	Delivered int
	Evicted   int

	// Processing is set when the object was queued for background processing.
	Processing bool
}

type IngestService struct {
	validator   *Validator
	repo        repository.EventRepository
	broadcaster Broadcaster
	cache       EventCache
	notifier    Notifier
	processor   PostProcessor
	logger      *zap.Logger
}

type IngestOption func(*IngestService)

func WithEventCache(c EventCache) IngestOption {
	return func(s *IngestService) { s.cache = c }
}

func WithNotifier(n Notifier) IngestOption {
	return func(s *IngestService) { s.notifier = n }
}

func WithPostProcessor(p PostProcessor) IngestOption {
	return func(s *IngestService) { s.processor = p }
}

func WithLogger(l *zap.Logger) IngestOption {
	return func(s *IngestService) { s.logger = l }
}

func NewIngestService(v *Validator, repo repository.EventRepository, b Broadcaster, opts ...IngestOption) *IngestService {
	s := &IngestService{
		validator:   v,
		repo:        repo,
		broadcaster: b,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest validates raw, persists it and then broadcasts it.
//
// The returned error wraps ErrAuthentication, ErrSchema or ErrStoreFailure.
// Nothing is broadcast unless the event was persisted by this call. A
// duplicate event id is accepted without a second write or broadcast.
// Failures after persistence (cache, delivery) are logged only.
func (s *IngestService) Ingest(ctx context.Context, raw map[string]any) (IngestResult, error) {
	ctx, span := tracer.Start(ctx, "ingest")
	defer span.End()

	e, err := s.validator.Validate(raw)
	if err != nil {
		outcome := "invalid"
		if errors.Is(err, relay_errors.ErrAuthentication) {
			outcome = "unauthorized"
			s.logger.Warn("rejected ingestion with invalid secret")
		} else {
			s.logger.Info("rejected malformed event", zap.Error(err))
		}
		metrics.IngestTotal.WithLabelValues(outcome).Inc()
		span.SetStatus(codes.Error, outcome)
		return IngestResult{}, err
	}
	span.SetAttributes(attribute.String("event.id", e.EventID), attribute.String("s3.bucket", e.Bucket))

	stored, err := s.persist(ctx, e)
	if errors.Is(err, relay_errors.ErrAlreadyExists) {
		s.logger.Info("duplicate event skipped", zap.String("event_id", e.EventID))
		metrics.IngestTotal.WithLabelValues("duplicate").Inc()
		return IngestResult{EventID: e.EventID, Duplicate: true}, nil
	}
	if err != nil {
		s.logger.Error("failed to persist event", zap.String("event_id", e.EventID), zap.Error(err))
		metrics.IngestTotal.WithLabelValues("store_failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		return IngestResult{}, fmt.Errorf("%w: %v", relay_errors.ErrStoreFailure, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stored); err != nil {
			s.logger.Warn("event cache unavailable", zap.String("event_id", e.EventID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Notify()
	}

	result := IngestResult{EventID: e.EventID}
	report, err := s.broadcaster.BroadcastEvent(ctx, e)
	if err != nil {
		s.logger.Error("failed to broadcast event", zap.String("event_id", e.EventID), zap.Error(err))
	} else {
		result.Delivered = report.Delivered()
		result.Evicted = report.Evicted()
	}

	if s.processor != nil && s.processor.Enqueue(stored) {
		result.Processing = true
	}

	metrics.IngestTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("event ingested",
		zap.String("event_id", e.EventID),
		zap.String("bucket", e.Bucket),
		zap.String("key", e.Key),
		zap.Int("delivered", result.Delivered),
		zap.Int("evicted", result.Evicted),
	)
	return result, nil
}

func (s *IngestService) persist(ctx context.Context, e event.Event) (event.StoredEvent, error) {
	ctx, span := tracer.Start(ctx, "persist", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	stored, err := s.repo.Create(ctx, e)
	if err != nil && !errors.Is(err, relay_errors.ErrAlreadyExists) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
	}
	return stored, err
}
