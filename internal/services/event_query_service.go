package services

import (
	"context"
	"errors"

	"bucketstream/internal/domain/event"
	"bucketstream/internal/repository"
	relay_errors "bucketstream/pkg/errors"

	"go.uber.org/zap"
)

// EventQueryService serves the read path over persisted events.
type EventQueryService struct {
	repo   repository.EventRepository
	cache  EventCache
	logger *zap.Logger
}

func NewEventQueryService(repo repository.EventRepository, cache EventCache, logger *zap.Logger) *EventQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventQueryService{repo: repo, cache: cache, logger: logger}
}

func (s *EventQueryService) List(ctx context.Context, skip, limit int) ([]event.StoredEvent, error) {
	return s.repo.List(ctx, skip, limit)
}

// Get looks in the cache first and warms it on a store hit.
func (s *EventQueryService) Get(ctx context.Context, eventID string) (event.StoredEvent, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, eventID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, relay_errors.ErrNotFound) {
			s.logger.Warn("event cache unavailable", zap.String("event_id", eventID), zap.Error(err))
		}
	}

	stored, err := s.repo.GetByEventID(ctx, eventID)
	if err != nil {
		return event.StoredEvent{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stored); err != nil {
			s.logger.Warn("failed to warm event cache", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	return stored, nil
}

// Ping reports whether the backing store is reachable.
func (s *EventQueryService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
