package repository

import (
	"context"

	"bucketstream/internal/domain/event"
)

// EventRepository is the durable record keeper for ingested events.
type EventRepository interface {
	// Create stores e. It returns relay_errors.ErrAlreadyExists when a record
	// with the same event id is already present.
	Create(ctx context.Context, e event.Event) (event.StoredEvent, error)
	GetByEventID(ctx context.Context, eventID string) (event.StoredEvent, error)
	// GetLatestByKey returns the most recent event recorded for an object key.
	GetLatestByKey(ctx context.Context, key string) (event.StoredEvent, error)
	// List returns events newest first.
	List(ctx context.Context, skip, limit int) ([]event.StoredEvent, error)
	// MarkProcessed flags the event whose object content has been recorded.
	MarkProcessed(ctx context.Context, eventID string) error
	Ping(ctx context.Context) error
}

type FileContentRepository interface {
	Create(ctx context.Context, f *event.FileContent) error
	GetByEventID(ctx context.Context, eventID string) (event.FileContent, error)
	List(ctx context.Context, offset, limit int) ([]event.FileContent, error)
}

// ForwardQueue tracks which stored events still have to be forwarded
// downstream. The event rows themselves act as the outbox.
type ForwardQueue interface {
	// PendingForward returns unforwarded events with fewer than maxAttempts
	// failed attempts, oldest first.
	PendingForward(ctx context.Context, limit, maxAttempts int) ([]event.StoredEvent, error)
	MarkForwarded(ctx context.Context, id int64) error
	MarkForwardFailed(ctx context.Context, id int64, reason string) error
}

var (
	_ EventRepository       = (*PostgresEventRepository)(nil)
	_ ForwardQueue          = (*PostgresEventRepository)(nil)
	_ EventRepository       = (*MemoryEventRepository)(nil)
	_ ForwardQueue          = (*MemoryEventRepository)(nil)
	_ FileContentRepository = (*MemoryFileContentRepository)(nil)
)
