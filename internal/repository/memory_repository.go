package repository

import (
	"context"
	"maps"
	"sync"

	"bucketstream/internal/domain/event"
	relay_errors "bucketstream/pkg/errors"
)

// MemoryEventRepository keeps events in process memory. It backs the relay
// when no DATABASE_URL is configured and is the store used by tests; records
// do not survive a restart.
type MemoryEventRepository struct {
	mu      sync.RWMutex
	byID    map[string]int
	events  []event.StoredEvent
	forward []forwardState
}

type forwardState struct {
	done     bool
	attempts int
	lastErr  string
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{byID: make(map[string]int)}
}

func (r *MemoryEventRepository) Create(ctx context.Context, e event.Event) (event.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return event.StoredEvent{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[e.EventID]; ok {
		return event.StoredEvent{}, relay_errors.ErrAlreadyExists
	}
	e.Metadata = maps.Clone(e.Metadata)
	stored := event.StoredEvent{
		Event:     e,
		ID:        int64(len(r.events) + 1),
		CreatedAt: Now(),
	}
	r.byID[e.EventID] = len(r.events)
	r.events = append(r.events, stored)
	r.forward = append(r.forward, forwardState{})
	return stored, nil
}

func (r *MemoryEventRepository) GetByEventID(ctx context.Context, eventID string) (event.StoredEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[eventID]
	if !ok {
		return event.StoredEvent{}, relay_errors.ErrNotFound
	}
	return r.events[idx], nil
}

func (r *MemoryEventRepository) GetLatestByKey(ctx context.Context, key string) (event.StoredEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Key == key {
			return r.events[i], nil
		}
	}
	return event.StoredEvent{}, relay_errors.ErrNotFound
}

func (r *MemoryEventRepository) List(ctx context.Context, skip, limit int) ([]event.StoredEvent, error) {
	skip, limit = ClampPage(skip, limit)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]event.StoredEvent, 0, limit)
	for i := len(r.events) - 1 - skip; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}

func (r *MemoryEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[eventID]
	if !ok {
		return relay_errors.ErrNotFound
	}
	r.events[idx].Processed = true
	return nil
}

func (r *MemoryEventRepository) PendingForward(ctx context.Context, limit, maxAttempts int) ([]event.StoredEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []event.StoredEvent
	for i, st := range r.forward {
		if len(out) >= limit {
			break
		}
		if !st.done && st.attempts < maxAttempts {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

func (r *MemoryEventRepository) MarkForwarded(ctx context.Context, id int64) error {
	return r.updateForward(id, func(st *forwardState) {
		st.done = true
		st.lastErr = ""
	})
}

func (r *MemoryEventRepository) MarkForwardFailed(ctx context.Context, id int64, reason string) error {
	return r.updateForward(id, func(st *forwardState) {
		st.attempts++
		st.lastErr = reason
	})
}

func (r *MemoryEventRepository) updateForward(id int64, fn func(*forwardState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := int(id) - 1
	if idx < 0 || idx >= len(r.forward) {
		return relay_errors.ErrNotFound
	}
	fn(&r.forward[idx])
	return nil
}

func (r *MemoryEventRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

func (r *MemoryEventRepository) Ping(ctx context.Context) error {
	return nil
}

// MemoryFileContentRepository is the in-process counterpart of the
// file_contents table.
type MemoryFileContentRepository struct {
	mu    sync.RWMutex
	files []event.FileContent
}

func NewMemoryFileContentRepository() *MemoryFileContentRepository {
	return &MemoryFileContentRepository{}
}

func (r *MemoryFileContentRepository) Create(ctx context.Context, f *event.FileContent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.StoredAt.IsZero() {
		f.StoredAt = Now()
	}
	f.ID = int64(len(r.files) + 1)
	r.files = append(r.files, *f)
	return nil
}

func (r *MemoryFileContentRepository) GetByEventID(ctx context.Context, eventID string) (event.FileContent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.files) - 1; i >= 0; i-- {
		if r.files[i].EventID == eventID {
			return r.files[i], nil
		}
	}
	return event.FileContent{}, relay_errors.ErrNotFound
}

func (r *MemoryFileContentRepository) List(ctx context.Context, offset, limit int) ([]event.FileContent, error) {
	offset, limit = ClampPage(offset, limit)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]event.FileContent, 0, limit)
	for i := len(r.files) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		f := r.files[i]
		f.Content = ""
		out = append(out, f)
	}
	return out, nil
}
