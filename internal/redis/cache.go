package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bucketstream/internal/domain/event"
	relay_errors "bucketstream/pkg/errors"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key pattern:
// - event:{event_id} - EVENT_CACHE_TTL, written after persist and on read-through

const DefaultEventTTL = time.Hour

// EventCache keeps recently ingested events in Redis for fast lookups.
type EventCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func NewEventCache(client goredis.UniversalClient, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &EventCache{client: client, ttl: ttl}
}

func EventKey(eventID string) string {
	return fmt.Sprintf("event:%s", eventID)
}

// Set stores e under its event key with the configured TTL.
func (c *EventCache) Set(ctx context.Context, e event.StoredEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, EventKey(e.EventID), data, c.ttl).Err()
}

// Get returns the cached event. A miss is reported as relay_errors.ErrNotFound.
func (c *EventCache) Get(ctx context.Context, eventID string) (event.StoredEvent, error) {
	data, err := c.client.Get(ctx, EventKey(eventID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return event.StoredEvent{}, relay_errors.ErrNotFound
	}
	if err != nil {
		return event.StoredEvent{}, err
	}

	var e event.StoredEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return event.StoredEvent{}, fmt.Errorf("decode cached event %s: %w", eventID, err)
	}
	return e, nil
}

func (c *EventCache) Delete(ctx context.Context, eventID string) error {
	return c.client.Del(ctx, EventKey(eventID)).Err()
}
