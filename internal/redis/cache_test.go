package redis

import (
	"context"
	"testing"
	"time"

	"bucketstream/internal/domain/event"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKey(t *testing.T) {
	assert.Equal(t, "event:e1", EventKey("e1"))
}

func TestNewEventCacheDefaultsTTL(t *testing.T) {
	c := NewEventCache(nil, 0)
	assert.Equal(t, DefaultEventTTL, c.ttl)

	c = NewEventCache(nil, time.Minute)
	assert.Equal(t, time.Minute, c.ttl)
}

func TestEventCacheSurfacesConnectionErrors(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	c := NewEventCache(client, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := c.Set(ctx, event.StoredEvent{Event: event.Event{EventID: "e1"}})
	require.Error(t, err)

	_, err = c.Get(ctx, "e1")
	require.Error(t, err)

	err = c.Delete(ctx, "e1")
	require.Error(t, err)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}
