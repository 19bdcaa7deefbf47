package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bucketstream/internal/domain/event"
	"bucketstream/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	ids  []string
	fail map[string]int
}

func (s *recordingSink) Publish(ctx context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[e.EventID] > 0 {
		s.fail[e.EventID]--
		return errors.New("broker unavailable")
	}
	s.ids = append(s.ids, e.EventID)
	return nil
}

func (s *recordingSink) published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func seed(t *testing.T, repo *repository.MemoryEventRepository, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := repo.Create(context.Background(), event.Event{
			EventID:   id,
			EventName: "ObjectCreated:Put",
			Bucket:    "uploads",
			Key:       id + ".txt",
			EventTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		})
		require.NoError(t, err)
	}
}

func TestProcessBatchForwardsInOrder(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	seed(t, repo, "a", "b", "c")
	sink := &recordingSink{}

	p := NewProcessor(repo, sink, nil, 10, time.Hour, 3)
	forwarded, total := p.processBatch(context.Background())

	assert.Equal(t, 3, forwarded)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"a", "b", "c"}, sink.published())

	pending, err := repo.PendingForward(context.Background(), 10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessBatchRetriesUntilMaxAttempts(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	seed(t, repo, "ok", "flaky", "dead")
	sink := &recordingSink{fail: map[string]int{"flaky": 1, "dead": 10}}

	p := NewProcessor(repo, sink, nil, 10, time.Hour, 2)

	forwarded, _ := p.processBatch(context.Background())
	assert.Equal(t, 1, forwarded)

	forwarded, _ = p.processBatch(context.Background())
	assert.Equal(t, 1, forwarded)
	assert.Equal(t, []string{"ok", "flaky"}, sink.published())

	// "dead" has now failed twice and is no longer offered.
	pending, err := repo.PendingForward(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainWalksFullBatches(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	seed(t, repo, "1", "2", "3", "4", "5")
	sink := &recordingSink{}

	p := NewProcessor(repo, sink, nil, 2, time.Hour, 3)
	p.drain(context.Background())

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, sink.published())
}

func TestRunnerForwardsOnNotify(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	sink := &recordingSink{}
	p := NewProcessor(repo, sink, nil, 10, time.Hour, 3)

	r := NewRunner(p)
	r.Start(context.Background())

	seed(t, repo, "x")
	p.Notify()

	assert.Eventually(t, func() bool {
		return len(sink.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
}
