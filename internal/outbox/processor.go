package outbox

import (
	"context"
	"time"

	"bucketstream/internal/domain/event"
	"bucketstream/internal/metrics"
	"bucketstream/internal/repository"

	"go.uber.org/zap"
)

// Sink receives forwarded events.
type Sink interface {
	Publish(ctx context.Context, e event.Event) error
}

// Processor forwards persisted events that have not reached the sink yet.
// Delivery is at least once: an event is marked forwarded only after the sink
// accepted it.
type Processor struct {
	queue       repository.ForwardQueue
	sink        Sink
	logger      *zap.Logger
	batchSize   int
	interval    time.Duration
	maxAttempts int
	wake        chan struct{}
}

func NewProcessor(queue repository.ForwardQueue, sink Sink, logger *zap.Logger, batchSize int, interval time.Duration, maxAttempts int) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		queue:       queue,
		sink:        sink,
		logger:      logger,
		batchSize:   batchSize,
		interval:    interval,
		maxAttempts: maxAttempts,
		wake:        make(chan struct{}, 1),
	}
}

// Notify asks for a pass ahead of the next tick. It never blocks.
func (p *Processor) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.wake:
		}
		p.drain(ctx)
	}
}

// drain processes full batches until the queue runs dry or a batch makes no progress.
func (p *Processor) drain(ctx context.Context) {
	for ctx.Err() == nil {
		forwarded, total := p.processBatch(ctx)
		if total < p.batchSize || forwarded == 0 {
			return
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) (forwarded, total int) {
	batch, err := p.queue.PendingForward(ctx, p.batchSize, p.maxAttempts)
	if err != nil {
		p.logger.Warn("failed to load pending events", zap.Error(err))
		return 0, 0
	}

	for _, e := range batch {
		if err := p.sink.Publish(ctx, e.Event); err != nil {
			metrics.ForwardTotal.WithLabelValues("failed").Inc()
			p.logger.Warn("failed to forward event", zap.String("event_id", e.EventID), zap.Error(err))
			if markErr := p.queue.MarkForwardFailed(ctx, e.ID, err.Error()); markErr != nil {
				p.logger.Warn("failed to record forward failure", zap.String("event_id", e.EventID), zap.Error(markErr))
			}
			continue
		}
		if err := p.queue.MarkForwarded(ctx, e.ID); err != nil {
			p.logger.Warn("failed to mark event forwarded", zap.String("event_id", e.EventID), zap.Error(err))
			continue
		}
		metrics.ForwardTotal.WithLabelValues("forwarded").Inc()
		forwarded++
	}
	return forwarded, len(batch)
}
