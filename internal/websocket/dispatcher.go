package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bucketstream/internal/domain/event"
	"bucketstream/internal/metrics"
	relay_errors "bucketstream/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const DefaultSendTimeout = 5 * time.Second

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeEvicted   Outcome = "evicted"
)

// Delivery is the result of one send attempt within a dispatch cycle.
type Delivery struct {
	ConnectionID string
	Outcome      Outcome
	Err          error
}

// Report lists one Delivery per member of the snapshot, in snapshot order.
type Report struct {
	Deliveries []Delivery
}

func (r Report) Delivered() int { return r.count(OutcomeDelivered) }

func (r Report) Evicted() int { return r.count(OutcomeEvicted) }

func (r Report) count(o Outcome) int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

// Dispatcher fans one payload out to every registered connection. It keeps no
// state between calls.
type Dispatcher struct {
	registry    *Registry
	sendTimeout time.Duration
	log         *Logger
}

func NewDispatcher(registry *Registry, sendTimeout time.Duration, log *Logger) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if log == nil {
		log = NewLogger(nil)
	}
	return &Dispatcher{registry: registry, sendTimeout: sendTimeout, log: log}
}

// BroadcastEvent serializes e once and dispatches it.
func (d *Dispatcher) BroadcastEvent(ctx context.Context, e event.Event) (Report, error) {
	msg, err := EncodeUpload(e)
	if err != nil {
		return Report{}, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	return d.Dispatch(ctx, msg), nil
}

// Dispatch sends msg to a snapshot of the registry. Sends run concurrently and
// each is bounded by the send timeout, so one slow subscriber cannot hold up
// the rest. Any member whose send fails is unregistered and closed.
//
// Cancellation of ctx does not abort the cycle; only its values are used.
func (d *Dispatcher) Dispatch(ctx context.Context, msg []byte) Report {
	start := time.Now()
	defer metrics.ObserveDispatch(start)

	ctx, span := otel.Tracer("bucketstream/websocket").Start(context.WithoutCancel(ctx), "dispatch")
	defer span.End()

	members := d.registry.Snapshot()
	report := Report{Deliveries: make([]Delivery, len(members))}
	if len(members) == 0 {
		span.SetAttributes(attribute.Int("relay.subscribers", 0))
		return report
	}

	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(i int, m Member) {
			defer wg.Done()
			report.Deliveries[i] = d.deliver(ctx, m, msg)
		}(i, m)
	}
	wg.Wait()

	span.SetAttributes(
		attribute.Int("relay.subscribers", len(members)),
		attribute.Int("relay.delivered", report.Delivered()),
		attribute.Int("relay.evicted", report.Evicted()),
	)
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, m Member, msg []byte) Delivery {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	err := m.Conn.Send(sendCtx, msg)
	if err == nil {
		metrics.DeliveriesTotal.WithLabelValues(string(OutcomeDelivered)).Inc()
		return Delivery{ConnectionID: m.ID, Outcome: OutcomeDelivered}
	}

	err = fmt.Errorf("%w: %v", relay_errors.ErrDeliveryFailure, err)
	d.registry.unregisterConn(m.ID, m.Conn)
	_ = m.Conn.Close()
	metrics.DeliveriesTotal.WithLabelValues(string(OutcomeEvicted)).Inc()
	d.log.Warn("evicted", m.ID, zap.Error(err))

	return Delivery{ConnectionID: m.ID, Outcome: OutcomeEvicted, Err: err}
}
