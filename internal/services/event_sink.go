package services

import (
	"context"
	"encoding/json"

	"bucketstream/internal/domain/event"
)

// Publisher is the transport a KafkaSink writes through.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

// KafkaSink forwards events keyed by event id, so redeliveries of one event
// stay on one partition.
type KafkaSink struct {
	publisher Publisher
}

func NewKafkaSink(p Publisher) *KafkaSink {
	return &KafkaSink{publisher: p}
}

func (k *KafkaSink) Publish(ctx context.Context, e event.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.publisher.Publish(ctx, []byte(e.EventID), value, map[string]string{
		"event_type": e.EventName,
		"bucket":     e.Bucket,
	})
}
