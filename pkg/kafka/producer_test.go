package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestCompressionFromString(t *testing.T) {
	tests := []struct {
		in   string
		want kafkago.Compression
	}{
		{"gzip", kafkago.Gzip},
		{"GZIP", kafkago.Gzip},
		{"snappy", kafkago.Snappy},
		{"lz4", kafkago.Lz4},
		{"zstd", kafkago.Zstd},
		{"", kafkago.Snappy},
		{"brotli", kafkago.Snappy},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CompressionFromString(tt.in))
		})
	}
}

func TestNewProducerAppliesConfig(t *testing.T) {
	p := NewProducer(ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "s3.events",
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
		MaxAttempts:  3,
	})
	defer p.Close()

	assert.Equal(t, "s3.events", p.writer.Topic)
	assert.Equal(t, kafkago.RequireAll, p.writer.RequiredAcks)
	assert.IsType(t, &kafkago.Hash{}, p.writer.Balancer)
}
