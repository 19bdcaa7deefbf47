package event

import (
	"time"
)

// Event is one object-storage mutation notification, as stored and as
// broadcast. It never carries the ingestion secret.
type Event struct {
	EventID     string            `json:"event_id"`
	Bucket      string            `json:"bucket"`
	Key         string            `json:"key"`
	EventName   string            `json:"event_name"`
	EventTime   time.Time         `json:"event_time"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// StoredEvent represents s3_events. Processed is set once the object behind
// the event has been fetched and its content recorded.
type StoredEvent struct {
	Event
	ID        int64     `json:"id"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

// FileContent represents file_contents
type FileContent struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"event_id,omitempty"`
	S3Key       string    `json:"s3_key"`
	Content     string    `json:"content,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}
