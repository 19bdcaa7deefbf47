package websocket

import (
	"encoding/json"
	"time"

	"bucketstream/internal/domain/event"
)

const (
	TypeConnected = "CONNECTED"
	TypeUpload    = "s3_upload_detected"
	TypeProcessed = "file_processed"
	TypePing      = "ping"
	TypePong      = "pong"

	connectedGreeting = "Connected to S3 Event Stream"
)

// UploadMessage is the broadcast form of an accepted event. It never carries
// the shared secret.
type UploadMessage struct {
	Type        string            `json:"type"`
	EventID     string            `json:"event_id"`
	Bucket      string            `json:"bucket"`
	Key         string            `json:"key"`
	EventName   string            `json:"event_name"`
	EventTime   time.Time         `json:"event_time"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ProcessedMessage follows an UploadMessage once the object's content has
// been fetched and recorded.
type ProcessedMessage struct {
	Type        string    `json:"type"`
	EventID     string    `json:"event_id"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	Size        int       `json:"size"`
	ContentHash string    `json:"content_hash"`
	Timestamp   time.Time `json:"timestamp"`
}

type controlMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type inboundMessage struct {
	Type string `json:"type"`
}

// EncodeUpload serializes e as an s3_upload_detected message.
func EncodeUpload(e event.Event) ([]byte, error) {
	return json.Marshal(UploadMessage{
		Type:        TypeUpload,
		EventID:     e.EventID,
		Bucket:      e.Bucket,
		Key:         e.Key,
		EventName:   e.EventName,
		EventTime:   e.EventTime.UTC(),
		Size:        e.Size,
		ContentType: e.ContentType,
		Metadata:    e.Metadata,
	})
}

// EncodeProcessed serializes a file_processed message for e.
func EncodeProcessed(e event.Event, f event.FileContent) ([]byte, error) {
	return json.Marshal(ProcessedMessage{
		Type:        TypeProcessed,
		EventID:     e.EventID,
		Bucket:      e.Bucket,
		Key:         e.Key,
		Size:        len(f.Content),
		ContentHash: f.ContentHash,
		Timestamp:   f.StoredAt.UTC(),
	})
}

func encodeConnected(now time.Time) []byte {
	b, _ := json.Marshal(controlMessage{Type: TypeConnected, Message: connectedGreeting, Timestamp: now.UTC()})
	return b
}

func encodePong(now time.Time) []byte {
	b, _ := json.Marshal(controlMessage{Type: TypePong, Timestamp: now.UTC()})
	return b
}
