package httpdto

import (
	"time"

	"bucketstream/internal/domain/event"
)

// IngestResponse is returned by POST /webhook/lambda
type IngestResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Message   string `json:"message"`
	Duplicate bool   `json:"duplicate"`
	Delivered int    `json:"delivered"`
}

// ListEventsRequest holds query parameters for GET /events
type ListEventsRequest struct {
	Skip  int `form:"skip"`
	Limit int `form:"limit"`
}

type EventResponse struct {
	ID          int64             `json:"id"`
	EventID     string            `json:"event_id"`
	Bucket      string            `json:"bucket"`
	Key         string            `json:"key"`
	EventName   string            `json:"event_name"`
	EventTime   time.Time         `json:"event_time"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func ToEventResponse(e event.StoredEvent) EventResponse {
	return EventResponse{
		ID:          e.ID,
		EventID:     e.EventID,
		Bucket:      e.Bucket,
		Key:         e.Key,
		EventName:   e.EventName,
		EventTime:   e.EventTime,
		Size:        e.Size,
		ContentType: e.ContentType,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
	}
}

func ToEventResponses(events []event.StoredEvent) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = ToEventResponse(e)
	}
	return out
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Skip   int             `json:"skip"`
	Limit  int             `json:"limit"`
}
