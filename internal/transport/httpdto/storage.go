package httpdto

import (
	"time"

	"bucketstream/internal/domain/event"
)

// DownloadRequest is used for POST /s3/download
type DownloadRequest struct {
	S3Key     string `json:"s3_key" binding:"required"`
	StoreInDB bool   `json:"store_in_db"`
}

type DownloadResponse struct {
	Status         string `json:"status"`
	Key            string `json:"key"`
	Size           int64  `json:"size"`
	ContentType    string `json:"content_type,omitempty"`
	StoredInDB     bool   `json:"stored_in_db"`
	ContentPreview string `json:"content_preview"`
	ContentHash    string `json:"content_hash"`
}

// PresignRequest holds query parameters for GET /s3/presigned-url/*key
type PresignRequest struct {
	Expiration int64 `form:"expiration"`
}

type PresignResponse struct {
	Status    string `json:"status"`
	S3Key     string `json:"s3_key"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// ListFilesRequest holds query parameters for GET /files
type ListFilesRequest struct {
	Offset int `form:"offset"`
	Limit  int `form:"limit"`
}

type FileContentResponse struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"event_id,omitempty"`
	S3Key       string    `json:"s3_key"`
	Content     string    `json:"content,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

func ToFileContentResponse(f event.FileContent) FileContentResponse {
	return FileContentResponse{
		ID:          f.ID,
		EventID:     f.EventID,
		S3Key:       f.S3Key,
		Content:     f.Content,
		ContentHash: f.ContentHash,
		StoredAt:    f.StoredAt,
	}
}

type FileListResponse struct {
	Files []FileContentResponse `json:"files"`
	Count int                   `json:"count"`
}

// ProcessResponse is returned by POST /events/:event_id/process
type ProcessResponse struct {
	Status      string `json:"status"`
	EventID     string `json:"event_id"`
	Key         string `json:"key"`
	Size        int    `json:"size"`
	ContentHash string `json:"content_hash"`
}
