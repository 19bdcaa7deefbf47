package repository

import (
	"context"
	"errors"

	"bucketstream/internal/domain/event"
	relay_errors "bucketstream/pkg/errors"

	"github.com/jackc/pgx/v5"
)

type fileContentRepository struct {
	db DBTX
}

func NewFileContentRepository(db DBTX) FileContentRepository {
	return &fileContentRepository{db: db}
}

func (r *fileContentRepository) Create(ctx context.Context, f *event.FileContent) error {
	if f.StoredAt.IsZero() {
		f.StoredAt = Now()
	}
	return r.db.QueryRow(ctx, `
        INSERT INTO file_contents (event_id, s3_key, content, content_hash, stored_at)
        VALUES (NULLIF($1,''),$2,$3,$4,$5)
        RETURNING id
    `,
		f.EventID,
		f.S3Key,
		f.Content,
		f.ContentHash,
		f.StoredAt,
	).Scan(&f.ID)
}

func (r *fileContentRepository) GetByEventID(ctx context.Context, eventID string) (event.FileContent, error) {
	var f event.FileContent
	err := r.db.QueryRow(ctx, `
        SELECT id, COALESCE(event_id, ''), s3_key, COALESCE(content, ''), COALESCE(content_hash, ''), stored_at
        FROM file_contents
        WHERE event_id = $1
        ORDER BY stored_at DESC
        LIMIT 1
    `, eventID).Scan(&f.ID, &f.EventID, &f.S3Key, &f.Content, &f.ContentHash, &f.StoredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.FileContent{}, relay_errors.ErrNotFound
		}
		return event.FileContent{}, err
	}
	return f, nil
}

// List omits file bodies; fetch a single record for its content.
func (r *fileContentRepository) List(ctx context.Context, offset, limit int) ([]event.FileContent, error) {
	offset, limit = ClampPage(offset, limit)
	rows, err := r.db.Query(ctx, `
        SELECT id, COALESCE(event_id, ''), s3_key, COALESCE(content_hash, ''), stored_at
        FROM file_contents
        ORDER BY stored_at DESC
        OFFSET $1
        LIMIT $2
    `, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]event.FileContent, 0, limit)
	for rows.Next() {
		var f event.FileContent
		if err := rows.Scan(&f.ID, &f.EventID, &f.S3Key, &f.ContentHash, &f.StoredAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}
