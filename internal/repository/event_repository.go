package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bucketstream/internal/domain/event"
	relay_errors "bucketstream/pkg/errors"

	"github.com/jackc/pgx/v5"
)

type PostgresEventRepository struct {
	db DBTX
}

func NewEventRepository(db DBTX) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

const eventColumns = `id, event_id, bucket, key, event_name, event_time, file_size, COALESCE(content_type, ''), event_metadata, processed, created_at`

func (r *PostgresEventRepository) Create(ctx context.Context, e event.Event) (event.StoredEvent, error) {
	var metadata []byte
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return event.StoredEvent{}, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = b
	}

	row := r.db.QueryRow(ctx, `
        INSERT INTO s3_events (event_id, bucket, key, event_name, event_time, file_size, content_type, event_metadata, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9)
        RETURNING `+eventColumns,
		e.EventID,
		e.Bucket,
		e.Key,
		e.EventName,
		e.EventTime,
		e.Size,
		e.ContentType,
		metadata,
		Now(),
	)
	stored, err := scanEvent(row)
	if err != nil {
		if isUniqueViolation(err) {
			return event.StoredEvent{}, relay_errors.ErrAlreadyExists
		}
		return event.StoredEvent{}, err
	}
	return stored, nil
}

func (r *PostgresEventRepository) GetByEventID(ctx context.Context, eventID string) (event.StoredEvent, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM s3_events WHERE event_id = $1`, eventID)
	stored, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.StoredEvent{}, relay_errors.ErrNotFound
		}
		return event.StoredEvent{}, err
	}
	return stored, nil
}

func (r *PostgresEventRepository) GetLatestByKey(ctx context.Context, key string) (event.StoredEvent, error) {
	row := r.db.QueryRow(ctx, `
        SELECT `+eventColumns+`
        FROM s3_events
        WHERE key = $1
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `, key)
	stored, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.StoredEvent{}, relay_errors.ErrNotFound
		}
		return event.StoredEvent{}, err
	}
	return stored, nil
}

func (r *PostgresEventRepository) List(ctx context.Context, skip, limit int) ([]event.StoredEvent, error) {
	skip, limit = ClampPage(skip, limit)
	rows, err := r.db.Query(ctx, `
        SELECT `+eventColumns+`
        FROM s3_events
        ORDER BY created_at DESC, id DESC
        OFFSET $1
        LIMIT $2
    `, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]event.StoredEvent, 0, limit)
	for rows.Next() {
		stored, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *PostgresEventRepository) PendingForward(ctx context.Context, limit, maxAttempts int) ([]event.StoredEvent, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+eventColumns+`
        FROM s3_events
        WHERE forwarded_at IS NULL AND forward_attempts < $1
        ORDER BY id ASC
        LIMIT $2
    `, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []event.StoredEvent
	for rows.Next() {
		stored, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, stored)
	}
	return pending, rows.Err()
}

func (r *PostgresEventRepository) MarkForwarded(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
        UPDATE s3_events
        SET forwarded_at = $1, forward_error = NULL
        WHERE id = $2
    `, Now(), id)
	return err
}

func (r *PostgresEventRepository) MarkForwardFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE s3_events
        SET forward_attempts = forward_attempts + 1, forward_error = $1
        WHERE id = $2
    `, reason, id)
	return err
}

func (r *PostgresEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE s3_events SET processed = TRUE WHERE event_id = $1`, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresEventRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

func scanEvent(row pgx.Row) (event.StoredEvent, error) {
	var (
		e        event.StoredEvent
		metadata []byte
	)
	if err := row.Scan(
		&e.ID,
		&e.EventID,
		&e.Bucket,
		&e.Key,
		&e.EventName,
		&e.EventTime,
		&e.Size,
		&e.ContentType,
		&metadata,
		&e.Processed,
		&e.CreatedAt,
	); err != nil {
		return event.StoredEvent{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return event.StoredEvent{}, fmt.Errorf("decode metadata for %s: %w", e.EventID, err)
		}
	}
	e.EventTime = e.EventTime.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
