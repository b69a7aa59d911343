package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for media item persistence.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id string) (*Item, error)
	ListByEvent(ctx context.Context, eventID string, status Status) ([]Item, error)
	Review(ctx context.Context, id, reviewedBy string, to Status, now time.Time) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed media repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const itemColumns = `id, event_id, uploaded_by, file_name, media_type, status,
	reviewed_by, reviewed_at, created_at`

// Create inserts a new media item. The ID is generated if empty; status
// defaults to pending.
func (r *SQLiteRepository) Create(ctx context.Context, item *Item) error {
	if !IsValidType(item.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidType, item.Type)
	}
	if item.ID == "" {
		item.ID = "med-" + uuid.NewString()[:8]
	}
	if item.Status == "" {
		item.Status = StatusPending
	}

	now := time.Now().UTC().Format(time.RFC3339)
	item.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO media_items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.EventID, item.UploadedBy, item.FileName,
		string(item.Type), string(item.Status),
		nullString(item.ReviewedBy), nullTime(item.ReviewedAt), now,
	)
	if err != nil {
		return fmt.Errorf("creating media item: %w", err)
	}

	return nil
}

// GetByID retrieves a media item by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM media_items WHERE id = ?`, id)
	return scanItem(row)
}

// ListByEvent returns an event's media items, newest first. An empty
// status returns every item; otherwise only items in that state.
func (r *SQLiteRepository) ListByEvent(ctx context.Context, eventID string, status Status) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM media_items WHERE event_id = ?`
	args := []any{eventID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing media items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating media items: %w", err)
	}

	if out == nil {
		out = []Item{}
	}
	return out, nil
}

// Review moves a pending item to approved or rejected. The update is
// guarded on the pending status, so of two racing moderators exactly one
// review lands; the loser gets ErrAlreadyReviewed.
func (r *SQLiteRepository) Review(ctx context.Context, id, reviewedBy string, to Status, now time.Time) error {
	if to != StatusApproved && to != StatusRejected {
		return fmt.Errorf("invalid review decision %q", to)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE media_items SET status = ?, reviewed_by = ?, reviewed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(to), reviewedBy, now.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("reviewing media item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking media review: %w", err)
	}
	if n == 0 {
		var status string
		err := r.db.QueryRowContext(ctx,
			"SELECT status FROM media_items WHERE id = ?", id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking media item state: %w", err)
		}
		return ErrAlreadyReviewed
	}
	return nil
}

// Delete removes a media item.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM media_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting media item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking media deletion: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*Item, error) {
	var item Item
	var mediaType, status, createdAt string
	var reviewedBy, reviewedAt sql.NullString

	err := s.Scan(&item.ID, &item.EventID, &item.UploadedBy, &item.FileName,
		&mediaType, &status, &reviewedBy, &reviewedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning media item: %w", err)
	}

	item.Type = Type(mediaType)
	item.Status = Status(status)
	if reviewedBy.Valid {
		item.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		t, err := time.Parse(time.RFC3339, reviewedAt.String)
		if err == nil {
			item.ReviewedAt = &t
		}
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &item, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
