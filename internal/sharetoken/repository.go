package sharetoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for share token persistence.
type Repository interface {
	Create(ctx context.Context, t *ShareToken) error
	GetByToken(ctx context.Context, token string) (*ShareToken, error)
	ListByEvent(ctx context.Context, eventID string) ([]ShareToken, error)
	ConsumeUse(ctx context.Context, tokenID, usedBy string, now time.Time) (bool, error)
	Revoke(ctx context.Context, tokenID, revokedBy string, now time.Time) error
	ListUses(ctx context.Context, tokenID string) ([]Use, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed share token repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const tokenColumns = `id, event_id, token, token_type,
	can_view, can_upload, can_download, can_share, can_comment,
	max_uses, expires_at, allowed_emails, requires_approval, password_hash,
	usage_count, revoked, revoked_at, revoked_by, created_by, created_at`

// Create inserts a new share token. The ID and token string are generated
// if empty.
func (r *SQLiteRepository) Create(ctx context.Context, t *ShareToken) error {
	if !IsValidType(t.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if t.ID == "" {
		t.ID = "tok-" + uuid.NewString()[:8]
	}
	if t.Token == "" {
		token, err := GenerateToken(0)
		if err != nil {
			return err
		}
		t.Token = token
	}

	now := time.Now().UTC().Format(time.RFC3339)
	t.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO share_tokens (`+tokenColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.EventID, t.Token, string(t.Type),
		boolToInt(t.Scope.CanView), boolToInt(t.Scope.CanUpload), boolToInt(t.Scope.CanDownload),
		boolToInt(t.Scope.CanShare), boolToInt(t.Scope.CanComment),
		nullInt(t.Restrictions.MaxUses), nullTime(t.Restrictions.ExpiresAt),
		nullString(strings.Join(t.Restrictions.AllowedEmails, ",")),
		boolToInt(t.Restrictions.RequiresApproval), nullString(t.Restrictions.PasswordHash),
		t.UsageCount, boolToInt(t.Revoked), nullTime(t.RevokedAt), nullString(t.RevokedBy),
		t.CreatedBy, now,
	)
	if err != nil {
		return fmt.Errorf("creating share token: %w", err)
	}

	return nil
}

// GetByToken retrieves a share token by its token string.
func (r *SQLiteRepository) GetByToken(ctx context.Context, token string) (*ShareToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM share_tokens WHERE token = ?`, token)
	return scanToken(row)
}

// ListByEvent returns all share tokens for an event, newest first.
func (r *SQLiteRepository) ListByEvent(ctx context.Context, eventID string) ([]ShareToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM share_tokens
		 WHERE event_id = ? ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing share tokens: %w", err)
	}
	defer rows.Close()

	var out []ShareToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating share tokens: %w", err)
	}

	if out == nil {
		out = []ShareToken{}
	}
	return out, nil
}

// ConsumeUse atomically increments the token's usage count and records who
// used it. The increment is a single guarded UPDATE, not read-modify-write,
// so concurrent consumers cannot lose updates; the max-uses guard in the
// WHERE clause means no more than max_uses consumptions ever succeed.
// Returns (false, nil) if the token is revoked or at capacity.
func (r *SQLiteRepository) ConsumeUse(ctx context.Context, tokenID, usedBy string, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning token use: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE share_tokens SET usage_count = usage_count + 1
		 WHERE id = ? AND revoked = 0
		   AND (max_uses IS NULL OR usage_count < max_uses)`,
		tokenID)
	if err != nil {
		return false, fmt.Errorf("incrementing token usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking token usage increment: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	useID := "use-" + uuid.NewString()[:8]
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO share_token_uses (id, token_id, used_by, used_at) VALUES (?, ?, ?, ?)`,
		useID, tokenID, usedBy, now.UTC().Format(time.RFC3339)); err != nil {
		return false, fmt.Errorf("recording token use: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing token use: %w", err)
	}
	return true, nil
}

// Revoke permanently revokes a token. Revocation is idempotent at the
// storage level but already-revoked tokens return ErrRevoked so callers
// can report the duplicate. There is no un-revoke.
func (r *SQLiteRepository) Revoke(ctx context.Context, tokenID, revokedBy string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE share_tokens SET revoked = 1, revoked_at = ?, revoked_by = ?
		 WHERE id = ? AND revoked = 0`,
		now.UTC().Format(time.RFC3339), revokedBy, tokenID)
	if err != nil {
		return fmt.Errorf("revoking share token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking token revocation: %w", err)
	}
	if n == 0 {
		// Either absent or already revoked; distinguish for the caller.
		var revoked int
		err := r.db.QueryRowContext(ctx,
			"SELECT revoked FROM share_tokens WHERE id = ?", tokenID).Scan(&revoked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking token state: %w", err)
		}
		return ErrRevoked
	}
	return nil
}

// ListUses returns the usage audit trail for a token, oldest first.
func (r *SQLiteRepository) ListUses(ctx context.Context, tokenID string) ([]Use, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, token_id, used_by, used_at FROM share_token_uses
		 WHERE token_id = ? ORDER BY used_at`, tokenID)
	if err != nil {
		return nil, fmt.Errorf("listing token uses: %w", err)
	}
	defer rows.Close()

	var out []Use
	for rows.Next() {
		var u Use
		var usedAt string
		if err := rows.Scan(&u.ID, &u.TokenID, &u.UsedBy, &usedAt); err != nil {
			return nil, fmt.Errorf("scanning token use: %w", err)
		}
		u.UsedAt, _ = time.Parse(time.RFC3339, usedAt) //nolint:errcheck // format is controlled
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating token uses: %w", err)
	}

	if out == nil {
		out = []Use{}
	}
	return out, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*ShareToken, error) {
	var t ShareToken
	var tokenType string
	var canView, canUpload, canDownload, canShare, canComment, requiresApproval, revoked int
	var maxUses sql.NullInt64
	var expiresAt, allowedEmails, passwordHash, revokedAt, revokedBy sql.NullString
	var createdAt string

	err := s.Scan(&t.ID, &t.EventID, &t.Token, &tokenType,
		&canView, &canUpload, &canDownload, &canShare, &canComment,
		&maxUses, &expiresAt, &allowedEmails, &requiresApproval, &passwordHash,
		&t.UsageCount, &revoked, &revokedAt, &revokedBy, &t.CreatedBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning share token: %w", err)
	}

	t.Type = TokenType(tokenType)
	t.Scope = Scope{
		CanView:     canView != 0,
		CanUpload:   canUpload != 0,
		CanDownload: canDownload != 0,
		CanShare:    canShare != 0,
		CanComment:  canComment != 0,
	}
	t.Restrictions.RequiresApproval = requiresApproval != 0
	if maxUses.Valid {
		v := int(maxUses.Int64)
		t.Restrictions.MaxUses = &v
	}
	t.Restrictions.ExpiresAt = parseNullTime(expiresAt)
	if allowedEmails.Valid && allowedEmails.String != "" {
		t.Restrictions.AllowedEmails = strings.Split(allowedEmails.String, ",")
	}
	if passwordHash.Valid {
		t.Restrictions.PasswordHash = passwordHash.String
	}
	t.Revoked = revoked != 0
	t.RevokedAt = parseNullTime(revokedAt)
	if revokedBy.Valid {
		t.RevokedBy = revokedBy.String
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &t, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
