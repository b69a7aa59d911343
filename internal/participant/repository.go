package participant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for participant persistence.
type Repository interface {
	Create(ctx context.Context, p *Participant) error
	GetByID(ctx context.Context, id string) (*Participant, error)
	GetLive(ctx context.Context, eventID, userID string) (*Participant, error)
	ListByEvent(ctx context.Context, eventID string) ([]Participant, error)
	ListByUser(ctx context.Context, userID string) ([]Participant, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)
	SetOverrides(ctx context.Context, id string, o Overrides) error
	Remove(ctx context.Context, id string, status Status) error
	TransferOwnership(ctx context.Context, eventID, fromUserID, toUserID string) error
	CountActiveOwners(ctx context.Context, eventID string) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed participant repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const participantColumns = `id, event_id, user_id, role, status,
	can_edit, can_manage_participants, can_manage_content, can_approve_content,
	invited_by, invited_at, joined_at, removed_at, created_at, updated_at`

// Create inserts a new participant record. The ID is generated if empty.
// Returns ErrAlreadyParticipant if the user already has a live record for
// the event.
func (r *SQLiteRepository) Create(ctx context.Context, p *Participant) error {
	if !IsStorableRole(p.Role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, p.Role)
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if !IsValidStatus(p.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, p.Status)
	}
	if p.ID == "" {
		p.ID = "par-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	p.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	p.UpdatedAt = p.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO participants (`+participantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.EventID, p.UserID, string(p.Role), string(p.Status),
		nullBool(p.Overrides.CanEdit), nullBool(p.Overrides.CanManageParticipants),
		nullBool(p.Overrides.CanManageContent), nullBool(p.Overrides.CanApproveContent),
		nullString(p.InvitedBy), nullTime(p.InvitedAt), nullTime(p.JoinedAt),
		nullTime(p.RemovedAt), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyParticipant
		}
		return fmt.Errorf("creating participant: %w", err)
	}

	return nil
}

// GetByID retrieves a participant by its record id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Participant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = ?`, id)
	return scanParticipant(row)
}

// GetLive retrieves the pending-or-approved participant record for
// (event, user), or ErrNotFound.
func (r *SQLiteRepository) GetLive(ctx context.Context, eventID, userID string) (*Participant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants
		 WHERE event_id = ? AND user_id = ? AND status IN ('pending', 'approved')`,
		eventID, userID)
	return scanParticipant(row)
}

// ListByEvent returns all participant records for an event, owner first.
func (r *SQLiteRepository) ListByEvent(ctx context.Context, eventID string) ([]Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants
		 WHERE event_id = ?
		 ORDER BY CASE role WHEN 'owner' THEN 0 ELSE 1 END, created_at`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}

	if out == nil {
		out = []Participant{}
	}
	return out, nil
}

// ListByUser returns the user's live records across events, newest first.
// Removed records are excluded: past membership grants nothing.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants
		 WHERE user_id = ? AND status IN ('pending', 'approved')
		 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing participants by user: %w", err)
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}

	if out == nil {
		out = []Participant{}
	}
	return out, nil
}

// UpdateStatus advances a participant's status with compare-and-set
// semantics: the update applies only if the current status equals from.
// Returns (false, nil) when another writer already advanced the record,
// so concurrent approvals observe exactly one pending->approved transition.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error) {
	if !IsValidStatus(to) {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	joined := ""
	if to == StatusApproved {
		joined = now
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE participants
		 SET status = ?, joined_at = COALESCE(NULLIF(?, ''), joined_at), updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), joined, now, id, string(from))
	if err != nil {
		return false, fmt.Errorf("updating participant status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking status update: %w", err)
	}
	return n == 1, nil
}

// SetOverrides replaces the permission overrides on a participant record.
func (r *SQLiteRepository) SetOverrides(ctx context.Context, id string, o Overrides) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx,
		`UPDATE participants
		 SET can_edit = ?, can_manage_participants = ?, can_manage_content = ?, can_approve_content = ?, updated_at = ?
		 WHERE id = ?`,
		nullBool(o.CanEdit), nullBool(o.CanManageParticipants),
		nullBool(o.CanManageContent), nullBool(o.CanApproveContent), now, id)
	if err != nil {
		return fmt.Errorf("setting participant overrides: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking override update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove soft-removes a participant (status -> removed or left).
// The owner record cannot be removed; the event itself must be deleted instead.
func (r *SQLiteRepository) Remove(ctx context.Context, id string, status Status) error {
	if status != StatusRemoved && status != StatusLeft {
		return fmt.Errorf("%w: remove status must be removed or left, got %q", ErrInvalidStatus, status)
	}

	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Role == RoleOwner {
		return ErrOwnerImmutable
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx,
		`UPDATE participants SET status = ?, removed_at = ?, updated_at = ?
		 WHERE id = ? AND role != 'owner'`,
		string(status), now, now, id)
	if err != nil {
		return fmt.Errorf("removing participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking participant removal: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TransferOwnership atomically moves the owner role from one user to
// another. The previous owner becomes an approved co-host. If the new
// owner has a live record it is promoted; otherwise a new approved record
// is created. The whole transfer commits or none of it does.
func (r *SQLiteRepository) TransferOwnership(ctx context.Context, eventID, fromUserID, toUserID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ownership transfer: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)

	// Demote the current owner; the WHERE clause verifies they actually
	// hold the role so a racing transfer cannot double-apply.
	res, err := tx.ExecContext(ctx,
		`UPDATE participants SET role = 'co_host', updated_at = ?
		 WHERE event_id = ? AND user_id = ? AND role = 'owner' AND status = 'approved'`,
		now, eventID, fromUserID)
	if err != nil {
		return fmt.Errorf("demoting previous owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking owner demotion: %w", err)
	}
	if n == 0 {
		return ErrNotOwner
	}

	// Promote the new owner, or create their record if they have none.
	res, err = tx.ExecContext(ctx,
		`UPDATE participants SET role = 'owner', status = 'approved', updated_at = ?
		 WHERE event_id = ? AND user_id = ? AND status IN ('pending', 'approved')`,
		now, eventID, toUserID)
	if err != nil {
		return fmt.Errorf("promoting new owner: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking owner promotion: %w", err)
	}
	if n == 0 {
		id := "par-" + uuid.NewString()[:8]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO participants (id, event_id, user_id, role, status, joined_at, created_at, updated_at)
			 VALUES (?, ?, ?, 'owner', 'approved', ?, ?, ?)`,
			id, eventID, toUserID, now, now, now); err != nil {
			return fmt.Errorf("creating new owner record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ownership transfer: %w", err)
	}
	return nil
}

// CountActiveOwners returns the number of approved owner records for an
// event. Anything other than exactly one is an invariant violation the
// caller must surface.
func (r *SQLiteRepository) CountActiveOwners(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM participants
		 WHERE event_id = ? AND role = 'owner' AND status = 'approved'`,
		eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting owners: %w", err)
	}
	return count, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanParticipant(s scanner) (*Participant, error) {
	var p Participant
	var role, status string
	var canEdit, canManageParticipants, canManageContent, canApproveContent sql.NullInt64
	var invitedBy, invitedAt, joinedAt, removedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.EventID, &p.UserID, &role, &status,
		&canEdit, &canManageParticipants, &canManageContent, &canApproveContent,
		&invitedBy, &invitedAt, &joinedAt, &removedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning participant: %w", err)
	}

	p.Role = Role(role)
	p.Status = Status(status)
	p.Overrides = Overrides{
		CanEdit:               boolPtr(canEdit),
		CanManageParticipants: boolPtr(canManageParticipants),
		CanManageContent:      boolPtr(canManageContent),
		CanApproveContent:     boolPtr(canApproveContent),
	}
	if invitedBy.Valid {
		p.InvitedBy = invitedBy.String
	}
	p.InvitedAt = parseNullTime(invitedAt)
	p.JoinedAt = parseNullTime(joinedAt)
	p.RemovedAt = parseNullTime(removedAt)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	v := int64(0)
	if *b {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func boolPtr(n sql.NullInt64) *bool {
	if !n.Valid {
		return nil
	}
	b := n.Int64 != 0
	return &b
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

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
