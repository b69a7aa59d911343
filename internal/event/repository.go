package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionAction is the side effect a transition applies to anonymous
// sessions of the event.
type SessionAction string

const (
	// ActionNone leaves anonymous sessions untouched.
	ActionNone SessionAction = "none"

	// ActionBlock expires anonymous sessions immediately.
	ActionBlock SessionAction = "block"

	// ActionGrace sets a grace deadline on sessions that have none.
	ActionGrace SessionAction = "grace_period"

	// ActionForceLogin sets a short deadline and flags the session as
	// needing authentication.
	ActionForceLogin SessionAction = "force_login"
)

// TransitionPlan is a fully-resolved visibility change ready to apply.
// The engine computes deadlines; the repository applies the plan in one
// transaction.
type TransitionPlan struct {
	EventID string
	From    Visibility
	To      Visibility

	Action SessionAction

	// Deadline is the grace expiry to stamp on affected sessions. Ignored
	// for ActionNone; equals Now for ActionBlock.
	Deadline time.Time

	Now time.Time
}

// Repository defines the interface for event persistence.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context) ([]Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
	ApplyTransition(ctx context.Context, plan *TransitionPlan) (int, error)

	TouchSession(ctx context.Context, eventID, fingerprint string, now time.Time) (*AnonymousSession, error)
	GetSession(ctx context.Context, eventID, fingerprint string) (*AnonymousSession, error)
	ListSessions(ctx context.Context, eventID string) ([]AnonymousSession, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed event repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const eventColumns = `id, title, created_by, visibility, previous_visibility,
	visibility_changed_at, anonymous_transition_policy, grace_period_hours,
	can_view, can_upload, can_download, require_approval, allowed_media_types,
	created_at, updated_at`

// Create inserts a new event. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Event) error {
	if !IsValidVisibility(e.Visibility) {
		return fmt.Errorf("%w: %q", ErrInvalidVisibility, e.Visibility)
	}
	if !IsValidPolicy(e.TransitionPolicy) {
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, e.TransitionPolicy)
	}
	if e.ID == "" {
		e.ID = "evt-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	e.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	e.UpdatedAt = e.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.CreatedBy, string(e.Visibility),
		nullVisibility(e.PreviousVisibility), nullTime(e.VisibilityChangedAt),
		string(e.TransitionPolicy), e.GracePeriodHours,
		boolToInt(e.Permissions.CanView), boolToInt(e.Permissions.CanUpload),
		boolToInt(e.Permissions.CanDownload), boolToInt(e.Permissions.RequireApproval),
		strings.Join(e.AllowedMediaTypes, ","), now, now,
	)
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}

	return nil
}

// GetByID retrieves an event by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// List returns all events, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	if out == nil {
		out = []Event{}
	}
	return out, nil
}

// Update persists the event's mutable settings. Visibility is excluded:
// visibility changes must go through ApplyTransition so their side effects
// are applied.
func (r *SQLiteRepository) Update(ctx context.Context, e *Event) error {
	if !IsValidPolicy(e.TransitionPolicy) {
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, e.TransitionPolicy)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET title = ?, anonymous_transition_policy = ?,
		 grace_period_hours = ?, can_view = ?, can_upload = ?, can_download = ?,
		 require_approval = ?, allowed_media_types = ?, updated_at = ?
		 WHERE id = ?`,
		e.Title, string(e.TransitionPolicy), e.GracePeriodHours,
		boolToInt(e.Permissions.CanView), boolToInt(e.Permissions.CanUpload),
		boolToInt(e.Permissions.CanDownload), boolToInt(e.Permissions.RequireApproval),
		strings.Join(e.AllowedMediaTypes, ","), now, e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking event update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	e.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	return nil
}

// Delete removes an event. Participants, tokens, and sessions cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking event deletion: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyTransition flips the event's visibility and applies the plan's
// session side effect in one transaction. The visibility update is a
// compare-and-set against plan.From: if another transition won the race,
// ErrTransitionConflict is returned and nothing is changed.
//
// Returns the number of anonymous sessions affected.
func (r *SQLiteRepository) ApplyTransition(ctx context.Context, plan *TransitionPlan) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	now := plan.Now.UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET visibility = ?, previous_visibility = ?,
		 visibility_changed_at = ?, updated_at = ?
		 WHERE id = ? AND visibility = ?`,
		string(plan.To), string(plan.From), now, now,
		plan.EventID, string(plan.From),
	)
	if err != nil {
		return 0, fmt.Errorf("updating visibility: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking visibility update: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM events WHERE id = ?", plan.EventID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("checking event state: %w", err)
		}
		return 0, ErrTransitionConflict
	}

	affected, err := applySessionAction(ctx, tx, plan)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transition: %w", err)
	}
	return affected, nil
}

// applySessionAction stamps grace deadlines on the event's anonymous
// sessions. Deadlines are monotonic: ActionGrace and ActionForceLogin only
// set a deadline where none exists, and ActionBlock only moves existing
// deadlines earlier.
func applySessionAction(ctx context.Context, tx *sql.Tx, plan *TransitionPlan) (int, error) {
	if plan.Action == ActionNone {
		return 0, nil
	}

	deadline := plan.Deadline.UTC().Format(time.RFC3339)
	var res sql.Result
	var err error

	switch plan.Action {
	case ActionBlock:
		res, err = tx.ExecContext(ctx,
			`UPDATE anonymous_sessions SET grace_period_expires = ?
			 WHERE event_id = ?
			   AND (grace_period_expires IS NULL OR grace_period_expires > ?)`,
			deadline, plan.EventID, deadline)
	case ActionGrace:
		res, err = tx.ExecContext(ctx,
			`UPDATE anonymous_sessions SET grace_period_expires = ?
			 WHERE event_id = ? AND grace_period_expires IS NULL`,
			deadline, plan.EventID)
	case ActionForceLogin:
		res, err = tx.ExecContext(ctx,
			`UPDATE anonymous_sessions SET grace_period_expires = ?, force_login = 1
			 WHERE event_id = ? AND grace_period_expires IS NULL`,
			deadline, plan.EventID)
	default:
		return 0, fmt.Errorf("unknown session action %q", plan.Action)
	}
	if err != nil {
		return 0, fmt.Errorf("applying session action %s: %w", plan.Action, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting affected sessions: %w", err)
	}
	return int(n), nil
}

// TouchSession records activity from an anonymous device, creating the
// session on first sight. The (event, fingerprint) pair is unique; a lost
// insert race falls back to updating the existing row.
func (r *SQLiteRepository) TouchSession(ctx context.Context, eventID, fingerprint string, now time.Time) (*AnonymousSession, error) {
	ts := now.UTC().Format(time.RFC3339)
	id := "ans-" + uuid.NewString()[:8]

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO anonymous_sessions (id, event_id, fingerprint, created_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(event_id, fingerprint) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
		id, eventID, fingerprint, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("touching anonymous session: %w", err)
	}

	return r.GetSession(ctx, eventID, fingerprint)
}

// GetSession retrieves the anonymous session for a device, if any.
func (r *SQLiteRepository) GetSession(ctx context.Context, eventID, fingerprint string) (*AnonymousSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, fingerprint, grace_period_expires, force_login,
		 created_at, last_seen_at
		 FROM anonymous_sessions WHERE event_id = ? AND fingerprint = ?`,
		eventID, fingerprint)
	return scanSession(row)
}

// ListSessions returns all anonymous sessions for an event.
func (r *SQLiteRepository) ListSessions(ctx context.Context, eventID string) ([]AnonymousSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, fingerprint, grace_period_expires, force_login,
		 created_at, last_seen_at
		 FROM anonymous_sessions WHERE event_id = ? ORDER BY created_at`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("listing anonymous sessions: %w", err)
	}
	defer rows.Close()

	var out []AnonymousSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating anonymous sessions: %w", err)
	}

	if out == nil {
		out = []AnonymousSession{}
	}
	return out, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*Event, error) {
	var e Event
	var visibility, policy, mediaTypes, createdAt, updatedAt string
	var prevVisibility, changedAt sql.NullString
	var canView, canUpload, canDownload, requireApproval int

	err := s.Scan(&e.ID, &e.Title, &e.CreatedBy, &visibility, &prevVisibility,
		&changedAt, &policy, &e.GracePeriodHours,
		&canView, &canUpload, &canDownload, &requireApproval, &mediaTypes,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}

	e.Visibility = Visibility(visibility)
	if prevVisibility.Valid {
		v := Visibility(prevVisibility.String)
		e.PreviousVisibility = &v
	}
	e.VisibilityChangedAt = parseNullTime(changedAt)
	e.TransitionPolicy = TransitionPolicy(policy)
	e.Permissions = Permissions{
		CanView:         canView != 0,
		CanUpload:       canUpload != 0,
		CanDownload:     canDownload != 0,
		RequireApproval: requireApproval != 0,
	}
	if mediaTypes != "" {
		e.AllowedMediaTypes = strings.Split(mediaTypes, ",")
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &e, nil
}

func scanSession(s scanner) (*AnonymousSession, error) {
	var sess AnonymousSession
	var graceExpires sql.NullString
	var forceLogin int
	var createdAt, lastSeenAt string

	err := s.Scan(&sess.ID, &sess.EventID, &sess.Fingerprint, &graceExpires,
		&forceLogin, &createdAt, &lastSeenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning anonymous session: %w", err)
	}

	sess.GracePeriodExpires = parseNullTime(graceExpires)
	sess.ForceLogin = forceLogin != 0
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)   //nolint:errcheck // format is controlled
	sess.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeenAt) //nolint:errcheck // format is controlled

	return &sess, nil
}

// Helper functions.

func nullVisibility(v *Visibility) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
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
