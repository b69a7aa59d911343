package access

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mwrenholt/gatherly-core/internal/clock"
	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/participant"
	"github.com/mwrenholt/gatherly-core/internal/sharetoken"
)

// fixture wires a real database behind the checker so decisions are tested
// end to end, not against mocks.
type fixture struct {
	events       *event.SQLiteRepository
	participants *participant.SQLiteRepository
	tokens       *sharetoken.SQLiteRepository
	checker      *Checker
	service      *Service
	clock        *clock.Fixed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_by TEXT NOT NULL,
		visibility TEXT NOT NULL DEFAULT 'invited_only',
		previous_visibility TEXT,
		visibility_changed_at TEXT,
		anonymous_transition_policy TEXT NOT NULL DEFAULT 'grace_period',
		grace_period_hours INTEGER NOT NULL DEFAULT 24,
		can_view INTEGER NOT NULL DEFAULT 1,
		can_upload INTEGER NOT NULL DEFAULT 1,
		can_download INTEGER NOT NULL DEFAULT 1,
		require_approval INTEGER NOT NULL DEFAULT 0,
		allowed_media_types TEXT NOT NULL DEFAULT 'image,video',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	) STRICT;

	CREATE TABLE participants (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		can_edit INTEGER,
		can_manage_participants INTEGER,
		can_manage_content INTEGER,
		can_approve_content INTEGER,
		invited_by TEXT,
		invited_at TEXT,
		joined_at TEXT,
		removed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	) STRICT;

	CREATE UNIQUE INDEX idx_participants_active
		ON participants(event_id, user_id)
		WHERE status IN ('pending', 'approved');

	CREATE TABLE share_tokens (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		token_type TEXT NOT NULL DEFAULT 'view',
		can_view INTEGER NOT NULL DEFAULT 1,
		can_upload INTEGER NOT NULL DEFAULT 0,
		can_download INTEGER NOT NULL DEFAULT 0,
		can_share INTEGER NOT NULL DEFAULT 0,
		can_comment INTEGER NOT NULL DEFAULT 0,
		max_uses INTEGER,
		expires_at TEXT,
		allowed_emails TEXT,
		requires_approval INTEGER NOT NULL DEFAULT 0,
		password_hash TEXT,
		usage_count INTEGER NOT NULL DEFAULT 0,
		revoked INTEGER NOT NULL DEFAULT 0,
		revoked_at TEXT,
		revoked_by TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	) STRICT;

	CREATE TABLE share_token_uses (
		id TEXT PRIMARY KEY,
		token_id TEXT NOT NULL REFERENCES share_tokens(id) ON DELETE CASCADE,
		used_by TEXT NOT NULL,
		used_at TEXT NOT NULL
	) STRICT;

	CREATE TABLE anonymous_sessions (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		fingerprint TEXT NOT NULL,
		grace_period_expires TEXT,
		force_login INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		last_seen_at TEXT NOT NULL
	) STRICT;

	CREATE UNIQUE INDEX idx_anonymous_sessions_device
		ON anonymous_sessions(event_id, fingerprint);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})

	clk := clock.NewFixed(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	events := event.NewSQLiteRepository(db)
	participants := participant.NewSQLiteRepository(db)
	tokens := sharetoken.NewSQLiteRepository(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	checker := NewChecker(events, participants,
		sharetoken.NewValidator(tokens, clk), clk, logger)
	engine := event.NewEngine(events, clk, time.Hour)

	return &fixture{
		events:       events,
		participants: participants,
		tokens:       tokens,
		checker:      checker,
		service:      NewService(checker, engine),
		clock:        clk,
	}
}

// seedEvent creates an event owned by usr-owner with the given visibility
// and an owner participant record.
func (f *fixture) seedEvent(t *testing.T, visibility event.Visibility, perms event.Permissions) *event.Event {
	t.Helper()

	e := &event.Event{
		Title:            "Summer Wedding",
		CreatedBy:        "usr-owner",
		Visibility:       visibility,
		TransitionPolicy: event.PolicyGracePeriod,
		GracePeriodHours: 24,
		Permissions:      perms,
	}
	if err := f.events.Create(context.Background(), e); err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}

	owner := &participant.Participant{
		EventID: e.ID,
		UserID:  "usr-owner",
		Role:    participant.RoleOwner,
		Status:  participant.StatusApproved,
	}
	if err := f.participants.Create(context.Background(), owner); err != nil {
		t.Fatalf("failed to seed owner record: %v", err)
	}

	return e
}

// seedParticipant adds an approved participant with the given role.
func (f *fixture) seedParticipant(t *testing.T, eventID, userID string, role participant.Role, ov participant.Overrides) *participant.Participant {
	t.Helper()

	p := &participant.Participant{
		EventID:   eventID,
		UserID:    userID,
		Role:      role,
		Status:    participant.StatusApproved,
		Overrides: ov,
	}
	if err := f.participants.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to seed participant: %v", err)
	}
	return p
}

func boolPtr(b bool) *bool { return &b }
