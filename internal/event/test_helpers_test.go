package event

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates an in-temp-dir SQLite database with the event and
// anonymous session schema.
func testDB(t *testing.T) *sql.DB {
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

	return db
}

// seedEvent inserts an event via the repository and returns it.
func seedEvent(t *testing.T, repo *SQLiteRepository, e *Event) *Event {
	t.Helper()

	if e.Title == "" {
		e.Title = "Summer Wedding"
	}
	if e.CreatedBy == "" {
		e.CreatedBy = "usr-owner"
	}
	if e.Visibility == "" {
		e.Visibility = VisibilityAnyoneWithLink
	}
	if e.TransitionPolicy == "" {
		e.TransitionPolicy = PolicyGracePeriod
	}
	if e.GracePeriodHours == 0 {
		e.GracePeriodHours = 24
	}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return e
}

// seedSession creates an anonymous session for the event.
func seedSession(t *testing.T, repo *SQLiteRepository, eventID, fingerprint string) *AnonymousSession {
	t.Helper()

	s, err := repo.TouchSession(context.Background(), eventID, fingerprint, time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return s
}
