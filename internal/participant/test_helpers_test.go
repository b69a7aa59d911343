package participant

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the participant schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "participant-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE events (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_by TEXT NOT NULL
		) STRICT;

		CREATE TABLE participants (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
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
			updated_at TEXT NOT NULL,
			FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
		) STRICT;

		CREATE UNIQUE INDEX idx_participants_active
			ON participants(event_id, user_id)
			WHERE status IN ('pending', 'approved');
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	if _, err := db.Exec(
		"INSERT INTO events (id, title, created_by) VALUES ('evt-1', 'Test Wedding', 'usr-owner')",
	); err != nil {
		t.Fatalf("seeding test event: %v", err)
	}

	return db
}

// seedParticipant inserts a participant and returns it.
func seedParticipant(t *testing.T, repo *SQLiteRepository, eventID, userID string, role Role, status Status) *Participant {
	t.Helper()

	p := &Participant{
		EventID: eventID,
		UserID:  userID,
		Role:    role,
		Status:  status,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seeding participant %s/%s: %v", eventID, userID, err)
	}
	return p
}
