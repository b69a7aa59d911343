package sharetoken

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates an in-temp-dir SQLite database with the share token schema
// and one seeded event.
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
		visibility TEXT NOT NULL DEFAULT 'invited_only',
		created_at TEXT NOT NULL
	) STRICT;

	CREATE TABLE share_tokens (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		token_type TEXT NOT NULL CHECK (token_type IN ('invite', 'view', 'upload')),
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

	INSERT INTO events (id, title, visibility, created_at)
	VALUES ('evt-1', 'Summer Wedding', 'anyone_with_link', '2026-06-01T10:00:00Z');
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})

	return db
}

// seedToken inserts a token via the repository and returns it.
func seedToken(t *testing.T, repo *SQLiteRepository, tok *ShareToken) *ShareToken {
	t.Helper()

	if tok.EventID == "" {
		tok.EventID = "evt-1"
	}
	if tok.Type == "" {
		tok.Type = TypeInvite
	}
	if tok.CreatedBy == "" {
		tok.CreatedBy = "usr-owner"
	}
	if err := repo.Create(context.Background(), tok); err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}
	return tok
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }
