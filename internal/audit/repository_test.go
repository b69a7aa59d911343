package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE audit_logs (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT,
		user_id TEXT,
		source TEXT NOT NULL DEFAULT 'api',
		details TEXT,
		created_at TEXT NOT NULL
	) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})

	return db
}

func TestCreateAndList(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	entry := &AuditLog{
		Action:     ActionVisibilityChanged,
		EntityType: EntityEvent,
		EntityID:   "evt-1",
		UserID:     "usr-owner",
		Source:     "api",
		Details:    map[string]any{"from": "anyone_with_link", "to": "private"},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if entry.ID == "" {
		t.Error("expected generated ID")
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if res.Total != 1 || len(res.Logs) != 1 {
		t.Fatalf("expected 1 entry, got total=%d len=%d", res.Total, len(res.Logs))
	}

	got := res.Logs[0]
	if got.Action != ActionVisibilityChanged || got.EntityID != "evt-1" {
		t.Errorf("entry not preserved: %+v", got)
	}
	if got.Details["to"] != "private" {
		t.Errorf("details not preserved: %v", got.Details)
	}
}

func TestListFilters(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	entries := []*AuditLog{
		{Action: ActionTokenRevoked, EntityType: EntityShareToken, EntityID: "tok-1", Source: "api"},
		{Action: ActionMediaReviewed, EntityType: EntityMedia, EntityID: "med-1", Source: "api"},
		{Action: ActionMediaReviewed, EntityType: EntityMedia, EntityID: "med-2", Source: "api"},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{Action: ActionMediaReviewed})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("expected 2 media reviews, got %d", res.Total)
	}

	res, err = repo.List(ctx, Filter{EntityType: EntityShareToken, EntityID: "tok-1"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if res.Total != 1 || res.Logs[0].Action != ActionTokenRevoked {
		t.Errorf("expected the token revocation, got %+v", res.Logs)
	}
}

func TestListPagination(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, &AuditLog{
			Action: ActionEventCreated, EntityType: EntityEvent, Source: "api",
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if res.Total != 5 {
		t.Errorf("expected total 5, got %d", res.Total)
	}
	if len(res.Logs) != 1 {
		t.Errorf("expected 1 entry on the last page, got %d", len(res.Logs))
	}
	if res.Limit != 2 || res.Offset != 4 {
		t.Errorf("filter echo wrong: limit=%d offset=%d", res.Limit, res.Offset)
	}
}
