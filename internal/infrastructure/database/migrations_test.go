package database

import (
	"context"
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	cases := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_initial_schema.up.sql", "20260301_120000", true, true},
		{"20260301_120000_initial_schema.down.sql", "20260301_120000", false, true},
		{"20260301_120000_initial_schema.sql", "", false, false},
		{"readme.md", "", false, false},
		{"bad.up.sql", "", false, false},
	}

	for _, tc := range cases {
		version, isUp, ok := parseMigrationFilename(tc.name)
		if ok != tc.wantOK {
			t.Errorf("parseMigrationFilename(%q) ok = %v, want %v", tc.name, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if version != tc.wantVersion {
			t.Errorf("parseMigrationFilename(%q) version = %q, want %q", tc.name, version, tc.wantVersion)
		}
		if isUp != tc.wantUp {
			t.Errorf("parseMigrationFilename(%q) isUp = %v, want %v", tc.name, isUp, tc.wantUp)
		}
	}
}

func TestExtractMigrationName(t *testing.T) {
	if got := extractMigrationName("20260301_120000_access_model.up.sql"); got != "access_model" {
		t.Errorf("extractMigrationName() = %q, want %q", got, "access_model")
	}
}

func TestMigrate_NoEmbeddedFS(t *testing.T) {
	// Without an embedded FS, Migrate should succeed as a no-op after
	// creating the schema_migrations table.
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var count int
	err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("checking schema_migrations table: %v", err)
	}
	if count != 1 {
		t.Error("schema_migrations table not created")
	}
}
