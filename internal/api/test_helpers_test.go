package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mwrenholt/gatherly-core/internal/access"
	"github.com/mwrenholt/gatherly-core/internal/audit"
	"github.com/mwrenholt/gatherly-core/internal/clock"
	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/identity"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/config"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/logging"
	"github.com/mwrenholt/gatherly-core/internal/media"
	"github.com/mwrenholt/gatherly-core/internal/participant"
	"github.com/mwrenholt/gatherly-core/internal/sharetoken"
)

const testSecret = "test-secret-for-api-tests"

// testStack is a fully wired server over a real SQLite database, so
// handler tests exercise the same SQL the service runs in production.
type testStack struct {
	server  *Server
	router  http.Handler
	clock   *clock.Fixed
	events  *event.SQLiteRepository
	parts   *participant.SQLiteRepository
	tokens  *sharetoken.SQLiteRepository
	mediaDB *media.SQLiteRepository
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})

	applyMigrations(t, db)

	clk := clock.NewFixed(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	events := event.NewSQLiteRepository(db)
	parts := participant.NewSQLiteRepository(db)
	tokens := sharetoken.NewSQLiteRepository(db)
	mediaRepo := media.NewSQLiteRepository(db)
	auditRepo := audit.NewSQLiteRepository(db)

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")

	checker := access.NewChecker(events, parts,
		sharetoken.NewValidator(tokens, clk), clk, logger.Logger)
	engine := event.NewEngine(events, clk, time.Hour)

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		Sharing: config.SharingConfig{
			GracePeriodHours:        24,
			ForceLoginGraceHours:    1,
			DefaultTransitionPolicy: "grace_period",
			TokenBytes:              32,
		},
		Logger:       logger,
		Identity:     identity.NewResolver(testSecret),
		Access:       access.NewService(checker, engine),
		Events:       events,
		Participants: parts,
		Tokens:       tokens,
		Media:        mediaRepo,
		Audit:        auditRepo,
		Clock:        clk,
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	// The audit channel normally starts with the listener; tests write
	// synchronously through a drained channel instead.
	srv.auditCh = make(chan *audit.AuditLog, auditChanSize)
	ctx, cancel := context.WithCancel(context.Background())
	go srv.drainAuditLog(ctx)
	t.Cleanup(cancel)

	return &testStack{
		server:  srv,
		router:  srv.buildRouter(),
		clock:   clk,
		events:  events,
		parts:   parts,
		tokens:  tokens,
		mediaDB: mediaRepo,
	}
}

// applyMigrations runs the real migration files against the test database.
func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()

	dir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read migrations dir: %v", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if filepath.Ext(name) != ".sql" || len(name) < 7 || name[len(name)-7:] != ".up.sql" {
			continue
		}
		sqlBytes, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("failed to read migration %s: %v", name, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("failed to apply migration %s: %v", name, err)
		}
	}
}

// bearerFor returns an Authorization header value for a user.
func bearerFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := identity.GenerateAccessToken(userID, "Test User", testSecret, 60)
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}
	return "Bearer " + token
}

// request performs one router round trip. A non-empty auth value is set
// as the Authorization header; body is JSON-encoded when non-nil.
func (ts *testStack) request(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:51234"
	req.Header.Set("User-Agent", "gatherly-test/1.0")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded JSON response body.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// seedEvent creates an event through the repository plus its owner record.
func (ts *testStack) seedEvent(t *testing.T, visibility event.Visibility, perms event.Permissions) *event.Event {
	t.Helper()

	e := &event.Event{
		Title:            "Summer Wedding",
		CreatedBy:        "usr-owner",
		Visibility:       visibility,
		TransitionPolicy: event.PolicyGracePeriod,
		GracePeriodHours: 24,
		Permissions:      perms,
	}
	if err := ts.events.Create(context.Background(), e); err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}

	owner := &participant.Participant{
		EventID: e.ID,
		UserID:  "usr-owner",
		Role:    participant.RoleOwner,
		Status:  participant.StatusApproved,
	}
	if err := ts.parts.Create(context.Background(), owner); err != nil {
		t.Fatalf("failed to seed owner record: %v", err)
	}

	return e
}
