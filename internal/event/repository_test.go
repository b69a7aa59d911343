package event

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateAndGetByID(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	e := seedEvent(t, repo, &Event{
		Title:             "Birthday Party",
		Visibility:        VisibilityInvitedOnly,
		TransitionPolicy:  PolicyBlockAll,
		GracePeriodHours:  12,
		Permissions:       Permissions{CanView: true, CanUpload: true, RequireApproval: true},
		AllowedMediaTypes: []string{"image"},
	})

	if e.ID == "" {
		t.Error("expected generated ID")
	}

	got, err := repo.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Birthday Party" {
		t.Errorf("expected title preserved, got %q", got.Title)
	}
	if got.Visibility != VisibilityInvitedOnly {
		t.Errorf("expected invited_only, got %q", got.Visibility)
	}
	if got.TransitionPolicy != PolicyBlockAll {
		t.Errorf("expected block_all, got %q", got.TransitionPolicy)
	}
	if got.GracePeriodHours != 12 {
		t.Errorf("expected grace 12h, got %d", got.GracePeriodHours)
	}
	if got.PreviousVisibility != nil {
		t.Errorf("new event should have no previous visibility, got %v", *got.PreviousVisibility)
	}
	if !got.Permissions.RequireApproval || got.Permissions.CanDownload {
		t.Errorf("permissions not preserved: %+v", got.Permissions)
	}
	if len(got.AllowedMediaTypes) != 1 || got.AllowedMediaTypes[0] != "image" {
		t.Errorf("allowed media types not preserved: %v", got.AllowedMediaTypes)
	}
}

func TestCreateRejectsInvalidValues(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	err := repo.Create(ctx, &Event{
		Title: "x", CreatedBy: "usr-1",
		Visibility:       Visibility("public"),
		TransitionPolicy: PolicyGracePeriod,
	})
	if !errors.Is(err, ErrInvalidVisibility) {
		t.Errorf("expected ErrInvalidVisibility, got %v", err)
	}

	err = repo.Create(ctx, &Event{
		Title: "x", CreatedBy: "usr-1",
		Visibility:       VisibilityPrivate,
		TransitionPolicy: TransitionPolicy("lockdown"),
	})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetByID(context.Background(), "evt-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	e := seedEvent(t, repo, &Event{})

	e.Title = "Renamed"
	e.TransitionPolicy = PolicyForceLogin
	e.GracePeriodHours = 6
	e.Permissions.CanUpload = true
	if err := repo.Update(ctx, e); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repo.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Renamed" || got.TransitionPolicy != PolicyForceLogin || got.GracePeriodHours != 6 {
		t.Errorf("settings not updated: %+v", got)
	}
}

func TestUpdateNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	err := repo.Update(context.Background(), &Event{
		ID: "evt-missing", Title: "x", TransitionPolicy: PolicyGracePeriod,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	e := seedEvent(t, repo, &Event{})
	seedSession(t, repo, e.ID, "fp-1")

	if err := repo.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Sessions cascade with the event.
	if _, err := repo.GetSession(ctx, e.ID, "fp-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected session cascade delete, got %v", err)
	}
}

func TestApplyTransitionConflict(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	e := seedEvent(t, repo, &Event{Visibility: VisibilityAnyoneWithLink})

	now := time.Now().UTC()
	plan := &TransitionPlan{
		EventID: e.ID,
		From:    VisibilityAnyoneWithLink,
		To:      VisibilityInvitedOnly,
		Action:  ActionNone,
		Now:     now,
	}
	if _, err := repo.ApplyTransition(ctx, plan); err != nil {
		t.Fatalf("ApplyTransition failed: %v", err)
	}

	// The same plan again is now stale: the event is no longer at From.
	_, err := repo.ApplyTransition(ctx, plan)
	if !errors.Is(err, ErrTransitionConflict) {
		t.Errorf("expected ErrTransitionConflict, got %v", err)
	}

	got, err := repo.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Visibility != VisibilityInvitedOnly {
		t.Errorf("expected invited_only, got %q", got.Visibility)
	}
	if got.PreviousVisibility == nil || *got.PreviousVisibility != VisibilityAnyoneWithLink {
		t.Errorf("previous visibility not recorded: %v", got.PreviousVisibility)
	}
	if got.VisibilityChangedAt == nil {
		t.Error("visibility_changed_at not recorded")
	}
}

func TestApplyTransitionMissingEvent(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.ApplyTransition(context.Background(), &TransitionPlan{
		EventID: "evt-missing",
		From:    VisibilityAnyoneWithLink,
		To:      VisibilityPrivate,
		Action:  ActionNone,
		Now:     time.Now().UTC(),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTouchSessionUpsert(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	e := seedEvent(t, repo, &Event{})

	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s, err := repo.TouchSession(ctx, e.ID, "fp-device", first)
	if err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}
	if s.ID == "" {
		t.Error("expected generated session ID")
	}
	if !s.LastSeenAt.Equal(first) {
		t.Errorf("expected last_seen %v, got %v", first, s.LastSeenAt)
	}

	later := first.Add(2 * time.Hour)
	s2, err := repo.TouchSession(ctx, e.ID, "fp-device", later)
	if err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}
	if s2.ID != s.ID {
		t.Errorf("touch should update the existing session, got new ID %q", s2.ID)
	}
	if !s2.CreatedAt.Equal(first) {
		t.Errorf("created_at should be stable, got %v", s2.CreatedAt)
	}
	if !s2.LastSeenAt.Equal(later) {
		t.Errorf("expected last_seen %v, got %v", later, s2.LastSeenAt)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	open := &AnonymousSession{}
	if open.Expired(now) {
		t.Error("session without deadline should never expire")
	}

	past := now.Add(-time.Minute)
	expired := &AnonymousSession{GracePeriodExpires: &past}
	if !expired.Expired(now) {
		t.Error("session past deadline should be expired")
	}

	future := now.Add(time.Minute)
	alive := &AnonymousSession{GracePeriodExpires: &future}
	if alive.Expired(now) {
		t.Error("session before deadline should not be expired")
	}
}
