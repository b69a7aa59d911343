package access

import (
	"testing"

	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/participant"
	"github.com/mwrenholt/gatherly-core/internal/sharetoken"
)

func openEvent() *event.Event {
	return &event.Event{
		ID:         "evt-1",
		Visibility: event.VisibilityAnyoneWithLink,
		Permissions: event.Permissions{
			CanView: true, CanUpload: true, CanDownload: true,
		},
	}
}

func TestDeriveOwnerHasEverything(t *testing.T) {
	caps := Derive(participant.RoleOwner, openEvent(), participant.Overrides{}, nil)

	for _, c := range []Capability{
		CapView, CapUpload, CapDownload, CapEdit, CapDelete,
		CapManageParticipants, CapInviteOthers, CapModerateContent,
		CapApproveContent, CapExportData, CapManageSettings,
		CapViewAnalytics, CapTransferOwnership,
	} {
		if !caps.Has(c) {
			t.Errorf("owner should have %q", c)
		}
	}
}

func TestDeriveCoHostDefaults(t *testing.T) {
	caps := Derive(participant.RoleCoHost, openEvent(), participant.Overrides{}, nil)

	if !caps.CanEdit || !caps.CanManageParticipants || !caps.CanModerateContent || !caps.CanApproveContent {
		t.Errorf("co-host defaults should grant management capabilities: %+v", caps)
	}
	if caps.CanDelete {
		t.Error("co-host must never delete the event")
	}
	if caps.CanTransferOwnership {
		t.Error("co-host must not transfer ownership")
	}
}

func TestDeriveCoHostOverrides(t *testing.T) {
	// A co-host stripped of content moderation keeps the role but loses
	// the capability; an untouched co-host keeps the default.
	stripped := Derive(participant.RoleCoHost, openEvent(),
		participant.Overrides{CanManageContent: boolPtr(false)}, nil)
	if stripped.CanModerateContent {
		t.Error("override manage_content=false should remove moderation")
	}
	if !stripped.CanEdit {
		t.Error("unrelated capabilities should keep their defaults")
	}

	vanilla := Derive(participant.RoleCoHost, openEvent(), participant.Overrides{}, nil)
	if !vanilla.CanModerateContent {
		t.Error("co-host without overrides should moderate by default")
	}

	noEdit := Derive(participant.RoleCoHost, openEvent(),
		participant.Overrides{CanEdit: boolPtr(false)}, nil)
	if noEdit.CanEdit || noEdit.CanManageSettings {
		t.Error("edit override should also remove settings management")
	}
}

func TestDeriveGuestFollowsEventPermissions(t *testing.T) {
	e := openEvent()
	e.Permissions.CanUpload = false

	for _, role := range []participant.Role{participant.RoleGuest, participant.RoleAuthenticatedGuest} {
		caps := Derive(role, e, participant.Overrides{}, nil)
		if !caps.CanView {
			t.Errorf("%s should view an open event", role)
		}
		if caps.CanUpload {
			t.Errorf("%s upload should follow event.can_upload=false", role)
		}
		if !caps.CanDownload {
			t.Errorf("%s download should follow event.can_download=true", role)
		}
		if caps.CanEdit || caps.CanModerateContent || caps.CanManageParticipants {
			t.Errorf("%s must hold no management capabilities", role)
		}
	}
}

func TestDeriveViewerIsViewOnly(t *testing.T) {
	caps := Derive(participant.RoleViewer, openEvent(), participant.Overrides{}, nil)
	if !caps.CanView {
		t.Error("viewer should view")
	}
	if caps.CanUpload || caps.CanDownload {
		t.Error("viewer gets no upload or download, regardless of event defaults")
	}
}

func TestDeriveModerator(t *testing.T) {
	caps := Derive(participant.RoleModerator, openEvent(), participant.Overrides{}, nil)
	if !caps.CanModerateContent || !caps.CanApproveContent {
		t.Error("moderator should moderate and approve")
	}
	if caps.CanEdit || caps.CanDelete || caps.CanManageParticipants {
		t.Error("moderator must not edit, delete, or manage participants")
	}
}

func TestDeriveTokenOnlyNarrows(t *testing.T) {
	e := openEvent()
	roles := []participant.Role{
		participant.RoleOwner, participant.RoleCoHost, participant.RoleModerator,
		participant.RoleViewer, participant.RoleAuthenticatedGuest, participant.RoleGuest,
	}
	scopes := []sharetoken.Scope{
		{},
		{CanView: true},
		{CanView: true, CanUpload: true},
		{CanView: true, CanUpload: true, CanDownload: true, CanShare: true, CanComment: true},
	}

	for _, role := range roles {
		base := Derive(role, e, participant.Overrides{}, nil)
		for _, scope := range scopes {
			got := Derive(role, e, participant.Overrides{}, &scope)

			// Pointwise: the token result never exceeds direct role access.
			if got.CanView && !base.CanView ||
				got.CanUpload && !base.CanUpload ||
				got.CanDownload && !base.CanDownload ||
				got.CanInviteOthers && !base.CanInviteOthers {
				t.Errorf("role %s with scope %+v gained capability beyond role: %+v vs %+v",
					role, scope, got, base)
			}
		}
	}
}

func TestDeriveViewOnlyTokenCapsCoHostUpload(t *testing.T) {
	scope := &sharetoken.Scope{CanView: true}
	caps := Derive(participant.RoleCoHost, openEvent(), participant.Overrides{}, scope)

	if caps.CanUpload {
		t.Error("view-only token should cap upload to false even for a co-host")
	}
	if !caps.CanView {
		t.Error("co-host through a view token still views")
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	e := openEvent()
	ov := participant.Overrides{CanEdit: boolPtr(false)}
	scope := &sharetoken.Scope{CanView: true, CanUpload: true}

	first := Derive(participant.RoleCoHost, e, ov, scope)
	for i := 0; i < 5; i++ {
		if got := Derive(participant.RoleCoHost, e, ov, scope); got != first {
			t.Fatalf("derive is not deterministic: %+v vs %+v", got, first)
		}
	}
}
