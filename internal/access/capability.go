package access

import (
	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/participant"
	"github.com/mwrenholt/gatherly-core/internal/sharetoken"
)

// Capability names one permitted operation.
type Capability string

const (
	CapView               Capability = "view"
	CapUpload             Capability = "upload"
	CapDownload           Capability = "download"
	CapEdit               Capability = "edit"
	CapDelete             Capability = "delete"
	CapManageParticipants Capability = "manage_participants"
	CapInviteOthers       Capability = "invite_others"
	CapModerateContent    Capability = "moderate_content"
	CapApproveContent     Capability = "approve_content"
	CapExportData         Capability = "export_data"
	CapManageSettings     Capability = "manage_settings"
	CapViewAnalytics      Capability = "view_analytics"
	CapTransferOwnership  Capability = "transfer_ownership"
)

// CapabilitySet is the closed record of what a principal may do on one
// event. Fixed named booleans, never an open map: every capability the
// system knows about is a field here.
type CapabilitySet struct {
	CanView               bool `json:"can_view"`
	CanUpload             bool `json:"can_upload"`
	CanDownload           bool `json:"can_download"`
	CanEdit               bool `json:"can_edit"`
	CanDelete             bool `json:"can_delete"`
	CanManageParticipants bool `json:"can_manage_participants"`
	CanInviteOthers       bool `json:"can_invite_others"`
	CanModerateContent    bool `json:"can_moderate_content"`
	CanApproveContent     bool `json:"can_approve_content"`
	CanExportData         bool `json:"can_export_data"`
	CanManageSettings     bool `json:"can_manage_settings"`
	CanViewAnalytics      bool `json:"can_view_analytics"`
	CanTransferOwnership  bool `json:"can_transfer_ownership"`
}

// Has reports whether the set grants the named capability.
func (c CapabilitySet) Has(name Capability) bool {
	switch name {
	case CapView:
		return c.CanView
	case CapUpload:
		return c.CanUpload
	case CapDownload:
		return c.CanDownload
	case CapEdit:
		return c.CanEdit
	case CapDelete:
		return c.CanDelete
	case CapManageParticipants:
		return c.CanManageParticipants
	case CapInviteOthers:
		return c.CanInviteOthers
	case CapModerateContent:
		return c.CanModerateContent
	case CapApproveContent:
		return c.CanApproveContent
	case CapExportData:
		return c.CanExportData
	case CapManageSettings:
		return c.CanManageSettings
	case CapViewAnalytics:
		return c.CanViewAnalytics
	case CapTransferOwnership:
		return c.CanTransferOwnership
	}
	return false
}

// Derive maps (role, event, overrides, token scope) to a capability set.
// It is a pure function: role defaults first, then participant overrides,
// then the token overlay. Overrides and overlays narrow or adjust within
// the role's reach; a token can never widen what the role already grants.
func Derive(role participant.Role, e *event.Event, ov participant.Overrides, scope *sharetoken.Scope) CapabilitySet {
	caps := baseFor(role, e)

	if role == participant.RoleCoHost {
		applyOverride(&caps.CanEdit, ov.CanEdit)
		applyOverride(&caps.CanManageParticipants, ov.CanManageParticipants)
		applyOverride(&caps.CanModerateContent, ov.CanManageContent)
		applyOverride(&caps.CanApproveContent, ov.CanApproveContent)
		caps.CanManageSettings = caps.CanEdit
	}

	if scope != nil {
		// The request arrived via a share token: each field the token
		// scopes is ANDed against the role default. A view-only token caps
		// uploads to false even for a co-host following that link.
		caps.CanView = caps.CanView && scope.CanView
		caps.CanUpload = caps.CanUpload && scope.CanUpload
		caps.CanDownload = caps.CanDownload && scope.CanDownload
		caps.CanInviteOthers = caps.CanInviteOthers && scope.CanShare
	}

	return caps
}

// baseFor returns the role's default capability set for the event.
// Guests inherit the event-level view/upload/download flags; named roles
// carry fixed defaults.
func baseFor(role participant.Role, e *event.Event) CapabilitySet {
	switch role {
	case participant.RoleOwner:
		return CapabilitySet{
			CanView: true, CanUpload: true, CanDownload: true,
			CanEdit: true, CanDelete: true,
			CanManageParticipants: true, CanInviteOthers: true,
			CanModerateContent: true, CanApproveContent: true,
			CanExportData: true, CanManageSettings: true,
			CanViewAnalytics: true, CanTransferOwnership: true,
		}
	case participant.RoleCoHost:
		return CapabilitySet{
			CanView: true, CanUpload: true, CanDownload: true,
			CanEdit:               true,
			CanManageParticipants: true, CanInviteOthers: true,
			CanModerateContent: true, CanApproveContent: true,
			CanExportData: true, CanManageSettings: true,
			CanViewAnalytics: true,
		}
	case participant.RoleModerator:
		return CapabilitySet{
			CanView: true, CanUpload: true, CanDownload: true,
			CanModerateContent: true, CanApproveContent: true,
		}
	case participant.RoleViewer:
		return CapabilitySet{CanView: true}
	case participant.RoleAuthenticatedGuest, participant.RoleGuest:
		return CapabilitySet{
			CanView:     true,
			CanUpload:   e.Permissions.CanUpload,
			CanDownload: e.Permissions.CanDownload,
		}
	}
	return CapabilitySet{}
}

func applyOverride(field *bool, ov *bool) {
	if ov != nil {
		*field = *ov
	}
}
