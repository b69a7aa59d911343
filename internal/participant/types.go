package participant

import (
	"errors"
	"time"
)

// Role represents a named position a principal holds with respect to one event.
type Role string

const (
	// RoleOwner is the event creator. Exactly one active owner exists per
	// event; the role moves only via an explicit ownership transfer.
	RoleOwner Role = "owner"

	// RoleCoHost is an invited collaborator with edit rights, subject to
	// per-co-host permission overrides.
	RoleCoHost Role = "co_host"

	// RoleModerator may moderate and approve content but not edit the event.
	RoleModerator Role = "moderator"

	// RoleViewer may only view; no uploads or downloads.
	RoleViewer Role = "viewer"

	// RoleAuthenticatedGuest is a logged-in user without a named position,
	// admitted by event visibility or explicit invite.
	RoleAuthenticatedGuest Role = "authenticated_guest"

	// RoleGuest is an anonymous device admitted under open-link visibility.
	RoleGuest Role = "guest"
)

// ValidRoles is the set of roles that may be stored on a participant record.
// Guest is derived from visibility at resolution time, never stored.
var ValidRoles = []Role{RoleOwner, RoleCoHost, RoleModerator, RoleViewer, RoleAuthenticatedGuest}

// IsStorableRole returns true if the role may be persisted on a record.
func IsStorableRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Status governs whether a participant's role is currently effective.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRemoved  Status = "removed"
	StatusLeft     Status = "left"
)

// IsValidStatus returns true for a recognised participant status.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusRemoved, StatusLeft:
		return true
	}
	return false
}

// Live returns true if the status counts against the one-record-per-user
// uniqueness constraint (a pending or approved relationship).
func (s Status) Live() bool {
	return s == StatusPending || s == StatusApproved
}

// Overrides is a capability bag narrowing a participant's role defaults.
// A nil field means "use the role default".
type Overrides struct {
	CanEdit               *bool `json:"can_edit,omitempty"`
	CanManageParticipants *bool `json:"can_manage_participants,omitempty"`
	CanManageContent      *bool `json:"can_manage_content,omitempty"`
	CanApproveContent     *bool `json:"can_approve_content,omitempty"`
}

// Participant represents one (event, user) relationship.
type Participant struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	Overrides Overrides `json:"overrides"`

	InvitedBy string     `json:"invited_by,omitempty"`
	InvitedAt *time.Time `json:"invited_at,omitempty"`
	JoinedAt  *time.Time `json:"joined_at,omitempty"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Domain errors.
var (
	ErrNotFound           = errors.New("participant not found")
	ErrAlreadyParticipant = errors.New("user already has a live participation record for this event")
	ErrInvalidRole        = errors.New("invalid participant role")
	ErrInvalidStatus      = errors.New("invalid participant status")
	ErrOwnerImmutable     = errors.New("owner record cannot be modified or removed")
	ErrNotOwner           = errors.New("user is not the active owner of this event")
)
