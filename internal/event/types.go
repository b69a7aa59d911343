package event

import (
	"errors"
	"time"
)

// Visibility controls who can discover and view an event.
type Visibility string

const (
	// VisibilityAnyoneWithLink admits anonymous viewers holding the link.
	VisibilityAnyoneWithLink Visibility = "anyone_with_link"

	// VisibilityInvitedOnly admits approved participants and valid token
	// holders only.
	VisibilityInvitedOnly Visibility = "invited_only"

	// VisibilityPrivate admits the owner and co-hosts only.
	VisibilityPrivate Visibility = "private"
)

// visibilityRank orders visibilities from most open to most closed.
var visibilityRank = map[Visibility]int{
	VisibilityAnyoneWithLink: 0,
	VisibilityInvitedOnly:    1,
	VisibilityPrivate:        2,
}

// IsValidVisibility returns true for a recognised visibility value.
func IsValidVisibility(v Visibility) bool {
	_, ok := visibilityRank[v]
	return ok
}

// TighterThan reports whether v admits fewer viewers than other.
// Tightening transitions are the ones that can strand anonymous viewers.
func (v Visibility) TighterThan(other Visibility) bool {
	return visibilityRank[v] > visibilityRank[other]
}

// TransitionPolicy decides what happens to active anonymous sessions when
// an event's visibility tightens.
type TransitionPolicy string

const (
	// PolicyBlockAll cuts anonymous sessions off immediately.
	PolicyBlockAll TransitionPolicy = "block_all"

	// PolicyGracePeriod lets anonymous sessions keep viewing until their
	// grace deadline passes.
	PolicyGracePeriod TransitionPolicy = "grace_period"

	// PolicyForceLogin gives anonymous sessions a short window to sign in
	// and claim their access before being cut off.
	PolicyForceLogin TransitionPolicy = "force_login"
)

// IsValidPolicy returns true for a recognised transition policy.
func IsValidPolicy(p TransitionPolicy) bool {
	return p == PolicyBlockAll || p == PolicyGracePeriod || p == PolicyForceLogin
}

// Permissions are the event-level defaults applied to viewers who hold no
// explicit participant record.
type Permissions struct {
	CanView         bool `json:"can_view"`
	CanUpload       bool `json:"can_upload"`
	CanDownload     bool `json:"can_download"`
	RequireApproval bool `json:"require_approval"`
}

// Event is a photo-sharing event.
type Event struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	CreatedBy  string     `json:"created_by"`
	Visibility Visibility `json:"visibility"`

	// PreviousVisibility is the visibility before the most recent
	// transition, nil for events that never transitioned.
	PreviousVisibility  *Visibility `json:"previous_visibility,omitempty"`
	VisibilityChangedAt *time.Time  `json:"visibility_changed_at,omitempty"`

	TransitionPolicy TransitionPolicy `json:"anonymous_transition_policy"`
	GracePeriodHours int              `json:"grace_period_hours"`

	Permissions       Permissions `json:"permissions"`
	AllowedMediaTypes []string    `json:"allowed_media_types"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnonymousSession tracks one unauthenticated device viewing an event.
// Sessions exist so that a later visibility tightening knows who is
// affected and can apply grace deadlines per device.
type AnonymousSession struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	Fingerprint string `json:"fingerprint"`

	// GracePeriodExpires is nil while the event is open to the session.
	// Once set it only moves earlier, never later.
	GracePeriodExpires *time.Time `json:"grace_period_expires,omitempty"`

	// ForceLogin marks the session as required to authenticate before the
	// grace deadline.
	ForceLogin bool `json:"force_login"`

	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Expired reports whether the session's grace deadline has passed at now.
// Sessions with no deadline never expire.
func (s *AnonymousSession) Expired(now time.Time) bool {
	return s.GracePeriodExpires != nil && !s.GracePeriodExpires.After(now)
}

// Domain errors.
var (
	ErrNotFound           = errors.New("event not found")
	ErrInvalidVisibility  = errors.New("invalid visibility")
	ErrInvalidPolicy      = errors.New("invalid transition policy")
	ErrTransitionConflict = errors.New("visibility changed concurrently")
)
