package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/identity"
	"github.com/mwrenholt/gatherly-core/internal/participant"
)

// RoleNone marks a principal with no standing on the event.
const RoleNone participant.Role = ""

// RoleResolver computes a principal's role on an event. This is the only
// code path that reads collaborator relationships; everything else asks it.
type RoleResolver struct {
	participants participant.Repository
}

// NewRoleResolver creates a role resolver over the participant registry.
func NewRoleResolver(participants participant.Repository) *RoleResolver {
	return &RoleResolver{participants: participants}
}

// Resolve returns the principal's role and any per-participant overrides.
// First match wins:
//
//  1. approved participant record -> that record's role plus overrides
//  2. event creator without a record -> owner
//  3. pending invitee under invited_only -> authenticated_guest
//  4. open-link visibility -> guest (anonymous) or authenticated_guest
//  5. otherwise -> RoleNone
//
// Explicit relationships outrank visibility-derived defaults. Under
// invited_only an unknown authenticated user gets RoleNone, never a
// silent guest upgrade; an explicitly invited one gets view-level
// standing while the invite is pending, so they can see what they were
// invited to. Under private only owner and co_host survive, even when
// an explicit record carries another role.
func (r *RoleResolver) Resolve(ctx context.Context, e *event.Event, pr identity.Principal) (participant.Role, participant.Overrides, error) {
	var none participant.Overrides

	if pr.IsAuthenticated() {
		rec, err := r.participants.GetLive(ctx, e.ID, pr.UserID)
		if err != nil && !errors.Is(err, participant.ErrNotFound) {
			return RoleNone, none, fmt.Errorf("resolving participant record: %w", err)
		}
		if rec != nil && rec.Status == participant.StatusApproved {
			if e.Visibility == event.VisibilityPrivate &&
				rec.Role != participant.RoleOwner && rec.Role != participant.RoleCoHost {
				return RoleNone, none, nil
			}
			return rec.Role, rec.Overrides, nil
		}

		// The creator is owner even before any participant record exists.
		// After an ownership transfer the record above governs instead.
		if rec == nil && pr.UserID == e.CreatedBy {
			return participant.RoleOwner, none, nil
		}

		// An explicit invite grants view-level standing before approval:
		// the unknown-user denial below covers strangers, not invitees.
		if rec != nil && rec.Status == participant.StatusPending &&
			e.Visibility == event.VisibilityInvitedOnly {
			return participant.RoleAuthenticatedGuest, none, nil
		}
	}

	if e.Visibility == event.VisibilityAnyoneWithLink {
		if pr.IsAuthenticated() {
			return participant.RoleAuthenticatedGuest, none, nil
		}
		return participant.RoleGuest, none, nil
	}

	return RoleNone, none, nil
}
