package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mwrenholt/gatherly-core/internal/clock"
	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/identity"
	"github.com/mwrenholt/gatherly-core/internal/participant"
	"github.com/mwrenholt/gatherly-core/internal/sharetoken"
)

// Denial reasons. Distinct and stable: guest-facing clients branch UI on
// them (password prompt versus dead link versus "ask the host").
const (
	ReasonEventNotFound  = "event_not_found"
	ReasonNoRole         = "no_role"
	ReasonSessionExpired = "anonymous_session_expired"

	reasonTokenInvalidPrefix     = "token_invalid:"
	reasonCapabilityDeniedPrefix = "capability_denied:"
)

// ErrInvariantViolation signals corrupted access data, such as an event
// with more than one active owner. It is never returned as an ordinary
// denial: callers must treat it as an internal fault.
var ErrInvariantViolation = errors.New("access invariant violation")

// Request describes one access question.
type Request struct {
	// EventID targets the event directly. Ignored when Token is set.
	EventID string

	// Token is the share token string when the request arrived via a link.
	Token string

	// TokenPassword is the caller-supplied password for protected tokens.
	TokenPassword string

	// ConsumeToken counts a token use. Set it only for state-changing
	// resolutions (join, upload); previews leave it false.
	ConsumeToken bool

	Principal  identity.Principal
	Capability Capability
}

// Decision is the answer to a Request, threaded explicitly to the
// operation that asked.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`

	EventID      string           `json:"event_id,omitempty"`
	Role         participant.Role `json:"role,omitempty"`
	Capabilities CapabilitySet    `json:"capabilities"`
}

// TokenDenied builds the denial for a failed token validation.
func TokenDenied(reason sharetoken.Reason) *Decision {
	return &Decision{Reason: reasonTokenInvalidPrefix + string(reason)}
}

// CapabilityDenied builds the denial for a missing capability.
func CapabilityDenied(name Capability) *Decision {
	return &Decision{Reason: reasonCapabilityDeniedPrefix + string(name)}
}

// Checker is the access decision facade.
type Checker struct {
	events       event.Repository
	participants participant.Repository
	tokens       *sharetoken.Validator
	resolver     *RoleResolver
	clock        clock.Clock
	logger       *slog.Logger
}

// NewChecker creates the facade over its three stores.
func NewChecker(events event.Repository, participants participant.Repository, tokens *sharetoken.Validator, clk clock.Clock, logger *slog.Logger) *Checker {
	return &Checker{
		events:       events,
		participants: participants,
		tokens:       tokens,
		resolver:     NewRoleResolver(participants),
		clock:        clk,
		logger:       logger,
	}
}

// Tokens exposes the share token validator so callers can resolve links
// directly (preview and consume endpoints) without a second instance.
func (c *Checker) Tokens() *sharetoken.Validator {
	return c.tokens
}

// Check answers whether the principal may perform the capability on the
// event. Store errors propagate as errors and the caller must deny: the
// decision fails closed, never open.
func (c *Checker) Check(ctx context.Context, req Request) (*Decision, error) {
	eventID := req.EventID
	var scope *sharetoken.Scope

	if req.Token != "" {
		val, err := c.validateToken(ctx, req)
		if err != nil {
			return nil, err
		}
		if !val.OK {
			return TokenDenied(val.Reason), nil
		}
		eventID = val.EventID
		scope = &val.Scope
	}

	e, err := c.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			return &Decision{Reason: ReasonEventNotFound}, nil
		}
		return nil, fmt.Errorf("loading event for access check: %w", err)
	}

	if err := c.checkOwnerInvariant(ctx, e.ID); err != nil {
		return nil, err
	}

	role, overrides, err := c.resolver.Resolve(ctx, e, req.Principal)
	if err != nil {
		return nil, err
	}

	// A valid token admits its holder as a guest where visibility alone
	// would not, except under private: a private event ignores link
	// possession entirely.
	if role == RoleNone && scope != nil && e.Visibility != event.VisibilityPrivate {
		if req.Principal.IsAuthenticated() {
			role = participant.RoleAuthenticatedGuest
		} else {
			role = participant.RoleGuest
		}
	}

	if role == RoleNone && req.Principal.IsAnonymous() {
		role, err = c.resolveGraceRole(ctx, e, req.Principal)
		if err != nil {
			return nil, err
		}
		if role == RoleNone {
			return &Decision{Reason: ReasonNoRole}, nil
		}
		if role == roleSessionExpired {
			return &Decision{Reason: ReasonSessionExpired}, nil
		}
	}
	if role == RoleNone {
		return &Decision{Reason: ReasonNoRole}, nil
	}

	caps := Derive(role, e, overrides, scope)
	if !caps.Has(req.Capability) {
		d := CapabilityDenied(req.Capability)
		d.EventID = e.ID
		d.Role = role
		return d, nil
	}

	c.touchAnonymous(ctx, e, req.Principal)

	return &Decision{
		Allowed:      true,
		EventID:      e.ID,
		Role:         role,
		Capabilities: caps,
	}, nil
}

func (c *Checker) validateToken(ctx context.Context, req Request) (*sharetoken.Validation, error) {
	if req.ConsumeToken {
		return c.tokens.Consume(ctx, req.Token, req.TokenPassword, req.Principal.ActorID())
	}
	return c.tokens.Validate(ctx, req.Token, req.TokenPassword)
}

// roleSessionExpired is an internal marker, never surfaced.
const roleSessionExpired participant.Role = "session_expired"

// resolveGraceRole gives an anonymous device continued guest standing
// while its grace period runs after a visibility tightening. A session
// past its deadline is reported distinctly so the client can explain the
// cutoff instead of showing a generic denial.
func (c *Checker) resolveGraceRole(ctx context.Context, e *event.Event, pr identity.Principal) (participant.Role, error) {
	s, err := c.events.GetSession(ctx, e.ID, pr.Fingerprint)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			return RoleNone, nil
		}
		return RoleNone, fmt.Errorf("loading anonymous session: %w", err)
	}

	if s.GracePeriodExpires == nil {
		// Session predates any tightening but the event is no longer open;
		// no grace was ever granted.
		return RoleNone, nil
	}
	if s.Expired(c.clock.Now()) {
		return roleSessionExpired, nil
	}
	return participant.RoleGuest, nil
}

// checkOwnerInvariant flags events with more than one active owner.
// That state means a racing writer or data repair broke role resolution;
// it is logged critical and surfaced as an internal fault, never as an
// ordinary denial.
func (c *Checker) checkOwnerInvariant(ctx context.Context, eventID string) error {
	n, err := c.participants.CountActiveOwners(ctx, eventID)
	if err != nil {
		return fmt.Errorf("counting owners: %w", err)
	}
	if n > 1 {
		c.logger.Error("multiple active owners detected",
			"event_id", eventID,
			"owner_count", n,
		)
		return fmt.Errorf("%w: event %s has %d active owners", ErrInvariantViolation, eventID, n)
	}
	return nil
}

// touchAnonymous records anonymous viewing activity so a later visibility
// tightening knows which devices are affected. Failures are logged, not
// returned: losing a session touch must not turn an allow into an error.
func (c *Checker) touchAnonymous(ctx context.Context, e *event.Event, pr identity.Principal) {
	if !pr.IsAnonymous() || e.Visibility != event.VisibilityAnyoneWithLink {
		return
	}
	if _, err := c.events.TouchSession(ctx, e.ID, pr.Fingerprint, c.clock.Now()); err != nil {
		c.logger.Warn("failed to record anonymous session",
			"event_id", e.ID,
			"error", err,
		)
	}
}
