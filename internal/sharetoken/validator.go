package sharetoken

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwrenholt/gatherly-core/internal/clock"
)

// Validation is the outcome of checking a share token.
type Validation struct {
	// OK is true when the token is usable.
	OK bool `json:"ok"`

	// Reason is set when OK is false. Reasons are distinct and user-facing.
	Reason Reason `json:"reason,omitempty"`

	// Token is the resolved token, set only on success.
	Token *ShareToken `json:"-"`

	// EventID is the token's target event, set only on success.
	EventID string `json:"event_id,omitempty"`

	// Scope is the token's permission scope, set only on success.
	Scope Scope `json:"scope,omitempty"`
}

// Validator checks share token lifecycle state.
type Validator struct {
	repo  Repository
	clock clock.Clock
}

// NewValidator creates a Validator reading tokens from repo and comparing
// expiry against clk.
func NewValidator(repo Repository, clk clock.Clock) *Validator {
	return &Validator{repo: repo, clock: clk}
}

// Validate checks a token's lifecycle state without counting a use.
// Use it for preview-style resolution (rendering a landing page).
//
// Checks run in strict order, short-circuiting on the first failure:
// token exists, not revoked, not expired, under max uses, password
// (if protected) supplied and matching.
func (v *Validator) Validate(ctx context.Context, token, suppliedPassword string) (*Validation, error) {
	t, err := v.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Validation{Reason: ReasonNotFound}, nil
		}
		return nil, fmt.Errorf("resolving share token: %w", err)
	}

	if t.Revoked {
		return &Validation{Reason: ReasonRevoked}, nil
	}

	now := v.clock.Now()
	if exp := t.Restrictions.ExpiresAt; exp != nil && !exp.After(now) {
		return &Validation{Reason: ReasonExpired}, nil
	}

	if max := t.Restrictions.MaxUses; max != nil && t.UsageCount >= *max {
		return &Validation{Reason: ReasonCapacityExceeded}, nil
	}

	if t.PasswordProtected() {
		if suppliedPassword == "" {
			return &Validation{Reason: ReasonPasswordRequired}, nil
		}
		match, err := VerifyPassword(suppliedPassword, t.Restrictions.PasswordHash)
		if err != nil {
			return nil, fmt.Errorf("verifying token password: %w", err)
		}
		if !match {
			return &Validation{Reason: ReasonPasswordMismatch}, nil
		}
	}

	return &Validation{
		OK:      true,
		Token:   t,
		EventID: t.EventID,
		Scope:   t.Scope,
	}, nil
}

// Consume validates a token and, on success, counts one use attributed to
// usedBy. Only resolutions that result in a state-changing action (join,
// upload) should consume; preview-only resolution goes through Validate.
//
// Under concurrent consumption the usage increment is atomic: no more than
// max_uses consumptions ever succeed, and the racing loser is reported as
// capacity_exceeded.
func (v *Validator) Consume(ctx context.Context, token, suppliedPassword, usedBy string) (*Validation, error) {
	val, err := v.Validate(ctx, token, suppliedPassword)
	if err != nil || !val.OK {
		return val, err
	}

	ok, err := v.repo.ConsumeUse(ctx, val.Token.ID, usedBy, v.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("consuming share token: %w", err)
	}
	if !ok {
		// Lost a race: the token hit capacity (or was revoked) between
		// validation and consumption.
		return &Validation{Reason: ReasonCapacityExceeded}, nil
	}

	val.Token.UsageCount++
	return val, nil
}
