package event

import (
	"context"
	"fmt"
	"time"

	"github.com/mwrenholt/gatherly-core/internal/clock"
)

// defaultGraceHours is used when an event carries no grace period setting.
const defaultGraceHours = 24

// TransitionResult describes what a visibility transition did.
type TransitionResult struct {
	EventID string     `json:"event_id"`
	From    Visibility `json:"from"`
	To      Visibility `json:"to"`

	// NoOp is true when the event was already at the target visibility.
	NoOp bool `json:"no_op"`

	Action           SessionAction `json:"action"`
	SessionsAffected int           `json:"sessions_affected"`

	// Deadline is the grace expiry stamped on affected sessions, nil when
	// no sessions were touched.
	Deadline *time.Time `json:"deadline,omitempty"`
}

// Engine computes and applies visibility transitions.
type Engine struct {
	events          Repository
	clock           clock.Clock
	forceLoginGrace time.Duration
}

// NewEngine creates a transition engine. forceLoginGrace is the window a
// force_login policy gives anonymous sessions to authenticate.
func NewEngine(events Repository, clk clock.Clock, forceLoginGrace time.Duration) *Engine {
	return &Engine{events: events, clock: clk, forceLoginGrace: forceLoginGrace}
}

// Transition moves an event to the target visibility and applies the
// event's anonymous transition policy when the change tightens access.
//
// Transitioning to the current visibility is an idempotent no-op.
// A concurrent transition surfaces as ErrTransitionConflict: the caller
// re-reads and decides, side effects are never applied twice.
func (g *Engine) Transition(ctx context.Context, eventID string, to Visibility) (*TransitionResult, error) {
	if !IsValidVisibility(to) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVisibility, to)
	}

	e, err := g.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if e.Visibility == to {
		return &TransitionResult{
			EventID: eventID,
			From:    e.Visibility,
			To:      to,
			NoOp:    true,
			Action:  ActionNone,
		}, nil
	}

	now := g.clock.Now()
	plan := &TransitionPlan{
		EventID: eventID,
		From:    e.Visibility,
		To:      to,
		Action:  ActionNone,
		Now:     now,
	}

	// Opening up never strands anyone; every tightening carries the
	// event's policy. Session updates are monotonic, so tightening an
	// already-tight event grants no fresh grace: block_all can still cap
	// surviving deadlines, the other policies are no-ops there.
	if to.TighterThan(e.Visibility) {
		plan.Action, plan.Deadline = g.resolvePolicy(e, now)
	}

	affected, err := g.events.ApplyTransition(ctx, plan)
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{
		EventID:          eventID,
		From:             plan.From,
		To:               plan.To,
		Action:           plan.Action,
		SessionsAffected: affected,
	}
	if plan.Action != ActionNone {
		d := plan.Deadline
		result.Deadline = &d
	}
	return result, nil
}

// resolvePolicy maps the event's transition policy onto a session action
// and deadline.
func (g *Engine) resolvePolicy(e *Event, now time.Time) (SessionAction, time.Time) {
	switch e.TransitionPolicy {
	case PolicyBlockAll:
		return ActionBlock, now
	case PolicyForceLogin:
		return ActionForceLogin, now.Add(g.forceLoginGrace)
	default:
		hours := e.GracePeriodHours
		if hours <= 0 {
			hours = defaultGraceHours
		}
		return ActionGrace, now.Add(time.Duration(hours) * time.Hour)
	}
}
