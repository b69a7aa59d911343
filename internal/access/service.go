package access

import (
	"context"
	"fmt"

	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/identity"
)

// DeniedError wraps a denial so capability checks embedded in service
// operations can surface the full decision to the transport layer.
type DeniedError struct {
	Decision *Decision
}

func (e *DeniedError) Error() string {
	return "access denied: " + e.Decision.Reason
}

// Service bundles the checker with the operations that must run behind it.
type Service struct {
	checker *Checker
	engine  *event.Engine
}

// NewService creates the guarded operation layer.
func NewService(checker *Checker, engine *event.Engine) *Service {
	return &Service{checker: checker, engine: engine}
}

// Checker exposes the underlying decision facade.
func (s *Service) Checker() *Checker {
	return s.checker
}

// TransitionVisibility moves an event to the target visibility on behalf
// of the acting principal. The actor needs the edit capability; the
// transition side effects are applied by the engine.
func (s *Service) TransitionVisibility(ctx context.Context, eventID string, to event.Visibility, actor identity.Principal) (*event.TransitionResult, error) {
	dec, err := s.checker.Check(ctx, Request{
		EventID:    eventID,
		Principal:  actor,
		Capability: CapEdit,
	})
	if err != nil {
		return nil, fmt.Errorf("authorizing visibility transition: %w", err)
	}
	if !dec.Allowed {
		return nil, &DeniedError{Decision: dec}
	}

	return s.engine.Transition(ctx, eventID, to)
}
