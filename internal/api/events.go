package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwrenholt/gatherly-core/internal/access"
	"github.com/mwrenholt/gatherly-core/internal/audit"
	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/participant"
)

// createEventRequest is the body for POST /events.
type createEventRequest struct {
	Title             string             `json:"title"`
	Visibility        event.Visibility   `json:"visibility"`
	TransitionPolicy  string             `json:"anonymous_transition_policy"`
	GracePeriodHours  int                `json:"grace_period_hours"`
	Permissions       *event.Permissions `json:"permissions"`
	AllowedMediaTypes []string           `json:"allowed_media_types"`
}

// handleCreateEvent creates an event and seeds its owner participant
// record in one step. Only authenticated users can create events.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	pr := principalFrom(r)
	if pr.IsAnonymous() {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Title == "" {
		writeBadRequest(w, "title is required")
		return
	}

	e := &event.Event{
		Title:             req.Title,
		CreatedBy:         pr.UserID,
		Visibility:        req.Visibility,
		TransitionPolicy:  event.TransitionPolicy(req.TransitionPolicy),
		GracePeriodHours:  req.GracePeriodHours,
		AllowedMediaTypes: req.AllowedMediaTypes,
	}
	if e.Visibility == "" {
		e.Visibility = event.VisibilityInvitedOnly
	}
	if e.TransitionPolicy == "" {
		e.TransitionPolicy = event.TransitionPolicy(s.sharing.DefaultTransitionPolicy)
	}
	if e.GracePeriodHours == 0 {
		e.GracePeriodHours = s.sharing.GracePeriodHours
	}
	if req.Permissions != nil {
		e.Permissions = *req.Permissions
	} else {
		e.Permissions = event.Permissions{CanView: true, CanDownload: true}
	}

	if err := s.events.Create(r.Context(), e); err != nil {
		if errors.Is(err, event.ErrInvalidVisibility) || errors.Is(err, event.ErrInvalidPolicy) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("create event failed", "error", err)
		writeInternalError(w, "failed to create event")
		return
	}

	owner := &participant.Participant{
		EventID: e.ID,
		UserID:  pr.UserID,
		Role:    participant.RoleOwner,
		Status:  participant.StatusApproved,
	}
	if err := s.participants.Create(r.Context(), owner); err != nil {
		// The event exists but its owner record does not; surface loudly.
		s.logger.Error("owner record creation failed", "event_id", e.ID, "error", err)
		writeInternalError(w, "failed to create event")
		return
	}

	s.auditLog(audit.ActionEventCreated, audit.EntityEvent, e.ID, pr.UserID, map[string]any{
		"title":      e.Title,
		"visibility": string(e.Visibility),
	})

	writeJSON(w, http.StatusCreated, e)
}

// handleListEvents returns the caller's events: those they created plus
// those where they hold a live participant record.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	pr := principalFrom(r)
	if pr.IsAnonymous() {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	all, err := s.events.List(r.Context())
	if err != nil {
		s.logger.Error("list events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	recs, err := s.participants.ListByUser(r.Context(), pr.UserID)
	if err != nil {
		s.logger.Error("list memberships failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	memberOf := make(map[string]bool, len(recs))
	for _, p := range recs {
		memberOf[p.EventID] = true
	}

	mine := make([]event.Event, 0)
	for _, e := range all {
		if e.CreatedBy == pr.UserID || memberOf[e.ID] {
			mine = append(mine, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": mine})
}

// handleGetEvent returns one event, gated on the view capability. The
// response carries the caller's resolved role and capabilities so
// clients can render the right controls without a second round trip.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	decision, ok := s.authorize(w, r, eventID, access.CapView)
	if !ok {
		return
	}

	e, err := s.events.GetByID(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			writeNotFound(w, "event not found")
			return
		}
		s.logger.Error("get event failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to get event")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event":        e,
		"role":         decision.Role,
		"capabilities": decision.Capabilities,
	})
}

// updateEventRequest is the body for PATCH /events/{eventID}. Visibility
// is deliberately absent: transitions have their own endpoint with
// conflict detection and session side effects.
type updateEventRequest struct {
	Title             *string            `json:"title,omitempty"`
	Permissions       *event.Permissions `json:"permissions,omitempty"`
	AllowedMediaTypes []string           `json:"allowed_media_types,omitempty"`
	TransitionPolicy  *string            `json:"anonymous_transition_policy,omitempty"`
	GracePeriodHours  *int               `json:"grace_period_hours,omitempty"`
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	if _, ok := s.authorize(w, r, eventID, access.CapEdit); !ok {
		return
	}

	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	e, err := s.events.GetByID(r.Context(), eventID)
	if err != nil {
		s.logger.Error("get event failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to update event")
		return
	}

	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Permissions != nil {
		e.Permissions = *req.Permissions
	}
	if req.AllowedMediaTypes != nil {
		e.AllowedMediaTypes = req.AllowedMediaTypes
	}
	if req.TransitionPolicy != nil {
		e.TransitionPolicy = event.TransitionPolicy(*req.TransitionPolicy)
	}
	if req.GracePeriodHours != nil {
		e.GracePeriodHours = *req.GracePeriodHours
	}

	if err := s.events.Update(r.Context(), e); err != nil {
		if errors.Is(err, event.ErrInvalidPolicy) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("update event failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to update event")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	if _, ok := s.authorize(w, r, eventID, access.CapDelete); !ok {
		return
	}

	if err := s.events.Delete(r.Context(), eventID); err != nil {
		if errors.Is(err, event.ErrNotFound) {
			writeNotFound(w, "event not found")
			return
		}
		s.logger.Error("delete event failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to delete event")
		return
	}

	s.auditLog(audit.ActionEventDeleted, audit.EntityEvent, eventID, principalFrom(r).ActorID(), nil)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": eventID})
}

// transitionRequest is the body for POST /events/{eventID}/visibility.
type transitionRequest struct {
	Visibility event.Visibility `json:"visibility"`
}

// handleTransitionVisibility changes event visibility through the
// transition engine, applying the event's anonymous-session policy.
// Concurrent transitions race on the current visibility: losers get 409.
func (s *Server) handleTransitionVisibility(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	pr := principalFrom(r)

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := s.access.TransitionVisibility(r.Context(), eventID, req.Visibility, pr)
	if err != nil {
		var denied *access.DeniedError
		switch {
		case errors.As(err, &denied):
			writeDenied(w, denied.Decision)
		case errors.Is(err, event.ErrNotFound):
			writeNotFound(w, "event not found")
		case errors.Is(err, event.ErrInvalidVisibility):
			writeBadRequest(w, err.Error())
		case errors.Is(err, event.ErrTransitionConflict):
			writeConflict(w, "visibility changed concurrently, retry with current state")
		default:
			s.logger.Error("visibility transition failed", "event_id", eventID, "error", err)
			writeInternalError(w, "failed to change visibility")
		}
		return
	}

	if !result.NoOp {
		s.auditLog(audit.ActionVisibilityChanged, audit.EntityEvent, eventID, pr.ActorID(), map[string]any{
			"from":              string(result.From),
			"to":                string(result.To),
			"sessions_affected": result.SessionsAffected,
		})
		s.notifier.VisibilityChanged(*result)
		if s.metrics != nil {
			s.metrics.WriteVisibilityTransition(eventID, string(result.From), string(result.To), result.SessionsAffected)
		}
	}

	writeJSON(w, http.StatusOK, result)
}
