package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwrenholt/gatherly-core/internal/access"
	"github.com/mwrenholt/gatherly-core/internal/audit"
	"github.com/mwrenholt/gatherly-core/internal/participant"
)

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	if _, ok := s.authorize(w, r, eventID, access.CapManageParticipants); !ok {
		return
	}

	list, err := s.participants.ListByEvent(r.Context(), eventID)
	if err != nil {
		s.logger.Error("list participants failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to list participants")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"participants": list})
}

// inviteRequest is the body for POST /events/{eventID}/participants.
type inviteRequest struct {
	UserID string           `json:"user_id"`
	Role   participant.Role `json:"role"`
}

// handleInviteParticipant creates a pending participation record. The
// owner role is never assignable here; it only moves via transfer.
func (s *Server) handleInviteParticipant(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	pr := principalFrom(r)

	if _, ok := s.authorize(w, r, eventID, access.CapInviteOthers); !ok {
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeBadRequest(w, "user_id is required")
		return
	}
	if req.Role == "" {
		req.Role = participant.RoleViewer
	}
	if req.Role == participant.RoleOwner {
		writeBadRequest(w, "owner role is assigned by ownership transfer only")
		return
	}

	now := s.clock.Now()
	p := &participant.Participant{
		EventID:   eventID,
		UserID:    req.UserID,
		Role:      req.Role,
		Status:    participant.StatusPending,
		InvitedBy: pr.ActorID(),
		InvitedAt: &now,
	}

	if err := s.participants.Create(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, participant.ErrAlreadyParticipant):
			writeConflict(w, "user already participates in this event")
		case errors.Is(err, participant.ErrInvalidRole):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("invite participant failed", "event_id", eventID, "error", err)
			writeInternalError(w, "failed to invite participant")
		}
		return
	}

	s.auditLog(audit.ActionParticipantInvited, audit.EntityParticipant, p.ID, pr.ActorID(), map[string]any{
		"event_id": eventID,
		"user_id":  req.UserID,
		"role":     string(req.Role),
	})
	s.notifier.ParticipantChanged(eventID, p.ID, "invited", string(p.Role))

	writeJSON(w, http.StatusCreated, p)
}

// handleApproveParticipant moves a pending record to approved. The
// transition is guarded on the current status so two hosts approving
// concurrently settle cleanly.
func (s *Server) handleApproveParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "participantID")

	p, ok := s.loadParticipant(w, r, id, access.CapManageParticipants)
	if !ok {
		return
	}

	changed, err := s.participants.UpdateStatus(r.Context(), id, participant.StatusPending, participant.StatusApproved)
	if err != nil {
		s.logger.Error("approve participant failed", "participant_id", id, "error", err)
		writeInternalError(w, "failed to approve participant")
		return
	}
	if !changed {
		writeConflict(w, "participant is not pending")
		return
	}

	s.auditLog(audit.ActionParticipantApproved, audit.EntityParticipant, id, principalFrom(r).ActorID(), map[string]any{
		"event_id": p.EventID,
		"user_id":  p.UserID,
	})
	s.notifier.ParticipantChanged(p.EventID, id, "approved", string(p.Role))

	writeJSON(w, http.StatusOK, map[string]any{"approved": id})
}

func (s *Server) handleSetOverrides(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "participantID")

	p, ok := s.loadParticipant(w, r, id, access.CapManageParticipants)
	if !ok {
		return
	}

	var o participant.Overrides
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := s.participants.SetOverrides(r.Context(), id, o); err != nil {
		if errors.Is(err, participant.ErrNotFound) {
			writeNotFound(w, "participant not found")
			return
		}
		s.logger.Error("set overrides failed", "participant_id", id, "error", err)
		writeInternalError(w, "failed to set overrides")
		return
	}

	p.Overrides = o
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "participantID")

	p, ok := s.loadParticipant(w, r, id, access.CapManageParticipants)
	if !ok {
		return
	}

	if err := s.participants.Remove(r.Context(), id, participant.StatusRemoved); err != nil {
		switch {
		case errors.Is(err, participant.ErrOwnerImmutable):
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "the owner cannot be removed; transfer ownership first")
		case errors.Is(err, participant.ErrNotFound):
			writeNotFound(w, "participant not found")
		default:
			s.logger.Error("remove participant failed", "participant_id", id, "error", err)
			writeInternalError(w, "failed to remove participant")
		}
		return
	}

	s.auditLog(audit.ActionParticipantRemoved, audit.EntityParticipant, id, principalFrom(r).ActorID(), map[string]any{
		"event_id": p.EventID,
		"user_id":  p.UserID,
	})
	s.notifier.ParticipantChanged(p.EventID, id, "removed", string(p.Role))

	writeJSON(w, http.StatusOK, map[string]any{"removed": id})
}

// transferRequest is the body for POST /events/{eventID}/transfer.
type transferRequest struct {
	ToUserID string `json:"to_user_id"`
}

// handleTransferOwnership atomically demotes the current owner to
// co-host and promotes the target, preserving the single-owner
// invariant.
func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	pr := principalFrom(r)

	if _, ok := s.authorize(w, r, eventID, access.CapTransferOwnership); !ok {
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ToUserID == "" {
		writeBadRequest(w, "to_user_id is required")
		return
	}

	if err := s.participants.TransferOwnership(r.Context(), eventID, pr.UserID, req.ToUserID); err != nil {
		if errors.Is(err, participant.ErrNotOwner) {
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "only the active owner can transfer ownership")
			return
		}
		s.logger.Error("ownership transfer failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to transfer ownership")
		return
	}

	s.auditLog(audit.ActionOwnershipTransfer, audit.EntityParticipant, eventID, pr.UserID, map[string]any{
		"from_user_id": pr.UserID,
		"to_user_id":   req.ToUserID,
	})
	s.notifier.ParticipantChanged(eventID, req.ToUserID, "ownership_transferred", string(participant.RoleOwner))

	writeJSON(w, http.StatusOK, map[string]any{"owner": req.ToUserID})
}

// loadParticipant fetches a participant record and authorizes the given
// capability against its event.
func (s *Server) loadParticipant(w http.ResponseWriter, r *http.Request, id string, capability access.Capability) (*participant.Participant, bool) {
	p, err := s.participants.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, participant.ErrNotFound) {
			writeNotFound(w, "participant not found")
			return nil, false
		}
		s.logger.Error("get participant failed", "participant_id", id, "error", err)
		writeInternalError(w, "failed to load participant")
		return nil, false
	}

	if _, ok := s.authorize(w, r, p.EventID, capability); !ok {
		return nil, false
	}
	return p, true
}
