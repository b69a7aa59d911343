package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwrenholt/gatherly-core/internal/access"
	"github.com/mwrenholt/gatherly-core/internal/audit"
	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/media"
)

// handleListMedia returns an event's media. Plain viewers see approved
// items only; pending and rejected listings require moderation rights.
func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	decision, ok := s.authorize(w, r, eventID, access.CapView)
	if !ok {
		return
	}

	status := media.StatusApproved
	switch q := r.URL.Query().Get("status"); q {
	case "", "approved":
	case "all":
		status = ""
	default:
		status = media.Status(q)
	}
	if status != media.StatusApproved && !decision.Capabilities.CanModerateContent {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "moderation rights required to list unapproved media")
		return
	}

	items, err := s.media.ListByEvent(r.Context(), eventID, status)
	if err != nil {
		s.logger.Error("list media failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to list media")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"media": items})
}

// uploadRequest is the metadata body for POST /events/{eventID}/media.
// Image bytes themselves go to object storage out of band; the API
// records the item and its moderation state.
type uploadRequest struct {
	FileName string     `json:"file_name"`
	Type     media.Type `json:"media_type"`
}

func (s *Server) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	pr := principalFrom(r)

	if _, ok := s.authorize(w, r, eventID, access.CapUpload); !ok {
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.FileName == "" {
		writeBadRequest(w, "file_name is required")
		return
	}

	e, err := s.events.GetByID(r.Context(), eventID)
	if err != nil {
		s.logger.Error("get event failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to upload media")
		return
	}
	if !typeAllowed(e, req.Type) {
		writeBadRequest(w, media.ErrTypeNotAllowed.Error())
		return
	}

	item := &media.Item{
		EventID:    eventID,
		UploadedBy: pr.ActorID(),
		FileName:   req.FileName,
		Type:       req.Type,
		Status:     media.StatusApproved,
	}
	if e.Permissions.RequireApproval {
		item.Status = media.StatusPending
	}

	if err := s.media.Create(r.Context(), item); err != nil {
		if errors.Is(err, media.ErrInvalidType) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("create media failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to upload media")
		return
	}

	if s.metrics != nil {
		s.metrics.WriteMediaUpload(eventID, string(item.Type))
	}

	writeJSON(w, http.StatusCreated, item)
}

// reviewRequest is the body for POST .../media/{mediaID}/review.
type reviewRequest struct {
	Decision media.Status `json:"decision"`
}

// handleReviewMedia applies a moderation decision. Each item is
// reviewed at most once; concurrent reviewers race and losers get 409.
func (s *Server) handleReviewMedia(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	mediaID := chi.URLParam(r, "mediaID")
	pr := principalFrom(r)

	if _, ok := s.authorize(w, r, eventID, access.CapApproveContent); !ok {
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Decision != media.StatusApproved && req.Decision != media.StatusRejected {
		writeBadRequest(w, "decision must be approved or rejected")
		return
	}

	if err := s.media.Review(r.Context(), mediaID, pr.ActorID(), req.Decision, s.clock.Now()); err != nil {
		switch {
		case errors.Is(err, media.ErrNotFound):
			writeNotFound(w, "media item not found")
		case errors.Is(err, media.ErrAlreadyReviewed):
			writeConflict(w, "media item already reviewed")
		default:
			s.logger.Error("review media failed", "media_id", mediaID, "error", err)
			writeInternalError(w, "failed to review media")
		}
		return
	}

	s.auditLog(audit.ActionMediaReviewed, audit.EntityMedia, mediaID, pr.ActorID(), map[string]any{
		"event_id": eventID,
		"decision": string(req.Decision),
	})
	s.notifier.MediaReviewed(eventID, mediaID, string(req.Decision), pr.ActorID())

	writeJSON(w, http.StatusOK, map[string]any{"reviewed": mediaID, "status": req.Decision})
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	mediaID := chi.URLParam(r, "mediaID")

	if _, ok := s.authorize(w, r, eventID, access.CapModerateContent); !ok {
		return
	}

	if err := s.media.Delete(r.Context(), mediaID); err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeNotFound(w, "media item not found")
			return
		}
		s.logger.Error("delete media failed", "media_id", mediaID, "error", err)
		writeInternalError(w, "failed to delete media")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": mediaID})
}

// typeAllowed checks the event's allow-list; an empty list admits all
// recognised types.
func typeAllowed(e *event.Event, t media.Type) bool {
	if len(e.AllowedMediaTypes) == 0 {
		return true
	}
	for _, allowed := range e.AllowedMediaTypes {
		if allowed == string(t) {
			return true
		}
	}
	return false
}
