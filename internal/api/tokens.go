package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwrenholt/gatherly-core/internal/access"
	"github.com/mwrenholt/gatherly-core/internal/audit"
	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/sharetoken"
)

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	if _, ok := s.authorize(w, r, eventID, access.CapManageSettings); !ok {
		return
	}

	list, err := s.tokens.ListByEvent(r.Context(), eventID)
	if err != nil {
		s.logger.Error("list tokens failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to list share tokens")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tokens": list})
}

// createTokenRequest is the body for POST /events/{eventID}/tokens.
type createTokenRequest struct {
	Type             sharetoken.TokenType `json:"token_type"`
	Scope            *sharetoken.Scope    `json:"permissions,omitempty"`
	MaxUses          *int                 `json:"max_uses,omitempty"`
	ExpiresAt        *time.Time           `json:"expires_at,omitempty"`
	AllowedEmails    []string             `json:"allowed_emails,omitempty"`
	RequiresApproval bool                 `json:"requires_approval"`

	// Password protects the link; only its argon2id hash is stored.
	Password string `json:"password,omitempty"`
}

// handleCreateToken mints a share link for an event. The token string
// is returned once in this response; it is recoverable later only by
// listing tokens with manage rights.
func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	pr := principalFrom(r)

	if _, ok := s.authorize(w, r, eventID, access.CapInviteOthers); !ok {
		return
	}

	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = sharetoken.TypeView
	}

	raw, err := sharetoken.GenerateToken(s.sharing.TokenBytes)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "failed to create share token")
		return
	}

	t := &sharetoken.ShareToken{
		EventID: eventID,
		Token:   raw,
		Type:    req.Type,
		Restrictions: sharetoken.Restrictions{
			MaxUses:          req.MaxUses,
			ExpiresAt:        req.ExpiresAt,
			AllowedEmails:    req.AllowedEmails,
			RequiresApproval: req.RequiresApproval,
		},
		CreatedBy: pr.ActorID(),
	}

	if req.Scope != nil {
		t.Scope = clampScope(*req.Scope, defaultScope(req.Type))
	} else {
		t.Scope = defaultScope(req.Type)
	}

	if req.Password != "" {
		hash, err := sharetoken.HashPassword(req.Password)
		if err != nil {
			s.logger.Error("password hashing failed", "error", err)
			writeInternalError(w, "failed to create share token")
			return
		}
		t.Restrictions.PasswordHash = hash
	}

	if err := s.tokens.Create(r.Context(), t); err != nil {
		if errors.Is(err, sharetoken.ErrInvalidType) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("create token failed", "event_id", eventID, "error", err)
		writeInternalError(w, "failed to create share token")
		return
	}

	s.auditLog(audit.ActionTokenCreated, audit.EntityShareToken, t.ID, pr.ActorID(), map[string]any{
		"event_id":   eventID,
		"token_type": string(t.Type),
	})

	writeJSON(w, http.StatusCreated, t)
}

// handleRevokeToken permanently disables a share link. Revocation is
// not reversible; mint a new link instead.
func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	tokenID := chi.URLParam(r, "tokenID")
	pr := principalFrom(r)

	if _, ok := s.authorize(w, r, eventID, access.CapManageSettings); !ok {
		return
	}

	if err := s.tokens.Revoke(r.Context(), tokenID, pr.ActorID(), s.clock.Now()); err != nil {
		switch {
		case errors.Is(err, sharetoken.ErrNotFound):
			writeNotFound(w, "share token not found")
		case errors.Is(err, sharetoken.ErrRevoked):
			writeConflict(w, "share token already revoked")
		default:
			s.logger.Error("revoke token failed", "token_id", tokenID, "error", err)
			writeInternalError(w, "failed to revoke share token")
		}
		return
	}

	s.auditLog(audit.ActionTokenRevoked, audit.EntityShareToken, tokenID, pr.ActorID(), map[string]any{
		"event_id": eventID,
	})
	s.notifier.TokenRevoked(eventID, tokenID)

	writeJSON(w, http.StatusOK, map[string]any{"revoked": tokenID})
}

// tokenResolution is the guest-facing answer to a share link.
type tokenResolution struct {
	OK          bool              `json:"ok"`
	Reason      sharetoken.Reason `json:"reason,omitempty"`
	EventID     string            `json:"event_id,omitempty"`
	EventTitle  string            `json:"event_title,omitempty"`
	Permissions sharetoken.Scope  `json:"permissions"`
}

// handleResolveToken previews a share link without counting a use.
// Guests hit this to render the landing page; refreshing it never burns
// link capacity.
func (s *Server) handleResolveToken(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		writeBadRequest(w, "token is required")
		return
	}

	val, err := s.access.Checker().Tokens().Validate(r.Context(), raw, r.Header.Get("X-Share-Password"))
	if err != nil {
		s.logger.Error("token resolution failed", "error", err)
		writeInternalError(w, "failed to resolve share token")
		return
	}

	s.writeResolution(w, r, val)
}

// handleConsumeToken resolves a share link and counts a use. Clients
// call this exactly once, when the guest actually enters the event.
func (s *Server) handleConsumeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Token == "" {
		writeBadRequest(w, "token is required")
		return
	}

	pr := principalFrom(r)
	val, err := s.access.Checker().Tokens().Consume(r.Context(), req.Token, req.Password, pr.ActorID())
	if err != nil {
		s.logger.Error("token consumption failed", "error", err)
		writeInternalError(w, "failed to consume share token")
		return
	}

	if val.OK && s.metrics != nil {
		s.metrics.WriteTokenUse(val.EventID, val.Token.ID)
	}

	s.writeResolution(w, r, val)
}

// writeResolution renders a validation outcome for guests. Failure
// reasons map to statuses the client branches on: 401 asks for a
// password, 410 shows a dead-link page.
func (s *Server) writeResolution(w http.ResponseWriter, r *http.Request, val *sharetoken.Validation) {
	if !val.OK {
		status := http.StatusGone
		switch val.Reason {
		case sharetoken.ReasonNotFound:
			status = http.StatusNotFound
		case sharetoken.ReasonPasswordRequired, sharetoken.ReasonPasswordMismatch:
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, tokenResolution{OK: false, Reason: val.Reason})
		return
	}

	res := tokenResolution{
		OK:          true,
		EventID:     val.EventID,
		Permissions: val.Scope,
	}
	if e, err := s.events.GetByID(r.Context(), val.EventID); err == nil {
		res.EventTitle = e.Title
	} else if !errors.Is(err, event.ErrNotFound) {
		s.logger.Warn("event lookup for token resolution failed", "event_id", val.EventID, "error", err)
	}

	writeJSON(w, http.StatusOK, res)
}

// clampScope caps a requested scope at its type's ceiling: a view token
// cannot carry upload rights no matter what the request asked for.
func clampScope(req, ceiling sharetoken.Scope) sharetoken.Scope {
	return sharetoken.Scope{
		CanView:     req.CanView && ceiling.CanView,
		CanUpload:   req.CanUpload && ceiling.CanUpload,
		CanDownload: req.CanDownload && ceiling.CanDownload,
		CanShare:    req.CanShare && ceiling.CanShare,
		CanComment:  req.CanComment && ceiling.CanComment,
	}
}

// defaultScope maps a token type to its natural permission set.
func defaultScope(t sharetoken.TokenType) sharetoken.Scope {
	switch t {
	case sharetoken.TypeUpload:
		return sharetoken.Scope{CanView: true, CanUpload: true, CanDownload: true, CanComment: true}
	case sharetoken.TypeInvite:
		return sharetoken.Scope{CanView: true, CanUpload: true, CanDownload: true, CanShare: true, CanComment: true}
	default:
		return sharetoken.Scope{CanView: true, CanDownload: true}
	}
}
