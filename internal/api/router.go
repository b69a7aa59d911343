package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mwrenholt/gatherly-core/internal/access"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrDefault(s.cfg.CORS.AllowedOrigins, []string{"*"}),
		AllowedMethods:   allowedOrDefault(s.cfg.CORS.AllowedMethods, []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		AllowedHeaders:   allowedOrDefault(s.cfg.CORS.AllowedHeaders, []string{"Authorization", "Content-Type", "X-Request-ID", "X-Session-Hint", "X-Share-Password"}),
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.principalMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no access checks)
		r.Get("/health", s.handleHealth)

		// Share link resolution: the entry point for guests holding a
		// link. Preview never consumes a use; consume does.
		r.Get("/share/resolve", s.handleResolveToken)
		r.Post("/share/consume", s.handleConsumeToken)

		// Event endpoints. Per-route access checks happen in handlers,
		// since the capability asked for differs per operation.
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Post("/", s.handleCreateEvent)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", s.handleGetEvent)
				r.Patch("/", s.handleUpdateEvent)
				r.Delete("/", s.handleDeleteEvent)
				r.Post("/visibility", s.handleTransitionVisibility)
				r.Post("/transfer", s.handleTransferOwnership)
				r.Get("/audit", s.handleListAuditLogs)

				r.Route("/participants", func(r chi.Router) {
					r.Get("/", s.handleListParticipants)
					r.Post("/", s.handleInviteParticipant)
				})

				r.Route("/tokens", func(r chi.Router) {
					r.Get("/", s.handleListTokens)
					r.Post("/", s.handleCreateToken)
					r.Post("/{tokenID}/revoke", s.handleRevokeToken)
				})

				r.Route("/media", func(r chi.Router) {
					r.Get("/", s.handleListMedia)
					r.Post("/", s.handleUploadMedia)
					r.Post("/{mediaID}/review", s.handleReviewMedia)
					r.Delete("/{mediaID}", s.handleDeleteMedia)
				})
			})
		})

		// Participant record operations addressed by record id.
		r.Route("/participants/{participantID}", func(r chi.Router) {
			r.Post("/approve", s.handleApproveParticipant)
			r.Patch("/overrides", s.handleSetOverrides)
			r.Delete("/", s.handleRemoveParticipant)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// authorize runs one access check for the request and writes the denial
// if the answer is no. The boolean reports whether the handler may
// proceed. Share tokens ride along via the token query parameter and the
// X-Share-Password header.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, eventID string, capability access.Capability) (*access.Decision, bool) {
	req := access.Request{
		EventID:       eventID,
		Token:         r.URL.Query().Get("token"),
		TokenPassword: r.Header.Get("X-Share-Password"),
		Principal:     principalFrom(r),
		Capability:    capability,
	}

	decision, err := s.access.Checker().Check(r.Context(), req)
	if err != nil {
		// Fail closed: store errors and invariant violations both deny.
		s.logger.Error("access check failed",
			"event_id", eventID,
			"capability", capability,
			"error", err,
		)
		writeInternalError(w, "access check failed")
		return nil, false
	}

	s.recordDecision(eventID, capability, decision)

	if !decision.Allowed {
		writeDenied(w, decision)
		return decision, false
	}
	return decision, true
}

// recordDecision writes the access outcome to the engagement metrics
// store, when one is configured.
func (s *Server) recordDecision(eventID string, capability access.Capability, d *access.Decision) {
	if s.metrics == nil {
		return
	}
	s.metrics.WriteAccessDecision(eventID, string(capability), string(d.Role), d.Allowed, d.Reason)
}

// allowedOrDefault returns values, or the default list when empty.
func allowedOrDefault(values, defaults []string) []string {
	if len(values) == 0 {
		return defaults
	}
	return values
}
