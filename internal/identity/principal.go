package identity

// Principal is the resolved identity of a caller.
//
// Exactly one of UserID or SessionID is set: UserID for authenticated
// users, SessionID (with Fingerprint) for anonymous guests.
type Principal struct {
	// UserID is the authenticated user's id. Empty for anonymous callers.
	UserID string `json:"user_id,omitempty"`

	// SessionID is a stable anonymous session id derived from the device
	// fingerprint. Empty for authenticated callers.
	SessionID string `json:"session_id,omitempty"`

	// Fingerprint is the raw device fingerprint backing SessionID.
	Fingerprint string `json:"-"`
}

// IsAuthenticated returns true if the principal is a logged-in user.
func (p Principal) IsAuthenticated() bool {
	return p.UserID != ""
}

// IsAnonymous returns true if the principal is an anonymous guest.
func (p Principal) IsAnonymous() bool {
	return p.UserID == ""
}

// ActorID returns the identifier to attribute actions to: the user id for
// authenticated callers, the anonymous session id otherwise.
func (p Principal) ActorID() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.SessionID
}
