package sharetoken

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// TokenType describes the intent a token was created with.
type TokenType string

const (
	// TypeInvite admits the holder as a participant on consumption.
	TypeInvite TokenType = "invite"

	// TypeView grants read access only.
	TypeView TokenType = "view"

	// TypeUpload grants read plus contribution access.
	TypeUpload TokenType = "upload"
)

// IsValidType returns true for a recognised token type.
func IsValidType(t TokenType) bool {
	return t == TypeInvite || t == TypeView || t == TypeUpload
}

// Scope is the permission set a token carries. When a request arrives via
// a token, the final capability for each field is the role default AND the
// token permission: a token can only narrow access, never widen it.
type Scope struct {
	CanView     bool `json:"can_view"`
	CanUpload   bool `json:"can_upload"`
	CanDownload bool `json:"can_download"`
	CanShare    bool `json:"can_share"`
	CanComment  bool `json:"can_comment"`
}

// Restrictions bound how and by whom a token may be used.
type Restrictions struct {
	MaxUses          *int       `json:"max_uses,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	AllowedEmails    []string   `json:"allowed_emails,omitempty"`
	RequiresApproval bool       `json:"requires_approval"`

	// PasswordHash is the argon2id hash of the token password, empty when
	// the token is not password-protected. Raw passwords are never stored.
	PasswordHash string `json:"-"`
}

// ShareToken is a capability-scoped link to an event.
type ShareToken struct {
	ID           string       `json:"id"`
	EventID      string       `json:"event_id"`
	Token        string       `json:"token"`
	Type         TokenType    `json:"token_type"`
	Scope        Scope        `json:"permissions"`
	Restrictions Restrictions `json:"restrictions"`

	UsageCount int  `json:"usage_count"`
	Revoked    bool `json:"revoked"`

	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	RevokedBy string     `json:"revoked_by,omitempty"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

// PasswordProtected returns true if resolving the token requires a password.
func (t *ShareToken) PasswordProtected() bool {
	return t.Restrictions.PasswordHash != ""
}

// Use records one successful consumption of a token.
type Use struct {
	ID      string    `json:"id"`
	TokenID string    `json:"token_id"`
	UsedBy  string    `json:"used_by"`
	UsedAt  time.Time `json:"used_at"`
}

// Reason identifies why a token failed validation. Reasons are user-facing:
// the guest client renders a password prompt and a dead-link page differently.
type Reason string

const (
	ReasonNotFound         Reason = "not_found"
	ReasonRevoked          Reason = "revoked"
	ReasonExpired          Reason = "expired"
	ReasonCapacityExceeded Reason = "capacity_exceeded"
	ReasonPasswordRequired Reason = "password_required"
	ReasonPasswordMismatch Reason = "password_mismatch"
)

// Domain errors.
var (
	ErrNotFound    = errors.New("share token not found")
	ErrRevoked     = errors.New("share token has been revoked")
	ErrInvalidType = errors.New("invalid share token type")
)

// GenerateToken returns a cryptographically random token string of the
// given entropy in bytes.
func GenerateToken(numBytes int) (string, error) {
	if numBytes <= 0 {
		numBytes = 32 //nolint:mnd // 256-bit default
	}
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating share token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
