package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintIDLen is the number of hex characters of the fingerprint
// used in the derived anonymous session id.
const fingerprintIDLen = 16

// DeviceInfo carries the request attributes used to derive an anonymous
// device fingerprint.
type DeviceInfo struct {
	// IP is the client's remote address (without port).
	IP string

	// UserAgent is the client's User-Agent header.
	UserAgent string

	// SessionHint is an explicit session id supplied by the client
	// (e.g. a cookie), so the same device reconnecting maps to the same
	// anonymous identity when possible.
	SessionHint string
}

// Resolver turns inbound credentials into principals.
type Resolver struct {
	secret string
}

// NewResolver creates a Resolver verifying bearer tokens with the given
// HMAC secret.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: secret}
}

// Resolve maps an Authorization header value and device info to a Principal.
//
// An absent, malformed, expired, or badly-signed credential degrades to an
// anonymous principal; it is never an error.
func (r *Resolver) Resolve(authHeader string, device DeviceInfo) Principal {
	if raw := bearerToken(authHeader); raw != "" {
		claims, err := ParseToken(raw, r.secret)
		if err == nil {
			return Principal{UserID: claims.Subject}
		}
		// Stale or garbage credential: treat as absent.
	}

	fp := Fingerprint(device)
	return Principal{
		SessionID:   "anon-" + fp[:fingerprintIDLen],
		Fingerprint: fp,
	}
}

// Fingerprint derives a deterministic device fingerprint from client
// attributes. The same device reconnecting produces the same fingerprint.
func Fingerprint(device DeviceInfo) string {
	h := sha256.New()
	h.Write([]byte(device.IP))
	h.Write([]byte{0})
	h.Write([]byte(device.UserAgent))
	h.Write([]byte{0})
	h.Write([]byte(device.SessionHint))
	return hex.EncodeToString(h.Sum(nil))
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
// Returns "" if the header is absent or not a bearer credential.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
