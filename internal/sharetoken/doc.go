// Package sharetoken implements capability-scoped share links for events.
//
// A share token is an unguessable string granting scoped access to an
// event without requiring the holder to be a named participant. Tokens
// carry their own permission scope (view/upload/download/share/comment)
// and restrictions (max uses, expiry, allowed emails, password).
//
// Validation distinguishes preview from consumption: rendering a landing
// page validates the token without counting a use; an actual join or
// upload consumes one use atomically. Revocation is permanent.
package sharetoken
