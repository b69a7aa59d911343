// Package identity resolves inbound credentials into principals.
//
// A principal is either an authenticated user (valid bearer token) or an
// anonymous guest identified by a deterministic device fingerprint. A
// syntactically valid but semantically invalid credential (expired token,
// bad signature) degrades to an anonymous principal rather than failing,
// so routes mixing authenticated and anonymous access never hard-fail on
// stale client tokens.
//
// Resolution has no side effects and never touches the database.
package identity
