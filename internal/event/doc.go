// Package event manages events, their visibility lifecycle, and the
// anonymous sessions attached to them.
//
// Visibility forms an ordered scale from anyone_with_link (most open)
// through invited_only to private (most closed). Tightening visibility on
// an event with active anonymous viewers triggers the event's transition
// policy: cut them off immediately, grant a grace period, or require login
// within a short window. Grace periods are monotonic: once a session has a
// deadline it is never extended, only capped downward by a harsher policy.
//
// The transition itself is a compare-and-set on the current visibility so
// concurrent administrators cannot double-apply side effects; the policy
// side effects run in the same transaction as the visibility change.
package event
