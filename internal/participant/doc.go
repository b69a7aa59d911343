// Package participant manages the set of people with a relationship to an
// event and what they may do.
//
// It is the single source of truth for collaborator relationships: role
// resolution reads participants only, never a denormalised co-host list.
// Records are soft-removed (status moves to removed/left) rather than
// deleted, preserving audit history. Exactly one participant per event
// holds the owner role, set at event creation and transferable only via
// TransferOwnership.
package participant
