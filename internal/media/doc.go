// Package media tracks uploaded media items through their moderation
// lifecycle. Items enter as pending when the event requires approval and
// move to approved or rejected exactly once; the review decision is a
// compare-and-set so two racing moderators cannot both claim it.
//
// File bytes never pass through here. Storage and delivery are handled
// upstream; this package owns only the metadata and moderation state.
package media
