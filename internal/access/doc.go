// Package access is the single authorization entry point for the service.
//
// Every protected operation asks the Checker one question: may this
// principal perform this capability on this event. The answer is computed
// in a fixed pipeline: share token validation (when the request arrived
// via a link), role resolution against the participant registry, and the
// capability matrix. No handler derives roles or capabilities on its own;
// the decision value returned here is passed explicitly to whatever
// operation needs it.
//
// Decisions are pure with respect to their inputs: given the same event,
// participant record, token scope, and clock reading, the same capability
// set comes out. The only write on the read path is the anonymous session
// touch that keeps the visibility transition engine informed of active
// guests.
package access
