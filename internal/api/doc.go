// Package api provides the HTTP REST API for Gatherly Core.
//
// It exposes event, participant, share-link, media, and audit operations
// to clients (mobile apps, the gallery frontend, host dashboards). Every
// event-scoped route is gated through the access checker: handlers ask
// one capability question, receive a decision, and translate denials to
// HTTP statuses without leaking event details to outsiders.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
