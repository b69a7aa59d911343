// Package notify publishes domain notifications to the MQTT bus.
//
// Consumers (mobile apps, the gallery frontend, operations tooling)
// subscribe to per-event topics to learn about visibility transitions,
// participant changes, token revocations, and moderation decisions
// without polling the API.
//
// The Notifier is nil-safe throughout: when MQTT is disabled in
// configuration the service passes a nil *Notifier and every publish
// becomes a no-op. Publish failures are logged, never propagated;
// notification delivery is best-effort and must not fail the operation
// that triggered it.
package notify
