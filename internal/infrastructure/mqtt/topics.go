package mqtt

import "fmt"

// Topic prefixes. All notifications live under the flat scheme
// gatherly/events/{event_id}/{category}; system topics sit beside them.
const (
	// TopicPrefix is the base for all notification topics.
	TopicPrefix = "gatherly"

	// TopicPrefixEvents is the base for per-event notifications.
	TopicPrefixEvents = "gatherly/events"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = "gatherly/system"
)

// Topics provides builders for notification topics. Using these helpers
// keeps topic naming consistent between the core and its consumers.
//
//	topics := mqtt.Topics{}
//	t := topics.EventVisibility("evt-1a2b3c4d")
//	// Returns: "gatherly/events/evt-1a2b3c4d/visibility"
type Topics struct{}

// EventVisibility returns the topic for visibility transition notifications.
//
// Example: gatherly/events/evt-1a2b3c4d/visibility
func (Topics) EventVisibility(eventID string) string {
	return fmt.Sprintf("%s/%s/visibility", TopicPrefixEvents, eventID)
}

// EventParticipants returns the topic for participant lifecycle
// notifications (invites, approvals, removals, ownership transfers).
//
// Example: gatherly/events/evt-1a2b3c4d/participants
func (Topics) EventParticipants(eventID string) string {
	return fmt.Sprintf("%s/%s/participants", TopicPrefixEvents, eventID)
}

// EventMedia returns the topic for media moderation notifications.
//
// Example: gatherly/events/evt-1a2b3c4d/media
func (Topics) EventMedia(eventID string) string {
	return fmt.Sprintf("%s/%s/media", TopicPrefixEvents, eventID)
}

// EventTokens returns the topic for share token lifecycle notifications.
//
// Example: gatherly/events/evt-1a2b3c4d/tokens
func (Topics) EventTokens(eventID string) string {
	return fmt.Sprintf("%s/%s/tokens", TopicPrefixEvents, eventID)
}

// SystemStatus returns the retained service status topic.
//
// Example: gatherly/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// Wildcard patterns for subscriptions.

// AllEventVisibility matches visibility notifications for every event.
//
// Pattern: gatherly/events/+/visibility
func (Topics) AllEventVisibility() string {
	return fmt.Sprintf("%s/+/visibility", TopicPrefixEvents)
}

// AllEventParticipants matches participant notifications for every event.
//
// Pattern: gatherly/events/+/participants
func (Topics) AllEventParticipants() string {
	return fmt.Sprintf("%s/+/participants", TopicPrefixEvents)
}

// AllEventMedia matches media notifications for every event.
//
// Pattern: gatherly/events/+/media
func (Topics) AllEventMedia() string {
	return fmt.Sprintf("%s/+/media", TopicPrefixEvents)
}

// AllForEvent matches every notification for one event.
//
// Pattern: gatherly/events/{event_id}/#
func (Topics) AllForEvent(eventID string) string {
	return fmt.Sprintf("%s/%s/#", TopicPrefixEvents, eventID)
}

// AllTopics matches all notification traffic. Use with caution.
//
// Pattern: gatherly/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
