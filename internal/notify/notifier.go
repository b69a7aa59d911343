package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/mqtt"
)

// Publisher is the slice of the MQTT client the notifier needs.
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Notifier publishes domain notifications to per-event MQTT topics.
// A nil *Notifier is valid and silently drops everything.
type Notifier struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
	logger *slog.Logger
}

// New creates a Notifier publishing at the given QoS. Pass the
// connected MQTT client; logger must not be nil.
func New(pub Publisher, qos byte, logger *slog.Logger) *Notifier {
	return &Notifier{pub: pub, qos: qos, logger: logger}
}

// VisibilityChanged announces a completed visibility transition,
// including how existing anonymous sessions were affected.
func (n *Notifier) VisibilityChanged(res event.TransitionResult) {
	if n == nil {
		return
	}
	payload := struct {
		EventID          string  `json:"event_id"`
		From             string  `json:"from"`
		To               string  `json:"to"`
		SessionsAffected int     `json:"sessions_affected"`
		GraceDeadline    *string `json:"grace_deadline,omitempty"`
		Timestamp        string  `json:"timestamp"`
	}{
		EventID:          res.EventID,
		From:             string(res.From),
		To:               string(res.To),
		SessionsAffected: res.SessionsAffected,
		Timestamp:        now(),
	}
	if res.Deadline != nil {
		s := res.Deadline.UTC().Format(time.RFC3339)
		payload.GraceDeadline = &s
	}
	n.send(n.topics.EventVisibility(res.EventID), payload)
}

// ParticipantChanged announces a participant lifecycle change. Action
// is one of invited, approved, removed, ownership_transferred.
func (n *Notifier) ParticipantChanged(eventID, participantID, action, role string) {
	if n == nil {
		return
	}
	n.send(n.topics.EventParticipants(eventID), struct {
		EventID       string `json:"event_id"`
		ParticipantID string `json:"participant_id"`
		Action        string `json:"action"`
		Role          string `json:"role,omitempty"`
		Timestamp     string `json:"timestamp"`
	}{eventID, participantID, action, role, now()})
}

// TokenRevoked announces a share token revocation so link holders can
// be told promptly rather than on next use.
func (n *Notifier) TokenRevoked(eventID, tokenID string) {
	if n == nil {
		return
	}
	n.send(n.topics.EventTokens(eventID), struct {
		EventID   string `json:"event_id"`
		TokenID   string `json:"token_id"`
		Action    string `json:"action"`
		Timestamp string `json:"timestamp"`
	}{eventID, tokenID, "revoked", now()})
}

// MediaReviewed announces a moderation decision on a media item.
func (n *Notifier) MediaReviewed(eventID, mediaID, status, reviewedBy string) {
	if n == nil {
		return
	}
	n.send(n.topics.EventMedia(eventID), struct {
		EventID    string `json:"event_id"`
		MediaID    string `json:"media_id"`
		Status     string `json:"status"`
		ReviewedBy string `json:"reviewed_by"`
		Timestamp  string `json:"timestamp"`
	}{eventID, mediaID, status, reviewedBy, now()})
}

func (n *Notifier) send(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("notification marshal failed", "topic", topic, "error", err)
		return
	}
	if err := n.pub.Publish(topic, n.qos, data); err != nil {
		n.logger.Warn("notification publish failed", "topic", topic, "error", err)
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
