package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mwrenholt/gatherly-core/internal/event"
)

type capturedMessage struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	messages []capturedMessage
	err      error
}

func (f *fakePublisher) Publish(topic string, qos byte, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, capturedMessage{topic: topic, payload: payload})
	return nil
}

func testNotifier(pub Publisher) *Notifier {
	return New(pub, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestVisibilityChanged(t *testing.T) {
	pub := &fakePublisher{}
	n := testNotifier(pub)

	deadline := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	n.VisibilityChanged(event.TransitionResult{
		EventID:          "evt-1a2b3c4d",
		From:             event.VisibilityAnyoneWithLink,
		To:               event.VisibilityInvitedOnly,
		SessionsAffected: 3,
		Deadline:         &deadline,
	})

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if want := "gatherly/events/evt-1a2b3c4d/visibility"; msg.topic != want {
		t.Errorf("topic = %q, want %q", msg.topic, want)
	}

	var got map[string]any
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if got["from"] != "anyone_with_link" || got["to"] != "invited_only" {
		t.Errorf("payload from/to = %v/%v", got["from"], got["to"])
	}
	if got["sessions_affected"] != float64(3) {
		t.Errorf("sessions_affected = %v, want 3", got["sessions_affected"])
	}
	if got["grace_deadline"] != "2026-08-02T12:00:00Z" {
		t.Errorf("grace_deadline = %v", got["grace_deadline"])
	}
}

func TestParticipantChanged(t *testing.T) {
	pub := &fakePublisher{}
	n := testNotifier(pub)

	n.ParticipantChanged("evt-1", "par-9z8y7x6w", "ownership_transferred", "owner")

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	if want := "gatherly/events/evt-1/participants"; pub.messages[0].topic != want {
		t.Errorf("topic = %q, want %q", pub.messages[0].topic, want)
	}

	var got map[string]any
	if err := json.Unmarshal(pub.messages[0].payload, &got); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if got["action"] != "ownership_transferred" || got["role"] != "owner" {
		t.Errorf("payload action/role = %v/%v", got["action"], got["role"])
	}
}

func TestTokenRevokedAndMediaReviewed(t *testing.T) {
	pub := &fakePublisher{}
	n := testNotifier(pub)

	n.TokenRevoked("evt-1", "tok-5e6f7a8b")
	n.MediaReviewed("evt-1", "med-1c2d3e4f", "approved", "usr-mod")

	if len(pub.messages) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.messages))
	}
	if want := "gatherly/events/evt-1/tokens"; pub.messages[0].topic != want {
		t.Errorf("token topic = %q, want %q", pub.messages[0].topic, want)
	}
	if want := "gatherly/events/evt-1/media"; pub.messages[1].topic != want {
		t.Errorf("media topic = %q, want %q", pub.messages[1].topic, want)
	}
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier

	// Must not panic.
	n.VisibilityChanged(event.TransitionResult{EventID: "evt-1"})
	n.ParticipantChanged("evt-1", "par-1", "invited", "viewer")
	n.TokenRevoked("evt-1", "tok-1")
	n.MediaReviewed("evt-1", "med-1", "rejected", "usr-mod")
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errFake}
	n := testNotifier(pub)

	// Publish errors are logged, not returned; the call must not panic.
	n.TokenRevoked("evt-1", "tok-1")
}

var errFake = io.ErrClosedPipe
