package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAccessDecision records an access check outcome. Denial reasons
// are low cardinality (no_role, token_invalid:*, capability_denied:*)
// so they are safe as a tag; empty reason means the check allowed.
func (c *Client) WriteAccessDecision(eventID, capability, role string, allowed bool, reason string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"event_id":   eventID,
		"capability": capability,
	}
	if role != "" {
		tags["role"] = role
	}
	if reason != "" {
		tags["reason"] = reason
	}

	value := 0
	if allowed {
		value = 1
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"access_decisions",
		tags,
		map[string]interface{}{"allowed": value},
		time.Now(),
	))
}

// WriteTokenUse records a consumed share link use.
func (c *Client) WriteTokenUse(eventID, tokenID string) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"token_uses",
		map[string]string{
			"event_id": eventID,
			"token_id": tokenID,
		},
		map[string]interface{}{"count": 1},
		time.Now(),
	))
}

// WriteVisibilityTransition records a completed transition and how many
// anonymous sessions it touched.
func (c *Client) WriteVisibilityTransition(eventID, from, to string, sessionsAffected int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"visibility_transitions",
		map[string]string{
			"event_id": eventID,
			"from":     from,
			"to":       to,
		},
		map[string]interface{}{"sessions_affected": sessionsAffected},
		time.Now(),
	))
}

// WriteMediaUpload records an accepted media item by type.
func (c *Client) WriteMediaUpload(eventID, mediaType string) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"media_uploads",
		map[string]string{
			"event_id":   eventID,
			"media_type": mediaType,
		},
		map[string]interface{}{"count": 1},
		time.Now(),
	))
}

// WritePoint writes a custom measurement with full control over tags
// and fields, for metrics the helpers above don't cover.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// WritePointWithTime is WritePoint with an explicit timestamp, for
// backfilled or delayed data.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
