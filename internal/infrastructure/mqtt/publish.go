package mqtt

import "fmt"

// 1MB cap keeps notification payloads honest; anything bigger belongs
// in object storage, not on the bus.
const maxPayloadSize = 1 << 20

// Publish sends a message at the given QoS level.
func (c *Client) Publish(topic string, qos byte, payload []byte) error {
	return c.publish(topic, qos, false, payload)
}

// PublishString publishes a string payload at the configured QoS.
func (c *Client) PublishString(topic, payload string) error {
	return c.publish(topic, byte(c.cfg.QoS), false, []byte(payload))
}

// PublishRetained publishes a retained message at the configured QoS.
// The broker delivers it immediately to future subscribers.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.publish(topic, byte(c.cfg.QoS), true, payload)
}

func (c *Client) publish(topic string, qos byte, retained bool, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > 2 {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload %d bytes exceeds %d limit", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %w", ErrPublishFailed, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
