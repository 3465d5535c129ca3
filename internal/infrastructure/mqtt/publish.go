package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// maxPayloadSize bounds a single publish (1MB).
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker to accept it.
// Wildcards are not allowed in publish topics.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if !validTopic(topic, false) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.paho.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishRetained publishes a retained message at the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.qos(), true)
}

// StateMessage is the latest state of one configured entry.
type StateMessage struct {
	Domain    string
	EntryID   string
	Title     string
	State     map[string]any
	Available bool
	UpdatedAt time.Time
}

// statePayload is the JSON body of a state topic.
type statePayload struct {
	Domain    string         `json:"domain"`
	EntryID   string         `json:"entry_id"`
	Title     string         `json:"title,omitempty"`
	State     map[string]any `json:"state"`
	UpdatedAt string         `json:"updated_at"`
}

// PublishState publishes the entry's availability and, when it has any,
// its state. Both are retained so new subscribers see the latest values.
func (c *Client) PublishState(msg StateMessage) error {
	topics := Topics{}

	availability := AvailabilityOffline
	if msg.Available {
		availability = AvailabilityOnline
	}
	if err := c.PublishRetained(topics.Availability(msg.Domain, msg.EntryID), []byte(availability)); err != nil {
		return fmt.Errorf("publishing availability: %w", err)
	}

	if msg.State == nil {
		return nil
	}
	body, err := json.Marshal(statePayload{
		Domain:    msg.Domain,
		EntryID:   msg.EntryID,
		Title:     msg.Title,
		State:     msg.State,
		UpdatedAt: msg.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := c.PublishRetained(topics.State(msg.Domain, msg.EntryID), body); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	return nil
}

// ClearState removes the retained state and marks the entry offline. It is
// used when an entry is deleted.
func (c *Client) ClearState(domain, entryID string) error {
	topics := Topics{}
	if err := c.PublishRetained(topics.Availability(domain, entryID), []byte(AvailabilityOffline)); err != nil {
		return fmt.Errorf("publishing availability: %w", err)
	}
	// An empty retained payload deletes the retained message.
	if err := c.PublishRetained(topics.State(domain, entryID), nil); err != nil {
		return fmt.Errorf("clearing state: %w", err)
	}
	return nil
}
