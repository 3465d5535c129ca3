package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Subscribe registers handler for topic, which may contain wildcards. The
// subscription is restored after every reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if !validTopic(topic, true) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	token := c.paho.Subscribe(topic, qos, c.wrapHandler(handler))
	var err error
	switch {
	case !token.WaitTimeout(defaultPublishTimeout):
		err = fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	case token.Error() != nil:
		err = fmt.Errorf("%w: %w", ErrSubscribeFailed, token.Error())
	}
	if err != nil {
		c.subMu.Lock()
		delete(c.subscriptions, topic)
		c.subMu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe removes a subscription made with Subscribe.
func (c *Client) Unsubscribe(topic string) error {
	if !validTopic(topic, true) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	token := c.paho.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether topic, compared literally, is subscribed.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}

// Command is a request received on an entry's command topic.
type Command struct {
	Domain  string
	EntryID string
	Name    string
}

// commandPayload is the JSON body of a command message. A bare string
// payload such as "refresh" is accepted too.
type commandPayload struct {
	Command string `json:"command"`
}

// ParseCommand decodes a command message received on topic.
func ParseCommand(topic string, payload []byte) (Command, error) {
	category, domain, entryID, ok := ParseEntryTopic(topic)
	if !ok || category != "command" {
		return Command{}, fmt.Errorf("%w: %q is not a command topic", ErrInvalidTopic, topic)
	}

	name := strings.TrimSpace(string(payload))
	if strings.HasPrefix(name, "{") {
		var p commandPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return Command{}, fmt.Errorf("decoding command: %w", err)
		}
		name = p.Command
	}
	if name == "" {
		return Command{}, fmt.Errorf("decoding command: empty command on %s", topic)
	}
	return Command{Domain: domain, EntryID: entryID, Name: strings.ToLower(name)}, nil
}

// SubscribeCommands delivers every entry command to fn.
func (c *Client) SubscribeCommands(fn func(Command) error) error {
	return c.Subscribe(Topics{}.AllCommands(), c.qos(), func(topic string, payload []byte) error {
		cmd, err := ParseCommand(topic, payload)
		if err != nil {
			return err
		}
		return fn(cmd)
	})
}
