package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes.
//
// Per-entry topics use the flat scheme graylogic/{category}/{domain}/{entry_id}.
const (
	TopicPrefix       = "graylogic"
	TopicPrefixSystem = "graylogic/system"
)

// Availability payloads.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// Topics builds the topics this service publishes and subscribes to.
//
//	topics := mqtt.Topics{}
//	topics.State("minecraft_server", "5f0c...")
//	// Returns: "graylogic/state/minecraft_server/5f0c..."
type Topics struct{}

// State returns the retained state topic of a configured entry.
func (Topics) State(domain, entryID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, domain, entryID)
}

// Availability returns the retained availability topic of a configured
// entry. Its payload is AvailabilityOnline or AvailabilityOffline.
func (Topics) Availability(domain, entryID string) string {
	return fmt.Sprintf("%s/availability/%s/%s", TopicPrefix, domain, entryID)
}

// Command returns the topic on which an entry accepts commands.
func (Topics) Command(domain, entryID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, domain, entryID)
}

// AllCommands matches the command topic of every entry.
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+/+"
}

// AllStates matches the state topic of every entry.
func (Topics) AllStates() string {
	return TopicPrefix + "/state/#"
}

// SystemStatus returns the service status topic. It carries the LWT.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ParseEntryTopic splits a per-entry topic into its category, domain and
// entry ID. ok is false for anything that is not exactly four segments
// under the graylogic prefix.
func ParseEntryTopic(topic string) (category, domain, entryID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix {
		return "", "", "", false
	}
	for _, p := range parts[1:] {
		if p == "" {
			return "", "", "", false
		}
	}
	return parts[1], parts[2], parts[3], true
}

// validTopic rejects empty topics and, for publishing, wildcards.
func validTopic(topic string, allowWildcards bool) bool {
	if topic == "" {
		return false
	}
	if !allowWildcards && strings.ContainsAny(topic, "+#") {
		return false
	}
	return true
}
