package api

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations"
)

// Events pushed to subscribed clients.
const (
	// EventStateChanged is sent whenever an entry publishes state.
	EventStateChanged = "entry.state_changed"

	// EventEntryRemoved is sent once after an entry is deleted.
	EventEntryRemoved = "entry.removed"
)

// StatePayload is the payload of an entry.state_changed event.
type StatePayload struct {
	Domain    string         `json:"domain"`
	EntryID   string         `json:"entry_id"`
	Title     string         `json:"title,omitempty"`
	Available bool           `json:"available"`
	State     map[string]any `json:"state"`
	UpdatedAt string         `json:"updated_at"`
}

// RemovedPayload is the payload of an entry.removed event.
type RemovedPayload struct {
	Domain  string `json:"domain"`
	EntryID string `json:"entry_id"`
}

// Hub fans entry events out to WebSocket clients and remembers the last
// state of every entry, so a new subscriber starts with a full picture.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The hub lock is never held while a client lock is taken.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	last    map[string]StatePayload // keyed by entry ID
}

// WebSocket defaults applied to zero config values.
const (
	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30
	defaultWSPongTimeout    = 10
)

// NewHub creates a hub. Zero config values fall back to defaults.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultWSMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultWSPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultWSPongTimeout
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
		last:    make(map[string]StatePayload),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", c.subject, "clients", n)
}

// Unregister removes a client and closes its send channel. Calling it
// more than once is harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if c.close() {
		h.logger.Debug("websocket client disconnected", "subject", c.subject, "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishState implements integrations.StatePublisher. Slow clients miss
// events rather than blocking the publisher.
func (h *Hub) PublishState(_ context.Context, u integrations.StateUpdate) error {
	p := StatePayload{
		Domain:    u.Domain,
		EntryID:   u.EntryID,
		Title:     u.Title,
		Available: u.Available,
		State:     u.State,
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}

	h.mu.Lock()
	h.last[u.EntryID] = p
	h.mu.Unlock()

	h.send(EventStateChanged, u.Domain, u.EntryID, p)
	return nil
}

// RemoveState implements integrations.StateRemover. It forgets the cached
// state and tells subscribers the entry is gone.
func (h *Hub) RemoveState(_ context.Context, domain, entryID string) error {
	h.mu.Lock()
	delete(h.last, entryID)
	h.mu.Unlock()

	h.send(EventEntryRemoved, domain, entryID, RemovedPayload{Domain: domain, EntryID: entryID})
	return nil
}

// States returns the cached state of every entry matching f, ordered by
// entry ID.
func (h *Hub) States(f entryFilter) []StatePayload {
	h.mu.RLock()
	out := make([]StatePayload, 0, len(h.last))
	for _, p := range h.last {
		if f.matches(p.Domain, p.EntryID) {
			out = append(out, p)
		}
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out
}

// send delivers one event to every client whose filter matches the entry.
func (h *Hub) send(event, domain, entryID string, payload any) {
	data, err := json.Marshal(newEvent(event, payload))
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.wants(domain, entryID) && c.trySend(data) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("websocket event sent", "event", event, "entry_id", entryID, "recipients", sent)
	}
}

// entryFilter selects the entries a client hears about. The zero value
// selects nothing; all selects everything.
type entryFilter struct {
	all     bool
	domains map[string]struct{}
	entries map[string]struct{}
}

func (f entryFilter) matches(domain, entryID string) bool {
	if f.all {
		return true
	}
	if _, ok := f.domains[domain]; ok {
		return true
	}
	_, ok := f.entries[entryID]
	return ok
}

func (f entryFilter) empty() bool {
	return !f.all && len(f.domains) == 0 && len(f.entries) == 0
}

// add widens the filter. No domains and no entry IDs means everything.
func (f *entryFilter) add(domains, entryIDs []string) {
	if len(domains) == 0 && len(entryIDs) == 0 {
		f.all = true
		return
	}
	f.domains = addKeys(f.domains, domains)
	f.entries = addKeys(f.entries, entryIDs)
}

// remove narrows the filter. No domains and no entry IDs clears it.
func (f *entryFilter) remove(domains, entryIDs []string) {
	if len(domains) == 0 && len(entryIDs) == 0 {
		*f = entryFilter{}
		return
	}
	for _, d := range domains {
		delete(f.domains, d)
	}
	for _, id := range entryIDs {
		delete(f.entries, id)
	}
}

func addKeys(set map[string]struct{}, keys []string) map[string]struct{} {
	if len(keys) == 0 {
		return set
	}
	if set == nil {
		set = make(map[string]struct{}, len(keys))
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
