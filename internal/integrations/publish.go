package integrations

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/mqtt"
)

// StateUpdate is one report of an entry's state.
type StateUpdate struct {
	Domain  string `json:"domain"`
	EntryID string `json:"entry_id"`
	Title   string `json:"title,omitempty"`

	// State is the last good reading. It is nil when none exists yet.
	State map[string]any `json:"state"`

	// Available is false while updates are failing.
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatePublisher receives state updates.
type StatePublisher interface {
	PublishState(ctx context.Context, u StateUpdate) error
}

// StateRemover is implemented by publishers that keep per-entry state
// which must be cleared when the entry is deleted.
type StateRemover interface {
	RemoveState(ctx context.Context, domain, entryID string) error
}

// PublisherFunc adapts a function to StatePublisher.
type PublisherFunc func(ctx context.Context, u StateUpdate) error

// PublishState calls f.
func (f PublisherFunc) PublishState(ctx context.Context, u StateUpdate) error {
	return f(ctx, u)
}

// Fanout forwards every update to all added publishers.
//
// Thread Safety:
//   - Add may be called while updates are being published.
type Fanout struct {
	mu   sync.RWMutex
	pubs []StatePublisher
}

// NewFanout returns a fanout over pubs. Nil publishers are skipped.
func NewFanout(pubs ...StatePublisher) *Fanout {
	f := &Fanout{}
	for _, p := range pubs {
		f.Add(p)
	}
	return f
}

// Add appends a publisher.
func (f *Fanout) Add(p StatePublisher) {
	if p == nil {
		return
	}
	f.mu.Lock()
	f.pubs = append(f.pubs, p)
	f.mu.Unlock()
}

func (f *Fanout) snapshot() []StatePublisher {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]StatePublisher(nil), f.pubs...)
}

// PublishState sends u to every publisher and joins their errors.
// A failing publisher does not stop the others.
func (f *Fanout) PublishState(ctx context.Context, u StateUpdate) error {
	var errs []error
	for _, p := range f.snapshot() {
		if err := p.PublishState(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveState clears the entry from every publisher that keeps state.
func (f *Fanout) RemoveState(ctx context.Context, domain, entryID string) error {
	var errs []error
	for _, p := range f.snapshot() {
		if r, ok := p.(StateRemover); ok {
			if err := r.RemoveState(ctx, domain, entryID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// MQTTStateClient is the part of *mqtt.Client used for state.
type MQTTStateClient interface {
	PublishState(msg mqtt.StateMessage) error
	ClearState(domain, entryID string) error
}

// MQTTPublisher publishes updates as retained MQTT state and availability.
type MQTTPublisher struct {
	Client MQTTStateClient
}

// PublishState implements StatePublisher.
func (p MQTTPublisher) PublishState(_ context.Context, u StateUpdate) error {
	return p.Client.PublishState(mqtt.StateMessage{
		Domain:    u.Domain,
		EntryID:   u.EntryID,
		Title:     u.Title,
		State:     u.State,
		Available: u.Available,
		UpdatedAt: u.UpdatedAt,
	})
}

// RemoveState implements StateRemover.
func (p MQTTPublisher) RemoveState(_ context.Context, domain, entryID string) error {
	return p.Client.ClearState(domain, entryID)
}

// InfluxStateWriter is the part of *influxdb.Client used for history.
type InfluxStateWriter interface {
	WriteIntegrationState(p influxdb.StatePoint)
}

// InfluxPublisher records updates as InfluxDB points. Updates without
// state are skipped, since there is nothing to graph.
type InfluxPublisher struct {
	Client InfluxStateWriter
}

// PublishState implements StatePublisher.
func (p InfluxPublisher) PublishState(_ context.Context, u StateUpdate) error {
	if u.State == nil {
		return nil
	}
	p.Client.WriteIntegrationState(influxdb.StatePoint{
		Domain:    u.Domain,
		EntryID:   u.EntryID,
		Title:     u.Title,
		State:     u.State,
		Available: u.Available,
		Time:      u.UpdatedAt,
	})
	return nil
}
