package integrations

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// Integration is one kind of device or service that can be set up.
type Integration interface {
	// Domain is the stable identifier stored with each entry.
	Domain() string

	// Name is shown to users choosing what to set up.
	Name() string

	// NewFlow returns a fresh handler for one setup flow.
	NewFlow() flow.Handler

	// Setup starts a runtime for a stored entry. ctx bounds the setup
	// itself, not the runtime's lifetime.
	Setup(ctx context.Context, e *entry.Entry, pub StatePublisher) (Runtime, error)
}

// Runtime is a running entry.
type Runtime interface {
	// Stop ends all background work. It is safe to call more than once.
	Stop()

	// State returns the last good state, the time of the last update and
	// the error of the last update.
	State() (map[string]any, time.Time, error)
}

// Refresher is implemented by runtimes that can update on demand.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// PolledConfig describes a runtime that polls through a coordinator.
type PolledConfig[T any] struct {
	Entry     *entry.Entry
	Publisher StatePublisher
	Logger    Logger

	// Coordinator configures the polling loop. Its Logger defaults to
	// the Logger above.
	Coordinator coordinator.Config[T]

	// ToState turns fetched data into the published state.
	ToState func(T) map[string]any
}

// Polled is a Runtime backed by a coordinator. Each update is published
// with Available set to whether it succeeded.
type Polled[T any] struct {
	entry   *entry.Entry
	coord   *coordinator.Coordinator[T]
	toState func(T) map[string]any
	pub     StatePublisher
	logger  Logger
	ctx     context.Context
}

// StartPolled creates the coordinator, runs the first update under ctx and
// starts the polling loop. A failed first update is published as
// unavailable and polling continues.
func StartPolled[T any](ctx context.Context, cfg PolledConfig[T]) (*Polled[T], error) {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	ccfg := cfg.Coordinator
	if ccfg.Logger == nil {
		ccfg.Logger = logger
	}
	coord, err := coordinator.New(ccfg)
	if err != nil {
		return nil, err
	}

	p := &Polled[T]{
		entry:   cfg.Entry,
		coord:   coord,
		toState: cfg.ToState,
		pub:     cfg.Publisher,
		logger:  logger,
		ctx:     context.WithoutCancel(ctx),
	}
	coord.AddListener(p.publish)

	_ = coord.Refresh(ctx) //nolint:errcheck // Recorded in the snapshot and published
	coord.Start(p.ctx)
	return p, nil
}

func (p *Polled[T]) publish(snap coordinator.Snapshot[T]) {
	if p.pub == nil {
		return
	}
	u := StateUpdate{
		Domain:    p.entry.Domain,
		EntryID:   p.entry.ID,
		Title:     p.entry.Title,
		Available: snap.Err == nil,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.HasData {
		u.State = p.toState(snap.Data)
	}
	if err := p.pub.PublishState(p.ctx, u); err != nil {
		p.logger.Warn("publishing state failed", "entry_id", p.entry.ID, "domain", p.entry.Domain, "error", err)
	}
}

// Stop implements Runtime.
func (p *Polled[T]) Stop() {
	p.coord.Stop()
}

// State implements Runtime.
func (p *Polled[T]) State() (map[string]any, time.Time, error) {
	snap := p.coord.Snapshot()
	var state map[string]any
	if snap.HasData {
		state = p.toState(snap.Data)
	}
	return state, snap.UpdatedAt, snap.Err
}

// Refresh implements Refresher.
func (p *Polled[T]) Refresh(ctx context.Context) error {
	return p.coord.Refresh(ctx)
}

// Interval returns the polling interval.
func (p *Polled[T]) Interval() time.Duration {
	return p.coord.Interval()
}
