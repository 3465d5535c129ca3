package integrations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EntryRepository is the part of the entry store the manager needs.
type EntryRepository interface {
	List(ctx context.Context) ([]entry.Entry, error)
	Get(ctx context.Context, id string) (*entry.Entry, error)
	Delete(ctx context.Context, id string) error
}

// Info describes a registered integration.
type Info struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// EntryState is the current state of one stored entry.
type EntryState struct {
	EntryID   string         `json:"entry_id"`
	Domain    string         `json:"domain"`
	Loaded    bool           `json:"loaded"`
	Available bool           `json:"available"`
	State     map[string]any `json:"state"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
	Error     string         `json:"error,omitempty"`
}

type loaded struct {
	entry   *entry.Entry
	runtime Runtime
}

// Manager owns the registered integrations and the runtimes of their
// entries.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Setup of an entry runs without the manager lock held.
type Manager struct {
	repo   EntryRepository
	flows  *flow.Manager
	pub    StatePublisher
	logger Logger

	mu           sync.RWMutex
	integrations map[string]Integration
	runtimes     map[string]loaded
	pending      map[string]bool
}

// NewManager creates a manager and makes it the flow manager's entry
// setup hook, so entries created by a flow start running immediately.
func NewManager(repo EntryRepository, flows *flow.Manager, pub StatePublisher) *Manager {
	if pub == nil {
		pub = NewFanout()
	}
	m := &Manager{
		repo:         repo,
		flows:        flows,
		pub:          pub,
		logger:       noopLogger{},
		integrations: make(map[string]Integration),
		runtimes:     make(map[string]loaded),
		pending:      make(map[string]bool),
	}
	if flows != nil {
		flows.SetEntrySetup(m)
	}
	return m
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Register adds an integration and its setup flow.
func (m *Manager) Register(in Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.integrations[in.Domain()]; exists {
		return fmt.Errorf("%w: %s", flow.ErrDomainRegistered, in.Domain())
	}
	if m.flows != nil {
		if err := m.flows.Register(in.Domain(), in.NewFlow); err != nil {
			return err
		}
	}
	m.integrations[in.Domain()] = in
	return nil
}

// Integrations lists the registered integrations sorted by domain.
func (m *Manager) Integrations() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.integrations))
	for _, in := range m.integrations {
		infos = append(infos, Info{Domain: in.Domain(), Name: in.Name()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Domain < infos[j].Domain })
	return infos
}

// SetupAll starts every stored entry. Entries that fail to set up are
// logged and skipped. It returns how many entries are running.
func (m *Manager) SetupAll(ctx context.Context) (int, error) {
	entries, err := m.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing entries: %w", err)
	}

	started := 0
	for i := range entries {
		e := &entries[i]
		if err := m.SetupEntry(ctx, e); err != nil {
			m.logger.Error("entry setup failed", "entry_id", e.ID, "domain", e.Domain, "error", err)
			continue
		}
		started++
	}
	m.logger.Info("entries set up", "started", started, "total", len(entries))
	return started, nil
}

// SetupEntry starts the runtime for e.
func (m *Manager) SetupEntry(ctx context.Context, e *entry.Entry) error {
	m.mu.Lock()
	in, ok := m.integrations[e.Domain]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDomain, e.Domain)
	}
	if _, running := m.runtimes[e.ID]; running || m.pending[e.ID] {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, e.ID)
	}
	m.pending[e.ID] = true
	m.mu.Unlock()

	rt, err := in.Setup(ctx, e, m.pub)

	m.mu.Lock()
	delete(m.pending, e.ID)
	if err == nil {
		m.runtimes[e.ID] = loaded{entry: e, runtime: rt}
	}
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("setting up %s entry %s: %w", e.Domain, e.ID, err)
	}
	m.logger.Info("entry loaded", "entry_id", e.ID, "domain", e.Domain, "title", e.Title)
	return nil
}

// UnloadEntry stops the runtime of an entry and publishes it as
// unavailable. The stored entry is kept.
func (m *Manager) UnloadEntry(ctx context.Context, entryID string) error {
	m.mu.Lock()
	l, ok := m.runtimes[entryID]
	delete(m.runtimes, entryID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, entryID)
	}

	l.runtime.Stop()
	state, _, _ := l.runtime.State() //nolint:errcheck // Only the last data is republished
	if err := m.pub.PublishState(ctx, StateUpdate{
		Domain:    l.entry.Domain,
		EntryID:   l.entry.ID,
		Title:     l.entry.Title,
		State:     state,
		Available: false,
		UpdatedAt: time.Now(),
	}); err != nil {
		m.logger.Warn("publishing unavailable state failed", "entry_id", entryID, "error", err)
	}
	m.logger.Info("entry unloaded", "entry_id", entryID, "domain", l.entry.Domain)
	return nil
}

// RemoveEntry unloads an entry, deletes it from the store and clears
// its published state.
func (m *Manager) RemoveEntry(ctx context.Context, entryID string) error {
	e, err := m.repo.Get(ctx, entryID)
	if err != nil {
		return err
	}
	if err := m.UnloadEntry(ctx, entryID); err != nil && !errors.Is(err, ErrNotLoaded) {
		return err
	}
	if err := m.repo.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if r, ok := m.pub.(StateRemover); ok {
		if err := r.RemoveState(ctx, e.Domain, e.ID); err != nil {
			m.logger.Warn("clearing published state failed", "entry_id", entryID, "error", err)
		}
	}
	m.logger.Info("entry removed", "entry_id", entryID, "domain", e.Domain)
	return nil
}

// State returns the current state of a stored entry. Entries that are
// stored but not running are reported with Loaded false.
func (m *Manager) State(ctx context.Context, entryID string) (EntryState, error) {
	m.mu.RLock()
	l, ok := m.runtimes[entryID]
	m.mu.RUnlock()

	if !ok {
		e, err := m.repo.Get(ctx, entryID)
		if err != nil {
			return EntryState{}, err
		}
		return EntryState{EntryID: e.ID, Domain: e.Domain}, nil
	}

	state, at, err := l.runtime.State()
	es := EntryState{
		EntryID:   l.entry.ID,
		Domain:    l.entry.Domain,
		Loaded:    true,
		Available: err == nil && !at.IsZero(),
		State:     state,
		UpdatedAt: at,
	}
	if err != nil {
		es.Error = err.Error()
	}
	return es, nil
}

// Loaded reports whether an entry has a running runtime.
func (m *Manager) Loaded(entryID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.runtimes[entryID]
	return ok
}

// LoadedCount returns the number of running entries.
func (m *Manager) LoadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runtimes)
}

// Refresh asks a running entry to update now.
func (m *Manager) Refresh(ctx context.Context, entryID string) error {
	m.mu.RLock()
	l, ok := m.runtimes[entryID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, entryID)
	}
	r, ok := l.runtime.(Refresher)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRefreshUnsupported, l.entry.Domain)
	}
	return r.Refresh(ctx)
}

// StopAll stops every running entry. Published availability is left to
// the MQTT last will and the offline status sent on close.
func (m *Manager) StopAll() {
	m.mu.Lock()
	runtimes := m.runtimes
	m.runtimes = make(map[string]loaded)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, l := range runtimes {
		wg.Add(1)
		go func(rt Runtime) {
			defer wg.Done()
			rt.Stop()
		}(l.runtime)
	}
	wg.Wait()
	m.logger.Info("all entries stopped", "count", len(runtimes))
}
