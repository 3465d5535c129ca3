package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
)

// DefaultTTL is how long an idle flow is kept before the sweeper drops it.
const DefaultTTL = 30 * time.Minute

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

// EntryStore is the part of the entry repository the manager needs.
type EntryStore interface {
	Create(ctx context.Context, e *entry.Entry) error
	FindByUniqueID(ctx context.Context, domain, uniqueID string) (*entry.Entry, error)
}

// EntrySetup is told about each entry a flow creates.
type EntrySetup interface {
	SetupEntry(ctx context.Context, e *entry.Entry) error
}

// flowState is one in-progress flow. mu serialises its steps.
type flowState struct {
	mu sync.Mutex

	id        string
	domain    string
	stepID    string
	handler   Handler
	last      Result
	createdAt time.Time
	updatedAt time.Time
	done      bool
}

func (f *flowState) info() Info {
	return Info{ID: f.id, Domain: f.domain, StepID: f.stepID, CreatedAt: f.createdAt, UpdatedAt: f.updatedAt}
}

// Manager owns the registered flow handlers and the in-progress flows.
//
// Thread Safety:
//   - All public methods are safe for concurrent use.
//   - Steps of the same flow run one at a time; different flows run in parallel.
type Manager struct {
	store  EntryStore
	setup  EntrySetup
	ttl    time.Duration
	logger Logger
	now    func() time.Time

	mu        sync.Mutex
	factories map[string]Factory
	flows     map[string]*flowState

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  bool
}

// NewManager creates a manager that persists finished flows in store.
// A ttl of zero or less means DefaultTTL.
func NewManager(store EntryStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:     store,
		ttl:       ttl,
		logger:    noopLogger{},
		now:       time.Now,
		factories: make(map[string]Factory),
		flows:     make(map[string]*flowState),
		done:      make(chan struct{}),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetEntrySetup sets the hook run after an entry is stored.
func (m *Manager) SetEntrySetup(s EntrySetup) {
	m.setup = s
}

// Register makes a domain available to Start.
func (m *Manager) Register(domain string, factory Factory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.factories[domain]; exists {
		return fmt.Errorf("%w: %s", ErrDomainRegistered, domain)
	}
	m.factories[domain] = factory
	return nil
}

// Domains returns the registered domains in sorted order.
func (m *Manager) Domains() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	domains := make([]string, 0, len(m.factories))
	for d := range m.factories {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Start creates a flow for domain and runs its first step.
// The returned result carries the flow ID in FlowID.
func (m *Manager) Start(ctx context.Context, domain string) (Result, error) {
	m.mu.Lock()
	factory, ok := m.factories[domain]
	m.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	now := m.now()
	f := &flowState{
		id:        uuid.NewString(),
		domain:    domain,
		stepID:    StepUser,
		handler:   factory(),
		createdAt: now,
		updatedAt: now,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	m.mu.Lock()
	m.flows[f.id] = f
	m.mu.Unlock()

	m.logger.Debug("flow started", "flow_id", f.id, "domain", domain)
	res, err := m.step(ctx, f, nil)
	if err != nil {
		m.finish(f)
	}
	return res, err
}

// Configure submits input to the current step of a flow.
func (m *Manager) Configure(ctx context.Context, flowID string, input map[string]any) (Result, error) {
	f, err := m.lookup(flowID)
	if err != nil {
		return Result{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return Result{}, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}

	if input == nil {
		input = map[string]any{}
	}
	cleaned, errs := Coerce(f.last.Schema, input)
	if errs != nil {
		f.updatedAt = m.now()
		res := ShowForm(f.stepID, WithDefaults(f.last.Schema, input), errs)
		res.FlowID, res.Domain = f.id, f.domain
		return res, nil
	}

	return m.step(ctx, f, cleaned)
}

// Get returns the result last shown by a flow.
func (m *Manager) Get(flowID string) (Result, error) {
	f, err := m.lookup(flowID)
	if err != nil {
		return Result{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return Result{}, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	return f.last, nil
}

// List returns the in-progress flows, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	flows := make([]*flowState, 0, len(m.flows))
	for _, f := range m.flows {
		flows = append(flows, f)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(flows))
	for _, f := range flows {
		f.mu.Lock()
		if !f.done {
			infos = append(infos, f.info())
		}
		f.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

// Abort discards a flow. A step already running finishes, but its result
// is not stored.
func (m *Manager) Abort(flowID string) error {
	m.mu.Lock()
	f, ok := m.flows[flowID]
	delete(m.flows, flowID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	m.logger.Debug("flow aborted", "flow_id", flowID, "domain", f.domain)
	return nil
}

func (m *Manager) lookup(flowID string) (*flowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	return f, nil
}

// step runs the handler and applies its result. f.mu must be held.
func (m *Manager) step(ctx context.Context, f *flowState, input map[string]any) (Result, error) {
	res, err := f.handler.Step(ctx, f.stepID, input)
	if err != nil {
		return Result{}, fmt.Errorf("step %s of %s flow: %w", f.stepID, f.domain, err)
	}
	if !m.active(f) {
		f.done = true
		return Result{}, fmt.Errorf("%w: %s", ErrFlowNotFound, f.id)
	}
	f.updatedAt = m.now()

	switch res.Type {
	case ResultForm:
		if res.StepID == "" {
			return Result{}, fmt.Errorf("%w: form without step id", ErrInvalidResult)
		}
		f.stepID = res.StepID
		res.FlowID, res.Domain = f.id, f.domain
		f.last = res
		return res, nil

	case ResultAbort:
		m.finish(f)
		res.FlowID, res.Domain = f.id, f.domain
		m.logger.Info("flow aborted", "flow_id", f.id, "domain", f.domain, "reason", res.Reason)
		return res, nil

	case ResultCreateEntry:
		return m.createEntry(ctx, f, res)

	default:
		return Result{}, fmt.Errorf("%w: type %q", ErrInvalidResult, res.Type)
	}
}

func (m *Manager) createEntry(ctx context.Context, f *flowState, res Result) (Result, error) {
	aborted := func(reason string) (Result, error) {
		m.finish(f)
		m.logger.Info("flow aborted", "flow_id", f.id, "domain", f.domain, "reason", reason)
		out := Abort(reason)
		out.FlowID, out.Domain = f.id, f.domain
		return out, nil
	}

	if res.UniqueID != "" {
		_, err := m.store.FindByUniqueID(ctx, f.domain, res.UniqueID)
		switch {
		case err == nil:
			return aborted(ReasonAlreadyConfigured)
		case !errors.Is(err, entry.ErrEntryNotFound):
			return Result{}, fmt.Errorf("checking unique id: %w", err)
		}
	}

	e := &entry.Entry{
		Domain:   f.domain,
		Title:    res.Title,
		UniqueID: res.UniqueID,
		Data:     res.Data,
	}
	if err := m.store.Create(ctx, e); err != nil {
		if errors.Is(err, entry.ErrAlreadyConfigured) {
			return aborted(ReasonAlreadyConfigured)
		}
		return Result{}, fmt.Errorf("storing entry: %w", err)
	}
	m.finish(f)
	m.logger.Info("entry created", "flow_id", f.id, "domain", f.domain, "entry_id", e.ID, "title", e.Title)

	if m.setup != nil {
		if err := m.setup.SetupEntry(ctx, e); err != nil {
			m.logger.Error("entry setup failed", "entry_id", e.ID, "domain", e.Domain, "error", err)
		}
	}

	res.FlowID, res.Domain, res.EntryID = f.id, f.domain, e.ID
	return res, nil
}

// active reports whether f is still registered, i.e. not aborted or swept.
func (m *Manager) active(f *flowState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flows[f.id] == f
}

// finish marks f done and forgets it. f.mu must be held.
func (m *Manager) finish(f *flowState) {
	f.done = true
	m.mu.Lock()
	delete(m.flows, f.id)
	m.mu.Unlock()
}

// Sweep drops flows idle for longer than the TTL and returns how many
// were removed. A flow in the middle of a step is skipped.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, f := range m.flows {
		if !f.mu.TryLock() {
			continue
		}
		if f.updatedAt.Before(cutoff) {
			f.done = true
			delete(m.flows, id)
			removed++
		}
		f.mu.Unlock()
	}
	if removed > 0 {
		m.logger.Debug("expired flows removed", "count", removed)
	}
	return removed
}

// StartSweeper runs Sweep every interval until Close is called.
// Calling it more than once has no effect.
func (m *Manager) StartSweeper(interval time.Duration) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	if interval <= 0 {
		interval = m.ttl / 2
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Close stops the sweeper. It is safe to call multiple times.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}
