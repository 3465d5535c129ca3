package integrations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-integrations/migrations"
)

const testDomain = "test_domain"

func setupRepo(t *testing.T) *entry.SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return entry.NewSQLiteRepository(db.DB)
}

// recordingPublisher keeps every update it receives.
type recordingPublisher struct {
	mu      sync.Mutex
	updates []StateUpdate
	removed []string
	err     error
}

func (p *recordingPublisher) PublishState(_ context.Context, u StateUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
	return p.err
}

func (p *recordingPublisher) RemoveState(_ context.Context, _, entryID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, entryID)
	return nil
}

func (p *recordingPublisher) all() []StateUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StateUpdate(nil), p.updates...)
}

// nameFlow asks for a name and creates an entry keyed by it.
type nameFlow struct{}

func (nameFlow) Step(_ context.Context, _ string, input map[string]any) (flow.Result, error) {
	schema := []flow.Field{{Name: "name", Type: flow.FieldString, Required: true}}
	if input == nil {
		return flow.ShowForm(flow.StepUser, schema, nil), nil
	}
	name, _ := input["name"].(string) //nolint:errcheck // Coerced by the manager
	return flow.CreateEntry(name, name, map[string]any{"name": name}), nil
}

type fakeRuntime struct {
	mu      sync.Mutex
	stopped int
	state   map[string]any
	at      time.Time
	err     error
}

func (r *fakeRuntime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
}

func (r *fakeRuntime) State() (map[string]any, time.Time, error) {
	return r.state, r.at, r.err
}

func (r *fakeRuntime) stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// fakeIntegration fails setup for entries whose data has "fail": true.
type fakeIntegration struct {
	mu       sync.Mutex
	runtimes map[string]*fakeRuntime
}

func newFakeIntegration() *fakeIntegration {
	return &fakeIntegration{runtimes: make(map[string]*fakeRuntime)}
}

func (f *fakeIntegration) Domain() string        { return testDomain }
func (f *fakeIntegration) Name() string          { return "Test Device" }
func (f *fakeIntegration) NewFlow() flow.Handler { return nameFlow{} }

func (f *fakeIntegration) Setup(_ context.Context, e *entry.Entry, _ StatePublisher) (Runtime, error) {
	if e.Bool("fail", false) {
		return nil, errors.New("device unreachable")
	}
	rt := &fakeRuntime{
		state: map[string]any{"value": 1},
		at:    time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}
	f.mu.Lock()
	f.runtimes[e.ID] = rt
	f.mu.Unlock()
	return rt, nil
}

func (f *fakeIntegration) runtime(id string) *fakeRuntime {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runtimes[id]
}
