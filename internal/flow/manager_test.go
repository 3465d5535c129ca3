package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
)

// memStore is an in-memory EntryStore.
type memStore struct {
	mu      sync.Mutex
	entries []*entry.Entry
	err     error
}

func (s *memStore) Create(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, x := range s.entries {
		if e.UniqueID != "" && x.Domain == e.Domain && x.UniqueID == e.UniqueID {
			return entry.ErrAlreadyConfigured
		}
	}
	e.ID = "entry-" + e.Title
	s.entries = append(s.entries, e)
	return nil
}

func (s *memStore) FindByUniqueID(_ context.Context, domain, uniqueID string) (*entry.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.entries {
		if x.Domain == domain && x.UniqueID == uniqueID {
			return x, nil
		}
	}
	return nil, entry.ErrEntryNotFound
}

type recordingSetup struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingSetup) SetupEntry(_ context.Context, e *entry.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, e.ID)
	return r.err
}

// echoHandler shows one form with a name field and creates an entry keyed on
// it. Submitting name "offline" re-shows the form with cannot_connect.
type echoHandler struct {
	steps atomic.Int32
}

var echoSchema = []Field{
	{Name: "name", Type: FieldString, Required: true},
	{Name: "enabled", Type: FieldBool, Default: true},
}

func (h *echoHandler) Step(_ context.Context, stepID string, input map[string]any) (Result, error) {
	h.steps.Add(1)
	if stepID != StepUser {
		return Result{}, errors.New("unexpected step")
	}
	if input == nil {
		return ShowForm(StepUser, echoSchema, nil), nil
	}
	name := input["name"].(string)
	switch name {
	case "offline":
		return ShowForm(StepUser, WithDefaults(echoSchema, input), map[string]string{ErrorBase: CodeCannotConnect}), nil
	case "quit":
		return Abort("user_quit"), nil
	}
	return CreateEntry(name, name, map[string]any{"name": name, "enabled": input["enabled"]}), nil
}

func newTestManager(t *testing.T) (*Manager, *memStore, *recordingSetup) {
	t.Helper()
	store := &memStore{}
	setup := &recordingSetup{}
	m := NewManager(store, time.Minute)
	m.SetEntrySetup(setup)
	if err := m.Register("echo", func() Handler { return &echoHandler{} }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m, store, setup
}

func TestManager_StartShowsForm(t *testing.T) {
	m, _, _ := newTestManager(t)

	res, err := m.Start(context.Background(), "echo")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != ResultForm || res.StepID != StepUser {
		t.Fatalf("Start() = %+v, want user form", res)
	}
	if res.FlowID == "" || res.Domain != "echo" {
		t.Errorf("FlowID=%q Domain=%q", res.FlowID, res.Domain)
	}

	got, err := m.Get(res.FlowID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StepID != StepUser || len(got.Schema) != 2 {
		t.Errorf("Get() = %+v", got)
	}
	if infos := m.List(); len(infos) != 1 || infos[0].ID != res.FlowID {
		t.Errorf("List() = %+v", infos)
	}
}

func TestManager_UnknownDomain(t *testing.T) {
	m, _, _ := newTestManager(t)

	if _, err := m.Start(context.Background(), "nope"); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Start() error = %v, want ErrUnknownDomain", err)
	}
}

func TestManager_RegisterTwice(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.Register("echo", func() Handler { return &echoHandler{} })
	if !errors.Is(err, ErrDomainRegistered) {
		t.Errorf("Register() error = %v, want ErrDomainRegistered", err)
	}
	if d := m.Domains(); len(d) != 1 || d[0] != "echo" {
		t.Errorf("Domains() = %v", d)
	}
}

func TestManager_CreateEntry(t *testing.T) {
	m, store, setup := newTestManager(t)
	ctx := context.Background()

	start, _ := m.Start(ctx, "echo")
	res, err := m.Configure(ctx, start.FlowID, map[string]any{"name": "lounge"})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != ResultCreateEntry {
		t.Fatalf("Configure() = %+v, want create_entry", res)
	}
	if res.EntryID != "entry-lounge" {
		t.Errorf("EntryID = %q", res.EntryID)
	}

	if len(store.entries) != 1 {
		t.Fatalf("stored %d entries, want 1", len(store.entries))
	}
	e := store.entries[0]
	if e.Domain != "echo" || e.UniqueID != "lounge" || e.Data["enabled"] != true {
		t.Errorf("stored entry = %+v", e)
	}
	if len(setup.ids) != 1 || setup.ids[0] != "entry-lounge" {
		t.Errorf("setup called with %v", setup.ids)
	}

	// The flow is gone once finished.
	if _, err := m.Get(start.FlowID); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Get() after finish error = %v, want ErrFlowNotFound", err)
	}
	if _, err := m.Configure(ctx, start.FlowID, map[string]any{"name": "x"}); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Configure() after finish error = %v, want ErrFlowNotFound", err)
	}
}

func TestManager_DuplicateUniqueIDAborts(t *testing.T) {
	m, store, setup := newTestManager(t)
	ctx := context.Background()

	first, _ := m.Start(ctx, "echo")
	if _, err := m.Configure(ctx, first.FlowID, map[string]any{"name": "lounge"}); err != nil {
		t.Fatal(err)
	}

	second, _ := m.Start(ctx, "echo")
	res, err := m.Configure(ctx, second.FlowID, map[string]any{"name": "lounge"})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != ResultAbort || res.Reason != ReasonAlreadyConfigured {
		t.Errorf("Configure() = %+v, want abort(already_configured)", res)
	}
	if len(store.entries) != 1 {
		t.Errorf("stored %d entries, want 1", len(store.entries))
	}
	if len(setup.ids) != 1 {
		t.Errorf("setup called %d times, want 1", len(setup.ids))
	}
}

func TestManager_FormErrorKeepsFlow(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	start, _ := m.Start(ctx, "echo")
	res, err := m.Configure(ctx, start.FlowID, map[string]any{"name": "offline", "enabled": false})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != ResultForm || res.Errors[ErrorBase] != CodeCannotConnect {
		t.Fatalf("Configure() = %+v, want form with cannot_connect", res)
	}
	if res.Schema[0].Default != "offline" || res.Schema[1].Default != false {
		t.Errorf("form not pre-filled with input: %+v", res.Schema)
	}
	if len(store.entries) != 0 {
		t.Error("no entry should be stored")
	}

	// Re-submitting succeeds.
	res, err = m.Configure(ctx, start.FlowID, map[string]any{"name": "online"})
	if err != nil || res.Type != ResultCreateEntry {
		t.Errorf("resubmit = %+v, %v", res, err)
	}
}

func TestManager_ValidationErrorSkipsHandler(t *testing.T) {
	store := &memStore{}
	h := &echoHandler{}
	m := NewManager(store, time.Minute)
	t.Cleanup(m.Close)
	if err := m.Register("echo", func() Handler { return h }); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	start, _ := m.Start(ctx, "echo")
	res, err := m.Configure(ctx, start.FlowID, map[string]any{"enabled": "maybe"})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Errors["name"] != CodeRequired || res.Errors["enabled"] != CodeInvalidType {
		t.Errorf("Errors = %v", res.Errors)
	}
	if n := h.steps.Load(); n != 1 {
		t.Errorf("handler ran %d steps, want 1 (only the initial form)", n)
	}
}

func TestManager_HandlerAbort(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	start, _ := m.Start(ctx, "echo")
	res, err := m.Configure(ctx, start.FlowID, map[string]any{"name": "quit"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != ResultAbort || res.Reason != "user_quit" {
		t.Errorf("Configure() = %+v", res)
	}
	if len(store.entries) != 0 {
		t.Error("abort must not store an entry")
	}
	if _, err := m.Get(start.FlowID); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Get() error = %v", err)
	}
}

func TestManager_Abort(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	start, _ := m.Start(ctx, "echo")
	if err := m.Abort(start.FlowID); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if err := m.Abort(start.FlowID); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("second Abort() error = %v", err)
	}
	if _, err := m.Configure(ctx, start.FlowID, map[string]any{"name": "x"}); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("Configure() after abort error = %v", err)
	}
}

func TestManager_StoreErrorKeepsFlow(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	store.err = errors.New("disk full")

	start, _ := m.Start(ctx, "echo")
	if _, err := m.Configure(ctx, start.FlowID, map[string]any{"name": "x"}); err == nil {
		t.Fatal("Configure() expected error")
	}
	if _, err := m.Get(start.FlowID); err != nil {
		t.Errorf("flow should survive a store error, Get() = %v", err)
	}
}

func TestManager_SetupFailureStillCreates(t *testing.T) {
	m, store, setup := newTestManager(t)
	setup.err = errors.New("device busy")
	ctx := context.Background()

	start, _ := m.Start(ctx, "echo")
	res, err := m.Configure(ctx, start.FlowID, map[string]any{"name": "x"})
	if err != nil || res.Type != ResultCreateEntry {
		t.Errorf("Configure() = %+v, %v", res, err)
	}
	if len(store.entries) != 1 {
		t.Error("entry should be stored even when setup fails")
	}
}

func TestManager_Sweep(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale, _ := m.Start(ctx, "echo")
	now = now.Add(50 * time.Second)
	fresh, _ := m.Start(ctx, "echo")
	now = now.Add(20 * time.Second)

	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep() removed %d, want 1", n)
	}
	if _, err := m.Get(stale.FlowID); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("stale flow still present: %v", err)
	}
	if _, err := m.Get(fresh.FlowID); err != nil {
		t.Errorf("fresh flow removed: %v", err)
	}
}

// slowHandler blocks in its submit step until released, counting how many
// steps run at once.
type slowHandler struct {
	release chan struct{}
	running atomic.Int32
	maxSeen atomic.Int32
}

func (h *slowHandler) Step(_ context.Context, _ string, input map[string]any) (Result, error) {
	n := h.running.Add(1)
	defer h.running.Add(-1)
	for {
		m := h.maxSeen.Load()
		if n <= m || h.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if input == nil {
		return ShowForm(StepUser, nil, nil), nil
	}
	<-h.release
	return ShowForm(StepUser, nil, map[string]string{ErrorBase: CodeCannotConnect}), nil
}

func TestManager_StepsOfOneFlowAreSerialised(t *testing.T) {
	h := &slowHandler{release: make(chan struct{})}
	m := NewManager(&memStore{}, time.Minute)
	t.Cleanup(m.Close)
	if err := m.Register("slow", func() Handler { return h }); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	start, _ := m.Start(ctx, "slow")

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Configure(ctx, start.FlowID, map[string]any{})
		}()
	}

	// Let all three queue up, then release them one by one.
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 3; i++ {
		h.release <- struct{}{}
	}
	wg.Wait()

	if got := h.maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent steps = %d, want 1", got)
	}
}

func TestManager_StartSweeperAndClose(t *testing.T) {
	m := NewManager(&memStore{}, time.Minute)
	m.StartSweeper(10 * time.Millisecond)
	m.StartSweeper(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Close()
		m.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}
}
