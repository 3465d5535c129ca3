package integrations

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

func newTestManager(t *testing.T) (*Manager, *entry.SQLiteRepository, *fakeIntegration, *recordingPublisher) {
	t.Helper()
	repo := setupRepo(t)
	flows := flow.NewManager(repo, 0)
	pub := &recordingPublisher{}
	m := NewManager(repo, flows, pub)
	in := newFakeIntegration()
	if err := m.Register(in); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	t.Cleanup(m.StopAll)
	return m, repo, in, pub
}

func TestRegister(t *testing.T) {
	m, _, in, _ := newTestManager(t)

	if err := m.Register(in); !errors.Is(err, flow.ErrDomainRegistered) {
		t.Errorf("second Register() error = %v", err)
	}
	infos := m.Integrations()
	if len(infos) != 1 || infos[0] != (Info{Domain: testDomain, Name: "Test Device"}) {
		t.Errorf("Integrations() = %+v", infos)
	}
	if got := m.flows.Domains(); len(got) != 1 || got[0] != testDomain {
		t.Errorf("flow domains = %v", got)
	}
}

func TestFlowCreatesAndLoadsEntry(t *testing.T) {
	m, _, in, _ := newTestManager(t)
	ctx := context.Background()

	res, err := m.flows.Start(ctx, testDomain)
	if err != nil {
		t.Fatal(err)
	}
	res, err = m.flows.Configure(ctx, res.FlowID, map[string]any{"name": "boiler"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != flow.ResultCreateEntry || res.EntryID == "" {
		t.Fatalf("result = %+v", res)
	}
	if !m.Loaded(res.EntryID) || in.runtime(res.EntryID) == nil {
		t.Error("created entry was not set up")
	}
}

func TestSetupAll_SkipsFailures(t *testing.T) {
	m, repo, _, _ := newTestManager(t)
	ctx := context.Background()

	entries := []*entry.Entry{
		{Domain: testDomain, Title: "ok", UniqueID: "ok"},
		{Domain: testDomain, Title: "broken", UniqueID: "broken", Data: map[string]any{"fail": true}},
		{Domain: "removed_integration", Title: "orphan"},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	started, err := m.SetupAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if started != 1 {
		t.Errorf("SetupAll() started %d, want 1", started)
	}
	if !m.Loaded(entries[0].ID) || m.Loaded(entries[1].ID) || m.Loaded(entries[2].ID) {
		t.Error("wrong entries loaded")
	}
}

func TestSetupEntry_Errors(t *testing.T) {
	m, repo, _, _ := newTestManager(t)
	ctx := context.Background()

	e := &entry.Entry{Domain: testDomain, Title: "ok"}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := m.SetupEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := m.SetupEntry(ctx, e); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second SetupEntry() error = %v", err)
	}
	if err := m.SetupEntry(ctx, &entry.Entry{ID: "x", Domain: "nope"}); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("unknown domain error = %v", err)
	}
}

func TestUnloadEntry(t *testing.T) {
	m, repo, in, pub := newTestManager(t)
	ctx := context.Background()

	e := &entry.Entry{Domain: testDomain, Title: "ok"}
	_ = repo.Create(ctx, e)
	_ = m.SetupEntry(ctx, e)

	if err := m.UnloadEntry(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if in.runtime(e.ID).stops() != 1 {
		t.Error("runtime not stopped")
	}
	updates := pub.all()
	if len(updates) != 1 || updates[0].Available || updates[0].EntryID != e.ID {
		t.Errorf("published %+v, want one unavailable update", updates)
	}
	if err := m.UnloadEntry(ctx, e.ID); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("second UnloadEntry() error = %v", err)
	}

	// The stored entry is kept and can be loaded again.
	if err := m.SetupEntry(ctx, e); err != nil {
		t.Errorf("reload error = %v", err)
	}
}

func TestRemoveEntry(t *testing.T) {
	m, repo, _, pub := newTestManager(t)
	ctx := context.Background()

	e := &entry.Entry{Domain: testDomain, Title: "ok"}
	_ = repo.Create(ctx, e)
	_ = m.SetupEntry(ctx, e)

	if err := m.RemoveEntry(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if m.Loaded(e.ID) {
		t.Error("entry still loaded")
	}
	if _, err := repo.Get(ctx, e.ID); !errors.Is(err, entry.ErrEntryNotFound) {
		t.Errorf("Get() after remove error = %v", err)
	}
	if len(pub.removed) != 1 || pub.removed[0] != e.ID {
		t.Errorf("removed = %v", pub.removed)
	}
	if err := m.RemoveEntry(ctx, e.ID); !errors.Is(err, entry.ErrEntryNotFound) {
		t.Errorf("second RemoveEntry() error = %v", err)
	}
}

func TestState(t *testing.T) {
	m, repo, in, _ := newTestManager(t)
	ctx := context.Background()

	e := &entry.Entry{Domain: testDomain, Title: "ok"}
	_ = repo.Create(ctx, e)

	st, err := m.State(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Loaded {
		t.Error("unloaded entry reported as loaded")
	}

	_ = m.SetupEntry(ctx, e)
	st, _ = m.State(ctx, e.ID)
	if !st.Loaded || !st.Available || st.State["value"] != 1 {
		t.Errorf("State() = %+v", st)
	}

	in.runtime(e.ID).err = errors.New("timeout")
	st, _ = m.State(ctx, e.ID)
	if st.Available || st.Error != "timeout" {
		t.Errorf("failing State() = %+v", st)
	}

	if _, err := m.State(ctx, "missing"); !errors.Is(err, entry.ErrEntryNotFound) {
		t.Errorf("State(missing) error = %v", err)
	}
}

func TestRefresh_Unsupported(t *testing.T) {
	m, repo, _, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.Refresh(ctx, "missing"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Refresh(missing) error = %v", err)
	}
	e := &entry.Entry{Domain: testDomain, Title: "ok"}
	_ = repo.Create(ctx, e)
	_ = m.SetupEntry(ctx, e)
	if err := m.Refresh(ctx, e.ID); !errors.Is(err, ErrRefreshUnsupported) {
		t.Errorf("Refresh() error = %v", err)
	}
}

func TestStopAll(t *testing.T) {
	m, repo, in, _ := newTestManager(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		e := &entry.Entry{Domain: testDomain, Title: title}
		_ = repo.Create(ctx, e)
		_ = m.SetupEntry(ctx, e)
		ids = append(ids, e.ID)
	}
	m.StopAll()
	for _, id := range ids {
		if in.runtime(id).stops() != 1 || m.Loaded(id) {
			t.Errorf("entry %s not stopped", id)
		}
	}
}
