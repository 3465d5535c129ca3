package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// fakeFlows answers Start with start and each Configure with the next
// entry of replies.
type fakeFlows struct {
	start    flow.Result
	startErr error
	replies  []flow.Result
	inputs   []map[string]any
	aborted  []string
}

func (f *fakeFlows) Start(context.Context, string) (flow.Result, error) {
	return f.start, f.startErr
}

func (f *fakeFlows) Configure(_ context.Context, _ string, input map[string]any) (flow.Result, error) {
	f.inputs = append(f.inputs, input)
	res := f.replies[0]
	f.replies = f.replies[1:]
	return res, nil
}

func (f *fakeFlows) Abort(id string) error {
	f.aborted = append(f.aborted, id)
	return nil
}

func meterSchema() []flow.Field {
	return []flow.Field{
		{Name: "device_number", Type: flow.FieldString, Required: true},
		{Name: "battery_operated", Type: flow.FieldBool, Required: true, Default: true},
		{Name: "device", Type: flow.FieldSelect, Required: true, Options: []flow.Option{
			{Value: "/dev/ttyUSB0", Label: "/dev/ttyUSB0 - meter"},
			{Value: "Enter Manually", Label: "Enter Manually"},
		}},
	}
}

func formResult(errs map[string]string) flow.Result {
	res := flow.ShowForm("user", meterSchema(), errs)
	res.FlowID = "flow-1"
	return res
}

// started runs Init and applies the first result.
func started(t *testing.T, f *fakeFlows) Model {
	t.Helper()
	m := New(context.Background(), f, "landisgyr_heat_meter", "Landis+Gyr Heat Meter")
	return send(t, m, m.Init()())
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

// ─── Form ──────────────────────────────────────────────────────────

func TestWizard_RendersForm(t *testing.T) {
	m := started(t, &fakeFlows{start: formResult(nil)})

	view := m.View()
	for _, want := range []string{"Set up Landis+Gyr Heat Meter", "Step: user", "Device number *", "[x] battery_operated", "(•) /dev/ttyUSB0 - meter", "( ) Enter Manually"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestWizard_SubmitsEditedValues(t *testing.T) {
	f := &fakeFlows{
		start:   formResult(nil),
		replies: []flow.Result{{Type: flow.ResultCreateEntry, Title: "LUGCUH50", EntryID: "e-1"}},
	}
	m := started(t, f)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("123")})
	m = send(t, m, key(tea.KeyTab))
	m = send(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = send(t, m, key(tea.KeyTab))
	m = send(t, m, key(tea.KeyDown))

	next, cmd := m.Update(key(tea.KeyEnter))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("Enter returned no command")
	}
	if !strings.Contains(m.View(), "Validating...") {
		t.Error("busy state not shown")
	}
	m = send(t, m, cmd())

	if len(f.inputs) != 1 {
		t.Fatalf("Configure called %d times", len(f.inputs))
	}
	got := f.inputs[0]
	if got["device_number"] != "123" || got["battery_operated"] != false || got["device"] != "Enter Manually" {
		t.Errorf("submitted %v", got)
	}
	if !strings.Contains(m.View(), `Created "LUGCUH50" (entry e-1)`) {
		t.Errorf("View() after create = %q", m.View())
	}
}

func TestWizard_EmptyTextLeavesDefault(t *testing.T) {
	f := &fakeFlows{start: formResult(nil), replies: []flow.Result{formResult(nil)}}
	m := started(t, f)

	_, cmd := m.Update(key(tea.KeyEnter))
	cmd()
	if _, ok := f.inputs[0]["device_number"]; ok {
		t.Errorf("empty text field was submitted: %v", f.inputs[0])
	}
}

func TestWizard_ShowsErrorMessages(t *testing.T) {
	f := &fakeFlows{
		start: formResult(nil),
		replies: []flow.Result{formResult(map[string]string{
			flow.ErrorBase:  flow.CodeCannotConnect,
			"device_number": flow.CodeRequired,
		})},
	}
	m := started(t, f)

	_, cmd := m.Update(key(tea.KeyEnter))
	m = send(t, m, cmd())

	view := m.View()
	if !strings.Contains(view, "Failed to connect to the device") {
		t.Errorf("base error not shown:\n%s", view)
	}
	if !strings.Contains(view, "This field is required") {
		t.Errorf("field error not shown:\n%s", view)
	}
}

func TestWizard_FocusWraps(t *testing.T) {
	m := started(t, &fakeFlows{start: formResult(nil)})

	m = send(t, m, key(tea.KeyShiftTab))
	if m.focus != 2 {
		t.Errorf("focus after shift+tab = %d, want 2", m.focus)
	}
	m = send(t, m, key(tea.KeyTab))
	if m.focus != 0 {
		t.Errorf("focus after tab = %d, want 0", m.focus)
	}
}

// ─── Outcomes ──────────────────────────────────────────────────────

func TestWizard_AlreadyConfigured(t *testing.T) {
	f := &fakeFlows{
		start:   formResult(nil),
		replies: []flow.Result{flow.Abort(flow.ReasonAlreadyConfigured)},
	}
	m := started(t, f)

	_, cmd := m.Update(key(tea.KeyEnter))
	m = send(t, m, cmd())

	if !m.done {
		t.Error("flow not done after abort")
	}
	if !strings.Contains(m.View(), "This device is already configured") {
		t.Errorf("View() = %q", m.View())
	}
}

func TestWizard_EscAbortsFlow(t *testing.T) {
	f := &fakeFlows{start: formResult(nil)}
	m := started(t, f)

	next, cmd := m.Update(key(tea.KeyEsc))
	m = next.(Model)
	if cmd == nil || !m.Cancelled() {
		t.Fatal("Esc did not cancel")
	}
	if len(f.aborted) != 1 || f.aborted[0] != "flow-1" {
		t.Errorf("aborted = %v, want [flow-1]", f.aborted)
	}
}

func TestWizard_StartError(t *testing.T) {
	m := started(t, &fakeFlows{startErr: errors.New("unknown domain")})

	if m.Err() == nil || !m.done {
		t.Fatal("start error not recorded")
	}
	if !strings.Contains(m.View(), "Error: unknown domain") {
		t.Errorf("View() = %q", m.View())
	}
}

func TestMessage(t *testing.T) {
	tests := map[string]string{
		flow.CodeCannotConnect:       "Failed to connect to the device",
		flow.ReasonAlreadyConfigured: "This device is already configured",
		"something_else":             "something_else",
	}
	for code, want := range tests {
		if got := Message(code); got != want {
			t.Errorf("Message(%q) = %q, want %q", code, got, want)
		}
	}
}
