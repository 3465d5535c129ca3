// Package tui runs integration setup flows in the terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// Flows is the part of *flow.Manager the wizard drives.
type Flows interface {
	Start(ctx context.Context, domain string) (flow.Result, error)
	Configure(ctx context.Context, flowID string, input map[string]any) (flow.Result, error)
	Abort(flowID string) error
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	stepStyle  = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var messages = map[string]string{
	flow.CodeCannotConnect:       "Failed to connect to the device",
	flow.ReasonAlreadyConfigured: "This device is already configured",
	flow.CodeRequired:            "This field is required",
	flow.CodeInvalidType:         "Invalid value",
	flow.CodeInvalidOption:       "Pick one of the listed options",
}

// Message returns the text shown for a form error code or abort reason.
// Unknown codes are shown as they are.
func Message(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return code
}

// input is the widget state of one form field.
type input struct {
	field  flow.Field
	text   textinput.Model
	on     bool
	choice int
}

func newInput(f flow.Field) input {
	in := input{field: f}
	switch f.Type {
	case flow.FieldBool:
		in.on, _ = f.Default.(bool) //nolint:errcheck // Zero value when unset
	case flow.FieldSelect:
		def, _ := f.Default.(string) //nolint:errcheck // Empty when unset
		for i, o := range f.Options {
			if o.Value == def {
				in.choice = i
			}
		}
	default:
		ti := textinput.New()
		ti.CharLimit = 256
		ti.Width = 40
		if s, ok := f.Default.(string); ok {
			ti.SetValue(s)
		}
		in.text = ti
	}
	return in
}

// value returns the submitted value, or nil to let the default apply.
func (in input) value() any {
	switch in.field.Type {
	case flow.FieldBool:
		return in.on
	case flow.FieldSelect:
		if len(in.field.Options) == 0 {
			return nil
		}
		return in.field.Options[in.choice].Value
	default:
		if s := strings.TrimSpace(in.text.Value()); s != "" {
			return s
		}
		return nil
	}
}

// stepMsg carries the outcome of a Start or Configure call.
type stepMsg struct {
	res flow.Result
	err error
}

// Model is the bubbletea model of one setup flow.
type Model struct {
	ctx    context.Context
	flows  Flows
	domain string
	name   string

	res    flow.Result
	inputs []input
	focus  int
	busy   bool

	done      bool
	cancelled bool
	err       error
}

// New returns a model that starts a flow for domain when run. name is the
// integration's display name.
func New(ctx context.Context, flows Flows, domain, name string) Model {
	return Model{ctx: ctx, flows: flows, domain: domain, name: name, busy: true}
}

// Result returns the last result of the flow.
func (m Model) Result() flow.Result { return m.res }

// Err returns the error that ended the flow, if any.
func (m Model) Err() error { return m.err }

// Cancelled reports whether the user left the flow.
func (m Model) Cancelled() bool { return m.cancelled }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	flows, ctx, domain := m.flows, m.ctx, m.domain
	return func() tea.Msg {
		res, err := flows.Start(ctx, domain)
		return stepMsg{res: res, err: err}
	}
}

func (m Model) submit() tea.Cmd {
	values := make(map[string]any, len(m.inputs))
	for _, in := range m.inputs {
		if v := in.value(); v != nil {
			values[in.field.Name] = v
		}
	}
	flows, ctx, id := m.flows, m.ctx, m.res.FlowID
	return func() tea.Msg {
		res, err := flows.Configure(ctx, id, values)
		return stepMsg{res: res, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepMsg:
		m.busy = false
		return m.apply(msg)
	case tea.KeyMsg:
		if m.done {
			return m, tea.Quit
		}
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.res.FlowID != "" {
				_ = m.flows.Abort(m.res.FlowID) //nolint:errcheck // Flow may already be gone
			}
			m.done, m.cancelled = true, true
			return m, tea.Quit
		}
		if m.busy || len(m.inputs) == 0 {
			return m, nil
		}
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) apply(msg stepMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err, m.done = msg.err, true
		return m, tea.Quit
	}
	m.res = msg.res
	switch msg.res.Type {
	case flow.ResultForm:
		m.inputs = make([]input, len(msg.res.Schema))
		for i, f := range msg.res.Schema {
			m.inputs[i] = newInput(f)
		}
		m.focus = 0
		return m, m.focusCmd()
	default:
		m.inputs = nil
		m.done = true
		return m, tea.Quit
	}
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur := &m.inputs[m.focus]
	switch msg.String() {
	case "enter":
		m.busy = true
		return m, m.submit()
	case "tab":
		m.move(1)
		return m, m.focusCmd()
	case "shift+tab":
		m.move(-1)
		return m, m.focusCmd()
	}

	switch cur.field.Type {
	case flow.FieldBool:
		switch msg.String() {
		case " ", "left", "right":
			cur.on = !cur.on
		case "y":
			cur.on = true
		case "n":
			cur.on = false
		}
	case flow.FieldSelect:
		switch msg.String() {
		case "up", "k":
			if cur.choice > 0 {
				cur.choice--
			}
		case "down", "j":
			if cur.choice < len(cur.field.Options)-1 {
				cur.choice++
			}
		}
	default:
		var cmd tea.Cmd
		cur.text, cmd = cur.text.Update(msg)
		return m, cmd
	}
	return m, nil
}

// move shifts focus by delta, wrapping at both ends.
func (m *Model) move(delta int) {
	n := len(m.inputs)
	m.focus = ((m.focus+delta)%n + n) % n
}

// focusCmd focuses the current text field and blurs the others.
func (m Model) focusCmd() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.inputs {
		if m.inputs[i].field.Type != flow.FieldString && m.inputs[i].field.Type != "" {
			continue
		}
		if i == m.focus {
			cmd = m.inputs[i].text.Focus()
		} else {
			m.inputs[i].text.Blur()
		}
	}
	return cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Set up "+m.name) + "\n")

	switch {
	case m.err != nil:
		b.WriteString("\n" + errStyle.Render("Error: "+m.err.Error()) + "\n")
		return b.String()
	case m.cancelled:
		b.WriteString("\nSetup cancelled\n")
		return b.String()
	case m.done && m.res.Type == flow.ResultCreateEntry:
		b.WriteString("\n" + okStyle.Render(fmt.Sprintf("Created %q (entry %s)", m.res.Title, m.res.EntryID)) + "\n")
		return b.String()
	case m.done && m.res.Type == flow.ResultAbort:
		b.WriteString("\n" + errStyle.Render(Message(m.res.Reason)) + "\n")
		return b.String()
	case m.inputs == nil:
		b.WriteString("\nStarting...\n")
		return b.String()
	}

	b.WriteString(stepStyle.Render("Step: "+m.res.StepID) + "\n\n")
	if code, ok := m.res.Errors[flow.ErrorBase]; ok {
		b.WriteString(errStyle.Render(Message(code)) + "\n\n")
	}

	for i, in := range m.inputs {
		cursor := "  "
		if i == m.focus {
			cursor = "> "
		}
		fmt.Fprintf(&b, "%s%s\n", cursor, label(in.field))
		switch in.field.Type {
		case flow.FieldBool:
			mark := " "
			if in.on {
				mark = "x"
			}
			fmt.Fprintf(&b, "    [%s] %s\n", mark, in.field.Name)
		case flow.FieldSelect:
			for j, o := range in.field.Options {
				dot := "( )"
				if j == in.choice {
					dot = "(•)"
				}
				fmt.Fprintf(&b, "    %s %s\n", dot, o.Label)
			}
		default:
			b.WriteString("    " + in.text.View() + "\n")
		}
		if code, ok := m.res.Errors[in.field.Name]; ok {
			b.WriteString("    " + errStyle.Render(Message(code)) + "\n")
		}
	}

	if m.busy {
		b.WriteString("\nValidating...\n")
	}
	b.WriteString("\n" + helpStyle.Render("Tab/Shift-Tab move | ↑/↓ choose | Space toggle | Enter submit | Esc cancel"))
	return b.String()
}

func label(f flow.Field) string {
	s := strings.ReplaceAll(f.Name, "_", " ")
	if s == "" {
		return s
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if f.Required {
		s += " *"
	}
	return s
}

// Run drives a flow for domain on the given terminal streams until it
// finishes or the user leaves. It returns the final model.
func Run(ctx context.Context, flows Flows, domain, name string, in io.Reader, out io.Writer) (Model, error) {
	p := tea.NewProgram(New(ctx, flows, domain, name),
		tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return Model{}, fmt.Errorf("running setup wizard: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return Model{}, fmt.Errorf("running setup wizard: unexpected model %T", final)
	}
	return m, m.err
}
