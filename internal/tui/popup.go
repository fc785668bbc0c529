// Package tui provides the Bubble Tea popup for drafting and posting.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/orchestrator"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	modeActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("33")).
			Bold(true).
			Padding(0, 1)

	modeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Padding(0, 1)

	inputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	focusedInputStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205")).
				Padding(0, 1)

	previewStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Italic(true)

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	overStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// saveDelay debounces draft saves while typing.
const saveDelay = 500 * time.Millisecond

// Controller is what the popup drives.
type Controller interface {
	Generate(ctx context.Context, mode domain.Mode, input string) (string, orchestrator.Status)
	Post(ctx context.Context, content string, mode domain.Mode) orchestrator.Status
	ReplyContext(ctx context.Context) (orchestrator.ReplyTarget, orchestrator.Status)
	Draft(ctx context.Context) (*orchestrator.Draft, bool)
	SaveDraft(ctx context.Context, mode domain.Mode, input, generated string)
	ClearDraft(ctx context.Context) orchestrator.Status
}

type focusArea int

const (
	focusInput focusArea = iota
	focusGenerated
)

// Messages
type (
	generatedMsg struct {
		content string
		status  orchestrator.Status
	}
	postedMsg   struct{ status orchestrator.Status }
	replyCtxMsg struct {
		target orchestrator.ReplyTarget
		status orchestrator.Status
	}
	clearedMsg   struct{ status orchestrator.Status }
	saveDraftMsg struct{ seq int }
)

// Model is the popup state.
type Model struct {
	ctx  context.Context
	ctrl Controller

	mode      domain.Mode
	input     textarea.Model
	generated textarea.Model
	focus     focusArea
	spinner   spinner.Model
	busy      string

	preview string
	status  orchestrator.Status
	saveSeq int

	width    int
	quitting bool
}

// New creates the popup, restoring a recent draft when one exists.
func New(ctx context.Context, ctrl Controller) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	in := textarea.New()
	in.CharLimit = 2000
	in.SetWidth(72)
	in.SetHeight(3)
	in.ShowLineNumbers = false
	in.Focus()

	gen := textarea.New()
	gen.Placeholder = "Generated post appears here (editable)"
	gen.CharLimit = 2000
	gen.SetWidth(72)
	gen.SetHeight(5)
	gen.ShowLineNumbers = false

	m := Model{
		ctx:       ctx,
		ctrl:      ctrl,
		mode:      domain.ModeNewPost,
		input:     in,
		generated: gen,
		spinner:   s,
		width:     80,
	}

	if d, ok := ctrl.Draft(ctx); ok {
		if d.Mode.Valid() {
			m.mode = d.Mode
		}
		m.input.SetValue(d.Input)
		m.generated.SetValue(d.Generated)
		if d.LastStatus != "" {
			m.status = orchestrator.Status{Kind: d.LastStatusType, Message: d.LastStatus}
		}
	}
	m.updatePlaceholder()
	return m
}

// Mode returns the current mode.
func (m Model) Mode() domain.Mode { return m.mode }

// Status returns the last status shown.
func (m Model) Status() orchestrator.Status { return m.status }

// Input returns the topic/context text.
func (m Model) Input() string { return m.input.Value() }

// Generated returns the editable generated post.
func (m Model) Generated() string { return m.generated.Value() }

// Busy reports whether an action is in flight.
func (m Model) Busy() bool { return m.busy != "" }

func (m *Model) updatePlaceholder() {
	if m.mode == domain.ModeReply {
		m.input.Placeholder = "Enter the post you want to reply to..."
	} else {
		m.input.Placeholder = "Enter your post topic..."
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Update handles input and action results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := max(20, msg.Width-6)
		m.input.SetWidth(w)
		m.generated.SetWidth(w)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case generatedMsg:
		m.busy = ""
		m.status = msg.status
		if msg.status.Kind == orchestrator.StatusSuccess {
			m.generated.SetValue(msg.content)
			m.setFocus(focusGenerated)
		}
		return m, nil

	case postedMsg:
		m.busy = ""
		m.status = msg.status
		return m, nil

	case replyCtxMsg:
		m.busy = ""
		m.status = msg.status
		if msg.target.Post != nil {
			m.input.SetValue(msg.target.Input)
			m.preview = msg.target.Preview
		}
		return m, nil

	case clearedMsg:
		m.status = msg.status
		m.input.Reset()
		m.generated.Reset()
		m.preview = ""
		m.setFocus(focusInput)
		return m, nil

	case saveDraftMsg:
		if msg.seq == m.saveSeq {
			m.ctrl.SaveDraft(m.ctx, m.mode, m.input.Value(), m.generated.Value())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		if m.focus == focusInput {
			m.setFocus(focusGenerated)
		} else {
			m.setFocus(focusInput)
		}
		return m, nil
	}

	if m.Busy() {
		return m, nil
	}

	switch msg.String() {
	case "ctrl+g":
		return m.startGenerate()
	case "ctrl+p":
		return m.startPost()
	case "ctrl+t":
		return m.toggleMode()
	case "ctrl+l":
		ctx, ctrl := m.ctx, m.ctrl
		return m, func() tea.Msg { return clearedMsg{status: ctrl.ClearDraft(ctx)} }
	}

	var cmd tea.Cmd
	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.generated, cmd = m.generated.Update(msg)
	}
	save := m.scheduleSave()
	return m, tea.Batch(cmd, save)
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.generated.Blur()
		m.input.Focus()
	} else {
		m.input.Blur()
		m.generated.Focus()
	}
}

func (m *Model) scheduleSave() tea.Cmd {
	m.saveSeq++
	seq := m.saveSeq
	return tea.Tick(saveDelay, func(time.Time) tea.Msg { return saveDraftMsg{seq: seq} })
}

func (m Model) startGenerate() (tea.Model, tea.Cmd) {
	m.busy = orchestrator.MsgGenerating
	m.status = orchestrator.Status{Kind: orchestrator.StatusInfo, Message: orchestrator.MsgGenerating}
	ctx, ctrl, mode, input := m.ctx, m.ctrl, m.mode, m.input.Value()
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		content, st := ctrl.Generate(ctx, mode, input)
		return generatedMsg{content: content, status: st}
	})
}

func (m Model) startPost() (tea.Model, tea.Cmd) {
	m.busy = "Posting..."
	ctx, ctrl, mode, content := m.ctx, m.ctrl, m.mode, m.generated.Value()
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return postedMsg{status: ctrl.Post(ctx, content, mode)}
	})
}

func (m Model) toggleMode() (tea.Model, tea.Cmd) {
	if m.mode == domain.ModeNewPost {
		m.mode = domain.ModeReply
	} else {
		m.mode = domain.ModeNewPost
	}
	m.updatePlaceholder()

	if m.mode == domain.ModeNewPost {
		m.preview = ""
		m.input.Reset()
		save := m.scheduleSave()
		return m, save
	}

	m.busy = "Reading post..."
	save := m.scheduleSave()
	ctx, ctrl := m.ctx, m.ctrl
	return m, tea.Batch(m.spinner.Tick, save, func() tea.Msg {
		target, st := ctrl.ReplyContext(ctx)
		return replyCtxMsg{target: target, status: st}
	})
}

// View renders the popup.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("X Post Assistant"))
	sb.WriteString("  ")
	for _, mode := range []domain.Mode{domain.ModeNewPost, domain.ModeReply} {
		label := "New post"
		if mode == domain.ModeReply {
			label = "Reply"
		}
		if mode == m.mode {
			sb.WriteString(modeActiveStyle.Render(label))
		} else {
			sb.WriteString(modeStyle.Render(label))
		}
	}
	sb.WriteString("\n\n")

	if m.preview != "" {
		sb.WriteString(previewStyle.Render(m.preview))
		sb.WriteString("\n\n")
	}

	sb.WriteString(m.box(m.input.View(), m.focus == focusInput))
	sb.WriteString("\n")

	if m.generated.Value() != "" || m.focus == focusGenerated {
		sb.WriteString(m.box(m.generated.View(), m.focus == focusGenerated))
		sb.WriteString("\n")
		sb.WriteString(m.charCount())
		sb.WriteString("\n")
	}

	if m.Busy() {
		sb.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.busy))
	} else if line := renderStatus(m.status); line != "" {
		sb.WriteString(line + "\n")
	}

	sb.WriteString(dimStyle.Render("ctrl+g generate • ctrl+p post • ctrl+t mode • ctrl+l clear • tab focus • esc quit"))
	return sb.String()
}

func (m Model) box(content string, focused bool) string {
	if focused {
		return focusedInputStyle.Render(content)
	}
	return inputBorderStyle.Render(content)
}

func (m Model) charCount() string {
	c := orchestrator.CharCount(m.generated.Value())
	s := fmt.Sprintf("%d/%d", c.N, domain.MaxPostLength)
	if c.Over {
		return overStyle.Render(s)
	}
	return dimStyle.Render(s)
}

func renderStatus(st orchestrator.Status) string {
	switch st.Kind {
	case orchestrator.StatusSuccess:
		return successStyle.Render(st.Message)
	case orchestrator.StatusError:
		return errorStyle.Render(st.Message)
	case orchestrator.StatusInfo:
		return infoStyle.Render(st.Message)
	}
	return ""
}

// Run starts the popup on the terminal.
func Run(ctx context.Context, ctrl Controller) error {
	p := tea.NewProgram(New(ctx, ctrl), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
