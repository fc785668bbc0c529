package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/orchestrator"
)

type fakeController struct {
	draft     *orchestrator.Draft
	generated string
	genStatus orchestrator.Status
	postMode  domain.Mode
	posted    string
	saves     int
	target    orchestrator.ReplyTarget
}

func (f *fakeController) Generate(_ context.Context, _ domain.Mode, input string) (string, orchestrator.Status) {
	return f.generated, f.genStatus
}

func (f *fakeController) Post(_ context.Context, content string, mode domain.Mode) orchestrator.Status {
	f.posted, f.postMode = content, mode
	return orchestrator.Status{Kind: orchestrator.StatusSuccess, Message: orchestrator.MsgPosted}
}

func (f *fakeController) ReplyContext(context.Context) (orchestrator.ReplyTarget, orchestrator.Status) {
	return f.target, orchestrator.Status{}
}

func (f *fakeController) Draft(context.Context) (*orchestrator.Draft, bool) {
	return f.draft, f.draft != nil
}

func (f *fakeController) SaveDraft(context.Context, domain.Mode, string, string) { f.saves++ }

func (f *fakeController) ClearDraft(context.Context) orchestrator.Status {
	f.draft = nil
	return orchestrator.Status{Kind: orchestrator.StatusInfo, Message: orchestrator.MsgDraftCleared}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "ctrl+g":
		return tea.KeyMsg{Type: tea.KeyCtrlG}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run applies msg and feeds back every message produced by the resulting
// commands, skipping timers and spinner ticks.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for _, out := range collect(cmd) {
		next, _ = m.Update(out)
		m = next.(Model)
	}
	return m
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c)...)
		}
		return out
	case generatedMsg, postedMsg, replyCtxMsg, clearedMsg:
		return []tea.Msg{msg}
	}
	return nil
}

func TestGenerateThenPost(t *testing.T) {
	f := &fakeController{
		generated: "Pour-over wins.",
		genStatus: orchestrator.Status{Kind: orchestrator.StatusSuccess, Message: orchestrator.MsgGenerated},
	}
	m := New(context.Background(), f)
	m.input.SetValue("coffee")

	m = run(t, m, key("ctrl+g"))
	assert.Equal(t, "Pour-over wins.", m.Generated())
	assert.Equal(t, orchestrator.MsgGenerated, m.Status().Message)
	assert.False(t, m.Busy())
	assert.Equal(t, focusGenerated, m.focus)

	m = run(t, m, key("ctrl+p"))
	assert.Equal(t, "Pour-over wins.", f.posted)
	assert.Equal(t, domain.ModeNewPost, f.postMode)
	assert.Equal(t, orchestrator.MsgPosted, m.Status().Message)
	assert.Contains(t, m.View(), "15/280")
}

func TestGenerateFailureKeepsPreviousDraft(t *testing.T) {
	f := &fakeController{genStatus: orchestrator.Status{Kind: orchestrator.StatusError, Message: "Error: rate limited"}}
	m := New(context.Background(), f)
	m.generated.SetValue("earlier draft")

	m = run(t, m, key("ctrl+g"))
	assert.Equal(t, "earlier draft", m.Generated())
	assert.Equal(t, orchestrator.StatusError, m.Status().Kind)
}

func TestToggleModeLoadsReplyContext(t *testing.T) {
	f := &fakeController{target: orchestrator.ReplyTarget{
		Post:    &domain.OriginalPost{Text: "hi", Author: "jack"},
		Input:   `Reply to "hi"`,
		Preview: "jack: hi",
	}}
	m := New(context.Background(), f)

	m = run(t, m, key("ctrl+t"))
	assert.Equal(t, domain.ModeReply, m.Mode())
	assert.Equal(t, `Reply to "hi"`, m.Input())
	assert.Contains(t, m.View(), "jack: hi")

	m = run(t, m, key("ctrl+t"))
	assert.Equal(t, domain.ModeNewPost, m.Mode())
	assert.Empty(t, m.Input())
	assert.NotContains(t, m.View(), "jack: hi")
}

func TestRestoresDraft(t *testing.T) {
	f := &fakeController{draft: &orchestrator.Draft{
		Mode:           domain.ModeReply,
		Input:          "topic",
		Generated:      "text",
		LastStatus:     orchestrator.MsgGenerated,
		LastStatusType: orchestrator.StatusSuccess,
	}}
	m := New(context.Background(), f)

	assert.Equal(t, domain.ModeReply, m.Mode())
	assert.Equal(t, "topic", m.Input())
	assert.Equal(t, "text", m.Generated())
	assert.Equal(t, orchestrator.MsgGenerated, m.Status().Message)
}

func TestClearDraft(t *testing.T) {
	f := &fakeController{draft: &orchestrator.Draft{Input: "topic", Generated: "text"}}
	m := New(context.Background(), f)

	m = run(t, m, key("ctrl+l"))
	assert.Empty(t, m.Input())
	assert.Empty(t, m.Generated())
	assert.Equal(t, orchestrator.MsgDraftCleared, m.Status().Message)
	assert.Nil(t, f.draft)
}

func TestTypingSchedulesDebouncedSave(t *testing.T) {
	f := &fakeController{}
	m := New(context.Background(), f)

	next, _ := m.Update(key("a"))
	m = next.(Model)
	next, _ = m.Update(key("b"))
	m = next.(Model)
	require.Equal(t, "ab", m.Input())

	// only the latest scheduled save writes
	next, _ = m.Update(saveDraftMsg{seq: m.saveSeq - 1})
	m = next.(Model)
	assert.Equal(t, 0, f.saves)
	m.Update(saveDraftMsg{seq: m.saveSeq})
	assert.Equal(t, 1, f.saves)
}
