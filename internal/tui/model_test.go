package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaguanLabs/mathgpt/internal/chat"
	"github.com/ZaguanLabs/mathgpt/internal/markup"
	"github.com/ZaguanLabs/mathgpt/internal/mocks"
	"github.com/ZaguanLabs/mathgpt/internal/typeset"
)

func newTestModel(t *testing.T, h *mocks.TestHelper) Model {
	t.Helper()
	ctrl, err := chat.NewController(h.Store(), h.Completer(), chat.Options{})
	require.NoError(t, err)

	m := NewModel(ctrl, markup.NewRenderer(typeset.NewUnicode(), nil), Options{
		Version: "1.0.0",
		Prompts: []string{"Help me solve $x^2 + 5x - 6 = 0$"},
		Profile: termenv.Ascii,
		Now:     func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func typeAndEnter(m Model, text string) (Model, tea.Cmd) {
	m.textinput.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

// collect runs cmd and any batched commands, returning the messages of the
// given kinds.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func find[T any](msgs []tea.Msg) (T, bool) {
	for _, msg := range msgs {
		if v, ok := msg.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func view(m Model) string {
	return ansi.Strip(m.View())
}

func TestModel_WelcomeShowsPrompts(t *testing.T) {
	m := newTestModel(t, mocks.NewTestHelper())

	out := view(m)
	assert.Contains(t, out, "Welcome to MathGPT!")
	assert.Contains(t, out, "1. Help me solve x² + 5x − 6 = 0")
}

func TestModel_SendAndReceive(t *testing.T) {
	h := mocks.SuccessScenario()
	m := newTestModel(t, h)

	m, cmd := typeAndEnter(m, "what are the roots?")
	assert.True(t, m.waiting)
	assert.Contains(t, view(m), "Thinking...")
	assert.Equal(t, "", m.textinput.Value())

	reply, ok := find[replyMsg](collect(cmd))
	require.True(t, ok)

	next, _ := m.Update(reply)
	m = next.(Model)
	assert.False(t, m.waiting)

	out := view(m)
	assert.Contains(t, out, "You:")
	assert.Contains(t, out, "what are the roots?")
	assert.Contains(t, out, "MathGPT:")
	assert.Contains(t, out, "The roots are x = 1 and x = −6.")
	assert.Equal(t, 2, m.ctrl.Store().Len())
}

func TestModel_InvalidInputKeepsText(t *testing.T) {
	h := mocks.NewTestHelper()
	m := newTestModel(t, h)
	m.textinput.CharLimit = 0

	long := strings.Repeat("x", 4001)
	m, cmd := typeAndEnter(m, long)
	assert.Nil(t, cmd)
	assert.False(t, m.waiting)
	assert.Equal(t, long, m.textinput.Value())
	assert.Contains(t, view(m), "Error: message too long")
	mocks.AssertCompleterCallCount(t, h.Completer(), 0)
}

func TestModel_IgnoresSecondQuestionWhileWaiting(t *testing.T) {
	h := mocks.NewTestHelper()
	m := newTestModel(t, h)

	m, _ = typeAndEnter(m, "first")
	m, cmd := typeAndEnter(m, "second")
	assert.Nil(t, cmd)
	assert.Contains(t, view(m), "Still working on the last question...")
	assert.Equal(t, 1, m.ctrl.Store().Len())
}

func TestModel_ClearDropsStaleReply(t *testing.T) {
	h := mocks.NewTestHelper()
	m := newTestModel(t, h)

	m, sendCmd := typeAndEnter(m, "slow question")
	m, clearCmd := typeAndEnter(m, "/clear")

	cleared, ok := find[clearedMsg](collect(clearCmd))
	require.True(t, ok)
	next, _ := m.Update(cleared)
	m = next.(Model)
	assert.Contains(t, view(m), "Conversation cleared.")

	reply, ok := find[replyMsg](collect(sendCmd))
	require.True(t, ok)
	next, _ = m.Update(reply)
	m = next.(Model)

	assert.Zero(t, m.ctrl.Store().Len())
	assert.Contains(t, view(m), "Welcome to MathGPT!")
}

func TestModel_ClearFailureShowsError(t *testing.T) {
	h := mocks.NewTestHelper().WithStorageError("Delete", errors.New("locked"))
	m := newTestModel(t, h)
	_, err := m.ctrl.Store().Append(mocks.CreateTestMessages(1)[0])
	require.NoError(t, err)

	m, cmd := typeAndEnter(m, "/clear")
	cleared, ok := find[clearedMsg](collect(cmd))
	require.True(t, ok)
	next, _ := m.Update(cleared)
	m = next.(Model)

	assert.Contains(t, view(m), "Error: The conversation could not be saved or cleared.")
}

func TestModel_Export(t *testing.T) {
	dir := t.TempDir()
	h := mocks.SuccessScenario()
	m := newTestModel(t, h)
	_, err := m.ctrl.Store().Append(mocks.CreateTestMessages(1)[0])
	require.NoError(t, err)

	m, cmd := typeAndEnter(m, "/export "+dir)
	exported, ok := find[exportedMsg](collect(cmd))
	require.True(t, ok)
	require.NoError(t, exported.err)

	next, _ := m.Update(exported)
	m = next.(Model)
	path := filepath.Join(dir, "mathgpt-conversation-2024-03-01.txt")
	assert.Equal(t, path, exported.path)
	assert.Contains(t, view(m), "Conversation exported to")

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestModel_SymbolInsertAndPreview(t *testing.T) {
	h := mocks.NewTestHelper()
	m := newTestModel(t, h)

	m, cmd := typeAndEnter(m, "Area is /sym pi")
	assert.Nil(t, cmd)
	assert.Equal(t, `Area is $\pi$`, m.textinput.Value())
	assert.Contains(t, view(m), "Preview: Area is π")
	mocks.AssertCompleterCallCount(t, h.Completer(), 0)

	m.textinput.SetValue("")
	m, _ = typeAndEnter(m, "/sym theta")
	assert.Equal(t, `$\theta$`, m.textinput.Value())

	m.textinput.SetValue("")
	m, _ = typeAndEnter(m, "/sym nope")
	assert.Contains(t, view(m), `Unknown symbol "nope"`)
}

func TestModel_NoPreviewWithoutMath(t *testing.T) {
	m := newTestModel(t, mocks.NewTestHelper())
	m.textinput.SetValue("just words")
	assert.NotContains(t, view(m), "Preview:")
}

func TestModel_PromptAndHelp(t *testing.T) {
	m := newTestModel(t, mocks.NewTestHelper())

	m, _ = typeAndEnter(m, "/prompt 1")
	assert.Equal(t, "Help me solve $x^2 + 5x - 6 = 0$", m.textinput.Value())

	m.textinput.SetValue("")
	m, _ = typeAndEnter(m, "/prompt 7")
	assert.Contains(t, view(m), "Choose a number between 1 and 1.")

	m, _ = typeAndEnter(m, "/help")
	assert.Contains(t, view(m), "/export")

	m, _ = typeAndEnter(m, "/bogus")
	assert.Contains(t, view(m), "Unknown command: /bogus")
}

func TestModel_ReplyErrorShown(t *testing.T) {
	h := mocks.NewTestHelper().WithCompletionError(context.DeadlineExceeded)
	m := newTestModel(t, h)

	m, cmd := typeAndEnter(m, "hello")
	reply, ok := find[replyMsg](collect(cmd))
	require.True(t, ok)
	next, _ := m.Update(reply)
	m = next.(Model)

	assert.Contains(t, view(m), "The tutor took too long to answer.")
}
