package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"eventai/internal/generator"
	"eventai/internal/handoff"
	"eventai/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompleter answers every request with the same content or error and
// records the last prompt.
type stubCompleter struct {
	content string
	err     error
	last    openai.ChatCompletionRequest
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.last = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: s.content}},
	}}, nil
}

func newModel(t *testing.T, c *stubCompleter) (*Model, *handoff.Handoff, *int) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opened := 0
	h, err := handoff.New(logger,
		handoff.WithPath(filepath.Join(t.TempDir(), handoff.FileName)),
		handoff.WithOS("darwin"),
		handoff.WithRunner(func(context.Context, string, ...string) error { opened++; return nil }),
	)
	require.NoError(t, err)
	s := session.New(logger, generator.New(logger, c, generator.Options{}), h)
	return NewModel(context.Background(), s), h, &opened
}

func typeText(m *Model, text string) {
	for _, r := range text {
		if r == ' ' {
			m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

// runUntil executes cmd, expanding batches, and returns the first message
// of type T.
func runUntil[T tea.Msg](t *testing.T, cmd tea.Cmd) T {
	t.Helper()
	var zero T
	if cmd == nil {
		t.Fatal("expected a command")
		return zero
	}
	switch msg := cmd().(type) {
	case T:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if got, ok := c().(T); ok {
				return got
			}
		}
	}
	t.Fatalf("command did not produce %T", zero)
	return zero
}

func TestGenerateHandsOffWithoutAdd(t *testing.T) {
	stub := &stubCompleter{content: "BEGIN:VCALENDAR...END:VCALENDAR"}
	m, h, opened := newModel(t, stub)

	typeText(m, "Lunch with Sam")
	m.Update(key(tea.KeyTab))
	typeText(m, "15 minutes before")

	_, cmd := m.Update(key(tea.KeyCtrlG))
	msg := runUntil[generatedMsg](t, cmd)
	_, cmd = m.Update(msg)

	assert.Equal(t, "BEGIN:VCALENDAR...END:VCALENDAR", m.inputs[fieldICS])
	assert.Empty(t, m.errText)
	prompt := stub.last.Messages[0].MultiContent[0].Text
	assert.Contains(t, prompt, "The event: Lunch with Sam.")
	assert.Contains(t, prompt, "The reminder: 15 minutes before")

	added := runUntil[addedMsg](t, cmd)
	require.NoError(t, added.err)
	m.Update(added)

	got, err := os.ReadFile(h.Path())
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR...END:VCALENDAR", string(got))
	assert.Equal(t, 1, *opened)
	assert.False(t, m.adding)
}

func TestEditedTextCanBeAddedAgain(t *testing.T) {
	m, h, opened := newModel(t, &stubCompleter{content: "BEGIN:VCALENDAR"})
	typeText(m, "x")

	_, cmd := m.Update(key(tea.KeyCtrlG))
	_, cmd = m.Update(runUntil[generatedMsg](t, cmd))
	m.Update(runUntil[addedMsg](t, cmd))

	for m.focus != fieldICS {
		m.Update(key(tea.KeyTab))
	}
	typeText(m, "!")
	_, cmd = m.Update(key(tea.KeyCtrlA))
	added := runUntil[addedMsg](t, cmd)
	require.NoError(t, added.err)
	m.Update(added)

	got, err := os.ReadFile(h.Path())
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR!", string(got))
	assert.Equal(t, 2, *opened)
}

func TestGenerateFailureShowsMessage(t *testing.T) {
	m, _, opened := newModel(t, &stubCompleter{err: errors.New("connection reset by peer")})
	typeText(m, "x")

	_, cmd := m.Update(key(tea.KeyCtrlG))
	m.Update(runUntil[generatedMsg](t, cmd))

	assert.Contains(t, m.errText, "connection reset by peer")
	assert.Contains(t, m.View(), "connection reset by peer")
	assert.Equal(t, 0, *opened)
}

func TestEditingICSUpdatesSession(t *testing.T) {
	m, _, _ := newModel(t, &stubCompleter{})
	for i := 0; i < int(fieldICS); i++ {
		m.Update(key(tea.KeyTab))
	}
	typeText(m, "BEGIN")
	m.Update(key(tea.KeyBackspace))

	assert.Equal(t, "BEGI", m.session.Text())
}

func TestAddWithoutTextIsRejected(t *testing.T) {
	m, _, opened := newModel(t, &stubCompleter{})
	_, cmd := m.Update(key(tea.KeyCtrlA))

	assert.Nil(t, cmd)
	assert.Equal(t, "Nothing to add yet.", m.errText)
	assert.Equal(t, 0, *opened)
}

func TestPastedImagePathIsNormalized(t *testing.T) {
	m, _, _ := newModel(t, &stubCompleter{})
	m.Update(key(tea.KeyTab))
	m.Update(key(tea.KeyTab))
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("'/tmp/my flyer.png'"), Paste: true})

	assert.Equal(t, "/tmp/my flyer.png", m.inputs[fieldImage])
}

func TestCtrlVPastesClipboard(t *testing.T) {
	m, _, _ := newModel(t, &stubCompleter{})
	m.readClipboard = func() (string, error) { return "Dinner at 8", nil }
	m.Update(key(tea.KeyCtrlV))
	assert.Equal(t, "Dinner at 8", m.inputs[fieldEvent])

	m.readClipboard = func() (string, error) { return "file:///tmp/my%20flyer.png", nil }
	m.Update(key(tea.KeyTab))
	m.Update(key(tea.KeyTab))
	m.Update(key(tea.KeyCtrlV))
	assert.Equal(t, "/tmp/my flyer.png", m.inputs[fieldImage])
}

func TestCtrlVClipboardError(t *testing.T) {
	m, _, _ := newModel(t, &stubCompleter{})
	m.readClipboard = func() (string, error) { return "", errors.New("no clipboard utilities available") }
	m.Update(key(tea.KeyCtrlV))

	assert.Empty(t, m.inputs[fieldEvent])
	assert.Contains(t, m.errText, "no clipboard utilities available")
}

func TestQuitKeys(t *testing.T) {
	m, _, _ := newModel(t, &stubCompleter{})
	_, cmd := m.Update(key(tea.KeyEsc))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestNormalizeDroppedPath(t *testing.T) {
	cases := map[string]string{
		"/tmp/a.png":                "/tmp/a.png",
		"  /tmp/a.png \n":           "/tmp/a.png",
		`"/tmp/with space.png"`:     "/tmp/with space.png",
		`/tmp/with\ space.png`:      "/tmp/with space.png",
		"file:///tmp/with%20sp.png": "/tmp/with sp.png",
		"":                          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDroppedPath(in), in)
	}
}
