package tui

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"eventai/internal/generator"
	"eventai/internal/models"
	"eventai/internal/session"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type field int

const (
	fieldEvent field = iota
	fieldReminder
	fieldImage
	fieldICS
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldEvent:    "Event",
	fieldReminder: "Reminder",
	fieldImage:    "Image",
	fieldICS:      "ICS",
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// generatedMsg carries a finished generation back onto the event loop.
type generatedMsg struct {
	result models.GenerationResult
}

// addedMsg reports the outcome of the calendar hand-off.
type addedMsg struct {
	err error
}

type tickMsg time.Time

// Model is the bubbletea model for the terminal surface. All state that
// outlives a keystroke lives either here or in the session.
type Model struct {
	ctx     context.Context
	session *session.Session

	inputs  [fieldCount]string
	focus   field
	width   int
	frame   int
	adding  bool
	status  string
	errText string

	styles        Styles
	readClipboard func() (string, error)
}

// NewModel creates the terminal surface over s.
func NewModel(ctx context.Context, s *session.Session) *Model {
	m := &Model{
		ctx:     ctx,
		session: s,
		styles:  DefaultStyles(),
		status:  "Describe an event, then press ctrl+g.",

		readClipboard: clipboard.ReadAll,
	}
	m.inputs[fieldICS] = s.Text()
	return m
}

// Run starts the program on the alternate screen and blocks until it exits.
func Run(ctx context.Context, s *session.Session) error {
	_, err := tea.NewProgram(NewModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Init sets the window title.
func (m *Model) Init() tea.Cmd {
	return tea.SetWindowTitle("eventai")
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		if !m.session.Busy() && !m.adding {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()

	case generatedMsg:
		if !msg.result.OK() {
			m.errText = msg.result.Message()
			m.status = "Generation failed."
			return m, nil
		}
		// The raw text goes straight to the calendar; edits can be re-added
		// with ctrl+a.
		m.inputs[fieldICS] = msg.result.ICSText
		m.errText = ""
		return m, m.commit()

	case addedMsg:
		m.adding = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			m.status = "Could not add the event."
		} else {
			m.errText = ""
			m.status = "Handed off to your calendar application. Edit the text and press ctrl+a to add it again."
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab":
		m.focus = (m.focus + 1) % fieldCount
		return m, nil
	case "shift+tab":
		m.focus = (m.focus + fieldCount - 1) % fieldCount
		return m, nil
	case "ctrl+g":
		return m, m.generate()
	case "ctrl+a":
		return m, m.addToCalendar()
	case "ctrl+v":
		text, err := m.readClipboard()
		if err != nil {
			m.errText = "Could not read the clipboard: " + err.Error()
			return m, nil
		}
		m.paste(text)
		return m, nil
	case "enter":
		if m.focus == fieldEvent || m.focus == fieldICS {
			m.insert("\n")
		}
		return m, nil
	case "backspace":
		m.backspace()
		return m, nil
	}

	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		text := string(msg.Runes)
		if msg.Type == tea.KeySpace {
			text = " "
		}
		if msg.Paste {
			m.paste(text)
			return m, nil
		}
		m.insert(text)
	}
	return m, nil
}

func (m *Model) insert(text string) {
	m.inputs[m.focus] += text
	if m.focus == fieldICS {
		m.session.SetText(m.inputs[fieldICS])
	}
}

// paste inserts text, treating anything pasted into the image field as a
// dropped file path.
func (m *Model) paste(text string) {
	if m.focus == fieldImage {
		m.inputs[fieldImage] = NormalizeDroppedPath(m.inputs[fieldImage] + text)
		return
	}
	m.insert(text)
}

func (m *Model) backspace() {
	r := []rune(m.inputs[m.focus])
	if len(r) == 0 {
		return
	}
	m.inputs[m.focus] = string(r[:len(r)-1])
	if m.focus == fieldICS {
		m.session.SetText(m.inputs[fieldICS])
	}
}

// generate starts a generation unless one is running. The task is awaited in
// a command so the result re-enters Update on the event loop.
func (m *Model) generate() tea.Cmd {
	if m.session.Busy() {
		return nil
	}
	req := models.GenerationRequest{
		EventText:    strings.TrimSpace(m.inputs[fieldEvent]),
		ReminderText: strings.TrimSpace(m.inputs[fieldReminder]),
		ImagePath:    NormalizeDroppedPath(m.inputs[fieldImage]),
	}
	task, err := m.session.Generate(m.ctx, req)
	if err != nil {
		m.errText = err.Error()
		return nil
	}
	m.errText = ""
	m.status = "Generating..."
	return tea.Batch(waitFor(task), tick())
}

func (m *Model) addToCalendar() tea.Cmd {
	if m.adding || m.session.Busy() {
		return nil
	}
	if strings.TrimSpace(m.inputs[fieldICS]) == "" {
		m.errText = "Nothing to add yet."
		return nil
	}
	return m.commit()
}

// commit hands the session text to the calendar in the background.
func (m *Model) commit() tea.Cmd {
	m.adding = true
	m.status = "Adding to calendar..."
	ctx, s := m.ctx, m.session
	return tea.Batch(func() tea.Msg {
		return addedMsg{err: s.AddToCalendar(ctx)}
	}, tick())
}

func waitFor(task *generator.Task) tea.Cmd {
	return func() tea.Msg {
		return generatedMsg{result: task.Result()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// View renders the form, the ICS pane and the status line.
func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	boxWidth := width - 4

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("eventai"))
	b.WriteString("\n\n")

	for f := fieldEvent; f < fieldCount; f++ {
		style := m.styles.Input
		if f == m.focus {
			style = m.styles.Focused
		}
		value := m.inputs[f]
		if f == m.focus {
			value += "█"
		}
		if f == fieldICS && m.session.Busy() {
			value = m.styles.Muted.Render("waiting for the completion endpoint...")
		}
		b.WriteString(m.styles.Label.Render(fieldLabels[f]))
		b.WriteString("\n")
		b.WriteString(style.Width(boxWidth).Render(value))
		b.WriteString("\n")
	}

	status := m.status
	if m.session.Busy() || m.adding {
		status = spinnerFrames[m.frame] + " " + status
	}
	b.WriteString(m.styles.Status.Render(status))
	b.WriteString("\n")
	if m.errText != "" {
		b.WriteString(m.styles.Error.Width(boxWidth).Render("Error: " + m.errText))
		b.WriteString("\n")
	}

	generateHelp := "ctrl+g generate"
	if m.session.Busy() {
		generateHelp = m.styles.Muted.Render(generateHelp)
	}
	b.WriteString(m.styles.Help.Render(fmt.Sprintf("tab next field • %s • ctrl+a add to calendar • esc quit", generateHelp)))
	return b.String()
}

// NormalizeDroppedPath cleans a file path pasted or dropped into the
// terminal: surrounding quotes, file:// URLs and backslash-escaped spaces.
func NormalizeDroppedPath(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	if rest, ok := strings.CutPrefix(s, "file://"); ok {
		if unescaped, err := url.PathUnescape(rest); err == nil {
			rest = unescaped
		}
		s = rest
	}
	return strings.ReplaceAll(s, `\ `, " ")
}

// Styles holds the lipgloss styles used by View.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Input   lipgloss.Style
	Focused lipgloss.Style
	Status  lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Help    lipgloss.Style
}

// DefaultStyles returns the default color scheme.
func DefaultStyles() Styles {
	border := lipgloss.RoundedBorder()
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Label:   lipgloss.NewStyle().Bold(true),
		Input:   lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("240")).Padding(0, 1),
		Focused: lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("205")).Padding(0, 1),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}
