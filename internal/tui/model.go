package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Chat is the TUI-facing subset of a conversation session.
type Chat interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Model is the Bubble Tea model for the interactive chat loop. Questions are
// answered asynchronously; a failed turn prints the error and leaves the
// session open for the next question.
type Model struct {
	chat       Chat
	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	status     string
	waiting    bool
	ready      bool
}

type answerMsg struct {
	question string
	answer   string
}

type errMsg struct {
	question string
	err      error
}

// New creates a new chat TUI model. The banner is shown above the
// transcript, typically the ingestion summary.
func New(chat Chat, banner string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		chat:     chat,
		input:    ti,
		viewport: vp,
		status:   banner,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header + status + input frame + spacer
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case answerMsg:
		m.waiting = false
		m.transcript = append(m.transcript,
			youStyle.Render("You: ")+msg.question,
			botStyle.Render("Bot: ")+msg.answer,
			"")
		m.status = "Ask away."
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case errMsg:
		m.waiting = false
		m.status = errStyle.Render("Error: " + msg.err.Error())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				break
			}
			if q == "exit" || q == "quit" {
				return m, tea.Quit
			}
			if m.waiting {
				m.status = "Still answering the previous question..."
				return m, nil
			}
			m.waiting = true
			m.status = "Thinking..."
			m.input.Reset()
			return m, ask(m.chat, q)
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the blocking question/answer exchange off the UI loop.
func ask(chat Chat, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := chat.Ask(context.Background(), question)
		if err != nil {
			return errMsg{question: question, err: err}
		}
		return answerMsg{question: question, answer: answer}
	}
}

// View renders the TUI layout and transcript.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("FAQ Chat")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No questions yet. Type one below."
	}
	return strings.Join(m.transcript, "\n")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	youStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
