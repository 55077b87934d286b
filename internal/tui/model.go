package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragcore/internal/chunker"
	"ragcore/internal/domain"
	"ragcore/internal/tokenize"
)

// RAGPort is the TUI-facing subset of the query pipeline.
type RAGPort interface {
	Ask(ctx context.Context, query string) (*domain.Answer, error)
}

// answerMsg carries a finished query back into Update.
type answerMsg struct {
	query  string
	answer *domain.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	service  RAGPort
	input    textinput.Model
	viewport viewport.Model
	answer   *domain.Answer
	summary  string
	status   string
	cursor   int
	ready    bool
	busy     bool
}

// New creates a new TUI model instance. Queries run under ctx.
func New(ctx context.Context, service RAGPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, service: service, input: ti, viewport: vp, summary: summary, status: "Loaded. Type to search."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		a, err := m.service.Ask(m.ctx, q)
		return answerMsg{query: q, answer: a, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answerMsg:
		m.busy = false
		m.answer = msg.answer
		m.cursor = 0
		m.status = statusLine(msg)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = fmt.Sprintf("Searching for %q...", q)
				return m, m.ask(q)
			}
		case "down":
			if n := m.pages(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if n := m.pages(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func statusLine(msg answerMsg) string {
	a := msg.answer
	switch {
	case msg.err != nil && a == nil:
		return "Error: " + msg.err.Error()
	case msg.err != nil:
		return fmt.Sprintf("Results for %q (answer unavailable: %v)", msg.query, msg.err)
	case a.Status == domain.StatusNoResults:
		return fmt.Sprintf("No results for %q", msg.query)
	case a.Fallback != nil:
		return fmt.Sprintf("Results for %q (keyword search only: %v)", msg.query, a.Fallback)
	default:
		return fmt.Sprintf("Results for %q", msg.query)
	}
}

// pages is the answer page plus one page per context block and table.
func (m Model) pages() int {
	if m.answer == nil {
		return 0
	}
	return 1 + len(m.answer.Blocks) + len(m.answer.Tables)
}

// View renders the TUI layout and current page.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Search")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	a := m.answer
	if a == nil {
		return "No results yet."
	}
	if a.Status == domain.StatusNoResults {
		return "Nothing relevant was found."
	}
	n := m.pages()
	switch i := m.cursor; {
	case i == 0:
		title := fmt.Sprintf("Answer 1/%d", n)
		text := a.Text
		if text == "" {
			text = "(no generated answer)"
		}
		return title + "\n\n" + text + "\n\n" + sourceStyle.Render("Retrieved from: "+strings.Join(a.Sources(), ", "))
	case i <= len(a.Blocks):
		b := a.Blocks[i-1]
		title := fmt.Sprintf("Source %d/%d  %s", i+1, n, b.Name)
		return title + "\n\n" + highlightBestSentence(b.Text, a.Query)
	default:
		t := a.Tables[i-1-len(a.Blocks)]
		title := fmt.Sprintf("Table %d/%d  %s #%d", i+1, n, t.Name, t.Index+1)
		return title + "\n\n" + t.Table.String()
	}
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	splitter       = chunker.NewRegexSplitter()
)

// highlightBestSentence emphasises the sentence sharing the most terms with
// query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := splitter.Split(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	qTokens := tokenize.Set(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	for t := range tokenize.Set(sentence) {
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
