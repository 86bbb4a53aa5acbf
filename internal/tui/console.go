package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/semlayer/semlayer/internal/chat"
	"github.com/semlayer/semlayer/internal/db"
)

// Backend is what the console runs statements and questions against.
type Backend interface {
	Relations(ctx context.Context) ([]db.Relation, error)
	Query(ctx context.Context, sql string) (*db.Result, error)
	Ask(ctx context.Context, question string) (*chat.Answer, error)
}

const (
	focusRelations = iota
	focusInput
)

const (
	modeSQL = "SQL"
	modeAsk = "Ask"
)

const previewRows = 50

type relationsMsg struct {
	relations []db.Relation
	err       error
}

type resultMsg struct {
	header string
	result *db.Result
	answer *chat.Answer
	err    error
}

// ConsoleModel is the Bubbletea model for the interactive query console.
type ConsoleModel struct {
	ctx     context.Context
	backend Backend
	askable bool

	width  int
	height int
	focus  int
	mode   string

	relations []db.Relation
	cursor    int
	scroll    int

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	running  bool
	header   string
	status   string

	quitting bool
}

// NewConsoleModel creates a console over backend. askable enables the Ask
// mode.
func NewConsoleModel(ctx context.Context, backend Backend, askable bool) ConsoleModel {
	ta := textarea.New()
	ta.Placeholder = "SELECT * FROM business.employee_summary LIMIT 20"
	ta.ShowLineNumbers = false
	ta.SetHeight(4)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cursorStyle

	return ConsoleModel{
		ctx:      ctx,
		backend:  backend,
		askable:  askable,
		focus:    focusInput,
		mode:     modeSQL,
		input:    ta,
		viewport: viewport.New(0, 0),
		spinner:  sp,
	}
}

func (m ConsoleModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadRelations())
}

func (m ConsoleModel) loadRelations() tea.Cmd {
	return func() tea.Msg {
		rels, err := m.backend.Relations(m.ctx)
		return relationsMsg{relations: rels, err: err}
	}
}

func (m ConsoleModel) run(mode, text string) tea.Cmd {
	return func() tea.Msg {
		if mode == modeAsk {
			ans, err := m.backend.Ask(m.ctx, text)
			msg := resultMsg{header: "Ask: " + text, answer: ans, err: err}
			if ans != nil {
				msg.result = ans.Result
			}
			return msg
		}
		res, err := m.backend.Query(m.ctx, text)
		return resultMsg{header: firstLine(text), result: res, err: err}
	}
}

func (m ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case relationsMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(msg.err.Error())
			return m, nil
		}
		m.relations = msg.relations
		return m, nil

	case resultMsg:
		m.running = false
		m.header = msg.header
		m.viewport.SetContent(m.renderResult(msg))
		m.viewport.GotoTop()
		if msg.err != nil {
			m.status = errorStyle.Render("failed")
		} else if msg.result != nil {
			m.status = successStyle.Render(fmt.Sprintf("%d rows", len(msg.result.Rows)))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ConsoleModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		if m.focus == focusInput {
			m.focus = focusRelations
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil
	case "ctrl+t":
		if m.askable {
			if m.mode == modeSQL {
				m.mode = modeAsk
				m.input.Placeholder = "How many employees are enrolled in each benefit plan?"
			} else {
				m.mode = modeSQL
				m.input.Placeholder = "SELECT * FROM business.employee_summary LIMIT 20"
			}
		}
		return m, nil
	case "ctrl+r":
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.running {
			return m, nil
		}
		m.running = true
		m.status = ""
		return m, tea.Batch(m.spinner.Tick, m.run(m.mode, text))
	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil
	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus == focusRelations {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			m.ensureVisible()
		case "down", "j":
			if m.cursor < len(m.relations)-1 {
				m.cursor++
			}
			m.ensureVisible()
		case "enter":
			if m.cursor < len(m.relations) && !m.running {
				rel := m.relations[m.cursor]
				query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", db.QualifiedName(rel.Schema, rel.Name), previewRows)
				m.input.SetValue(query)
				m.mode = modeSQL
				m.running = true
				return m, tea.Batch(m.spinner.Tick, m.run(modeSQL, query))
			}
		case "q":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ConsoleModel) leftWidth() int {
	w := m.width / 4
	if w < 24 {
		w = 24
	}
	if w > 40 {
		w = 40
	}
	return w
}

func (m *ConsoleModel) resize() {
	rightW := m.width - m.leftWidth() - 4
	if rightW < 20 {
		rightW = 20
	}
	m.input.SetWidth(rightW)
	m.viewport.Width = rightW
	// title, help, input box and panel borders
	h := m.height - m.input.Height() - 8
	if h < 3 {
		h = 3
	}
	m.viewport.Height = h
}

func (m *ConsoleModel) visibleRelations() int {
	h := m.height - 6
	if h < 3 {
		h = 3
	}
	return h
}

func (m *ConsoleModel) ensureVisible() {
	vis := m.visibleRelations()
	if m.cursor < m.scroll {
		m.scroll = m.cursor
	} else if m.cursor >= m.scroll+vis {
		m.scroll = m.cursor - vis + 1
	}
}

func (m ConsoleModel) renderResult(msg resultMsg) string {
	var b strings.Builder
	if msg.answer != nil {
		if msg.answer.Summary != "" {
			b.WriteString(RenderMarkdown(msg.answer.Summary, m.viewport.Width-2))
		}
		if msg.answer.SQL != "" {
			b.WriteString(dimStyle.Render(msg.answer.SQL))
			b.WriteString("\n\n")
		}
	}
	if msg.err != nil {
		b.WriteString(errorStyle.Render("Error: " + msg.err.Error()))
		b.WriteString("\n")
	}
	if msg.result != nil {
		b.WriteString(RenderResult(msg.result, 0))
	}
	return b.String()
}

func (m ConsoleModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	left := m.renderRelations()
	right := m.renderMain()
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitleBar(),
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		m.renderHelpBar(),
	)
}

func (m ConsoleModel) renderTitleBar() string {
	title := barTitleStyle.Render("semlayer console")
	mode := barStyle.Render("mode: " + m.mode)
	spacer := m.width - lipgloss.Width(title) - lipgloss.Width(mode)
	if spacer < 0 {
		spacer = 0
	}
	return title + barStyle.Padding(0).Render(strings.Repeat(" ", spacer)) + mode
}

func (m ConsoleModel) renderRelations() string {
	w := m.leftWidth()
	var b strings.Builder
	b.WriteString(headerStyle.Render("Relations"))
	b.WriteString("\n")

	if len(m.relations) == 0 {
		b.WriteString(dimStyle.Render(" none yet, run 'semlayer init'"))
	}
	end := min(m.scroll+m.visibleRelations(), len(m.relations))
	for i := m.scroll; i < end; i++ {
		name := truncate(m.relations[i].FullName(), w-4)
		if i == m.cursor && m.focus == focusRelations {
			b.WriteString(cursorStyle.Render("> " + name))
		} else {
			b.WriteString(itemStyle.Render("  " + name))
		}
		b.WriteString("\n")
	}

	style := inactiveBorderStyle
	if m.focus == focusRelations {
		style = activeBorderStyle
	}
	return style.Width(w).Height(m.height - 4).Render(b.String())
}

func (m ConsoleModel) renderMain() string {
	w := m.width - m.leftWidth() - 4
	if w < 20 {
		w = 20
	}

	header := m.header
	if m.running {
		header = m.spinner.View() + " running..."
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(header))
	if m.status != "" {
		b.WriteString(" " + m.status)
	}
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	inputStyle := inactiveBorderStyle
	if m.focus == focusInput {
		inputStyle = activeBorderStyle
	}
	b.WriteString(inputStyle.Width(w).Render(m.input.View()))

	return lipgloss.NewStyle().Width(w + 2).Render(b.String())
}

func (m ConsoleModel) renderHelpBar() string {
	help := "ctrl+r run  tab focus  pgup/pgdn scroll  esc quit"
	if m.focus == focusRelations {
		help = "↑/↓ navigate  enter preview  tab focus  pgup/pgdn scroll  q quit"
	}
	if m.askable {
		help = "ctrl+t sql/ask  " + help
	}
	return barStyle.Width(m.width).Render(help)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return truncate(line, 80)
}

// RunConsole launches the full-screen console.
func RunConsole(ctx context.Context, backend Backend, askable bool) error {
	p := tea.NewProgram(NewConsoleModel(ctx, backend, askable), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
