// Package ui provides the terminal board viewer used by "taskboard watch".
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/GoCodeAlone/taskboard/task"
)

const defaultColumnWidth = 28

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// RunTUI shows the board until the user quits or ctx is cancelled.
func RunTUI(ctx context.Context, initial []task.Task, events <-chan Event) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("watch requires a TTY")
	}
	program := tea.NewProgram(NewModel(initial, events), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// Model is the bubbletea model for the live board.
type Model struct {
	tasks     []task.Task
	events    <-chan Event
	connected bool
	notice    string
	err       error
	updates   int
	width     int
}

type eventMsg struct {
	event Event
}

type feedClosedMsg struct{}

// NewModel starts the viewer from an initial task list and a feed of events.
func NewModel(initial []task.Task, events <-chan Event) *Model {
	return &Model{
		tasks:     initial,
		events:    events,
		connected: events != nil,
	}
}

func (m *Model) Init() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return waitForEvent(m.events)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case eventMsg:
		ev := msg.event
		switch {
		case ev.Err != nil:
			m.err = ev.Err
			m.connected = false
		case ev.Rejected != "":
			m.notice = "update rejected: " + ev.Rejected
		default:
			m.tasks = ev.Tasks
			m.notice = ""
			m.updates++
		}
		return m, waitForEvent(m.events)
	case feedClosedMsg:
		m.connected = false
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Task Board"))
	if m.connected {
		b.WriteString(fmt.Sprintf("  live, %d updates\n\n", m.updates))
	} else {
		b.WriteString("  disconnected\n\n")
	}

	width := defaultColumnWidth
	if m.width > 0 {
		if w := m.width/len(task.Statuses()) - 4; w > 10 {
			width = w
		}
	}

	var cols []string
	for _, status := range task.Statuses() {
		cols = append(cols, columnStyle.Width(width).Render(renderColumn(status, m.tasks, width)))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteString("\n\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	if m.err != nil {
		b.WriteString(noticeStyle.Render("connection error: "+m.err.Error()) + "\n")
	}
	b.WriteString("q to quit\n")
	return b.String()
}

func renderColumn(status task.Status, tasks []task.Task, width int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(string(status)))
	b.WriteString("\n")
	n := 0
	for _, t := range tasks {
		if t.Status != status {
			continue
		}
		n++
		b.WriteString(fmt.Sprintf("\n#%d %s\n", t.ID, truncate(t.Title, width-4)))
		b.WriteString(userStyle.Render(t.User) + "\n")
	}
	if n == 0 {
		b.WriteString("\n(empty)\n")
	}
	return b.String()
}

func waitForEvent(ch <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n < 2 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
