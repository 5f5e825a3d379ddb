// Package tui provides the interactive full-screen renderer for build progress.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/lyric/internal/core/ports"
)

const (
	taskListWidthRatio = 0.3
	logPaneBorderWidth = 4
)

// TaskStatus is the display state of a task row.
type TaskStatus string

const (
	// StatusRunning indicates the task span is open.
	StatusRunning TaskStatus = "Running"
	// StatusDone indicates the task completed.
	StatusDone TaskStatus = "Done"
	// StatusError indicates the task failed.
	StatusError TaskStatus = "Error"
)

// TaskNode is a single row of the task list.
type TaskNode struct {
	SpanID    string
	Name      string
	Status    TaskStatus
	Cached    bool
	Err       error
	StartTime time.Time
	EndTime   time.Time
	Term      *Vterm
}

// MsgTaskStart reports an opened task span.
type MsgTaskStart struct {
	SpanID    string
	Name      string
	StartTime time.Time
}

// MsgTaskLog carries output written by a task.
type MsgTaskLog struct {
	SpanID string
	Data   []byte
}

// MsgTaskComplete reports a closed task span.
type MsgTaskComplete struct {
	SpanID  string
	EndTime time.Time
	Cached  bool
	Err     error
}

// MsgBuildComplete carries the totals of the finished build.
type MsgBuildComplete struct {
	Summary ports.BuildSummary
}

// Model is the bubbletea state of one build generation.
type Model struct {
	Generation string
	Targets    []string
	Tasks      []*TaskNode
	SpanMap    map[string]*TaskNode
	Summary    *ports.BuildSummary

	SelectedIdx int
	ListOffset  int
	ListHeight  int
	LogWidth    int
	LogHeight   int
	FollowMode  bool
	// Interrupted is set when the user pressed ctrl+c.
	Interrupted bool
}

// NewModel creates the model of a build generation.
func NewModel(generation string, targets []string) *Model {
	return &Model{
		Generation: generation,
		Targets:    targets,
		SpanMap:    make(map[string]*TaskNode),
		FollowMode: true,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Selected returns the task shown in the log pane.
func (m *Model) Selected() *TaskNode {
	if m.SelectedIdx >= 0 && m.SelectedIdx < len(m.Tasks) {
		return m.Tasks[m.SelectedIdx]
	}
	return nil
}

func (m *Model) ensureVisible() {
	if m.ListHeight <= 0 {
		return
	}
	if m.SelectedIdx < m.ListOffset {
		m.ListOffset = m.SelectedIdx
	} else if m.SelectedIdx >= m.ListOffset+m.ListHeight {
		m.ListOffset = m.SelectedIdx - m.ListHeight + 1
	}
}

func (m *Model) selectIndex(i int) {
	m.SelectedIdx = i
	m.ensureVisible()
	if node := m.Selected(); node != nil && m.FollowMode {
		node.Term.ScrollToBottom()
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		listWidth := int(float64(msg.Width) * taskListWidthRatio)
		m.LogWidth = msg.Width - listWidth - logPaneBorderWidth
		m.LogHeight = msg.Height - lipgloss.Height(titleStyle.Render("LOGS"))
		m.ListHeight = msg.Height - lipgloss.Height(titleStyle.Render("TASKS")+"\n\n")
		m.ensureVisible()
		for _, node := range m.Tasks {
			node.Term.SetWidth(m.LogWidth)
			node.Term.SetHeight(m.LogHeight)
		}

	case MsgTaskStart:
		term := NewVterm()
		if m.LogWidth > 0 && m.LogHeight > 0 {
			term.SetWidth(m.LogWidth)
			term.SetHeight(m.LogHeight)
		}
		node := &TaskNode{
			SpanID:    msg.SpanID,
			Name:      msg.Name,
			Status:    StatusRunning,
			StartTime: msg.StartTime,
			Term:      term,
		}
		m.Tasks = append(m.Tasks, node)
		m.SpanMap[msg.SpanID] = node
		if m.FollowMode {
			m.selectIndex(len(m.Tasks) - 1)
		}

	case MsgTaskLog:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			_, _ = node.Term.Write(msg.Data)
		}

	case MsgTaskComplete:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			node.EndTime = msg.EndTime
			node.Cached = msg.Cached
			node.Err = msg.Err
			node.Status = StatusDone
			if msg.Err != nil {
				node.Status = StatusError
			}
		}

	case MsgBuildComplete:
		summary := msg.Summary
		m.Summary = &summary
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		m.Interrupted = true
		return tea.Quit
	case "q":
		return tea.Quit
	case "k", "up":
		if m.SelectedIdx > 0 {
			m.FollowMode = false
			m.selectIndex(m.SelectedIdx - 1)
		}
	case "j", "down":
		if m.SelectedIdx < len(m.Tasks)-1 {
			m.FollowMode = false
			m.selectIndex(m.SelectedIdx + 1)
		}
	case "esc":
		m.FollowMode = true
		for i := len(m.Tasks) - 1; i >= 0; i-- {
			if m.Tasks[i].Status == StatusRunning {
				m.selectIndex(i)
				return nil
			}
		}
		if len(m.Tasks) > 0 {
			m.selectIndex(len(m.Tasks) - 1)
		}
	default:
		if node := m.Selected(); node != nil {
			node.Term.Update(msg)
		}
	}
	return nil
}
