package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/lyric/internal/ui/style"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.ListHeight == 0 {
		return "Initializing..."
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.taskList(), m.logPane())
}

func (m *Model) taskList() string {
	var s strings.Builder
	s.WriteString(m.header() + "\n\n")

	end := min(m.ListOffset+m.ListHeight, len(m.Tasks))
	start := min(m.ListOffset, end)
	for i := start; i < end; i++ {
		s.WriteString(m.renderTaskRow(i, m.Tasks[i]) + "\n")
	}
	return listStyle.Render(s.String())
}

func (m *Model) header() string {
	if m.Summary == nil {
		return titleStyle.Render(fmt.Sprintf("TASKS %s", m.Generation))
	}
	text := fmt.Sprintf("DONE %d completed, %d failed", m.Summary.Completed, m.Summary.Failed)
	if m.Summary.Failed > 0 {
		return failureTitleStyle.Render(text)
	}
	return titleStyle.Render(text)
}

func (m *Model) renderTaskRow(index int, task *TaskNode) string {
	rowStyle := taskStyle(task)
	cursor := "  "
	if index == m.SelectedIdx {
		cursor = selectedStyle.Render("> ")
		if task.Status == StatusRunning {
			rowStyle = selectedStyle
		}
	}
	return cursor + rowStyle.Render(taskIcon(task)+" "+task.Name)
}

func taskIcon(task *TaskNode) string {
	if task.Cached {
		return style.Cached
	}
	switch task.Status {
	case StatusDone:
		return style.Check
	case StatusError:
		return style.Cross
	default:
		return "●"
	}
}

func taskStyle(task *TaskNode) lipgloss.Style {
	if task.Cached {
		return taskCachedStyle
	}
	switch task.Status {
	case StatusDone:
		return taskDoneStyle
	case StatusError:
		return taskErrorStyle
	default:
		return taskRunningStyle
	}
}

func (m *Model) logPane() string {
	node := m.Selected()
	if node == nil {
		return logStyle.Render(titleStyle.Render("LOGS (Waiting...)"))
	}

	mode := " (Following)"
	if !m.FollowMode {
		mode = " (Manual)"
	}
	header := titleStyle.Render("LOGS: " + node.Name + mode)
	if node.Err != nil {
		header = failureTitleStyle.Render("LOGS: "+node.Name+mode) + "\n" + taskErrorStyle.Render(node.Err.Error())
	}
	return logStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, node.Term.View()))
}
