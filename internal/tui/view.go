package tui

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Iron-Ham/testrun/internal/pipeline"
	"github.com/Iron-Ham/testrun/internal/plugins"
	"github.com/Iron-Ham/testrun/internal/runtime"
)

// maxMessages bounds the node messages shown below the node table.
const maxMessages = 5

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "Test run " + shortID(m.pipelineID)
	if m.runs > 1 {
		title += fmt.Sprintf(" (run %d)", m.runs)
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Status"))
	b.WriteString(statusStyle(m.state.Status).Render(m.state.Status.String()))
	b.WriteString("\n")

	report := runtime.ReportFromData(m.state.Data)
	if taskID := m.state.String(plugins.DataTaskID); taskID != "" {
		b.WriteString(labelStyle.Render("Task"))
		b.WriteString(taskID)
		b.WriteString("\n")
	}
	if report != nil && report.WorkflowStatus.Status != "" {
		b.WriteString(labelStyle.Render("Workflow"))
		b.WriteString(report.WorkflowStatus.Status)
		b.WriteString("\n")
	}

	if report != nil && len(report.Reports) > 0 {
		b.WriteString("\n")
		b.WriteString(renderNodes(report.Reports))
	}
	if report != nil {
		if lines := renderMessages(report.Messages, m.width); lines != "" {
			b.WriteString("\n")
			b.WriteString(lines)
		}
	}

	if errs, _ := m.state.Data[pipeline.DataErrors].([]string); len(errs) > 0 {
		b.WriteString("\n")
		for _, e := range errs {
			b.WriteString(errorStyle.Render(truncate("✗ "+e, m.width)))
			b.WriteString("\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(truncate("✗ "+m.err.Error(), m.width)))
		b.WriteString("\n")
	}

	b.WriteString(m.renderHelp())
	return b.String()
}

func renderNodes(reports map[string]runtime.NodeReport) string {
	ids := make([]string, 0, len(reports))
	width := 0
	for id := range reports {
		ids = append(ids, id)
		width = max(width, len(id))
	}
	slices.Sort(ids)

	var b strings.Builder
	for _, id := range ids {
		r := reports[id]
		line := fmt.Sprintf("  %-*s  %s", width, id, r.Status)
		if r.TimeCost > 0 {
			line += mutedStyle.Render(fmt.Sprintf("  %dms", r.TimeCost))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func renderMessages(messages map[string][]runtime.Message, width int) string {
	var all []runtime.Message
	for _, msgs := range messages {
		for _, msg := range msgs {
			if msg.Type == "error" || msg.Type == "warning" {
				all = append(all, msg)
			}
		}
	}
	if len(all) == 0 {
		return ""
	}
	slices.SortStableFunc(all, func(a, b runtime.Message) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	if len(all) > maxMessages {
		all = all[len(all)-maxMessages:]
	}

	var b strings.Builder
	for _, msg := range all {
		style := warningStyle
		if msg.Type == "error" {
			style = errorStyle
		}
		b.WriteString(style.Render(truncate(fmt.Sprintf("[%s] %s", msg.NodeID, msg.Message), width)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderHelp() string {
	var keys []string
	switch {
	case m.cancelling:
		keys = append(keys, mutedStyle.Render("cancelling…"))
	case !m.finished && m.cancel != nil:
		keys = append(keys, helpKeyStyle.Render("c")+" cancel")
	}
	keys = append(keys, helpKeyStyle.Render("q")+" quit")
	return helpBarStyle.Render(strings.Join(keys, " • "))
}

// truncate cuts s to width terminal columns. A width of zero, before the
// first window size message, leaves s alone.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	return ansi.Truncate(s, width, "…")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
