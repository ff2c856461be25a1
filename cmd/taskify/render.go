package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/example/taskify/domain/task"
	"github.com/example/taskify/taskstore"
)

const (
	shortIDLength = 8
	columnWidth   = 28
	dueLayout     = "Jan 2 15:04"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	columnStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1).Width(columnWidth)
	columnTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	cardTitle     = lipgloss.NewStyle().Bold(true)
	completeTitle = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("244"))

	priorityStyles = map[task.Priority]lipgloss.Style{
		task.PriorityUrgent: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		task.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		task.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	}
)

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func priorityLabel(p task.Priority) string {
	p = p.OrDefault()
	style, ok := priorityStyles[p]
	if !ok {
		return string(p)
	}
	return style.Render(string(p))
}

func dueLabel(due *time.Time, now time.Time, loc *time.Location) string {
	if due == nil {
		return "-"
	}
	label := due.In(loc).Format(dueLayout)
	if due.Before(now) {
		return overdueStyle.Render(label)
	}
	return label
}

// formatTaskTable renders tasks one per line, newest first.
func formatTaskTable(tasks []task.Task, now time.Time, loc *time.Location) string {
	if len(tasks) == 0 {
		return "No tasks found.\n"
	}

	headers := []string{"ID", "STATUS", "PRIORITY", "DUE", "TITLE"}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		title := t.Title
		if t.Completed() {
			title = completeTitle.Render(title)
		}
		rows = append(rows, []string{
			idStyle.Render(shortID(t.ID)),
			t.Status.OrDefault().Title(),
			priorityLabel(t.Priority),
			dueLabel(t.DueDate, now, loc),
			title,
		})
	}

	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = lipgloss.Width(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			b.WriteString(cell)
			if i == len(cells)-1 {
				b.WriteByte('\n')
				continue
			}
			b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
		}
	}

	styled := make([]string, len(headers))
	for i, header := range headers {
		styled[i] = headerStyle.Render(header)
	}
	writeRow(styled)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

// renderBoard draws the four status columns side by side.
func renderBoard(columns []taskstore.Column, now time.Time, loc *time.Location) string {
	rendered := make([]string, 0, len(columns))
	for _, column := range columns {
		var b strings.Builder
		b.WriteString(columnTitle.Render(fmt.Sprintf("%s (%d)", column.Title, len(column.Tasks))))
		if len(column.Tasks) == 0 {
			b.WriteString("\n")
			b.WriteString(mutedStyle.Render("empty"))
		}
		for _, t := range column.Tasks {
			b.WriteString("\n\n")
			b.WriteString(renderCard(t, now, loc))
		}
		rendered = append(rendered, columnStyle.Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func renderCard(t task.Task, now time.Time, loc *time.Location) string {
	title := cardTitle.Render(t.Title)
	if t.Completed() {
		title = completeTitle.Render(t.Title)
	}
	lines := []string{
		title,
		idStyle.Render(shortID(t.ID)) + " " + priorityLabel(t.Priority),
	}
	if t.Description != "" {
		lines = append(lines, mutedStyle.Render(t.Description))
	}
	if t.DueDate != nil {
		lines = append(lines, "due "+dueLabel(t.DueDate, now, loc))
	}
	return strings.Join(lines, "\n")
}

// describeChange is the one-line summary watch prints per feed event.
func describeChange(before, after []task.Task) []string {
	old := make(map[string]task.Task, len(before))
	for _, t := range before {
		old[t.ID] = t
	}

	var lines []string
	seen := make(map[string]bool, len(after))
	for _, t := range after {
		seen[t.ID] = true
		prev, ok := old[t.ID]
		switch {
		case !ok:
			lines = append(lines, fmt.Sprintf("+ %s %s", shortID(t.ID), t.Title))
		case prev.Status.OrDefault() != t.Status.OrDefault():
			lines = append(lines, fmt.Sprintf("~ %s %s: %s -> %s", shortID(t.ID), t.Title,
				prev.Status.OrDefault().Title(), t.Status.OrDefault().Title()))
		case prev.Title != t.Title || prev.Description != t.Description ||
			prev.Priority != t.Priority || !sameDue(prev.DueDate, t.DueDate):
			lines = append(lines, fmt.Sprintf("~ %s %s", shortID(t.ID), t.Title))
		}
	}
	for _, t := range before {
		if !seen[t.ID] {
			lines = append(lines, fmt.Sprintf("- %s %s", shortID(t.ID), t.Title))
		}
	}
	return lines
}

func sameDue(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
