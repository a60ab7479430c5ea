package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/nadmax/radar/internal/dashboard"
	"github.com/nadmax/radar/internal/task"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Faint(true)

	statusColors = map[task.Status]lipgloss.Color{
		task.StatusPending: lipgloss.Color("244"),
		task.StatusRunning: lipgloss.Color("33"),
		task.StatusDone:    lipgloss.Color("42"),
		task.StatusFailed:  lipgloss.Color("196"),
	}
)

func statusCell(s task.Status) string {
	color, ok := statusColors[s]
	if !ok {
		return string(s)
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(s))
}

func formatAccuracy(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func renderTasks(tasks []task.Task) string {
	if len(tasks) == 0 {
		return mutedStyle.Render("no tasks")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "STATUS", "ACCURACY", "UPDATED").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, tk := range tasks {
		t.Row(
			strconv.FormatInt(tk.ID, 10),
			tk.Name,
			statusCell(tk.Status),
			formatAccuracy(tk.Accuracy),
			tk.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}

	return t.Render()
}

func renderTask(tk *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:       %d\n", tk.ID)
	fmt.Fprintf(&b, "Name:     %s\n", tk.Name)
	fmt.Fprintf(&b, "Status:   %s\n", statusCell(tk.Status))
	fmt.Fprintf(&b, "Accuracy: %s\n", formatAccuracy(tk.Accuracy))
	fmt.Fprintf(&b, "Created:  %s\n", tk.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Updated:  %s", tk.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

	return b.String()
}

func renderStats(s *dashboard.Stats) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STATUS", "TASKS").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, status := range task.Statuses() {
		t.Row(statusCell(status), strconv.Itoa(s.TasksByStatus[string(status)]))
	}
	t.Row("Total", strconv.Itoa(s.TotalTasks))

	return t.Render() + "\nAverage accuracy: " + formatAccuracy(s.AverageAccuracy)
}
