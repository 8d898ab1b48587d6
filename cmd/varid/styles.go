package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			PaddingRight(2)
	cellStyle = lipgloss.NewStyle().
			PaddingRight(2)
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
	onStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46"))
	offStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("240"))
)

// renderTable lays out rows under a header with every column padded to its widest cell.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = style.Width(widths[i] + 2).Render(cell)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}

	lines := []string{line(header, headerStyle)}
	for _, row := range rows {
		lines = append(lines, line(row, cellStyle))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// onOff renders an enabled flag.
func onOff(enabled bool) string {
	if enabled {
		return onStyle.Render("on")
	}
	return offStyle.Render("off")
}

// divider renders a horizontal rule of the given width.
func divider(width int) string {
	return dimStyle.Render(strings.Repeat("─", max(width, 1)))
}

func title(format string, args ...any) string {
	return titleStyle.Render(fmt.Sprintf(format, args...))
}
