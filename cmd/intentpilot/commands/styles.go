package commands

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#1F6FEB")).
			Padding(0, 1).
			MarginBottom(1)

	colHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1F6FEB")).
			Bold(true).
			MarginRight(1)

	cellStyle = lipgloss.NewStyle().MarginRight(1)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sepStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)

	stateColors = map[string]lipgloss.Color{
		"COMPLETED":           lipgloss.Color("#2E8B57"),
		"ACTIONS_IN_PROGRESS": lipgloss.Color("#1F6FEB"),
		"AWAITING_DECISIONS":  lipgloss.Color("#BF8700"),
		"CREATED":             lipgloss.Color("241"),
	}
)

// column is one fixed-width table column.
type column struct {
	title string
	width int
}

// table renders rows under a styled header, truncating cells to fit.
func table(title string, cols []column, rows [][]string, color func(col int, cell string) lipgloss.Style) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n")

	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = colHeaderStyle.Width(c.width).Render(c.title)
	}
	sb.WriteString("  " + lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n")

	for i, c := range cols {
		cells[i] = sepStyle.Render(strings.Repeat("─", c.width))
	}
	sb.WriteString("  " + lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n")

	for _, row := range rows {
		for i, c := range cols {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			style := cellStyle
			if color != nil {
				style = color(i, value)
			}
			cells[i] = style.Width(c.width).Render(truncate(value, c.width))
		}
		sb.WriteString("  " + lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n")
	}
	return sb.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
