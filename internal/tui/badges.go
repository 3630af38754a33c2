// internal/tui/badges.go
package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle  = lipgloss.NewStyle().Faint(true)
	valueStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("124")).Padding(0, 1)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	barFull     = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	barEmpty    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	statusChips = map[string]lipgloss.Style{
		"healthy":   lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("34")).Padding(0, 1),
		"warning":   lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("178")).Padding(0, 1),
		"unknown":   lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Background(lipgloss.Color("236")).Padding(0, 1),
		"running":   lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("33")).Padding(0, 1),
		"completed": lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("34")).Padding(0, 1),
		"failed":    lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Padding(0, 1),
	}
)

// renderMonitoringBadge returns a badge for the collection state.
func renderMonitoringBadge(on bool) string {
	label := "Monitoring: off"
	bg := lipgloss.Color("236")
	if on {
		label = "Monitoring: on"
		bg = lipgloss.Color("229")
	}
	return lipgloss.NewStyle().Background(bg).Foreground(lipgloss.Color("0")).Padding(0, 1).Render(label)
}

// renderChip renders a status word with its color, falling back to the neutral style.
func renderChip(status string) string {
	style, ok := statusChips[status]
	if !ok {
		style = statusChips["unknown"]
	}
	return style.Render(status)
}

// renderBar draws a fixed-width progress bar for a 0-100 percentage.
func renderBar(percent float64, width int) string {
	if width < 1 {
		width = 1
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	return barFull.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %5.1f%%", percent)
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
