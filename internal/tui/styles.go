package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary   = lipgloss.Color("#0EA5E9")
	ColorSecondary = lipgloss.Color("#14B8A6")
	ColorRecord    = lipgloss.Color("#E11D48")

	ColorSuccess = lipgloss.Color("#4ADE80")
	ColorWarning = lipgloss.Color("#FBBF24")
	ColorError   = lipgloss.Color("#F87171")

	ColorText   = lipgloss.Color("#F1F5F9")
	ColorMuted  = lipgloss.Color("#A1A1AA")
	ColorSubtle = lipgloss.Color("#71717A")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

// badge renders short state labels such as REC in the live view.
func badge(bg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorText).Background(bg).Padding(0, 1)
}

var (
	StyleHeader  = fg(ColorPrimary).Bold(true).MarginBottom(1)
	StyleLabel   = fg(ColorText).Bold(true)
	StyleMuted   = fg(ColorMuted)
	StyleSubtle  = fg(ColorSubtle).Italic(true)
	StyleSuccess = fg(ColorSuccess)
	StyleWarning = fg(ColorWarning)
	StyleError   = fg(ColorError).Bold(true)

	StyleRecording = badge(ColorRecord).Bold(true)
	StyleListening = badge(ColorSecondary)

	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false).
			BorderForeground(ColorSubtle).
			Padding(0, 1)
)

const banner = `
┏━┓┏━╸┏┳┓┏━┓╺┳╸┏━╸┏━┓┏━╸┏━┓╻┏┓ ┏━╸
┣┳┛┣╸ ┃┃┃┃ ┃ ┃ ┣╸ ┗━┓┃  ┣┳┛┃┣┻┓┣╸
╹┗╸┗━╸╹ ╹┗━┛ ╹ ┗━╸┗━┛┗━╸╹┗╸╹┗━┛┗━╸`

func Logo() string {
	return StyleHeader.Render(strings.Trim(banner, "\n"))
}
