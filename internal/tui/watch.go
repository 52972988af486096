package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Snapshot is one poll of the daemon's state.
type Snapshot struct {
	Status        string
	Recording     bool
	Written       string
	Dropped       string
	Rejected      string
	Transcription string
	Transcript    string
}

type statusMsg struct {
	snap Snapshot
	err  error
}

type tickMsg time.Time

type watchModel struct {
	fetch    func() (Snapshot, error)
	interval time.Duration
	spinner  spinner.Model
	snap     Snapshot
	err      error
	width    int
}

func newWatchModel(fetch func() (Snapshot, error), interval time.Duration) watchModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(ColorSecondary)
	return watchModel{fetch: fetch, interval: interval, spinner: s}
}

func (m watchModel) poll() tea.Msg {
	snap, err := m.fetch()
	return statusMsg{snap: snap, err: err}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case statusMsg:
		m.snap, m.err = msg.snap, msg.err
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
	case tickMsg:
		return m, m.poll
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(Logo())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(StyleError.Render("daemon unreachable: " + m.err.Error()))
		b.WriteString("\n\n")
		b.WriteString(StyleSubtle.Render("q to quit"))
		return b.String()
	}
	if m.snap.Status == "" {
		b.WriteString(m.spinner.View() + " connecting...\n")
		return b.String()
	}

	switch {
	case m.snap.Recording:
		b.WriteString(StyleRecording.Render("● REC"))
	case m.snap.Status == "listening":
		b.WriteString(StyleListening.Render("listening"))
	default:
		b.WriteString(StyleMuted.Render(m.snap.Status))
	}
	b.WriteString(" ")
	b.WriteString(StyleMuted.Render(fmt.Sprintf("written %s • dropped %s • rejected %s",
		orDash(m.snap.Written), orDash(m.snap.Dropped), orDash(m.snap.Rejected))))
	b.WriteString("\n\n")

	b.WriteString(StyleLabel.Render("Transcript"))
	if m.snap.Transcription == "recognizing" {
		b.WriteString(" " + m.spinner.View())
	} else if m.snap.Transcription != "" {
		b.WriteString(" " + StyleSubtle.Render("("+m.snap.Transcription+")"))
	}
	b.WriteString("\n")

	text := m.snap.Transcript
	if text == "" {
		text = StyleSubtle.Render("nothing yet")
	}
	box := StyleBox
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	b.WriteString(box.Render(text))
	b.WriteString("\n")
	b.WriteString(StyleSubtle.Render("q to quit"))
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Watch shows a live view of the daemon, polling fetch every interval
// until the user quits.
func Watch(fetch func() (Snapshot, error), interval time.Duration) error {
	_, err := tea.NewProgram(newWatchModel(fetch, interval)).Run()
	return err
}
