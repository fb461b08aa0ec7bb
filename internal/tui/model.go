package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"envbench/internal/stats"
	"envbench/internal/sweep"
)

const (
	tickInterval = 200 * time.Millisecond
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")).MarginBottom(1)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	subtle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type tickMsg time.Time

// Model is the live view of a running sweep: trial progress plus
// cumulative latency stats.
type Model struct {
	Sweep     *sweep.Sweep
	Config    sweep.Config
	Live      *stats.Live
	Progress  progress.Model
	StartTime time.Time
	Quitting  bool
	Width     int
	Height    int
}

func NewModel(s *sweep.Sweep, cfg sweep.Config, live *stats.Live) Model {
	return Model{
		Sweep:     s,
		Config:    cfg,
		Live:      live,
		Progress:  progress.New(progress.WithDefaultGradient()),
		StartTime: time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.Quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		total := m.Sweep.TotalTrials()
		completed := m.Sweep.Completed()
		pct := float64(completed) / float64(total)

		cmd := m.Progress.SetPercent(pct)

		if completed >= total {
			m.Quitting = true
			return m, tea.Quit
		}

		return m, tea.Batch(cmd, tickCmd())

	case progress.FrameMsg:
		progressModel, cmd := m.Progress.Update(msg)
		m.Progress = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.Quitting {
		return "Safe Exit.\n"
	}

	s := strings.Builder{}

	s.WriteString(titleStyle.Render("🚀 envbench Concurrency Sweep"))
	s.WriteString("\n")

	modes := make([]string, len(m.Config.Modes))
	for i, mode := range m.Config.Modes {
		modes[i] = string(mode)
	}
	s.WriteString(fmt.Sprintf("Target: %s | Modes: %s\n", m.Config.Target, strings.Join(modes, ",")))
	s.WriteString(subtle.Render(fmt.Sprintf("Trial %d/%d (Elapsed: %s)",
		m.Sweep.Completed(), m.Sweep.TotalTrials(), time.Since(m.StartTime).Round(time.Second))))
	s.WriteString("\n\n")

	snap := m.Live.Snapshot()

	failCell := fmt.Sprintf("%d", snap.Fail)
	if snap.Fail > 0 {
		failCell = errStyle.Render(failCell)
	}

	leftCol := fmt.Sprintf(
		"Sessions: %d\nSuccess:  %d\nFailures: %s\nErrRate:  %.2f%%",
		snap.Sessions, snap.Success, failCell, m.Live.ErrorRate(),
	)

	rightCol := fmt.Sprintf(
		"Latency (Total)\n  P50: %.0f ms\n  P99: %.0f ms\n  Max: %d ms",
		snap.P50Ms, snap.P99Ms, snap.MaxMs,
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(30).Render(leftCol),
		lipgloss.NewStyle().Width(30).Render(rightCol),
	))

	s.WriteString("\n\n")
	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	s.WriteString(subtle.Render("Press q to quit"))

	return s.String()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
