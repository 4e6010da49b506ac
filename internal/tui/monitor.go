// internal/tui/monitor.go
//
// Terminal monitor for running optimiser sets. It uses bubbletea, which
// follows The Elm Architecture: the Model holds state, Update reacts to
// messages, View renders the state to a string.
//
// The monitor is read-only. It polls the persisted optimiser states and
// tails the run journal, so it can be started and stopped independently of
// the process doing the actual optimisation.

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/config"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/journal"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/optimiser"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/resonator"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/seq"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/units"
)

const (
	refreshInterval = 2 * time.Second
	journalLines    = 8
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	convergedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	journalStyle   = lipgloss.NewStyle().Faint(true)
	helpStyle      = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

// OptimiserStatus is one row of the monitor table.
type OptimiserStatus struct {
	Name      string
	Metric    string
	Batches   int
	LastParam float64
	LastOut   float64
	HasOutput bool
	Desired   float64
	Converged bool
}

// StatusSource fetches the current optimiser statuses.
type StatusSource func() ([]OptimiserStatus, error)

// RepositoryStatuses builds a StatusSource reading persisted state for the
// configured optimisers.
func RepositoryStatuses(cfgs []config.OptimiserConfig, repo *optimiser.Repository) StatusSource {
	return func() ([]OptimiserStatus, error) {
		statuses := make([]OptimiserStatus, 0, len(cfgs))
		for _, oc := range cfgs {
			status := OptimiserStatus{Name: oc.Name, Metric: oc.Metric, Desired: oc.Desired}
			state, err := repo.Load(oc.Name)
			if err == nil {
				status.Batches = len(state.Batches)
				status.Converged = state.Converged
				if n := len(state.Batches); n > 0 {
					last := state.Batches[n-1]
					status.LastParam = last.ParamValue
					if last.OutputValue != nil {
						status.LastOut = *last.OutputValue
						status.HasOutput = true
					}
				}
			}
			statuses = append(statuses, status)
		}
		return statuses, nil
	}
}

type tickMsg time.Time

type refreshMsg struct {
	statuses []OptimiserStatus
	journal  []string
	err      error
}

// Model is the monitor's bubbletea model.
type Model struct {
	source   StatusSource
	journal  *journal.Journal
	spinner  spinner.Model
	statuses []OptimiserStatus
	tail     []string
	err      error
	quitting bool
}

// NewModel builds the monitor over a status source and an optional journal.
func NewModel(source StatusSource, j *journal.Journal) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle
	return Model{
		source:  source,
		journal: j,
		spinner: sp,
	}
}

// Init kicks off the spinner and the first refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Msg {
	msg := refreshMsg{}
	if m.source != nil {
		msg.statuses, msg.err = m.source()
	}
	if m.journal != nil {
		msg.journal, _ = m.journal.Tail(journalLines)
	}
	return msg
}

// Update reacts to key presses, refresh results and timer ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh, tick())

	case refreshMsg:
		m.err = msg.err
		if msg.err == nil {
			m.statuses = msg.statuses
			m.tail = msg.journal
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the status table plus the journal tail.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("sonnetsuiteshelper · optimiser monitor"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
	}

	if len(m.statuses) == 0 {
		b.WriteString(m.spinner.View())
		b.WriteString(" waiting for optimiser state...\n")
	} else {
		nameWidth := nameColumnWidth(m.statuses)
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-*s  %7s  %14s  %14s  %14s  %s",
			nameWidth, "OPTIMISER", "BATCHES", "LAST PARAM", "LAST OUTPUT", "DESIRED", "STATE")))
		b.WriteString("\n")
		for _, st := range m.statuses {
			state := m.spinner.View() + " running"
			style := pendingStyle
			if st.Converged {
				state = "converged"
				style = convergedStyle
			}
			lastOut := "-"
			if st.HasOutput {
				lastOut = FormatMeasurement(st.Metric, st.LastOut)
			}
			b.WriteString(fmt.Sprintf("%-*s  %7d  %14g  %14s  %14s  %s\n",
				nameWidth, st.Name, st.Batches, st.LastParam, lastOut,
				FormatMeasurement(st.Metric, st.Desired), style.Render(state)))
		}
	}

	if len(m.tail) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("RECENT ACTIVITY"))
		b.WriteString("\n")
		for _, line := range m.tail {
			b.WriteString(journalStyle.Render(line))
			b.WriteString("\n")
		}
	}

	b.WriteString(helpStyle.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}

// FormatMeasurement renders frequency-like metrics with an SI prefix and the
// dimensionless quality factors plainly.
func FormatMeasurement(metric string, value float64) string {
	switch resonator.Metric(metric) {
	case resonator.MetricF0, resonator.MetricBW3:
		return units.SIFormat(value, "Hz", 3)
	default:
		return fmt.Sprintf("%g", value)
	}
}

// nameColumnWidth sizes the name column to the longest optimiser name.
func nameColumnWidth(statuses []OptimiserStatus) int {
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, st.Name)
	}
	longest, err := seq.Longest(names)
	if err != nil {
		return len("OPTIMISER")
	}
	if len(longest) < len("OPTIMISER") {
		return len("OPTIMISER")
	}
	return len(longest)
}

// Run starts the monitor program and blocks until the user quits.
func Run(source StatusSource, j *journal.Journal) error {
	_, err := tea.NewProgram(NewModel(source, j), tea.WithAltScreen()).Run()
	return err
}
