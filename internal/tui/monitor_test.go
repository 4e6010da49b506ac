package tui

import (
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/config"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/optimiser"
)

func TestRepositoryStatuses(t *testing.T) {
	repo := optimiser.NewRepository(filepath.Join(t.TempDir(), "state"))
	out := 4.52e9
	if err := repo.Save(optimiser.State{
		Name:      "resonator-f0",
		Param:     "length",
		Desired:   4.5e9,
		Converged: true,
		Batches: []optimiser.BatchRecord{
			{Number: 1, ParamValue: 250, OutputValue: &out},
		},
	}); err != nil {
		t.Fatal(err)
	}

	cfgs := []config.OptimiserConfig{
		{Name: "resonator-f0", Desired: 4.5e9},
		{Name: "never-ran", Desired: 2e9},
	}
	statuses, err := RepositoryStatuses(cfgs, repo)()
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses", len(statuses))
	}
	ran := statuses[0]
	if !ran.Converged || ran.Batches != 1 || !ran.HasOutput || ran.LastOut != out {
		t.Fatalf("unexpected status %+v", ran)
	}
	if statuses[1].Batches != 0 || statuses[1].Converged {
		t.Fatalf("expected empty status for never-ran, got %+v", statuses[1])
	}
}

func TestUpdateQuitKeys(t *testing.T) {
	m := NewModel(nil, nil)
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
		if key != "q" {
			// esc and ctrl+c arrive as dedicated key types
			switch key {
			case "esc":
				updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
			case "ctrl+c":
				updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
			}
		}
		if cmd == nil {
			t.Fatalf("key %q did not produce a quit command", key)
		}
		if !updated.(Model).quitting {
			t.Fatalf("key %q did not mark the model quitting", key)
		}
	}
}

func TestViewRendersStatuses(t *testing.T) {
	m := NewModel(nil, nil)
	updated, _ := m.Update(refreshMsg{statuses: []OptimiserStatus{
		{Name: "resonator-f0", Metric: "f0", Batches: 3, LastParam: 250.5, LastOut: 4.52e9, HasOutput: true, Desired: 4.5e9, Converged: true},
		{Name: "feedline-bw", Metric: "three_dB_BW", Batches: 1, LastParam: 12, Desired: 2.1e8},
	}})
	view := updated.(Model).View()

	for _, want := range []string{"resonator-f0", "feedline-bw", "converged", "4.520 GHz", "4.500 GHz", "OPTIMISER"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if !strings.Contains(view, "-") {
		t.Fatalf("view should show a placeholder for missing outputs:\n%s", view)
	}
}

func TestFormatMeasurement(t *testing.T) {
	if got := FormatMeasurement("f0", 4.52e9); got != "4.520 GHz" {
		t.Fatalf("f0: got %q", got)
	}
	if got := FormatMeasurement("QC", 125000); got != "125000" {
		t.Fatalf("QC: got %q", got)
	}
}

func TestViewBeforeFirstRefresh(t *testing.T) {
	view := NewModel(nil, nil).View()
	if !strings.Contains(view, "waiting for optimiser state") {
		t.Fatalf("unexpected initial view:\n%s", view)
	}
}
