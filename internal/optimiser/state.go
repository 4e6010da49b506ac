package optimiser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrStateNotFound is returned when no persisted optimiser state exists yet.
var ErrStateNotFound = errors.New("optimiser: state not found")

// BatchRecord is one generated simulation in an optimiser run. OutputValue
// stays nil until the batch has been simulated and analysed.
type BatchRecord struct {
	Number      int      `yaml:"number"`
	ParamValue  float64  `yaml:"param_value"`
	SonFile     string   `yaml:"son_file"`
	OutputFile  string   `yaml:"output_file,omitempty"`
	OutputValue *float64 `yaml:"output_value,omitempty"`
}

// State is the persisted history of one optimiser. It survives process
// restarts so runs can be resumed mid-batch.
type State struct {
	Name      string        `yaml:"name"`
	Param     string        `yaml:"param"`
	Desired   float64       `yaml:"desired"`
	Converged bool          `yaml:"converged"`
	Batches   []BatchRecord `yaml:"batches"`
	UpdatedAt time.Time     `yaml:"updated_at"`
}

// Pending returns the most recent batch that has been generated but not yet
// analysed, or nil when every batch is complete.
func (s *State) Pending() *BatchRecord {
	if len(s.Batches) == 0 {
		return nil
	}
	last := &s.Batches[len(s.Batches)-1]
	if last.OutputValue == nil {
		return last
	}
	return nil
}

// ParamValues lists the parameter values of the completed batches in order.
func (s *State) ParamValues() []float64 {
	values := make([]float64, 0, len(s.Batches))
	for _, b := range s.Batches {
		if b.OutputValue != nil {
			values = append(values, b.ParamValue)
		}
	}
	return values
}

// OutputValues lists the measured outputs of the completed batches in order.
func (s *State) OutputValues() []float64 {
	values := make([]float64, 0, len(s.Batches))
	for _, b := range s.Batches {
		if b.OutputValue != nil {
			values = append(values, *b.OutputValue)
		}
	}
	return values
}

func (s *State) simulated(value float64) bool {
	for _, b := range s.Batches {
		if b.ParamValue == value {
			return true
		}
	}
	return false
}

// StateStore persists optimiser state snapshots.
type StateStore interface {
	Load(name string) (State, error)
	Save(State) error
}

// Repository stores one YAML state file per optimiser inside the project
// state directory.
type Repository struct {
	dir string
}

// NewRepository creates a repository rooted at the given state directory.
func NewRepository(stateDir string) *Repository {
	return &Repository{dir: stateDir}
}

func (r *Repository) path(name string) string {
	return filepath.Join(r.dir, name+".yaml")
}

// Load reads the persisted state for the named optimiser if present.
func (r *Repository) Load(name string) (State, error) {
	data, err := os.ReadFile(r.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, ErrStateNotFound
		}
		return State{}, fmt.Errorf("optimiser: read state: %w", err)
	}
	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("optimiser: parse state %s: %w", r.path(name), err)
	}
	return state, nil
}

// Save writes the optimiser state to disk.
func (r *Repository) Save(state State) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("optimiser: ensure state dir: %w", err)
	}
	encoded, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("optimiser: encode state: %w", err)
	}
	return os.WriteFile(r.path(state.Name), encoded, 0o644)
}
