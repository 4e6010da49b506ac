package optimiser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/config"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/strategy"
)

const baseProject = `FTYP SONPROJ 3 ! Circuit Project File
VER 16.52
HEADER
END HEADER
VALVAR length LNG 250 "Dim. Param."
CONTROL
SPEED 1
END CONTROL
`

// writeBaseFile drops a minimal project file into dir and returns its path.
func writeBaseFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "resonator.son")
	if err := os.WriteFile(path, []byte(baseProject), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeDipCSV writes a two-port spreadsheet whose |S21| dips at f0GHz.
func writeDipCSV(t *testing.T, path string, f0GHz float64) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("resonator.son exported data\n")
	sb.WriteString("Frequency (GHz),RE[S11],IM[S11],RE[S12],IM[S12],RE[S21],IM[S21],RE[S22],IM[S22]\n")
	for i := -1; i <= 1; i++ {
		mag := 1.0
		if i == 0 {
			mag = 0.25
		}
		f := f0GHz + float64(i)*0.01
		fmt.Fprintf(&sb, "%.6f,0.9,0.0,0.0,0.0,%.6f,0.0,0.9,0.0\n", f, mag)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(dir string) config.OptimiserConfig {
	return config.OptimiserConfig{
		Name:             "resonator-f0",
		BaseFile:         filepath.Join(dir, "resonator.son"),
		Param:            "length",
		Metric:           "f0",
		Desired:          4.5e9,
		TolerancePercent: 1,
		Correlation:      -1,
		Strategy:         "percent-scale",
		MeshSize:         0.5,
		MaxBatches:       5,
		Ports:            2,
		FreqUnit:         "GHz",
	}
}

func newTestOptimiser(t *testing.T, dir string, cfg config.OptimiserConfig) *Optimiser {
	t.Helper()
	files := &FileManager{
		BaseFile:   cfg.BaseFile,
		BatchesDir: filepath.Join(dir, "batches"),
		OutputsDir: filepath.Join(dir, "outputs"),
		Name:       cfg.Name,
	}
	if err := os.MkdirAll(files.OutputsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	o, err := New(cfg, NewRepository(filepath.Join(dir, "state")), files,
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "state"))
	if _, err := repo.Load("missing"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load error = %v, want ErrStateNotFound", err)
	}

	out := 4.6e9
	state := State{
		Name:    "resonator-f0",
		Param:   "length",
		Desired: 4.5e9,
		Batches: []BatchRecord{
			{Number: 1, ParamValue: 250, SonFile: "batch_1__resonator-f0_length_250.son", OutputValue: &out},
			{Number: 2, ParamValue: 251, SonFile: "batch_2__resonator-f0_length_251.son"},
		},
	}
	if err := repo.Save(state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := repo.Load("resonator-f0")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Batches) != 2 {
		t.Fatalf("loaded %d batches, want 2", len(loaded.Batches))
	}
	if loaded.Batches[0].OutputValue == nil || *loaded.Batches[0].OutputValue != out {
		t.Fatalf("batch 1 output not round-tripped: %+v", loaded.Batches[0])
	}
	pending := loaded.Pending()
	if pending == nil || pending.Number != 2 {
		t.Fatalf("Pending = %+v, want batch 2", pending)
	}
}

func TestFileManagerNaming(t *testing.T) {
	fm := &FileManager{
		BaseFile:   "/proj/resonator.son",
		BatchesDir: "/proj/.sonnethelper/batches",
		OutputsDir: "/proj/.sonnethelper/outputs",
		Name:       "resonator-f0",
	}
	stem := fm.BatchStem(3, "length", 250.5)
	if stem != "batch_3__resonator-f0_length_250.5" {
		t.Fatalf("BatchStem = %q", stem)
	}
	out := fm.OutputPath("/proj/.sonnethelper/batches/" + stem + ".son")
	want := "/proj/.sonnethelper/outputs/" + stem + ".csv"
	if out != want {
		t.Fatalf("OutputPath = %q, want %q", out, want)
	}
}

func TestPrepareBatchStartsFromBaseValue(t *testing.T) {
	dir := t.TempDir()
	writeBaseFile(t, dir)
	o := newTestOptimiser(t, dir, testConfig(dir))

	state, err := o.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	state, record, err := o.PrepareBatch(state)
	if err != nil {
		t.Fatalf("PrepareBatch: %v", err)
	}
	if record.ParamValue != 250 {
		t.Fatalf("first batch value = %v, want the base file's 250", record.ParamValue)
	}
	if record.Number != 1 {
		t.Fatalf("first batch number = %d", record.Number)
	}
	data, err := os.ReadFile(record.SonFile)
	if err != nil {
		t.Fatalf("generated file missing: %v", err)
	}
	if !strings.Contains(string(data), `VALVAR length LNG 250 "Dim. Param."`) {
		t.Fatalf("generated file lost the parameter line:\n%s", data)
	}
	if state.Pending() == nil {
		t.Fatal("expected a pending batch after PrepareBatch")
	}

	// A second call must resume the pending batch, not mint a new one.
	state, again, err := o.PrepareBatch(state)
	if err != nil {
		t.Fatalf("PrepareBatch resume: %v", err)
	}
	if again.Number != record.Number || again.SonFile != record.SonFile {
		t.Fatalf("resume produced a different batch: %+v vs %+v", again, record)
	}
	if len(state.Batches) != 1 {
		t.Fatalf("resume appended a batch: %d", len(state.Batches))
	}
}

func TestRecordOutputConverges(t *testing.T) {
	dir := t.TempDir()
	writeBaseFile(t, dir)
	o := newTestOptimiser(t, dir, testConfig(dir))

	state, err := o.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	state, record, err := o.PrepareBatch(state)
	if err != nil {
		t.Fatalf("PrepareBatch: %v", err)
	}

	outputFile := o.Files().OutputPath(record.SonFile)
	writeDipCSV(t, outputFile, 4.5)

	state, value, err := o.RecordOutput(state, outputFile)
	if err != nil {
		t.Fatalf("RecordOutput: %v", err)
	}
	if value != 4.5e9 {
		t.Fatalf("measured f0 = %v, want 4.5e9", value)
	}
	if !state.Converged {
		t.Fatal("expected converged state within 1% of the target")
	}

	// State survives a reload.
	reloaded, err := o.Load()
	if err != nil {
		t.Fatalf("Load after record: %v", err)
	}
	if !reloaded.Converged || reloaded.Pending() != nil {
		t.Fatalf("reloaded state out of sync: %+v", reloaded)
	}
}

func TestPrepareBatchClampsToBounds(t *testing.T) {
	dir := t.TempDir()
	writeBaseFile(t, dir)
	cfg := testConfig(dir)
	max := 260.0
	cfg.Max = &max
	o := newTestOptimiser(t, dir, cfg)

	state, err := o.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	state, record, err := o.PrepareBatch(state)
	if err != nil {
		t.Fatalf("PrepareBatch: %v", err)
	}
	// Output well above the target; negative correlation pushes the
	// parameter up hard, into the clamp.
	writeDipCSV(t, o.Files().OutputPath(record.SonFile), 5.0)
	state, _, err = o.RecordOutput(state, o.Files().OutputPath(record.SonFile))
	if err != nil {
		t.Fatalf("RecordOutput: %v", err)
	}
	if state.Converged {
		t.Fatal("unexpected convergence")
	}

	state, record, err = o.PrepareBatch(state)
	if err != nil {
		t.Fatalf("PrepareBatch: %v", err)
	}
	if record.ParamValue != max {
		t.Fatalf("second batch value = %v, want clamp at %v", record.ParamValue, max)
	}

	// Hitting the same clamp again means the run is stuck.
	writeDipCSV(t, o.Files().OutputPath(record.SonFile), 5.0)
	if state, _, err = o.RecordOutput(state, o.Files().OutputPath(record.SonFile)); err != nil {
		t.Fatalf("RecordOutput: %v", err)
	}
	if _, _, err = o.PrepareBatch(state); !errors.Is(err, strategy.ErrExhausted) {
		t.Fatalf("PrepareBatch error = %v, want ErrExhausted", err)
	}
}

func TestConverged(t *testing.T) {
	dir := t.TempDir()
	writeBaseFile(t, dir)
	o := newTestOptimiser(t, dir, testConfig(dir))

	cases := []struct {
		value float64
		want  bool
	}{
		{4.5e9, true},
		{4.5e9 * 1.009, true},
		{4.5e9 * 0.991, true},
		{4.5e9 * 1.02, false},
		{4.5e9 * 0.98, false},
	}
	for _, tc := range cases {
		if got := o.Converged(tc.value); got != tc.want {
			t.Fatalf("Converged(%v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestClosest(t *testing.T) {
	dir := t.TempDir()
	writeBaseFile(t, dir)
	o := newTestOptimiser(t, dir, testConfig(dir))

	if _, ok := o.Closest(State{}); ok {
		t.Fatal("Closest reported a best batch for an empty history")
	}

	far, near := 5.0e9, 4.6e9
	state := State{Batches: []BatchRecord{
		{Number: 1, ParamValue: 250, OutputValue: &far},
		{Number: 2, ParamValue: 260, OutputValue: &near},
		{Number: 3, ParamValue: 270},
	}}
	best, ok := o.Closest(state)
	if !ok || best.Number != 2 {
		t.Fatalf("Closest = %+v ok=%v, want batch 2", best, ok)
	}
}

// copyRunner fakes a solver by writing a converging spreadsheet for every
// batch it is asked to run.
type copyRunner struct {
	t     *testing.T
	f0GHz float64
	runs  int
}

func (r *copyRunner) Run(_ context.Context, sonFile, outputFile string) error {
	r.runs++
	writeDipCSV(r.t, outputFile, r.f0GHz)
	return nil
}

func TestSetRunConverges(t *testing.T) {
	dir := t.TempDir()
	writeBaseFile(t, dir)
	o := newTestOptimiser(t, dir, testConfig(dir))

	runner := &copyRunner{t: t, f0GHz: 4.5}
	set := &Set{Optimisers: []*Optimiser{o}, Runner: runner, Parallel: 2}
	results, err := set.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	res := results[0]
	if res.Err != nil {
		t.Fatalf("result error: %v", res.Err)
	}
	if !res.Converged || res.Batches != 1 || runner.runs != 1 {
		t.Fatalf("unexpected result %+v after %d runs", res, runner.runs)
	}
	if !res.HasBest || res.Best.Number != 1 {
		t.Fatalf("best batch not reported: %+v", res)
	}
}

func TestSetRunStallsOnBudget(t *testing.T) {
	dir := t.TempDir()
	writeBaseFile(t, dir)
	cfg := testConfig(dir)
	cfg.MaxBatches = 2
	o := newTestOptimiser(t, dir, cfg)

	// The solver never reaches the target, so the budget runs out.
	runner := &copyRunner{t: t, f0GHz: 6.0}
	set := &Set{Optimisers: []*Optimiser{o}, Runner: runner}
	results, err := set.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := results[0]
	if res.Err != nil {
		t.Fatalf("result error: %v", res.Err)
	}
	if res.Converged || res.Batches != 2 || runner.runs != 2 {
		t.Fatalf("unexpected result %+v after %d runs", res, runner.runs)
	}
}
