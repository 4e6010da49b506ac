package sparam

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/units"
)

const twoPortCSV = `resonator_v1.son exported data
Run 1: two port simulation
Frequency (GHz),RE[S11],IM[S11],RE[S12],IM[S12],RE[S21],IM[S21],RE[S22],IM[S22]
2.000,0.1,0.0,0.0,0.0,0.6,0.8,0.1,0.0
2.001,0.2,0.0,0.0,0.0,0.3,0.4,0.2,0.0
2.002,0.3,0.0,0.0,0.0,0.6,0.8,0.3,0.0
`

func TestParseSpreadsheetSkipsHeaders(t *testing.T) {
	data, err := ParseSpreadsheet(strings.NewReader(twoPortCSV), "resonator_v1.csv", 2, units.GHz)
	if err != nil {
		t.Fatalf("ParseSpreadsheet: %v", err)
	}
	if data.Points() != 3 {
		t.Fatalf("expected 3 data rows, got %d", data.Points())
	}
	freqs := data.FreqsHz()
	if math.Abs(freqs[0]-2.0e9) > 1 {
		t.Fatalf("expected first freq 2 GHz in Hz, got %v", freqs[0])
	}
}

func TestMagAndMagDB(t *testing.T) {
	data, err := ParseSpreadsheet(strings.NewReader(twoPortCSV), "resonator_v1.csv", 2, units.GHz)
	if err != nil {
		t.Fatalf("ParseSpreadsheet: %v", err)
	}
	mags, err := data.Mag(2, 1)
	if err != nil {
		t.Fatalf("Mag: %v", err)
	}
	// |0.6 + 0.8i| = 1.0, |0.3 + 0.4i| = 0.5
	if math.Abs(mags[0]-1.0) > 1e-12 || math.Abs(mags[1]-0.5) > 1e-12 {
		t.Fatalf("unexpected magnitudes: %v", mags)
	}
	db, err := data.MagDB(2, 1)
	if err != nil {
		t.Fatalf("MagDB: %v", err)
	}
	if math.Abs(db[0]) > 1e-9 {
		t.Fatalf("expected 0 dB for unit magnitude, got %v", db[0])
	}
	if math.Abs(db[1]-20*math.Log10(0.5)) > 1e-9 {
		t.Fatalf("unexpected dB value: %v", db[1])
	}
}

func TestMinMagDBFreq(t *testing.T) {
	data, err := ParseSpreadsheet(strings.NewReader(twoPortCSV), "resonator_v1.csv", 2, units.GHz)
	if err != nil {
		t.Fatalf("ParseSpreadsheet: %v", err)
	}
	f0, err := data.MinMagDBFreq(2, 1)
	if err != nil {
		t.Fatalf("MinMagDBFreq: %v", err)
	}
	if math.Abs(f0-2.001e9) > 1 {
		t.Fatalf("expected dip at 2.001 GHz, got %v Hz", f0)
	}
}

func TestPortRangeChecks(t *testing.T) {
	data, err := ParseSpreadsheet(strings.NewReader(twoPortCSV), "resonator_v1.csv", 2, units.GHz)
	if err != nil {
		t.Fatalf("ParseSpreadsheet: %v", err)
	}
	if _, err := data.Mag(3, 1); !errors.Is(err, ErrUnknownPort) {
		t.Fatalf("expected ErrUnknownPort, got %v", err)
	}
	if _, err := data.Mag(1, 0); !errors.Is(err, ErrUnknownPort) {
		t.Fatalf("expected ErrUnknownPort, got %v", err)
	}
}

func TestParseSpreadsheetRejectsShortRows(t *testing.T) {
	csv := "Frequency (GHz),RE[S11],IM[S11]\n2.0,0.5,0.1\n"
	if _, err := ParseSpreadsheet(strings.NewReader(csv), "bad.csv", 2, units.GHz); err == nil {
		t.Fatal("expected error for short data rows")
	}
}

func TestParseSpreadsheetNoData(t *testing.T) {
	csv := "only,a,header\n"
	if _, err := ParseSpreadsheet(strings.NewReader(csv), "empty.csv", 2, units.GHz); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestLoaderCachesByModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	if err := os.WriteFile(path, []byte(twoPortCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := NewLoader()
	first, err := loader.Load(path, 2, units.GHz)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := loader.Load(path, 2, units.GHz)
	if err != nil {
		t.Fatalf("Load (cached): %v", err)
	}
	if first != second {
		t.Fatal("expected cached *Data instance on unchanged file")
	}
}
