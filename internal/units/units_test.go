package units

import (
	"math"
	"testing"
)

func TestConvertFreq(t *testing.T) {
	cases := []struct {
		value    float64
		from, to FreqUnit
		want     float64
	}{
		{1.0, GHz, Hz, 1e9},
		{2.5, GHz, MHz, 2500},
		{1e9, Hz, GHz, 1.0},
		{3.0, Hz, Hz, 3.0},
		{1.0, THz, KHz, 1e9},
	}
	for _, tc := range cases {
		got, err := ConvertFreq(tc.value, tc.from, tc.to)
		if err != nil {
			t.Fatalf("ConvertFreq(%v, %s, %s): %v", tc.value, tc.from, tc.to, err)
		}
		if math.Abs(got-tc.want) > math.Abs(tc.want)*1e-12 {
			t.Fatalf("ConvertFreq(%v, %s, %s) = %v, want %v", tc.value, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestConvertFreqRejectsUnknownUnit(t *testing.T) {
	if _, err := ConvertFreq(1.0, FreqUnit("parsec"), Hz); err == nil {
		t.Fatal("expected error for unknown unit")
	}
	if _, err := ParseFreqUnit("mhz"); err == nil {
		t.Fatal("expected error for badly cased unit")
	}
	unit, err := ParseFreqUnit(" GHz ")
	if err != nil {
		t.Fatalf("ParseFreqUnit: %v", err)
	}
	if unit != GHz {
		t.Fatalf("expected GHz, got %s", unit)
	}
}

func TestVoltsToDB(t *testing.T) {
	if got := VoltsToDB(1.0); got != 0 {
		t.Fatalf("VoltsToDB(1) = %v, want 0", got)
	}
	if got := VoltsToDB(0.1); math.Abs(got+20) > 1e-12 {
		t.Fatalf("VoltsToDB(0.1) = %v, want -20", got)
	}
}

func TestRoundToMesh(t *testing.T) {
	cases := []struct {
		value, mesh, want float64
	}{
		{103.2, 1.0, 103.0},
		{103.6, 1.0, 104.0},
		{103.2, 0.5, 103.0},
		{103.3, 0.5, 103.5},
		{42.0, 0, 42.0},
	}
	for _, tc := range cases {
		if got := RoundToMesh(tc.value, tc.mesh); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("RoundToMesh(%v, %v) = %v, want %v", tc.value, tc.mesh, got, tc.want)
		}
	}
}

func TestSIFormat(t *testing.T) {
	cases := []struct {
		value float64
		unit  string
		want  string
	}{
		{2.4e9, "Hz", "2.40 GHz"},
		{1.5e3, "Hz", "1.50 kHz"},
		{0.25, "m", "250.00 mm"},
		{5.0, "", "5.00 "},
	}
	for _, tc := range cases {
		if got := SIFormat(tc.value, tc.unit, 2); got != tc.want {
			t.Fatalf("SIFormat(%v, %q) = %q, want %q", tc.value, tc.unit, got, tc.want)
		}
	}
	if got := SIFormatLong(2.4e9, "Hz", 1); got != "2.4 gigaHz" {
		t.Fatalf("SIFormatLong = %q", got)
	}
}
