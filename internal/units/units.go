// internal/units/units.go
//
// Frequency unit conversion, SI value formatting, and the mesh rounding
// helper shared by the analysers and the optimiser strategies.

package units

import (
	"fmt"
	"math"
	"strings"
)

// FreqUnit names a frequency unit accepted by output files and config.
type FreqUnit string

const (
	Hz  FreqUnit = "Hz"
	KHz FreqUnit = "KHz"
	MHz FreqUnit = "MHz"
	GHz FreqUnit = "GHz"
	THz FreqUnit = "THz"
	PHz FreqUnit = "PHz"
)

var freqUnitExponent = map[FreqUnit]int{
	Hz:  0,
	KHz: 3,
	MHz: 6,
	GHz: 9,
	THz: 12,
	PHz: 15,
}

// ParseFreqUnit validates a unit string from config or CLI flags.
func ParseFreqUnit(s string) (FreqUnit, error) {
	unit := FreqUnit(strings.TrimSpace(s))
	if _, ok := freqUnitExponent[unit]; !ok {
		return "", fmt.Errorf("units: unknown frequency unit %q (want one of Hz, KHz, MHz, GHz, THz, PHz)", s)
	}
	return unit, nil
}

// Valid reports whether the unit is one of the known frequency units.
func (u FreqUnit) Valid() bool {
	_, ok := freqUnitExponent[u]
	return ok
}

// ConvertFreq converts a value between frequency units.
func ConvertFreq(value float64, from, to FreqUnit) (float64, error) {
	fromExp, ok := freqUnitExponent[from]
	if !ok {
		return 0, fmt.Errorf("units: unknown frequency unit %q", from)
	}
	toExp, ok := freqUnitExponent[to]
	if !ok {
		return 0, fmt.Errorf("units: unknown frequency unit %q", to)
	}
	if from == to {
		return value, nil
	}
	return value * math.Pow10(fromExp-toExp), nil
}

// ConvertFreqs converts a slice between frequency units in one pass.
func ConvertFreqs(values []float64, from, to FreqUnit) ([]float64, error) {
	if from == to {
		out := make([]float64, len(values))
		copy(out, values)
		return out, nil
	}
	fromExp, ok := freqUnitExponent[from]
	if !ok {
		return nil, fmt.Errorf("units: unknown frequency unit %q", from)
	}
	toExp, ok := freqUnitExponent[to]
	if !ok {
		return nil, fmt.Errorf("units: unknown frequency unit %q", to)
	}
	scale := math.Pow10(fromExp - toExp)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * scale
	}
	return out, nil
}

// VoltsToDB converts a linear S-parameter magnitude into decibels.
func VoltsToDB(mag float64) float64 {
	return 20 * math.Log10(mag)
}

// RoundToMesh rounds value to the nearest multiple of the solver mesh size.
// A zero or negative mesh size leaves the value untouched.
func RoundToMesh(value, meshSize float64) float64 {
	if meshSize <= 0 {
		return value
	}
	return math.Round(value/meshSize) * meshSize
}

type siSuffix struct {
	short  string
	long   string
	scalar float64
}

var siSuffixes = map[int]siSuffix{
	24:  {"Y", "yotta", 1e24},
	21:  {"Z", "zetta", 1e21},
	18:  {"E", "exa", 1e18},
	15:  {"P", "peta", 1e15},
	12:  {"T", "tera", 1e12},
	9:   {"G", "giga", 1e9},
	6:   {"M", "mega", 1e6},
	3:   {"k", "kilo", 1e3},
	0:   {"", "", 1},
	-3:  {"m", "milli", 1e-3},
	-6:  {"µ", "micro", 1e-6},
	-9:  {"n", "nano", 1e-9},
	-12: {"p", "pico", 1e-12},
	-15: {"f", "femto", 1e-15},
	-18: {"a", "atto", 1e-18},
	-21: {"z", "zepto", 1e-21},
	-24: {"y", "yocto", 1e-24},
}

// SIFormat renders a value with the closest thousands SI prefix, e.g.
// SIFormat(2.4e9, "Hz", 2) -> "2.40 GHz". Values outside the prefix table
// (and zero) fall back to plain formatting.
func SIFormat(value float64, unit string, decimals int) string {
	if decimals < 0 {
		decimals = 2
	}
	if value == 0 {
		return fmt.Sprintf("%.*f %s", decimals, value, unit)
	}
	exp := int(math.Floor(math.Log10(math.Abs(value))/3.0) * 3)
	suffix, ok := siSuffixes[exp]
	if !ok {
		return fmt.Sprintf("%g %s", value, unit)
	}
	return fmt.Sprintf("%.*f %s%s", decimals, value/suffix.scalar, suffix.short, unit)
}

// SIFormatLong is SIFormat with the spelled-out prefix ("2.40 gigaHz").
func SIFormatLong(value float64, unit string, decimals int) string {
	if decimals < 0 {
		decimals = 2
	}
	if value == 0 {
		return fmt.Sprintf("%.*f %s", decimals, value, unit)
	}
	exp := int(math.Floor(math.Log10(math.Abs(value))/3.0) * 3)
	suffix, ok := siSuffixes[exp]
	if !ok {
		return fmt.Sprintf("%g %s", value, unit)
	}
	return fmt.Sprintf("%.*f %s%s", decimals, value/suffix.scalar, suffix.long, unit)
}
