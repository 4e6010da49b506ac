// internal/sparam/sparam.go
//
// Reads Sonnet spreadsheet-format CSV exports of S-parameter data. The files
// carry an unknown number of header rows followed by one row per frequency
// point: the frequency column, then a real/imaginary column pair for every
// port pair in (1,1), (1,2), ..., (p,p) order.

package sparam

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"strconv"
	"strings"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/units"
)

// ErrUnknownPort is returned when a port index is outside the file's range.
var ErrUnknownPort = errors.New("sparam: port does not exist in output file")

// ErrNoData is returned when no data rows could be parsed from a file.
var ErrNoData = errors.New("sparam: no data rows found")

// PortPair addresses one S-parameter trace, e.g. {2, 1} for S21.
type PortPair struct {
	P1, P2 int
}

func (p PortPair) String() string {
	return fmt.Sprintf("S%d%d", p.P1, p.P2)
}

// Data holds one parsed output file. Frequencies are stored in Hz regardless
// of the unit the file was written in.
type Data struct {
	Filename string
	Ports    int

	freqsHz []float64
	values  map[PortPair][]complex128
}

// ReadSpreadsheet parses the spreadsheet CSV at path. The unit names the
// frequency unit the file was exported with.
func ReadSpreadsheet(path string, ports int, unit units.FreqUnit) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sparam: open output file: %w", err)
	}
	defer f.Close()
	return ParseSpreadsheet(f, path, ports, unit)
}

// ParseSpreadsheet parses spreadsheet CSV contents from r. The name is used
// in error messages only.
func ParseSpreadsheet(r io.Reader, name string, ports int, unit units.FreqUnit) (*Data, error) {
	if ports < 1 {
		return nil, fmt.Errorf("sparam: number of ports must be >= 1, got %d", ports)
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("sparam: unknown frequency unit %q", unit)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // header rows have a different shape
	reader.TrimLeadingSpace = true

	wantFields := 1 + 2*ports*ports
	data := &Data{
		Filename: name,
		Ports:    ports,
		values:   make(map[PortPair][]complex128, ports*ports),
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sparam: read %s: %w", name, err)
		}
		if len(record) == 0 {
			continue
		}
		freq, convErr := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if convErr != nil {
			// Still inside the header block.
			continue
		}
		if len(record) < wantFields {
			return nil, fmt.Errorf("sparam: %s: data row has %d fields, want %d for %d ports", name, len(record), wantFields, ports)
		}
		freqHz, err := units.ConvertFreq(freq, unit, units.Hz)
		if err != nil {
			return nil, err
		}
		data.freqsHz = append(data.freqsHz, freqHz)
		col := 1
		for p1 := 1; p1 <= ports; p1++ {
			for p2 := 1; p2 <= ports; p2++ {
				re, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
				if err != nil {
					return nil, fmt.Errorf("sparam: %s: parse RE[S%d%d]: %w", name, p1, p2, err)
				}
				im, err := strconv.ParseFloat(strings.TrimSpace(record[col+1]), 64)
				if err != nil {
					return nil, fmt.Errorf("sparam: %s: parse IM[S%d%d]: %w", name, p1, p2, err)
				}
				pair := PortPair{p1, p2}
				data.values[pair] = append(data.values[pair], complex(re, im))
				col += 2
			}
		}
	}

	if len(data.freqsHz) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, name)
	}
	return data, nil
}

// Points returns the number of frequency points in the file.
func (d *Data) Points() int {
	return len(d.freqsHz)
}

// FreqsHz returns the frequency axis in Hz.
func (d *Data) FreqsHz() []float64 {
	out := make([]float64, len(d.freqsHz))
	copy(out, d.freqsHz)
	return out
}

// Freqs returns the frequency axis converted to the requested unit.
func (d *Data) Freqs(unit units.FreqUnit) ([]float64, error) {
	return units.ConvertFreqs(d.freqsHz, units.Hz, unit)
}

func (d *Data) checkPorts(p1, p2 int) error {
	if p1 < 1 || p1 > d.Ports {
		return fmt.Errorf("%w: port1 %d, file has ports 1..%d", ErrUnknownPort, p1, d.Ports)
	}
	if p2 < 1 || p2 > d.Ports {
		return fmt.Errorf("%w: port2 %d, file has ports 1..%d", ErrUnknownPort, p2, d.Ports)
	}
	return nil
}

// Mag returns |Sp1p2| per frequency point.
func (d *Data) Mag(p1, p2 int) ([]float64, error) {
	if err := d.checkPorts(p1, p2); err != nil {
		return nil, err
	}
	trace := d.values[PortPair{p1, p2}]
	out := make([]float64, len(trace))
	for i, v := range trace {
		out[i] = cmplx.Abs(v)
	}
	return out, nil
}

// MagDB returns |Sp1p2| in decibels per frequency point.
func (d *Data) MagDB(p1, p2 int) ([]float64, error) {
	mags, err := d.Mag(p1, p2)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(mags))
	for i, m := range mags {
		out[i] = units.VoltsToDB(m)
	}
	return out, nil
}

// MinMagDBFreq returns the frequency (Hz) at the deepest point of the
// |Sp1p2| dB trace.
func (d *Data) MinMagDBFreq(p1, p2 int) (float64, error) {
	magsDB, err := d.MagDB(p1, p2)
	if err != nil {
		return 0, err
	}
	minIdx := 0
	minVal := math.Inf(1)
	for i, v := range magsDB {
		if v < minVal {
			minVal = v
			minIdx = i
		}
	}
	return d.freqsHz[minIdx], nil
}
