// internal/resonator/resonator.go
//
// Analyses a single-resonator S21 trace: resonant frequency, quality
// factors, and 3 dB bandwidth.

package resonator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/fit"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/sparam"
)

// Metric names one measurable output of a resonator analysis.
type Metric string

// Metrics an optimiser can target.
const (
	MetricF0  Metric = "f0"
	MetricQR  Metric = "QR"
	MetricQC  Metric = "QC"
	MetricQI  Metric = "QI"
	MetricBW3 Metric = "three_dB_BW"
)

// Metrics lists every supported metric in display order.
func Metrics() []Metric {
	return []Metric{MetricF0, MetricQR, MetricQC, MetricQI, MetricBW3}
}

// ParseMetric validates a metric name from config or CLI flags.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.TrimSpace(s))
	for _, known := range Metrics() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("resonator: unknown metric %q (want one of %v)", s, Metrics())
}

// ErrBandwidth wraps every failure to locate the 3 dB bandwidth.
var ErrBandwidth = errors.New("resonator: could not find 3 dB bandwidth")

// QValues groups the quality factors from a resonance fit.
type QValues struct {
	QR float64
	QC float64
	QI float64
}

// Analyser reads resonator metrics from an S21 trace. The transmission trace
// is S21, so the output file must have at least two ports.
type Analyser struct {
	data *sparam.Data
}

// NewAnalyser wraps a parsed output file.
func NewAnalyser(data *sparam.Data) (*Analyser, error) {
	if data == nil {
		return nil, errors.New("resonator: output data is required")
	}
	if data.Ports < 2 {
		return nil, fmt.Errorf("resonator: need a 2-port S21 trace, file %s has %d port(s)", data.Filename, data.Ports)
	}
	return &Analyser{data: data}, nil
}

// ResonantFreq returns the frequency (Hz) of the deepest point in the
// S21 dB trace.
func (a *Analyser) ResonantFreq() (float64, error) {
	return a.data.MinMagDBFreq(2, 1)
}

// QValues fits the resonance model around the dip and returns QR, QC and
// the derived QI.
func (a *Analyser) QValues() (QValues, error) {
	f0, err := a.ResonantFreq()
	if err != nil {
		return QValues{}, err
	}
	freqs := a.data.FreqsHz()
	mags, err := a.data.Mag(2, 1)
	if err != nil {
		return QValues{}, err
	}
	const initQR = 10e3
	init := fit.Resonance{F0: f0, QR: initQR, QC: 2 * initQR}
	fitted, err := fit.FitResonance(freqs, mags, init)
	if err != nil {
		return QValues{}, fmt.Errorf("resonator: fit Q values for %s: %w", a.data.Filename, err)
	}
	return QValues{QR: fitted.QR, QC: fitted.QC, QI: fitted.QI()}, nil
}

// ThreeDBBandwidth returns the width (Hz) of the dip 3 dB above its floor,
// located by the sign crossings of the shifted dB trace.
func (a *Analyser) ThreeDBBandwidth() (float64, error) {
	freqs := a.data.FreqsHz()
	magsDB, err := a.data.MagDB(2, 1)
	if err != nil {
		return 0, err
	}
	crossings := zeroCrossings(freqs, shiftUp(magsDB, 3.0))
	switch len(crossings) {
	case 2:
		bw := crossings[1] - crossings[0]
		if bw < 0 {
			bw = -bw
		}
		return bw, nil
	case 0:
		return 0, fmt.Errorf("%w in file %s: likely because the dip depth is not 3 dB or more", ErrBandwidth, a.data.Filename)
	case 1:
		return 0, fmt.Errorf("%w in file %s: only one point where dip depth is 3 dB or more", ErrBandwidth, a.data.Filename)
	default:
		return 0, fmt.Errorf("%w in file %s: found %d crossings, possible multiple resonances or noisy output", ErrBandwidth, a.data.Filename, len(crossings))
	}
}

// Measure returns the named metric value.
func (a *Analyser) Measure(metric Metric) (float64, error) {
	switch metric {
	case MetricF0:
		return a.ResonantFreq()
	case MetricQR:
		q, err := a.QValues()
		return q.QR, err
	case MetricQC:
		q, err := a.QValues()
		return q.QC, err
	case MetricQI:
		q, err := a.QValues()
		return q.QI, err
	case MetricBW3:
		return a.ThreeDBBandwidth()
	default:
		return 0, fmt.Errorf("resonator: unknown metric %q", metric)
	}
}

func shiftUp(values []float64, offset float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v + offset
	}
	return out
}

// zeroCrossings returns the x positions where y crosses zero, linearly
// interpolated between samples. A sample exactly at zero counts once.
func zeroCrossings(x, y []float64) []float64 {
	var crossings []float64
	for i := 1; i < len(y); i++ {
		y0, y1 := y[i-1], y[i]
		if y0 == 0 {
			crossings = append(crossings, x[i-1])
			continue
		}
		if y0*y1 < 0 {
			t := y0 / (y0 - y1)
			crossings = append(crossings, x[i-1]+t*(x[i]-x[i-1]))
		}
	}
	if len(y) > 0 && y[len(y)-1] == 0 {
		crossings = append(crossings, x[len(x)-1])
	}
	return crossings
}
