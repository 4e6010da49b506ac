// internal/sonfile/sonfile.go
//
// Generates new Sonnet project files from a base .son file by rewriting the
// targeted sections in place: dimension parameters, general metal properties,
// frequency sweeps, and the EM speed option. Edits are textual, anchored on
// the same patterns the Sonnet file format uses; a requested edit that does
// not match the base file is an error, never a silent no-op.

package sonfile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Extension is the Sonnet project file extension.
const Extension = ".son"

// MetalProps holds the four general metal values in file order.
type MetalProps struct {
	Rdc float64 `yaml:"rdc"`
	Rrf float64 `yaml:"rrf"`
	Xdc float64 `yaml:"xdc"`
	Ls  float64 `yaml:"ls"`
}

// AdaptiveSweep edits the adaptive (ABS) frequency sweep entry.
type AdaptiveSweep struct {
	Min         float64 `yaml:"sweep_min"`
	Max         float64 `yaml:"sweep_max"`
	TargetFreqs int     `yaml:"target_freqs"`
}

// LinearSweep edits the linear frequency sweep entry.
type LinearSweep struct {
	Min      float64 `yaml:"sweep_min"`
	Max      float64 `yaml:"sweep_max"`
	StepSize float64 `yaml:"step_size"`
}

// Speed is the Sonnet EM "Speed/Memory" option.
type Speed int

// Accepted speed settings.
const (
	SpeedMemorySaver Speed = 0
	SpeedBalanced    Speed = 1
	SpeedFast        Speed = 2
)

func (s Speed) validate() error {
	if s < SpeedMemorySaver || s > SpeedFast {
		return fmt.Errorf("sonfile: speed must be 0, 1 or 2, got %d", int(s))
	}
	return nil
}

// Edits collects every modification to apply to a base file. Zero-value
// fields are skipped.
type Edits struct {
	Params   map[string]float64
	Metals   map[string]MetalProps
	Adaptive *AdaptiveSweep
	Linear   *LinearSweep
	Speed    *Speed
}

// Empty reports whether the edit set changes anything.
func (e Edits) Empty() bool {
	return len(e.Params) == 0 && len(e.Metals) == 0 && e.Adaptive == nil && e.Linear == nil && e.Speed == nil
}

// GenerateRequest describes one file generation.
type GenerateRequest struct {
	// BaseFile is the source project name; ".son" is appended when missing.
	BaseFile string
	// BaseDir is the directory holding BaseFile. Empty means cwd.
	BaseDir string
	// OutputFile is the generated file name; ".son" is normalized onto it.
	OutputFile string
	// OutputDir is created if it does not exist. Empty means cwd.
	OutputDir string
	// Prefix and Suffix wrap the output file stem.
	Prefix string
	Suffix string
	// Edits to apply to the base contents.
	Edits Edits
	// Overwrite permits replacing an existing output file.
	Overwrite bool
}

// Generate writes a new .son file derived from the base file with the
// requested edits applied, returning the path of the written file.
func Generate(req GenerateRequest) (string, error) {
	base := req.BaseFile
	if !strings.HasSuffix(base, Extension) {
		base += Extension
	}
	basePath := filepath.Join(req.BaseDir, base)
	contents, err := os.ReadFile(basePath)
	if err != nil {
		return "", fmt.Errorf("sonfile: read base file: %w", err)
	}

	stem := strings.TrimSuffix(req.OutputFile, Extension)
	outName := req.Prefix + stem + req.Suffix + Extension
	outDir := req.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("sonfile: ensure output dir: %w", err)
	}
	outPath := filepath.Join(outDir, outName)
	if !req.Overwrite {
		if _, statErr := os.Stat(outPath); statErr == nil {
			return "", fmt.Errorf("%w: %s", ErrOutputExists, outPath)
		}
	}

	edited, err := Apply(contents, req.Edits, basePath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, edited, 0o644); err != nil {
		return "", fmt.Errorf("sonfile: write output file: %w", err)
	}
	return outPath, nil
}

const numPattern = `[+\-]?(?:0|[1-9]\d*)(?:\.\d+)?(?:[eE][+\-]?\d+)?`

var (
	adaptiveSweepRe    = regexp.MustCompile(`FREQ \w+ AY ABS_ENTRY( -?[0-9]\d*(\.\d+)?){4}`)
	adaptiveMinMaxRe   = regexp.MustCompile(`ABS_ENTRY( -?[0-9]\d*(\.\d+)?){2}`)
	adaptiveTargetRe   = regexp.MustCompile(`(\d+)\D*$`)
	linearSweepRe      = regexp.MustCompile(`FREQ \w+ \w+ SWEEP( -?[0-9]\d*(\.\d+)?){3}`)
	linearValuesRe     = regexp.MustCompile(`( -?[0-9]\d*(\.\d+)?){3}`)
	metalValuesRe      = regexp.MustCompile(`( ` + numPattern + `){4}`)
	speedRe            = regexp.MustCompile(`SPEED \d`)
	paramValueRe       = `(\w+|"\w+"|\d+\.\d+)`
	paramPatternFormat = `VALVAR %s LNG ` + paramValueRe + ` "Dim\. Param\."`
)

// Apply rewrites the base file contents with the edits. The file argument is
// only used for error messages.
func Apply(contents []byte, edits Edits, file string) ([]byte, error) {
	text := string(contents)

	for _, name := range sortedParamNames(edits.Params) {
		value := edits.Params[name]
		pattern, err := regexp.Compile(fmt.Sprintf(paramPatternFormat, regexp.QuoteMeta(name)))
		if err != nil {
			return nil, fmt.Errorf("sonfile: parameter pattern for %q: %w", name, err)
		}
		if !pattern.MatchString(text) {
			return nil, &NotFoundError{Kind: "parameter", Name: name, File: file}
		}
		replacement := fmt.Sprintf(`VALVAR %s LNG %s "Dim. Param."`, name, formatNum(value))
		text = pattern.ReplaceAllLiteralString(text, replacement)
	}

	for _, name := range sortedMetalNames(edits.Metals) {
		props := edits.Metals[name]
		pattern, err := regexp.Compile(`MET "` + regexp.QuoteMeta(name) + `" \d+ SUP( ` + numPattern + `){4}`)
		if err != nil {
			return nil, fmt.Errorf("sonfile: metal pattern for %q: %w", name, err)
		}
		match := pattern.FindString(text)
		if match == "" {
			return nil, &NotFoundError{Kind: "general metal", Name: name, File: file}
		}
		values := fmt.Sprintf(" %s %s %s %s", formatNum(props.Rdc), formatNum(props.Rrf), formatNum(props.Xdc), formatNum(props.Ls))
		updated := metalValuesRe.ReplaceAllLiteralString(match, values)
		text = pattern.ReplaceAllLiteralString(text, updated)
	}

	if sweep := edits.Adaptive; sweep != nil {
		match := adaptiveSweepRe.FindString(text)
		if match == "" {
			return nil, &NotFoundError{Kind: "adaptive sweep", File: file}
		}
		updated := adaptiveMinMaxRe.ReplaceAllLiteralString(match,
			fmt.Sprintf("ABS_ENTRY %s %s", formatNum(sweep.Min), formatNum(sweep.Max)))
		updated = adaptiveTargetRe.ReplaceAllLiteralString(updated, strconv.Itoa(sweep.TargetFreqs))
		text = adaptiveSweepRe.ReplaceAllLiteralString(text, updated)
	}

	if sweep := edits.Linear; sweep != nil {
		match := linearSweepRe.FindString(text)
		if match == "" {
			return nil, &NotFoundError{Kind: "linear sweep", File: file}
		}
		values := fmt.Sprintf(" %s %s %s", formatNum(sweep.Min), formatNum(sweep.Max), formatNum(sweep.StepSize))
		updated := linearValuesRe.ReplaceAllLiteralString(match, values)
		text = linearSweepRe.ReplaceAllLiteralString(text, updated)
	}

	if edits.Speed != nil {
		if err := edits.Speed.validate(); err != nil {
			return nil, err
		}
		if !speedRe.MatchString(text) {
			return nil, &NotFoundError{Kind: "em option", Name: "speed", File: file}
		}
		text = speedRe.ReplaceAllLiteralString(text, fmt.Sprintf("SPEED %d", int(*edits.Speed)))
	}

	return []byte(text), nil
}

// ParamValue extracts the current value of a dimension parameter from the
// file contents. The file argument is only used for error messages.
func ParamValue(contents []byte, name, file string) (float64, error) {
	pattern, err := regexp.Compile(fmt.Sprintf(paramPatternFormat, regexp.QuoteMeta(name)))
	if err != nil {
		return 0, fmt.Errorf("sonfile: parameter pattern for %q: %w", name, err)
	}
	match := pattern.FindSubmatch(contents)
	if match == nil {
		return 0, &NotFoundError{Kind: "parameter", Name: name, File: file}
	}
	raw := strings.Trim(string(match[1]), `"`)
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("sonfile: parameter %q in %s holds non-numeric value %q", name, file, raw)
	}
	return value, nil
}

// ReadParamValue reads a dimension parameter straight from a project file.
func ReadParamValue(path, name string) (float64, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("sonfile: read %s: %w", path, err)
	}
	return ParamValue(contents, name, path)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedParamNames(params map[string]float64) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sortedMetalNames keeps edit application deterministic across runs.
func sortedMetalNames(metals map[string]MetalProps) []string {
	names := make([]string, 0, len(metals))
	for name := range metals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
