package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/sonfile"
)

var generateFlags struct {
	base      string
	baseDir   string
	output    string
	outputDir string
	prefix    string
	suffix    string
	overwrite bool
	params    []string
	metals    []string
	adaptive  string
	linear    string
	speed     int
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new .son file from a base file with edits applied",
	Example: `  sonnetsuiteshelper generate --base resonator --output resonator_v2 \
      --param length=250.5 --param width=4
  sonnetsuiteshelper generate --base feedline --output feedline_hi \
      --adaptive 2,8,300 --speed 1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, err := buildEdits(cmd)
		if err != nil {
			return err
		}
		if edits.Empty() {
			return fmt.Errorf("no edits requested; pass at least one of --param, --metal, --adaptive, --linear or --speed")
		}

		path, err := sonfile.Generate(sonfile.GenerateRequest{
			BaseFile:   generateFlags.base,
			BaseDir:    generateFlags.baseDir,
			OutputFile: generateFlags.output,
			OutputDir:  generateFlags.outputDir,
			Prefix:     generateFlags.prefix,
			Suffix:     generateFlags.suffix,
			Edits:      edits,
			Overwrite:  generateFlags.overwrite,
		})
		if err != nil {
			return err
		}
		logInfo("generated project file", zap.String("file", path))
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.base, "base", "", "base .son file name (required)")
	f.StringVar(&generateFlags.baseDir, "base-dir", "", "directory holding the base file")
	f.StringVar(&generateFlags.output, "output", "", "output file name (required)")
	f.StringVar(&generateFlags.outputDir, "output-dir", "", "directory for the generated file")
	f.StringVar(&generateFlags.prefix, "prefix", "", "prefix for the output file name")
	f.StringVar(&generateFlags.suffix, "suffix", "", "suffix for the output file name")
	f.BoolVar(&generateFlags.overwrite, "overwrite", false, "replace the output file if it exists")
	f.StringArrayVar(&generateFlags.params, "param", nil, "dimension parameter edit, name=value (repeatable)")
	f.StringArrayVar(&generateFlags.metals, "metal", nil, "general metal edit, name=rdc,rrf,xdc,ls (repeatable)")
	f.StringVar(&generateFlags.adaptive, "adaptive", "", "adaptive sweep edit, min,max,target_freqs")
	f.StringVar(&generateFlags.linear, "linear", "", "linear sweep edit, min,max,step")
	f.IntVar(&generateFlags.speed, "speed", -1, "em speed setting: 0 (memory saver), 1 (balanced) or 2 (fast)")
	_ = generateCmd.MarkFlagRequired("base")
	_ = generateCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(generateCmd)
}

func buildEdits(cmd *cobra.Command) (sonfile.Edits, error) {
	var edits sonfile.Edits

	for _, raw := range generateFlags.params {
		name, value, err := splitNameValue(raw)
		if err != nil {
			return edits, fmt.Errorf("--param %q: %w", raw, err)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return edits, fmt.Errorf("--param %q: value is not a number", raw)
		}
		if edits.Params == nil {
			edits.Params = map[string]float64{}
		}
		edits.Params[name] = v
	}

	for _, raw := range generateFlags.metals {
		name, value, err := splitNameValue(raw)
		if err != nil {
			return edits, fmt.Errorf("--metal %q: %w", raw, err)
		}
		vals, err := splitFloats(value, 4)
		if err != nil {
			return edits, fmt.Errorf("--metal %q: %w", raw, err)
		}
		if edits.Metals == nil {
			edits.Metals = map[string]sonfile.MetalProps{}
		}
		edits.Metals[name] = sonfile.MetalProps{Rdc: vals[0], Rrf: vals[1], Xdc: vals[2], Ls: vals[3]}
	}

	if generateFlags.adaptive != "" {
		vals, err := splitFloats(generateFlags.adaptive, 3)
		if err != nil {
			return edits, fmt.Errorf("--adaptive %q: %w", generateFlags.adaptive, err)
		}
		edits.Adaptive = &sonfile.AdaptiveSweep{
			Min:         vals[0],
			Max:         vals[1],
			TargetFreqs: int(vals[2]),
		}
	}

	if generateFlags.linear != "" {
		vals, err := splitFloats(generateFlags.linear, 3)
		if err != nil {
			return edits, fmt.Errorf("--linear %q: %w", generateFlags.linear, err)
		}
		edits.Linear = &sonfile.LinearSweep{Min: vals[0], Max: vals[1], StepSize: vals[2]}
	}

	if cmd.Flags().Changed("speed") {
		speed := sonfile.Speed(generateFlags.speed)
		edits.Speed = &speed
	}

	return edits, nil
}

func splitNameValue(raw string) (string, string, error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return "", "", fmt.Errorf("expected name=value")
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

func splitFloats(raw string, want int) ([]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("expected %d comma-separated values", want)
	}
	values := make([]float64, want)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		values[i] = v
	}
	return values, nil
}
