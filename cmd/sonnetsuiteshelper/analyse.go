package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/resonator"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/sparam"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/units"
)

var analyseFlags struct {
	ports    int
	freqUnit string
	metric   string
	long     bool
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	noteStyle  = lipgloss.NewStyle().Faint(true)
)

var analyseCmd = &cobra.Command{
	Use:     "analyse <spreadsheet.csv>",
	Aliases: []string{"analyze"},
	Short:   "Read resonator metrics from an exported S-parameter spreadsheet",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := units.ParseFreqUnit(analyseFlags.freqUnit)
		if err != nil {
			return err
		}
		data, err := sparam.ReadSpreadsheet(args[0], analyseFlags.ports, unit)
		if err != nil {
			return err
		}
		analyser, err := resonator.NewAnalyser(data)
		if err != nil {
			return err
		}

		if analyseFlags.metric != "" {
			metric, err := resonator.ParseMetric(analyseFlags.metric)
			if err != nil {
				return err
			}
			value, err := analyser.Measure(metric)
			if err != nil {
				return err
			}
			printMetric(metric, value)
			return nil
		}

		for _, metric := range resonator.Metrics() {
			value, err := analyser.Measure(metric)
			if err != nil {
				if errors.Is(err, resonator.ErrBandwidth) {
					fmt.Printf("%s %s\n", labelStyle.Render(string(metric)), noteStyle.Render(err.Error()))
					continue
				}
				return err
			}
			printMetric(metric, value)
		}
		return nil
	},
}

func init() {
	f := analyseCmd.Flags()
	f.IntVar(&analyseFlags.ports, "ports", 2, "number of ports in the spreadsheet")
	f.StringVar(&analyseFlags.freqUnit, "freq-unit", "GHz", "frequency unit of the spreadsheet")
	f.StringVar(&analyseFlags.metric, "metric", "", "single metric to report (default: all)")
	f.BoolVar(&analyseFlags.long, "long", false, "spell out SI prefixes (gigaHz instead of GHz)")
	rootCmd.AddCommand(analyseCmd)
}

func printMetric(metric resonator.Metric, value float64) {
	rendered := ""
	switch metric {
	case resonator.MetricF0, resonator.MetricBW3:
		if analyseFlags.long {
			rendered = units.SIFormatLong(value, "Hz", 3)
		} else {
			rendered = units.SIFormat(value, "Hz", 3)
		}
	default:
		rendered = fmt.Sprintf("%.0f", value)
	}
	fmt.Printf("%s %s\n", labelStyle.Render(string(metric)), valueStyle.Render(rendered))
}
