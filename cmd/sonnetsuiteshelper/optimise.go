package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/config"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/journal"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/optimiser"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/runner"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/sparam"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/tui"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	rowStyle   = lipgloss.NewStyle().PaddingLeft(2)
	titleStyle = lipgloss.NewStyle().Bold(true)
)

var optimiseCmd = &cobra.Command{
	Use:     "optimise [optimiser names...]",
	Aliases: []string{"optimize"},
	Short:   "Run the configured optimisers until they converge",
	Long: `Runs each configured optimiser: generates batches of .son files,
sends them to the solver, analyses the outputs and picks the next parameter
value until the measured metric lands within tolerance of the target.
Without arguments every optimiser in config.yaml runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries, err := selectOptimisers(cfg, args)
		if err != nil {
			return err
		}

		installDir := runFlags.installDir
		if installDir == "" {
			installDir = cfg.InstallDir()
		}
		server := runFlags.remote
		if server == "" && !runFlags.local {
			server = cfg.RemoteServer()
		}
		solve, err := buildRunner(installDir, server)
		if err != nil {
			return err
		}

		j, err := journal.For(cfg.LogsDir())
		if err != nil {
			return err
		}
		repo := optimiser.NewRepository(cfg.StateDir())
		loader := sparam.NewLoader()

		optimisers := make([]*optimiser.Optimiser, 0, len(entries))
		for _, oc := range entries {
			files := &optimiser.FileManager{
				BaseFile:   oc.BaseFile,
				BatchesDir: cfg.BatchesDir(),
				OutputsDir: cfg.OutputsDir(),
				Name:       oc.Name,
			}
			o, err := optimiser.New(oc, repo, files,
				optimiser.WithLogger(logger),
				optimiser.WithLoader(loader))
			if err != nil {
				return fmt.Errorf("optimiser %s: %w", oc.Name, err)
			}
			optimisers = append(optimisers, o)
		}

		set := &optimiser.Set{
			Optimisers: optimisers,
			Runner:     solve,
			Parallel:   cfg.Project.Solver.MaxParallel,
			Log:        logger,
			Journal:    j,
		}
		results, err := set.Run(cmd.Context())
		printResults(results)
		return err
	},
}

func init() {
	f := optimiseCmd.Flags()
	f.StringVar(&runFlags.installDir, "install-dir", "", "Sonnet installation directory (overrides config)")
	f.StringVar(&runFlags.remote, "remote", "", "emclient server as host:port (overrides config)")
	f.BoolVar(&runFlags.local, "local", false, "force the local solver even when a remote is configured")
	f.DurationVar(&runFlags.waitTimeout, "wait-timeout", runner.DefaultWaitTimeout, "how long to wait for solver outputs")
	rootCmd.AddCommand(optimiseCmd)
}

func selectOptimisers(cfg *config.Config, names []string) ([]config.OptimiserConfig, error) {
	if len(names) == 0 {
		if len(cfg.Project.Optimisers) == 0 {
			return nil, fmt.Errorf("no optimisers configured in %s", cfg.ProjectConfigPath())
		}
		return cfg.Project.Optimisers, nil
	}
	entries := make([]config.OptimiserConfig, 0, len(names))
	for _, name := range names {
		oc, ok := cfg.Optimiser(name)
		if !ok {
			return nil, fmt.Errorf("unknown optimiser %q; configured: %s", name, configuredNames(cfg))
		}
		entries = append(entries, oc)
	}
	return entries, nil
}

func configuredNames(cfg *config.Config) string {
	names := make([]string, 0, len(cfg.Project.Optimisers))
	for _, oc := range cfg.Project.Optimisers {
		names = append(names, oc.Name)
	}
	return strings.Join(names, ", ")
}

func printResults(results []optimiser.Result) {
	fmt.Println(titleStyle.Render("Optimisation results"))
	for _, res := range results {
		var status string
		switch {
		case res.Err != nil:
			status = failStyle.Render(fmt.Sprintf("failed: %v", res.Err))
		case res.Converged:
			status = okStyle.Render("converged")
		case res.Stalled:
			status = warnStyle.Render("stalled")
		default:
			status = warnStyle.Render("batch budget used up")
		}
		line := fmt.Sprintf("%s: %s after %d batches", res.Name, status, res.Batches)
		if res.HasBest {
			line += fmt.Sprintf(" (best: param %g -> %s)",
				res.Best.ParamValue, tui.FormatMeasurement(res.Metric, *res.Best.OutputValue))
		}
		fmt.Println(rowStyle.Render(line))
	}
}
