// cmd/sonnetsuiteshelper/main.go
//
// Entry point for the sonnetsuiteshelper CLI. Subcommands cover the full
// design loop: generate .son variants, run them through the solver, analyse
// the exported spreadsheets, and drive optimisers toward a target.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/config"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/logging"
)

var (
	projectDir string
	verbose    bool
	logger     = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "sonnetsuiteshelper",
	Short: "Helpers for Sonnet Suites EM simulation workflows",
	Long: `sonnetsuiteshelper automates the repetitive parts of working with
Sonnet Suites: generating project file variants, running them through the
local or remote solver, analysing exported S-parameter spreadsheets and
optimising design parameters toward a target.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if projectDir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("determine working directory: %w", err)
			}
			projectDir = cwd
		}
		abs, err := filepath.Abs(projectDir)
		if err != nil {
			return fmt.Errorf("resolve project dir: %w", err)
		}
		projectDir = abs

		// init has nothing to log into yet
		if cmd.Name() == "init" {
			return nil
		}
		if _, err := os.Stat(filepath.Join(projectDir, config.HelperDir)); err == nil {
			logger, err = logging.New(projectDir, verbose)
			if err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project directory (defaults to cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

// loadConfig reads the project configuration, requiring an initialised
// .sonnethelper directory.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(filepath.Join(projectDir, config.HelperDir)); err != nil {
		return nil, fmt.Errorf("no %s directory in %s; run `sonnetsuiteshelper init` first", config.HelperDir, projectDir)
	}
	return config.NewConfig(projectDir)
}

func logInfo(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}
