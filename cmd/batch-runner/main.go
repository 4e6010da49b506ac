// cmd/batch-runner/main.go
//
// Steps a single optimiser batch-by-batch from the command line. Useful when
// solver time is scarce and each batch needs eyeballing before the next one
// is generated: every invocation runs exactly one batch and reports where
// the optimiser stands.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/config"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/logging"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/optimiser"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/resonator"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/runner"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/units"
)

func main() {
	name := flag.String("optimiser", "", "optimiser name from config.yaml to step (required)")
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	pollInterval := flag.Duration("poll", 3*time.Second, "poll interval while waiting for solver output")
	waitTimeout := flag.Duration("wait-timeout", runner.DefaultWaitTimeout, "how long to wait for solver output")
	installDir := flag.String("install-dir", "", "Sonnet installation directory (overrides config)")
	remote := flag.String("remote", "", "emclient server as host:port (overrides config)")
	flag.Parse()

	if strings.TrimSpace(*name) == "" {
		die("--optimiser is required")
	}

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	if err := config.InitHelperDir(absoluteProject); err != nil {
		die("init %s: %v", config.HelperDir, err)
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		die("load config: %v", err)
	}
	oc, ok := cfg.Optimiser(*name)
	if !ok {
		die("optimiser %q is not configured in %s", *name, cfg.ProjectConfigPath())
	}

	log, err := logging.New(absoluteProject, false)
	if err != nil {
		die("open log: %v", err)
	}
	defer func() { _ = log.Sync() }()

	repo := optimiser.NewRepository(cfg.StateDir())
	files := &optimiser.FileManager{
		BaseFile:   oc.BaseFile,
		BatchesDir: cfg.BatchesDir(),
		OutputsDir: cfg.OutputsDir(),
		Name:       oc.Name,
	}
	opt, err := optimiser.New(oc, repo, files, optimiser.WithLogger(log))
	if err != nil {
		die("build optimiser: %v", err)
	}

	state, err := opt.Load()
	if err != nil {
		die("load state: %v", err)
	}
	if state.Converged {
		fmt.Printf("%s already converged after %d batches.\n", oc.Name, len(state.Batches))
		return
	}

	solve, err := buildRunner(cfg, *installDir, *remote, *waitTimeout, log)
	if err != nil {
		die("build runner: %v", err)
	}

	state, record, err := opt.PrepareBatch(state)
	if err != nil {
		die("prepare batch: %v", err)
	}
	fmt.Printf("Batch %d: %s = %g\n", record.Number, oc.Param, record.ParamValue)

	outputFile := files.OutputPath(record.SonFile)
	ctx := context.Background()
	if err := solve.Run(ctx, record.SonFile, ""); err != nil {
		die("run solver: %v", err)
	}

	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()
	deadline := time.Now().Add(*waitTimeout)
	for {
		if _, err := os.Stat(outputFile); err == nil {
			break
		}
		if time.Now().After(deadline) {
			die("timed out waiting for %s", outputFile)
		}
		fmt.Printf("Waiting for %s...\n", filepath.Base(outputFile))
		<-ticker.C
	}

	state, value, err := opt.RecordOutput(state, outputFile)
	if err != nil {
		die("record output: %v", err)
	}
	fmt.Printf("Measured %s = %s\n", oc.Metric, formatMeasurement(oc.Metric, value))
	if state.Converged {
		fmt.Printf("%s converged after %d batches.\n", oc.Name, len(state.Batches))
		return
	}
	fmt.Printf("Not converged yet (target %s); run again for the next batch.\n",
		formatMeasurement(oc.Metric, oc.Desired))
}

func buildRunner(cfg *config.Config, installDir, remote string, waitTimeout time.Duration, log *zap.Logger) (optimiser.Runner, error) {
	opts := []runner.Option{runner.WithLogger(log), runner.WithWaitTimeout(waitTimeout)}
	if installDir == "" {
		installDir = cfg.InstallDir()
	}
	if remote == "" {
		remote = cfg.RemoteServer()
	}
	if remote != "" {
		emclient := "emclient"
		if installDir != "" {
			emclient = filepath.Join(installDir, "bin", "emclient")
		}
		return runner.NewRemote(emclient, remote, opts...)
	}
	if installDir == "" {
		return nil, fmt.Errorf("no Sonnet install directory configured; set sonnet.install_dir or SONNET_INSTALL_DIR")
	}
	return runner.NewLocal(installDir, runner.Options{}, opts...)
}

// formatMeasurement renders frequency-like metrics with an SI prefix and the
// dimensionless quality factors plainly.
func formatMeasurement(metric string, value float64) string {
	switch resonator.Metric(metric) {
	case resonator.MetricF0, resonator.MetricBW3:
		return units.SIFormat(value, "Hz", 3)
	default:
		return fmt.Sprintf("%g", value)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
