package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/runner"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/sonfile"
)

var runFlags struct {
	outputDir   string
	installDir  string
	remote      string
	local       bool
	parallel    int
	wait        bool
	waitTimeout time.Duration

	verbose             bool
	lossless            bool
	absCacheNone        bool
	absCacheStopRestart bool
	absCacheMultiSweep  bool
	absNoDiscrete       bool
	subFreqHz           int
	paramFile           string
}

var runCmd = &cobra.Command{
	Use:   "run <project.son> [more projects...]",
	Short: "Run projects through the local or remote Sonnet solver",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
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

		outputDir := runFlags.outputDir
		if outputDir == "" {
			outputDir = cfg.OutputsDir()
		}
		parallel := runFlags.parallel
		if parallel == 0 {
			parallel = cfg.Project.Solver.MaxParallel
		}

		solve, err := buildRunner(installDir, server)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(parallel)
		for _, project := range args {
			project := project
			g.Go(func() error {
				outputFile := ""
				if runFlags.wait {
					stem := strings.TrimSuffix(filepath.Base(project), sonfile.Extension)
					outputFile = filepath.Join(outputDir, stem+".csv")
				}
				if err := solve.Run(ctx, project, outputFile); err != nil {
					return err
				}
				logInfo("analysis finished", zap.String("project", project))
				fmt.Printf("Finished %s\n", project)
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.outputDir, "output-dir", "", "directory to watch for solver outputs")
	f.StringVar(&runFlags.installDir, "install-dir", "", "Sonnet installation directory (overrides config)")
	f.StringVar(&runFlags.remote, "remote", "", "emclient server as host:port (overrides config)")
	f.BoolVar(&runFlags.local, "local", false, "force the local solver even when a remote is configured")
	f.IntVar(&runFlags.parallel, "parallel", 0, "max simultaneous analyses (defaults to config)")
	f.BoolVar(&runFlags.wait, "wait", true, "wait for the exported spreadsheet after each run")
	f.DurationVar(&runFlags.waitTimeout, "wait-timeout", runner.DefaultWaitTimeout, "how long to wait for solver outputs")

	f.BoolVar(&runFlags.verbose, "live", false, "stream analysis progress (-v)")
	f.BoolVar(&runFlags.lossless, "lossless", false, "run with lossless metals")
	f.BoolVar(&runFlags.absCacheNone, "abs-cache-none", false, "disable the ABS cache")
	f.BoolVar(&runFlags.absCacheStopRestart, "abs-cache-stop-restart", false, "enable ABS stop/restart caching")
	f.BoolVar(&runFlags.absCacheMultiSweep, "abs-cache-multi-sweep", false, "enable ABS multi-sweep caching")
	f.BoolVar(&runFlags.absNoDiscrete, "abs-no-discrete", false, "suppress discrete ABS sweeps")
	f.IntVar(&runFlags.subFreqHz, "sub-freq-hz", 0, "subsectioning frequency in Hz")
	f.StringVar(&runFlags.paramFile, "param-file", "", "external parameter file")
	rootCmd.AddCommand(runCmd)
}

// buildRunner picks remote when a server is known, local otherwise.
func buildRunner(installDir, server string) (optimiserRunner, error) {
	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithWaitTimeout(runFlags.waitTimeout),
	}
	if server != "" && !runFlags.local {
		remote, err := runner.NewRemote(remoteEmclientPath(installDir), server, opts...)
		if err != nil {
			return nil, err
		}
		if runFlags.paramFile != "" {
			remote.WithParamFile(runFlags.paramFile)
		}
		return remote, nil
	}
	if installDir == "" {
		return nil, fmt.Errorf("no Sonnet install directory configured; set sonnet.install_dir or %s", "SONNET_INSTALL_DIR")
	}
	return runner.NewLocal(installDir, runner.Options{
		Verbose:             runFlags.verbose,
		Lossless:            runFlags.lossless,
		AbsCacheNone:        runFlags.absCacheNone,
		AbsCacheStopRestart: runFlags.absCacheStopRestart,
		AbsCacheMultiSweep:  runFlags.absCacheMultiSweep,
		AbsNoDiscrete:       runFlags.absNoDiscrete,
		SubFreqHz:           runFlags.subFreqHz,
		ParamFile:           runFlags.paramFile,
	}, opts...)
}

// optimiserRunner matches optimiser.Runner without importing it here.
type optimiserRunner interface {
	Run(ctx context.Context, sonFile, outputFile string) error
}

// remoteEmclientPath prefers the configured installation's emclient, falling
// back to PATH lookup.
func remoteEmclientPath(installDir string) string {
	if installDir == "" {
		return "emclient"
	}
	return filepath.Join(installDir, "bin", "emclient")
}
