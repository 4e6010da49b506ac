// internal/runner/runner.go
//
// Hands generated .son projects to the Sonnet solver, either the local em
// binary or a remote emclient server, and waits for the exported
// spreadsheet to land on disk.

package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmNotFound is returned when the install directory has no em binary.
var ErrEmNotFound = errors.New("runner: could not find em executable in sonnet install path")

// ErrProjectNotFound is returned when the project file to analyse is missing.
var ErrProjectNotFound = errors.New("runner: project file not found")

// DefaultWaitTimeout bounds how long a runner waits for the solver output
// file after the command returns.
const DefaultWaitTimeout = 10 * time.Minute

// Options mirror the em command line switches.
type Options struct {
	// Verbose streams analysis progress (-v).
	Verbose bool
	// Lossless runs the analysis with lossless metals (-Lossles, as the
	// solver spells it).
	Lossless bool
	// AbsCacheNone, AbsCacheStopRestart and AbsCacheMultiSweep control the
	// adaptive band synthesis cache.
	AbsCacheNone        bool
	AbsCacheStopRestart bool
	AbsCacheMultiSweep  bool
	// AbsNoDiscrete suppresses discrete sweeps within ABS.
	AbsNoDiscrete bool
	// SubFreqHz sets the subsectioning frequency when > 0.
	SubFreqHz int
	// ParamFile points at an external parameter file.
	ParamFile string
}

func (o Options) args() []string {
	var args []string
	if o.Verbose {
		args = append(args, "-v")
	}
	if o.Lossless {
		args = append(args, "-Lossles")
	}
	if o.AbsCacheNone {
		args = append(args, "-AbsCacheNone")
	}
	if o.AbsCacheStopRestart {
		args = append(args, "-AbsCacheStopRestart")
	}
	if o.AbsCacheMultiSweep {
		args = append(args, "-AbsCacheMultiSweep")
	}
	if o.AbsNoDiscrete {
		args = append(args, "-AbsNoDiscrete")
	}
	if o.SubFreqHz > 0 {
		args = append(args, fmt.Sprintf("-SubFreqHz[%d]", o.SubFreqHz))
	}
	if o.ParamFile != "" {
		args = append(args, "-ParamFile", o.ParamFile)
	}
	return args
}

// CommandRunner abstracts process execution so tests can fake the solver.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Local runs analyses with the em binary of a local Sonnet installation.
type Local struct {
	installDir  string
	options     Options
	log         *zap.Logger
	commands    CommandRunner
	waitTimeout time.Duration
}

// Option customizes a runner instance.
type Option func(*settings)

type settings struct {
	log         *zap.Logger
	commands    CommandRunner
	waitTimeout time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{
		log:         zap.NewNop(),
		commands:    execRunner{},
		waitTimeout: DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCommandRunner overrides process execution (used in tests).
func WithCommandRunner(commands CommandRunner) Option {
	return func(s *settings) {
		if commands != nil {
			s.commands = commands
		}
	}
}

// WithWaitTimeout bounds the wait for the solver output file.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		if timeout > 0 {
			s.waitTimeout = timeout
		}
	}
}

// NewLocal builds a runner for the installation rooted at installDir.
func NewLocal(installDir string, options Options, opts ...Option) (*Local, error) {
	s := newSettings(opts)
	r := &Local{
		installDir:  installDir,
		options:     options,
		log:         s.log,
		commands:    s.commands,
		waitTimeout: s.waitTimeout,
	}
	if _, err := os.Stat(r.emPath()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmNotFound, r.emPath())
	}
	return r, nil
}

func (r *Local) emPath() string {
	return filepath.Join(r.installDir, "bin", "em")
}

// Run analyses sonFile and blocks until outputFile exists. An empty
// outputFile skips the wait.
func (r *Local) Run(ctx context.Context, sonFile, outputFile string) error {
	if !strings.HasSuffix(sonFile, ".son") {
		sonFile += ".son"
	}
	if _, err := os.Stat(sonFile); err != nil {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, sonFile)
	}

	job := uuid.NewString()
	args := append([]string{sonFile}, r.options.args()...)
	r.log.Info("running local analysis",
		zap.String("job", job),
		zap.String("project", sonFile))
	output, err := r.commands.Run(ctx, r.emPath(), args...)
	if err != nil {
		return fmt.Errorf("runner: em %s: %w: %s", sonFile, err, strings.TrimSpace(string(output)))
	}
	r.log.Debug("em finished", zap.String("job", job), zap.ByteString("output", output))

	if outputFile == "" {
		return nil
	}
	return WaitForFile(ctx, outputFile, r.waitTimeout)
}

// Remote runs analyses through an emclient server.
type Remote struct {
	emclientPath string
	server       string
	paramFile    string
	log          *zap.Logger
	commands     CommandRunner
	waitTimeout  time.Duration
}

// NewRemote builds a runner that submits projects to server ("host:port").
// emclientPath may be a bare "emclient" to rely on PATH lookup.
func NewRemote(emclientPath, server string, opts ...Option) (*Remote, error) {
	if strings.TrimSpace(server) == "" {
		return nil, fmt.Errorf("runner: remote server is required")
	}
	if emclientPath == "" {
		emclientPath = "emclient"
	}
	s := newSettings(opts)
	return &Remote{
		emclientPath: emclientPath,
		server:       server,
		log:          s.log,
		commands:     s.commands,
		waitTimeout:  s.waitTimeout,
	}, nil
}

// WithParamFile attaches an external parameter file to every submission.
func (r *Remote) WithParamFile(paramFile string) *Remote {
	r.paramFile = paramFile
	return r
}

// Run submits sonFile for analysis and blocks until outputFile exists. An
// empty outputFile skips the wait.
func (r *Remote) Run(ctx context.Context, sonFile, outputFile string) error {
	if !strings.HasSuffix(sonFile, ".son") {
		sonFile += ".son"
	}

	job := uuid.NewString()
	args := []string{"-Server", r.server, "-ProjectName", sonFile}
	if r.paramFile != "" {
		if _, err := os.Stat(r.paramFile); err != nil {
			return fmt.Errorf("runner: could not find the parameter file %s: %w", r.paramFile, err)
		}
		args = append(args, "-ParamFile", r.paramFile)
	}
	args = append(args, "-Analyze")

	r.log.Info("submitting remote analysis",
		zap.String("job", job),
		zap.String("project", sonFile),
		zap.String("server", r.server))
	output, err := r.commands.Run(ctx, r.emclientPath, args...)
	if err != nil {
		return fmt.Errorf("runner: emclient %s: %w: %s", sonFile, err, strings.TrimSpace(string(output)))
	}
	r.log.Debug("emclient finished", zap.String("job", job), zap.ByteString("output", output))

	if outputFile == "" {
		return nil
	}
	return WaitForFile(ctx, outputFile, r.waitTimeout)
}
