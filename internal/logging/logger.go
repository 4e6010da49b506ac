// internal/logging/logger.go
//
// Structured logging for the helper. Every command appends JSON lines to
// .sonnethelper/logs/helper.log so long optimiser runs can be inspected
// after the fact.

package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/config"
)

// LogFile is the filename inside the logs directory.
const LogFile = "helper.log"

// New builds the project logger. Entries go to the project log file; with
// verbose set, debug entries are emitted as well and mirrored to stderr.
func New(projectDir string, verbose bool) (*zap.Logger, error) {
	logDir := filepath.Join(projectDir, config.HelperDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{filepath.Join(logDir, LogFile)}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.OutputPaths = append(cfg.OutputPaths, "stderr")
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}

// Nop returns a logger that discards everything. Handy for tests and for
// callers that have not set up a project yet.
func Nop() *zap.Logger {
	return zap.NewNop()
}
