// internal/config/config.go
//
// This package handles configuration and the .sonnethelper directory
// structure. Every project that uses the helper gets a .sonnethelper/ folder
// created in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/units"
)

const (
	// HelperDir is the name of the directory we create in each project
	HelperDir = ".sonnethelper"

	// EnvInstallDir overrides sonnet.install_dir from the environment.
	EnvInstallDir = "SONNET_INSTALL_DIR"

	// EnvRemoteServer overrides sonnet.remote_server from the environment.
	EnvRemoteServer = "SONNET_REMOTE_SERVER"

	defaultFreqUnit    = "GHz"
	defaultPorts       = 2
	defaultMaxParallel = 1
	defaultMaxBatches  = 25
)

const defaultProjectConfigYAML = `# sonnetsuiteshelper project configuration
version: 1

sonnet:
  # Directory of the local Sonnet Suites installation (contains bin/em).
  # May also be set through the SONNET_INSTALL_DIR environment variable.
  install_dir: ""
  # host:port of a Sonnet emclient server for remote analysis. Leave empty
  # to run the local solver.
  remote_server: ""

analysis:
  ports: 2
  freq_unit: GHz

solver:
  # How many simulations may run at once.
  max_parallel: 1

# Optimiser definitions. Each entry drives one parameter of one base file
# toward a desired measurement.
optimisers: []
#  - name: resonator-f0
#    base_file: resonator.son
#    param: length
#    metric: f0
#    desired: 4.5e9
#    tolerance_percent: 0.1
#    correlation: -1
#    strategy: lin-fit
#    mesh_size: 0.5
#    min: 100
#    max: 600
`

// SonnetConfig locates the solver installations.
type SonnetConfig struct {
	InstallDir   string `yaml:"install_dir"`
	RemoteServer string `yaml:"remote_server,omitempty"`
}

// AnalysisConfig sets project-wide defaults for reading solver outputs.
type AnalysisConfig struct {
	Ports    int    `yaml:"ports"`
	FreqUnit string `yaml:"freq_unit"`
}

// SolverConfig captures execution preferences.
type SolverConfig struct {
	MaxParallel int `yaml:"max_parallel"`
}

// OptimiserConfig declares one optimiser entry inside .sonnethelper/config.yaml.
type OptimiserConfig struct {
	Name             string   `yaml:"name"`
	BaseFile         string   `yaml:"base_file"`
	Param            string   `yaml:"param"`
	Metric           string   `yaml:"metric"`
	Desired          float64  `yaml:"desired"`
	TolerancePercent float64  `yaml:"tolerance_percent"`
	Correlation      int      `yaml:"correlation"`
	Strategy         string   `yaml:"strategy"`
	MeshSize         float64  `yaml:"mesh_size"`
	Min              *float64 `yaml:"min,omitempty"`
	Max              *float64 `yaml:"max,omitempty"`
	MaxBatches       int      `yaml:"max_batches,omitempty"`
	Ports            int      `yaml:"ports,omitempty"`
	FreqUnit         string   `yaml:"freq_unit,omitempty"`
}

// ProjectConfig models .sonnethelper/config.yaml.
type ProjectConfig struct {
	Version    int               `yaml:"version"`
	Sonnet     SonnetConfig      `yaml:"sonnet"`
	Analysis   AnalysisConfig    `yaml:"analysis"`
	Solver     SolverConfig      `yaml:"solver"`
	Optimisers []OptimiserConfig `yaml:"optimisers"`
}

// Config holds the runtime configuration for the helper.
type Config struct {
	// ProjectDir is the directory where the user ran `sonnetsuiteshelper` from
	ProjectDir string

	// HelperProjectDir is ProjectDir/.sonnethelper
	HelperProjectDir string

	Project ProjectConfig
}

// InitHelperDir creates the .sonnethelper directory structure in the given
// project directory.
//
// Structure created:
// .sonnethelper/
// ├── state/    <- Optimiser state persisted between runs
// ├── logs/     <- Structured run logs
// ├── batches/  <- Generated .son batches
// └── outputs/  <- Solver spreadsheet outputs
func InitHelperDir(projectDir string) error {
	helperDir := filepath.Join(projectDir, HelperDir)

	dirs := []string{
		filepath.Join(helperDir, "state"),
		filepath.Join(helperDir, "logs"),
		filepath.Join(helperDir, "batches"),
		filepath.Join(helperDir, "outputs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(helperDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
// A .env file in the project directory is honoured before environment
// overrides are applied.
func NewConfig(projectDir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	cfg := &Config{
		ProjectDir:       projectDir,
		HelperProjectDir: filepath.Join(projectDir, HelperDir),
		Project:          defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// StateDir returns the path to the optimiser state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.HelperProjectDir, "state")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.HelperProjectDir, "logs")
}

// BatchesDir returns the directory that receives generated .son batches
func (c *Config) BatchesDir() string {
	return filepath.Join(c.HelperProjectDir, "batches")
}

// OutputsDir returns the directory the solver writes spreadsheets into
func (c *Config) OutputsDir() string {
	return filepath.Join(c.HelperProjectDir, "outputs")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.HelperProjectDir, "config.yaml")
}

// InstallDir returns the configured Sonnet installation directory.
func (c *Config) InstallDir() string {
	return c.Project.Sonnet.InstallDir
}

// RemoteServer returns the configured emclient host:port, if any.
func (c *Config) RemoteServer() string {
	return c.Project.Sonnet.RemoteServer
}

// Optimiser returns the optimiser entry with the given name.
func (c *Config) Optimiser(name string) (OptimiserConfig, bool) {
	for _, oc := range c.Project.Optimisers {
		if oc.Name == name {
			return oc, true
		}
	}
	return OptimiserConfig{}, false
}

func (c *Config) applyEnvOverrides() {
	if dir := strings.TrimSpace(os.Getenv(EnvInstallDir)); dir != "" {
		c.Project.Sonnet.InstallDir = dir
	}
	if server := strings.TrimSpace(os.Getenv(EnvRemoteServer)); server != "" {
		c.Project.Sonnet.RemoteServer = server
	}
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Analysis: AnalysisConfig{
			Ports:    defaultPorts,
			FreqUnit: defaultFreqUnit,
		},
		Solver: SolverConfig{MaxParallel: defaultMaxParallel},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Analysis.Ports == 0 {
		pc.Analysis.Ports = defaultPorts
	}
	if pc.Analysis.FreqUnit == "" {
		pc.Analysis.FreqUnit = defaultFreqUnit
	}
	if pc.Solver.MaxParallel == 0 {
		pc.Solver.MaxParallel = defaultMaxParallel
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Sonnet.InstallDir = resolvePath(base, strings.TrimSpace(pc.Sonnet.InstallDir))
	pc.Sonnet.RemoteServer = strings.TrimSpace(pc.Sonnet.RemoteServer)
	pc.Analysis.FreqUnit = strings.TrimSpace(pc.Analysis.FreqUnit)
	for i := range pc.Optimisers {
		pc.Optimisers[i].normalize(base, pc.Analysis)
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Analysis.Ports < 1 {
		return fmt.Errorf("analysis.ports must be >= 1")
	}
	if _, err := units.ParseFreqUnit(pc.Analysis.FreqUnit); err != nil {
		return fmt.Errorf("analysis.freq_unit: %w", err)
	}
	if pc.Solver.MaxParallel < 1 {
		return fmt.Errorf("solver.max_parallel must be >= 1")
	}
	seen := map[string]bool{}
	for i := range pc.Optimisers {
		oc := pc.Optimisers[i]
		if err := oc.validate(); err != nil {
			return fmt.Errorf("optimisers[%d]: %w", i, err)
		}
		if seen[oc.Name] {
			return fmt.Errorf("optimisers[%d]: duplicate name %q", i, oc.Name)
		}
		seen[oc.Name] = true
	}
	return nil
}

func (oc *OptimiserConfig) normalize(base string, analysis AnalysisConfig) {
	oc.Name = strings.TrimSpace(oc.Name)
	oc.BaseFile = resolvePath(base, strings.TrimSpace(oc.BaseFile))
	oc.Param = strings.TrimSpace(oc.Param)
	oc.Metric = strings.TrimSpace(oc.Metric)
	oc.Strategy = strings.TrimSpace(oc.Strategy)
	if oc.Strategy == "" {
		oc.Strategy = "percent-scale"
	}
	if oc.MaxBatches == 0 {
		oc.MaxBatches = defaultMaxBatches
	}
	if oc.Ports == 0 {
		oc.Ports = analysis.Ports
	}
	if oc.FreqUnit == "" {
		oc.FreqUnit = analysis.FreqUnit
	}
}

func (oc OptimiserConfig) validate() error {
	if oc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if oc.BaseFile == "" {
		return fmt.Errorf("base_file is required")
	}
	if oc.Param == "" {
		return fmt.Errorf("param is required")
	}
	if oc.Metric == "" {
		return fmt.Errorf("metric is required")
	}
	if oc.TolerancePercent <= 0 {
		return fmt.Errorf("tolerance_percent must be > 0")
	}
	if oc.Correlation != 1 && oc.Correlation != -1 {
		return fmt.Errorf("correlation must be 1 or -1")
	}
	if oc.MeshSize <= 0 {
		return fmt.Errorf("mesh_size must be > 0")
	}
	if oc.Min != nil && oc.Max != nil && *oc.Min > *oc.Max {
		return fmt.Errorf("min must not exceed max")
	}
	if _, err := units.ParseFreqUnit(oc.FreqUnit); err != nil {
		return fmt.Errorf("freq_unit: %w", err)
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default %s: %w", path, err)
	}
	return nil
}

func resolvePath(base, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func (c *Config) saveProjectConfig() error {
	encoded, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode project config: %w", err)
	}
	return os.WriteFile(c.ProjectConfigPath(), encoded, 0o644)
}

// SetRemoteServer updates the remote solver endpoint and persists the value
// back to .sonnethelper/config.yaml.
func (c *Config) SetRemoteServer(server string) error {
	c.Project.Sonnet.RemoteServer = strings.TrimSpace(server)
	return c.saveProjectConfig()
}
