// Package config holds the judging configuration shared by the CLIs and the service.
package config

import (
	"os"
	"time"

	"olymp/internal/judge/sandbox/engine"
	"olymp/internal/judge/sandbox/pipeline"
	"olymp/internal/judge/sandbox/profile"
	"olymp/internal/judge/sandbox/spec"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultPollInterval   = 10 * time.Millisecond
	defaultDeadpipeGuard  = 100 * time.Millisecond
	defaultArbiter        = "interactor"
	defaultChecker        = "check"
	defaultValidator      = "validator"
	defaultTestsDir       = "tests"
	defaultSolutionPrefix = "sol_"
)

// Judge holds judging behaviour. Zero limits mean "no limit".
type Judge struct {
	TimeLimit     time.Duration `yaml:"timeLimit"`
	MemoryLimitMB float64       `yaml:"memoryLimitMB"`
	PollInterval  time.Duration `yaml:"pollInterval"`
	// DeadpipeGuard is the idle growth tolerated after an interactive peer exits.
	// A negative value disables the heuristic.
	DeadpipeGuard  time.Duration  `yaml:"deadpipeGuard"`
	StopOnError    bool           `yaml:"stopOnError"`
	Quiet          bool           `yaml:"quiet"`
	Stdio          bool           `yaml:"stdio"`
	Files          pipeline.Files `yaml:"files"`
	Arbiter        string         `yaml:"arbiter"`
	Checker        string         `yaml:"checker"`
	Validator      string         `yaml:"validator"`
	TestsDir       string         `yaml:"testsDir"`
	SolutionPrefix string         `yaml:"solutionPrefix"`
	Java           profile.Java   `yaml:"java"`
}

// Sandbox holds optional process isolation settings.
type Sandbox struct {
	EnableCgroup bool   `yaml:"enableCgroup"`
	CgroupRoot   string `yaml:"cgroupRoot"`
	PidsLimit    int64  `yaml:"pidsLimit"`
}

// Config is the file layout read by the command line tools.
type Config struct {
	Judge   Judge         `yaml:"judge"`
	Sandbox Sandbox       `yaml:"sandbox"`
	Logger  logger.Config `yaml:"logger"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// LoadFile reads path, applies defaults and validates the result.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if err := LoadYAML(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadYAML decodes a YAML file into out.
func LoadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return appErr.ConfigError("read config file failed: %v", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return appErr.ConfigError("parse config file failed: %v", err)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	c.Judge.ApplyDefaults()
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
}

// ApplyDefaults fills unset judging fields.
func (j *Judge) ApplyDefaults() {
	if j.PollInterval <= 0 {
		j.PollInterval = defaultPollInterval
	}
	if j.DeadpipeGuard == 0 {
		j.DeadpipeGuard = defaultDeadpipeGuard
	}
	def := pipeline.DefaultFiles()
	if j.Files.Input == "" {
		j.Files.Input = def.Input
	}
	if j.Files.Output == "" {
		j.Files.Output = def.Output
	}
	if j.Files.Answer == "" {
		j.Files.Answer = def.Answer
	}
	if j.Arbiter == "" {
		j.Arbiter = defaultArbiter
	}
	if j.Checker == "" {
		j.Checker = defaultChecker
	}
	if j.Validator == "" {
		j.Validator = defaultValidator
	}
	if j.TestsDir == "" {
		j.TestsDir = defaultTestsDir
	}
	if j.SolutionPrefix == "" {
		j.SolutionPrefix = defaultSolutionPrefix
	}
	j.Java = profile.NewResolver(j.Java).Java
}

// Validate rejects settings no run can use.
func (c Config) Validate() error {
	if err := c.Judge.Limits().Validate(); err != nil {
		return appErr.ConfigError("judge limits: %v", err)
	}
	if c.Sandbox.EnableCgroup && c.Sandbox.CgroupRoot == "" {
		return appErr.ConfigError("sandbox.cgroupRoot is required when cgroup is enabled")
	}
	if c.Sandbox.PidsLimit < 0 {
		return appErr.ConfigError("sandbox.pidsLimit must not be negative")
	}
	return nil
}

// Limits returns the nominal solution limits.
func (j Judge) Limits() spec.ResourceLimit {
	return spec.ResourceLimit{CPUTime: j.TimeLimit, MemoryMB: j.MemoryLimitMB}
}

// EngineConfig converts the settings for the process engine.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		PollInterval:  c.Judge.PollInterval,
		DeadpipeGuard: c.Judge.DeadpipeGuard,
		Quiet:         c.Judge.Quiet,
		EnableCgroup:  c.Sandbox.EnableCgroup,
		CgroupRoot:    c.Sandbox.CgroupRoot,
	}
}

// PipelineConfig converts the settings for the per-test pipeline.
func (c Config) PipelineConfig() pipeline.Config {
	limits := c.Judge.Limits()
	limits.PIDs = c.Sandbox.PidsLimit
	return pipeline.Config{
		Limits:  limits,
		Files:   c.Judge.Files,
		Arbiter: c.Judge.Arbiter,
		Stdio:   c.Judge.Stdio,
		Quiet:   c.Judge.Quiet,
	}
}
