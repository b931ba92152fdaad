// Package cli holds the flag handling shared by the judge command line tools.
package cli

import (
	"flag"
	"os"
	"time"

	"olymp/internal/judge/config"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/logger"
)

// DefaultConfigPath is read from the working directory when present.
const DefaultConfigPath = "olymp.yaml"

// Process exit codes shared by the tools.
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitUsage   = 2
	ExitMissing = 11
	ExitStress  = 12
	ExitGenArgs = 201
)

// Options are the flags every judge tool accepts.
type Options struct {
	ConfigPath string
	TimeLimit  float64
	MemoryMB   float64
	Quiet      bool
}

// Register binds the options to fs.
func (o *Options) Register(fs *flag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", DefaultConfigPath, "Path to config file")
	fs.Float64Var(&o.TimeLimit, "t", 0, "Time limit in seconds (0 disables it)")
	fs.Float64Var(&o.MemoryMB, "m", 0, "Memory limit in megabytes (0 disables it)")
	fs.BoolVar(&o.Quiet, "q", false, "Only print the results")
}

// Load reads the config file and applies the flags that were set on fs.
// A missing file at the default path falls back to built-in defaults.
func (o *Options) Load(fs *flag.FlagSet) (config.Config, error) {
	cfg, err := o.readConfig()
	if err != nil {
		return config.Config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.Judge.TimeLimit = time.Duration(o.TimeLimit * float64(time.Second))
		case "m":
			cfg.Judge.MemoryLimitMB = o.MemoryMB
		case "q":
			cfg.Judge.Quiet = o.Quiet
		}
	})
	if cfg.Judge.Quiet {
		cfg.Logger.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o *Options) readConfig() (config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && path == DefaultConfigPath {
			return config.Default(), nil
		}
		return config.Config{}, appErr.ConfigError("config file %s: %v", path, err)
	}
	return config.LoadFile(path)
}

// Setup loads the configuration and installs the logger. The returned func
// flushes the logger.
func (o *Options) Setup(fs *flag.FlagSet) (config.Config, func(), error) {
	cfg, err := o.Load(fs)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, func() { _ = logger.Sync() }, nil
}
