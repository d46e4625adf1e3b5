package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures CLI options sourced from config files or flags.
type Config struct {
	Format   string `yaml:"format"`
	Verbose  bool   `yaml:"verbose"`
	Platform string `yaml:"platform"`
	Shell    string `yaml:"shell"`

	Jobs     []string `yaml:"jobs"`
	SkipJobs []string `yaml:"skip_job"`

	StepTimeout          time.Duration `yaml:"step_timeout"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	ErrorBackoff         time.Duration `yaml:"error_backoff"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
	StatusAddr           string        `yaml:"status_addr"`
	HTTPTimeout          time.Duration `yaml:"http_timeout"`
}

// Default returns the baseline configuration used when no flags or config file specify values.
func Default() Config {
	return Config{
		Format:               FormatPretty,
		PollInterval:         10 * time.Second,
		ErrorBackoff:         60 * time.Second,
		MaxConsecutiveErrors: 10,
		HTTPTimeout:          60 * time.Second,
	}
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"
	// FormatYAML renders YAML output.
	FormatYAML = "yaml"

	// FileName is the config file looked up in the working directory.
	FileName = ".runman.yml"
	// EnvPath names an alternative config file.
	EnvPath = "RUNMAN_CONFIG"
)

// Load reads .runman.yml from root when present. Missing files are ignored,
// unless the file was named explicitly through RUNMAN_CONFIG.
func Load(root string) (Config, error) {
	cfg := Default()
	path := filepath.Join(root, FileName)
	explicit := false
	if env := strings.TrimSpace(os.Getenv(EnvPath)); env != "" {
		path = env
		explicit = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg = merge(cfg, fileCfg)
	return cfg, nil
}

func merge(base, override Config) Config {
	out := base

	if override.Format != "" {
		out.Format = override.Format
	}
	if override.Verbose {
		out.Verbose = true
	}
	if override.Platform != "" {
		out.Platform = override.Platform
	}
	if override.Shell != "" {
		out.Shell = override.Shell
	}
	if len(override.Jobs) > 0 {
		out.Jobs = append([]string{}, override.Jobs...)
	}
	if len(override.SkipJobs) > 0 {
		out.SkipJobs = append([]string{}, override.SkipJobs...)
	}
	if override.StepTimeout != 0 {
		out.StepTimeout = override.StepTimeout
	}
	if override.PollInterval != 0 {
		out.PollInterval = override.PollInterval
	}
	if override.ErrorBackoff != 0 {
		out.ErrorBackoff = override.ErrorBackoff
	}
	if override.MaxConsecutiveErrors != 0 {
		out.MaxConsecutiveErrors = override.MaxConsecutiveErrors
	}
	if override.StatusAddr != "" {
		out.StatusAddr = override.StatusAddr
	}
	if override.HTTPTimeout != 0 {
		out.HTTPTimeout = override.HTTPTimeout
	}

	return out
}

// Validate rejects settings no command can run with.
func (c Config) Validate() error {
	var problems []string
	switch c.Format {
	case FormatPretty, FormatJSON, FormatYAML:
	default:
		problems = append(problems, fmt.Sprintf("format %q must be %s, %s or %s", c.Format, FormatPretty, FormatJSON, FormatYAML))
	}
	if c.StepTimeout < 0 {
		problems = append(problems, "step_timeout must not be negative")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "poll_interval must be positive")
	}
	if c.ErrorBackoff <= 0 {
		problems = append(problems, "error_backoff must be positive")
	}
	if c.MaxConsecutiveErrors <= 0 {
		problems = append(problems, "max_consecutive_errors must be positive")
	}
	if c.HTTPTimeout <= 0 {
		problems = append(problems, "http_timeout must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
	if flags.Platform.Set {
		cfg.Platform = flags.Platform.Value
	}
	if flags.Shell.Set {
		cfg.Shell = flags.Shell.Value
	}
	if len(flags.Jobs.Values) > 0 {
		cfg.Jobs = append([]string{}, flags.Jobs.Values...)
	}
	if len(flags.SkipJobs.Values) > 0 {
		cfg.SkipJobs = append([]string{}, flags.SkipJobs.Values...)
	}
	if flags.StepTimeout.Set {
		cfg.StepTimeout = flags.StepTimeout.Value
	}
	if flags.PollInterval.Set {
		cfg.PollInterval = flags.PollInterval.Value
	}
	if flags.ErrorBackoff.Set {
		cfg.ErrorBackoff = flags.ErrorBackoff.Value
	}
	if flags.MaxConsecutiveErrors.Set {
		cfg.MaxConsecutiveErrors = flags.MaxConsecutiveErrors.Value
	}
	if flags.StatusAddr.Set {
		cfg.StatusAddr = flags.StatusAddr.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	Format               StringFlag
	Verbose              BoolFlag
	Platform             StringFlag
	Shell                StringFlag
	Jobs                 SliceFlag
	SkipJobs             SliceFlag
	StepTimeout          DurationFlag
	PollInterval         DurationFlag
	ErrorBackoff         DurationFlag
	MaxConsecutiveErrors IntFlag
	StatusAddr           StringFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values via CLI.
type SliceFlag struct {
	Values []string
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

// DurationFlag represents a duration flag and whether it was set.
type DurationFlag struct {
	Value time.Duration
	Set   bool
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}
