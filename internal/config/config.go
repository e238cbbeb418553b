// Package config holds the run-wide validation settings, loadable from
// a YAML file with unknown keys rejected so a typo fails fast instead
// of silently falling back to a default.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ouseful-PR/nbval/internal/compare"
	"github.com/ouseful-PR/nbval/internal/notebook"
	"github.com/ouseful-PR/nbval/internal/sanitize"
)

// Config is one validation run's settings. Timeouts are in seconds.
type Config struct {
	// CellTimeout bounds a single cell's execution.
	CellTimeout float64 `yaml:"cell_timeout"`
	// OutputTimeout bounds the wait for the next output event after a
	// cell's reply (or interrupt) has been handled.
	OutputTimeout float64 `yaml:"output_timeout"`
	// StartupTimeout bounds kernel launch.
	StartupTimeout float64 `yaml:"startup_timeout"`

	// KernelName overrides the notebook's kernelspec when set.
	KernelName string `yaml:"kernel_name"`

	// CheckAll compares outputs for every cell that carries no explicit
	// marker; when false only marked cells are compared.
	CheckAll bool `yaml:"check_all"`
	// SkipKeys replaces the default set of never-compared field keys.
	SkipKeys []string `yaml:"skip_keys"`
	// RicherDiff keeps image payloads in comparisons and adds unified
	// diffs to mismatch reports.
	RicherDiff bool `yaml:"richer_diff"`

	// CoreSanitize enables the built-in repr sanitizer rules.
	CoreSanitize bool `yaml:"core_sanitize"`
	// TimingSanitize enables the timing-report sanitizer rules, on by
	// default so %time/%timeit noise never fails a comparison.
	TimingSanitize bool `yaml:"timing_sanitize"`
	// SanitizeFiles are user rule files, applied after the built-ins.
	SanitizeFiles []string `yaml:"sanitize_files"`

	// SkipTimeit skips %%time/%%timeit cells and strips %timeit lines.
	SkipTimeit bool `yaml:"skip_timeit"`
	// SkipMemit skips %%memit cells and strips %memit lines.
	SkipMemit bool `yaml:"skip_memit"`
}

// Default returns the settings a bare run uses.
func Default() Config {
	return Config{
		CellTimeout:    2000,
		OutputTimeout:  5,
		StartupTimeout: 60,
		CheckAll:       true,
		CoreSanitize:   true,
		TimingSanitize: true,
	}
}

// Load reads a YAML settings file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML settings over the defaults, rejecting unknown keys.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no run could use.
func (c Config) Validate() error {
	if c.CellTimeout <= 0 {
		return fmt.Errorf("cell_timeout must be positive, got %g", c.CellTimeout)
	}
	if c.OutputTimeout <= 0 {
		return fmt.Errorf("output_timeout must be positive, got %g", c.OutputTimeout)
	}
	if c.StartupTimeout <= 0 {
		return fmt.Errorf("startup_timeout must be positive, got %g", c.StartupTimeout)
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// CellTimeoutDuration returns the cell timeout as a duration.
func (c Config) CellTimeoutDuration() time.Duration { return seconds(c.CellTimeout) }

// OutputTimeoutDuration returns the output-event timeout as a duration.
func (c Config) OutputTimeoutDuration() time.Duration { return seconds(c.OutputTimeout) }

// StartupTimeoutDuration returns the kernel startup timeout as a duration.
func (c Config) StartupTimeoutDuration() time.Duration { return seconds(c.StartupTimeout) }

// MagicPolicy returns the timing-magic handling the notebook loader
// should apply.
func (c Config) MagicPolicy() notebook.MagicPolicy {
	return notebook.MagicPolicy{SkipTimeit: c.SkipTimeit, SkipMemit: c.SkipMemit}
}

// SkipKeySet resolves the never-compared field keys, either the
// configured override or the defaults for the diff mode.
func (c Config) SkipKeySet() map[string]bool {
	if len(c.SkipKeys) == 0 {
		return compare.DefaultSkipKeys(c.RicherDiff)
	}
	set := make(map[string]bool, len(c.SkipKeys))
	for _, key := range c.SkipKeys {
		set[key] = true
	}
	return set
}

// BuildSanitizer assembles the sanitizer pipeline in rule order:
// built-in core rules, timing rules, then each user file.
func (c Config) BuildSanitizer() (*sanitize.Pipeline, error) {
	p := sanitize.NewPipeline()
	if c.CoreSanitize {
		p.Append(sanitize.CoreRules()...)
	}
	if c.TimingSanitize {
		p.Append(sanitize.TimingRules()...)
	}
	for _, path := range c.SanitizeFiles {
		rules, err := sanitize.LoadRuleFile(path)
		if err != nil {
			return nil, err
		}
		p.Append(rules...)
	}
	return p, nil
}
