// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/wait"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "APPLY_AGENT_"

// DefaultPort is the HTTP port used by serve.
const DefaultPort = 8089

// Config is the CLI configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults or CLI flags.
type Config struct {
	Settings SettingsConfig `json:"settings" yaml:"settings"`
	Timing   TimingConfig   `json:"timing" yaml:"timing"`
	Run      RunConfig      `json:"run" yaml:"run"`
	Browser  BrowserConfig  `json:"browser" yaml:"browser"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Verbose  bool           `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	LogJSON  bool           `json:"log_json,omitempty" yaml:"log_json,omitempty"`
}

// SettingsConfig holds the search settings.
type SettingsConfig struct {
	JobTitle   string `json:"job_title,omitempty" yaml:"job_title,omitempty"`
	JobType    string `json:"job_type,omitempty" yaml:"job_type,omitempty"`
	Location   string `json:"location,omitempty" yaml:"location,omitempty"`
	MatchTitle bool   `json:"match_title,omitempty" yaml:"match_title,omitempty"`
}

// TimingConfig holds the scheduling policy. Durations use time.ParseDuration syntax.
type TimingConfig struct {
	SettleDelay      string `json:"settle_delay,omitempty" yaml:"settle_delay,omitempty"`
	TickDelay        string `json:"tick_delay,omitempty" yaml:"tick_delay,omitempty"`
	ActionDelay      string `json:"action_delay,omitempty" yaml:"action_delay,omitempty"`
	MaxTicks         int    `json:"max_ticks,omitempty" yaml:"max_ticks,omitempty"`
	MaxEmptyScans    int    `json:"max_empty_scans,omitempty" yaml:"max_empty_scans,omitempty"`
	EmptyScanBackoff string `json:"empty_scan_backoff,omitempty" yaml:"empty_scan_backoff,omitempty"` // constant, linear or exponential
	EmptyScanMax     string `json:"empty_scan_max,omitempty" yaml:"empty_scan_max,omitempty"`
}

// RunConfig controls the run loop. Nil pointers mean "use the default".
type RunConfig struct {
	MaxApplications uint  `json:"max_applications,omitempty" yaml:"max_applications,omitempty"`
	AutoNavigate    *bool `json:"auto_navigate,omitempty" yaml:"auto_navigate,omitempty"`
	AutoScroll      *bool `json:"auto_scroll,omitempty" yaml:"auto_scroll,omitempty"`
}

// BrowserConfig controls the chromedp browser.
type BrowserConfig struct {
	Headless      bool   `json:"headless,omitempty" yaml:"headless,omitempty"`
	UserDataDir   string `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	ExecPath      string `json:"exec_path,omitempty" yaml:"exec_path,omitempty"`
	StartURL      string `json:"start_url,omitempty" yaml:"start_url,omitempty"`
	ActionTimeout string `json:"action_timeout,omitempty" yaml:"action_timeout,omitempty"`
}

// ServerConfig controls the HTTP control surface.
type ServerConfig struct {
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	autoNavigate, autoScroll := true, true
	return Config{
		Settings: SettingsConfig{
			JobTitle: types.DefaultJobTitle,
			JobType:  string(types.DefaultJobType),
			Location: types.DefaultLocation,
		},
		Timing: TimingConfig{
			SettleDelay:      wait.DefaultSettleDelay.String(),
			TickDelay:        wait.DefaultTickDelay.String(),
			ActionDelay:      wait.DefaultActionDelay.String(),
			MaxTicks:         wait.DefaultMaxTicks,
			MaxEmptyScans:    wait.DefaultMaxEmptyScans,
			EmptyScanBackoff: "constant",
			EmptyScanMax:     wait.DefaultEmptyScanMax.String(),
		},
		Run:    RunConfig{AutoNavigate: &autoNavigate, AutoScroll: &autoScroll},
		Server: ServerConfig{Port: DefaultPort},
	}
}

// LoadConfig loads configuration from a file. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// It does not require fields that defaults or flags fill in later.
func (c *Config) Validate() error {
	if c.Settings.JobType != "" {
		if _, ok := types.ParseJobType(c.Settings.JobType); !ok {
			return fmt.Errorf("config error: unknown job_type %q", c.Settings.JobType)
		}
	}

	durations := map[string]string{
		"settle_delay":   c.Timing.SettleDelay,
		"tick_delay":     c.Timing.TickDelay,
		"action_delay":   c.Timing.ActionDelay,
		"empty_scan_max": c.Timing.EmptyScanMax,
		"action_timeout": c.Browser.ActionTimeout,
	}
	for name, value := range durations {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("config error: '%s': %w", name, err)
		}
	}

	if c.Timing.MaxTicks < 0 {
		return fmt.Errorf("config error: 'max_ticks' must be non-negative")
	}
	if c.Timing.MaxEmptyScans < 0 {
		return fmt.Errorf("config error: 'max_empty_scans' must be non-negative")
	}
	if c.Timing.EmptyScanBackoff != "" {
		if _, err := wait.ParseStrategy(c.Timing.EmptyScanBackoff, time.Second, time.Second); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.Browser.UserDataDir != "" {
		if info, err := os.Stat(c.Browser.UserDataDir); err == nil && !info.IsDir() {
			return fmt.Errorf("config error: user_data_dir is not a directory: %s", c.Browser.UserDataDir)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	mergeString(&result.Settings.JobTitle, defaults.Settings.JobTitle)
	mergeString(&result.Settings.JobType, defaults.Settings.JobType)
	mergeString(&result.Settings.Location, defaults.Settings.Location)

	mergeString(&result.Timing.SettleDelay, defaults.Timing.SettleDelay)
	mergeString(&result.Timing.TickDelay, defaults.Timing.TickDelay)
	mergeString(&result.Timing.ActionDelay, defaults.Timing.ActionDelay)
	mergeString(&result.Timing.EmptyScanBackoff, defaults.Timing.EmptyScanBackoff)
	mergeString(&result.Timing.EmptyScanMax, defaults.Timing.EmptyScanMax)
	if result.Timing.MaxTicks == 0 {
		result.Timing.MaxTicks = defaults.Timing.MaxTicks
	}
	if result.Timing.MaxEmptyScans == 0 {
		result.Timing.MaxEmptyScans = defaults.Timing.MaxEmptyScans
	}

	if result.Run.MaxApplications == 0 {
		result.Run.MaxApplications = defaults.Run.MaxApplications
	}
	if result.Run.AutoNavigate == nil {
		result.Run.AutoNavigate = defaults.Run.AutoNavigate
	}
	if result.Run.AutoScroll == nil {
		result.Run.AutoScroll = defaults.Run.AutoScroll
	}

	mergeString(&result.Browser.UserDataDir, defaults.Browser.UserDataDir)
	mergeString(&result.Browser.ExecPath, defaults.Browser.ExecPath)
	mergeString(&result.Browser.StartURL, defaults.Browser.StartURL)
	mergeString(&result.Browser.ActionTimeout, defaults.Browser.ActionTimeout)

	if result.Server.Port == 0 {
		result.Server.Port = defaults.Server.Port
	}

	// Bools other than the pointers cannot distinguish unset from false, so they are not merged.
	return result
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// ApplyEnv overrides fields from APPLY_AGENT_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("JOB_TITLE", &c.Settings.JobTitle)
	str("JOB_TYPE", &c.Settings.JobType)
	str("LOCATION", &c.Settings.Location)
	str("USER_DATA_DIR", &c.Browser.UserDataDir)
	str("CHROME_PATH", &c.Browser.ExecPath)
	str("START_URL", &c.Browser.StartURL)

	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config error: %s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}
	if err := boolean("MATCH_TITLE", &c.Settings.MatchTitle); err != nil {
		return err
	}
	if err := boolean("HEADLESS", &c.Browser.Headless); err != nil {
		return err
	}
	if err := boolean("VERBOSE", &c.Verbose); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: %sPORT: %w", EnvPrefix, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvPrefix + "MAX_APPLICATIONS"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("config error: %sMAX_APPLICATIONS: %w", EnvPrefix, err)
		}
		c.Run.MaxApplications = uint(n)
	}
	return nil
}

// ToSettings returns the run settings, normalized.
func (c *Config) ToSettings() types.Settings {
	jobType, _ := types.ParseJobType(c.Settings.JobType)
	return types.Settings{
		JobTitle: c.Settings.JobTitle,
		JobType:  jobType,
		Location: c.Settings.Location,
	}.Normalize()
}

// ToTiming returns the timing policy. Zero fields keep the package defaults.
func (c *Config) ToTiming() (wait.Timing, error) {
	settle, err := parseDuration(c.Timing.SettleDelay)
	if err != nil {
		return wait.Timing{}, fmt.Errorf("settle_delay: %w", err)
	}
	tick, err := parseDuration(c.Timing.TickDelay)
	if err != nil {
		return wait.Timing{}, fmt.Errorf("tick_delay: %w", err)
	}
	action, err := parseDuration(c.Timing.ActionDelay)
	if err != nil {
		return wait.Timing{}, fmt.Errorf("action_delay: %w", err)
	}
	emptyMax, err := parseDuration(c.Timing.EmptyScanMax)
	if err != nil {
		return wait.Timing{}, fmt.Errorf("empty_scan_max: %w", err)
	}

	t := wait.Timing{
		SettleDelay:   settle,
		TickDelay:     tick,
		ActionDelay:   action,
		MaxTicks:      c.Timing.MaxTicks,
		MaxEmptyScans: c.Timing.MaxEmptyScans,
	}.WithDefaults()

	if emptyMax <= 0 {
		emptyMax = wait.DefaultEmptyScanMax
	}
	strategy := c.Timing.EmptyScanBackoff
	if strategy == "" {
		strategy = "constant"
	}
	t.EmptyScan, err = wait.ParseStrategy(strategy, t.SettleDelay, emptyMax)
	if err != nil {
		return wait.Timing{}, err
	}
	return t, nil
}

// ActionTimeout returns the per-action browser timeout, zero when unset.
func (c *Config) ActionTimeout() time.Duration {
	d, _ := parseDuration(c.Browser.ActionTimeout)
	return d
}

// AutoNavigate reports the effective auto_navigate value.
func (c *Config) AutoNavigate() bool {
	return c.Run.AutoNavigate == nil || *c.Run.AutoNavigate
}

// AutoScroll reports the effective auto_scroll value.
func (c *Config) AutoScroll() bool {
	return c.Run.AutoScroll == nil || *c.Run.AutoScroll
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s must be non-negative", s)
	}
	return d, nil
}
