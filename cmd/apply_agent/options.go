package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonathan/apply-agent/internal/config"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/runloop"
	"github.com/jonathan/apply-agent/internal/search"
)

// settingsFlags are shared by every command that needs search settings.
type settingsFlags struct {
	jobTitle   string
	jobType    string
	location   string
	matchTitle bool
}

func (f *settingsFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.jobTitle, "job-title", "t", "", "Job title to search for")
	fs.StringVar(&f.jobType, "job-type", "", "Workplace type: none, remote, hybrid or onsite")
	fs.StringVarP(&f.location, "location", "l", "", "Search location")
	fs.BoolVar(&f.matchTitle, "match-title", false, "Only apply when the listing title contains the job title")
}

func (f *settingsFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("job-title") {
		cfg.Settings.JobTitle = f.jobTitle
	}
	if cmd.Flags().Changed("job-type") {
		cfg.Settings.JobType = f.jobType
	}
	if cmd.Flags().Changed("location") {
		cfg.Settings.Location = f.location
	}
	if cmd.Flags().Changed("match-title") {
		cfg.Settings.MatchTitle = f.matchTitle
	}
}

// browserFlags configure the live browser used by run and serve.
type browserFlags struct {
	headless    bool
	userDataDir string
	chromePath  string
	startURL    string
}

func (f *browserFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.headless, "headless", false, "Run Chrome without a window")
	fs.StringVar(&f.userDataDir, "user-data-dir", "", "Chrome profile directory with a signed-in session")
	fs.StringVar(&f.chromePath, "chrome-path", "", "Chrome binary to launch")
	fs.StringVar(&f.startURL, "start-url", "", "Page to open before the first run (defaults to the job search)")
}

func (f *browserFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if cmd.Flags().Changed("user-data-dir") {
		cfg.Browser.UserDataDir = f.userDataDir
	}
	if cmd.Flags().Changed("chrome-path") {
		cfg.Browser.ExecPath = f.chromePath
	}
	if cmd.Flags().Changed("start-url") {
		cfg.Browser.StartURL = f.startURL
	}
}

// loadConfig layers the config file, APPLY_AGENT_* variables and defaults. Flags are
// applied by the caller afterwards, then validate must be called.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if cfg.Verbose && !verbose {
		verbose = true
	}
	return cfg.MergeWithDefaults(config.Default()), nil
}

// runnerOptions builds the run loop options from a validated config.
func runnerOptions(cfg config.Config) (runloop.Options, error) {
	timing, err := cfg.ToTiming()
	if err != nil {
		return runloop.Options{}, fmt.Errorf("invalid timing: %w", err)
	}
	return runloop.Options{
		Timing:          timing,
		Markers:         page.DefaultMarkers(),
		MatchTitle:      cfg.Settings.MatchTitle,
		AutoNavigate:    cfg.AutoNavigate(),
		DisableScroll:   !cfg.AutoScroll(),
		MaxApplications: cfg.Run.MaxApplications,
		Logger:          logger.Named("runloop"),
	}, nil
}

func browserOptions(cfg config.Config) page.BrowserOptions {
	return page.BrowserOptions{
		Headless:      cfg.Browser.Headless,
		UserDataDir:   cfg.Browser.UserDataDir,
		ExecPath:      cfg.Browser.ExecPath,
		ActionTimeout: cfg.ActionTimeout(),
		Markers:       page.DefaultMarkers(),
	}
}

// startURL is where the browser goes before the first run.
func startURL(cfg config.Config) string {
	if cfg.Browser.StartURL != "" {
		return cfg.Browser.StartURL
	}
	return search.BuildURL(cfg.ToSettings())
}
