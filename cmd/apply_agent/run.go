package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-agent/internal/config"
	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/observability"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/runloop"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/wait"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Apply to matching jobs in a browser until stopped or out of listings",
	Long: `Launches Chrome, opens the job search for the given settings, and applies to every listing
that offers a one-step application. Use --user-data-dir to reuse a signed-in profile.

Configuration can be loaded from a JSON or YAML file using --config. Command-line flags override
config file values. Press Ctrl+C to stop; the current application finishes its step first.`,
	RunE: runApply,
}

var (
	runSettings        settingsFlags
	runBrowser         browserFlags
	runMaxApplications uint
)

func init() {
	runSettings.register(runCommand.Flags())
	runBrowser.register(runCommand.Flags())
	runCommand.Flags().UintVar(&runMaxApplications, "max-applications", 0, "Stop after this many applications (0 = no limit)")
	rootCmd.AddCommand(runCommand)
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runSettings.apply(cmd, &cfg)
	runBrowser.apply(cmd, &cfg)
	if cmd.Flags().Changed("max-applications") {
		cfg.Run.MaxApplications = runMaxApplications
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	browser, closeBrowser, err := page.NewBrowser(ctx, browserOptions(cfg))
	if err != nil {
		return err
	}
	defer closeBrowser()

	if err := openStartPage(ctx, browser, cfg); err != nil {
		return err
	}

	opts, err := runnerOptions(cfg)
	if err != nil {
		return err
	}
	bus := events.NewBus()
	opts.Notifier = bus
	sub := bus.Subscribe(events.DefaultBuffer)
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		logEvents(sub)
	}()

	ctrl := runloop.NewController(ctx, browser, opts)
	if err := ctrl.Start(cfg.ToSettings()); err != nil {
		return err
	}
	result, runErr := ctrl.Wait()

	bus.Unsubscribe(sub)
	<-logged

	observability.NewPrinter(cmd.OutOrStdout()).PrintRunSummary(ctrl.Status(), result.Processed, string(result.Reason))
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

// openStartPage loads the start URL and waits for it to settle.
func openStartPage(ctx context.Context, view page.View, cfg config.Config) error {
	target := startURL(cfg)
	logger.Logger.Infow("opening start page", logger.FieldURL, target)
	if err := view.Navigate(ctx, target); err != nil {
		return err
	}
	timing, err := cfg.ToTiming()
	if err != nil {
		return err
	}
	return wait.RealClock{}.Sleep(ctx, timing.SettleDelay)
}

// logEvents writes bus events to the log until sub is closed.
func logEvents(sub <-chan types.Event) {
	log := logger.Named("events")
	for e := range sub {
		switch e.Type {
		case types.EventProgress:
			log.Infow("application submitted", logger.FieldApplied, e.Applied)
		case types.EventError:
			log.Errorw("run error", "text", e.Text)
		default:
			log.Infow(e.Text, logger.FieldApplied, e.Applied)
		}
	}
}
