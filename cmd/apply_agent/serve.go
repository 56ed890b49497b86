package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/metrics"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/runloop"
	"github.com/jonathan/apply-agent/internal/server"
)

var (
	servePort      int
	serveAutoStart bool
	serveSettings  settingsFlags
	serveBrowser   browserFlags
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long: `Launches Chrome and exposes the run controls over HTTP:
POST /start, POST /stop, GET /status, GET /events (server-sent events), GET /health and GET /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8089)")
	serveCmd.Flags().BoolVar(&serveAutoStart, "autostart", false, "Start a run with the configured settings immediately")
	serveSettings.register(serveCmd.Flags())
	serveBrowser.register(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	serveSettings.apply(cmd, &cfg)
	serveBrowser.apply(cmd, &cfg)
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := runnerOptions(cfg)
	if err != nil {
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bus := events.NewBus()
	opts.Notifier = bus
	opts.Metrics = metrics.NewCollector(reg)

	g, gctx := errgroup.WithContext(ctx)
	ctrl := runloop.NewController(gctx, browser, opts)

	srv, err := server.New(server.Config{
		Port:       cfg.Server.Port,
		Controller: ctrl,
		Bus:        bus,
		Gatherer:   reg,
		Logger:     logger.Named("server"),
	})
	if err != nil {
		return err
	}

	if serveAutoStart {
		if err := ctrl.Start(cfg.ToSettings()); err != nil {
			if !errors.Is(err, runloop.ErrNavigationRequired) {
				return err
			}
			logger.Logger.Warnw("autostart skipped, open the job search and POST /start", "error", err)
		}
	}

	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		ctrl.Reset()
		return nil
	})

	return g.Wait()
}
