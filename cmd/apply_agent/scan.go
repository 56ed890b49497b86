package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/observability"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/scanner"
	"github.com/jonathan/apply-agent/internal/types"
)

var (
	scanFile     string
	scanURL      string
	scanTimeout  time.Duration
	scanSettle   time.Duration
	scanFetch    bool
	scanFormat   string
	scanSettings settingsFlags
	scanBrowser  browserFlags
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the fast-apply listings on a saved or rendered results page",
	Long: `Reads a job search results page, either a saved HTML file (--file) or a URL rendered in
Chrome (--url), and prints the listings that offer a one-step application as JSON.
Nothing on the page is clicked.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanFile, "file", "f", "", "Saved HTML page to scan")
	scanCmd.Flags().StringVarP(&scanURL, "url", "u", "", "URL to render and scan (mutually exclusive with --file)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 60*time.Second, "Rendering timeout for --url")
	scanCmd.Flags().DurationVar(&scanSettle, "settle", 3*time.Second, "Wait after the page is ready, for --url")
	scanCmd.Flags().BoolVar(&scanFetch, "no-browser", false, "Fetch --url over plain HTTP instead of rendering it in Chrome")
	scanCmd.Flags().StringVar(&scanFormat, "format", "json", "Output format: json or text")
	scanSettings.register(scanCmd.Flags())
	scanBrowser.register(scanCmd.Flags())
	rootCmd.AddCommand(scanCmd)
}

// ScanReport is the JSON printed by scan.
type ScanReport struct {
	Source     string            `json:"source"`
	Rendered   int               `json:"rendered"`
	Candidates []types.Candidate `json:"candidates"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	if (scanFile == "") == (scanURL == "") {
		return fmt.Errorf("exactly one of --file or --url must be provided")
	}
	if scanFormat != "json" && scanFormat != "text" {
		return fmt.Errorf("unknown --format %q (want json or text)", scanFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	scanSettings.apply(cmd, &cfg)
	scanBrowser.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	markers := page.DefaultMarkers()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var doc *page.Document
	source := scanFile
	if scanFile != "" {
		f, err := os.Open(scanFile)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", scanFile, err)
		}
		defer f.Close()
		doc, err = page.NewDocument("file://"+scanFile, f, markers)
		if err != nil {
			return err
		}
	} else if scanFetch {
		source = scanURL
		doc, err = page.FetchDocument(ctx, scanURL, scanTimeout, markers)
		if err != nil {
			return err
		}
	} else {
		source = scanURL
		html, err := page.RenderHTML(ctx, scanURL, browserOptions(cfg), scanTimeout, scanSettle)
		if err != nil {
			return err
		}
		doc, err = page.ParseDocument(scanURL, html, markers)
		if err != nil {
			return err
		}
	}

	settings := cfg.ToSettings()
	s := scanner.New(doc, scanner.Options{
		MatchTitle: cfg.Settings.MatchTitle,
		JobTitle:   settings.JobTitle,
		Markers:    markers,
		Logger:     logger.Named("scanner"),
	})
	batch, err := s.Scan(ctx)
	if err != nil {
		return err
	}
	candidates, err := batch.Collect(ctx)
	if err != nil {
		return err
	}
	if candidates == nil {
		candidates = []types.Candidate{}
	}

	if scanFormat == "text" {
		observability.NewPrinter(cmd.OutOrStdout()).PrintScan(source, batch.Rendered, candidates)
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(ScanReport{Source: source, Rendered: batch.Rendered, Candidates: candidates})
}
