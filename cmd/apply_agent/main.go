// Package main provides the entry point for the apply agent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/apply-agent/internal/logger"
)

var (
	configPath string
	verbose    bool
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:   "apply_agent",
	Short: "Job application automation agent",
	Long: `apply_agent drives a logged-in browser through a job search: it finds listings that offer
one-step applications, walks each application flow to submission, and counts the results.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return logger.Initialize(jsonLogs, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON or YAML config file (flags override its values)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
