package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-agent/internal/search"
)

var searchURLSettings settingsFlags

var searchURLCmd = &cobra.Command{
	Use:   "search-url",
	Short: "Print the job search URL for the given settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		searchURLSettings.apply(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), search.BuildURL(cfg.ToSettings()))
		return err
	},
}

func init() {
	searchURLSettings.register(searchURLCmd.Flags())
	rootCmd.AddCommand(searchURLCmd)
}
