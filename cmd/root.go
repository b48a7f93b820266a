package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "medifly_delivery",
	Short: "Medical drone delivery service",
	Long: `A service that manages medical drone delivery requests, drives
approved deliveries through their preparation and in-flight phases on
wall-clock schedules, and exposes an API for dashboards and tracking.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
