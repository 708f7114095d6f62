package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "brewd",
	Short: "Coffee machine backend: brewing API, telemetry sync and refill alerts.",
	Long: `brewd serves the coffee machine HTTP API, keeps machine levels in sync ` +
		`with the sensor gateway and sends refill alerts. The check subcommand runs ` +
		`the brewing precondition checks offline.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
