package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "democtl",
		Short:        "Networking demo service CLI",
		Long:         "Command-line interface for listing networking demos, submitting demo jobs and polling their status.",
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("server", getEnvDefault("NETDEMO_SERVER", "http://localhost:8000"), "Demo service URL")
	rootCmd.PersistentFlags().StringP("output", "o", "json", "Output format: json or yaml")

	rootCmd.AddCommand(newDemosCmd())
	rootCmd.AddCommand(newDemoCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}

func getEnvDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
