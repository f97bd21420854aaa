package main

import (
	"fmt"
	"os"

	"github.com/fentz26/cadence/internal/controlplane"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Cadence - adaptive task scheduler",
	Long: `Cadence plans tasks into free calendar time, watches the schedule for drift,
and learns from how work actually gets done.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of Cadence",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cadence %s\n", controlplane.Version)
	},
}

var (
	apiAddr    string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7466", "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.cadence/config.yaml)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(replanCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
