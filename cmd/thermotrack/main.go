package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	version = "0.3.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "thermotrack",
	Short: "Temperature set-point dashboard backend",
	Long: `Thermotrack serves a temperature set-point curve, plays it back on a ` +
		`simulated clock and records the realized temperature trace.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "thermotrack v%s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, setpointCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
