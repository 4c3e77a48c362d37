package cmd

import (
	"fmt"
	"os"

	"github.com/castworks/processor-api/pkg/config"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "processor-api",
	Short: "Podcast audio processing API server",
	Long: `Castworks Processor API - podcast audio processing and delivery

Ingests master audio recordings, derives a bitrate variant ladder,
packages episodes for HLS playback, extracts preview clips, and
optionally transcribes episodes with per-account usage billing.
Signed CDN cookies for packaged episodes are rotated in the background.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd returns the root command (exported for testing)
func NewRootCmd() *cobra.Command {
	return rootCmd
}

// loadConfig initializes viper and returns the resolved configuration.
// Commands call it lazily so version and help work without a config file.
func loadConfig() (*config.Config, error) {
	if err := config.Init(); err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}
	return config.Load()
}
