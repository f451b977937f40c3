package main

import (
	"fmt"
	"os"

	"github.com/artpar/cloudgate/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cloudgate",
	Short: "Unified cloud API server and hypermedia client",
	Long: `cloudgate serves one REST vocabulary for cloud resources and
ships a client that discovers it at runtime.

Server:
  cloudgate serve       # Start the API server
  cloudgate validate    # Validate configuration

Client:
  cloudgate api                          # Show driver, version and collections
  cloudgate list instances --filter state=RUNNING
  cloudgate show images img1
  cloudgate action instances inst0 stop
  cloudgate create instance --image img1
  cloudgate states                       # Instance lifecycle`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file path")
}
