package main

import (
	"context"
	"fmt"
	"os"

	"github.com/artpar/cloudgate/bootstrap"
	"github.com/artpar/cloudgate/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the cloud API server.

The config file is optional. Without it every setting comes from
CLOUDGATE_* environment variables or its default. With it, changes to
logging.level are applied on file change or SIGHUP.

Examples:
  cloudgate serve
  cloudgate serve --config /etc/cloudgate/cloudgate.yaml
  CLOUDGATE_STORAGE_DRIVER=sqlite cloudgate serve`,
	RunE: runServe,
}

var serveHotReload bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveHotReload, "hot-reload", true, "reload config on file change or SIGHUP")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		cfg    *config.Config
		holder *config.Holder
		err    error
	)
	_, statErr := os.Stat(cfgFile)
	switch {
	case statErr == nil && serveHotReload:
		holder, err = config.NewHolder(cfgFile, zerolog.New(os.Stderr).With().Timestamp().Logger())
		if err != nil {
			return err
		}
		cfg = holder.Get()
	default:
		cfg, err = config.LoadWithFallback(cfgFile)
		if err != nil {
			return err
		}
	}

	a, err := bootstrap.New(ctx, cfg, bootstrap.Options{Holder: holder})
	if err != nil {
		if holder != nil {
			holder.Stop()
		}
		return fmt.Errorf("initialize: %w", err)
	}
	return a.Run(ctx)
}
