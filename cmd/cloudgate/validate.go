package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/cloudgate/adapters/mock"
	"github.com/artpar/cloudgate/adapters/sqlite"
	"github.com/artpar/cloudgate/config"
	"github.com/spf13/cobra"
)

const (
	checkMark = "✓"
	crossMark = "✗"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the cloudgate configuration file.

Checks:
  - YAML syntax is valid
  - Values are in range
  - The seed catalog parses (when configured)
  - The database is writable (optional)

Examples:
  cloudgate validate
  cloudgate validate --config /etc/cloudgate/cloudgate.yaml --check-database`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if the sqlite database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	_, hashed := cfg.Auth.Secret()
	fmt.Fprintf(out, "  %s Listen: %s\n", checkMark, cfg.Server.Addr())
	fmt.Fprintf(out, "  %s Driver: %s (lifecycle %s)\n", checkMark, cfg.Driver.Name, cfg.Driver.Lifecycle)
	fmt.Fprintf(out, "  %s Account: %s (bcrypt: %v)\n", checkMark, cfg.Auth.User, hashed)
	fmt.Fprintf(out, "  %s Storage: %s\n", checkMark, cfg.Storage.Driver)

	if cfg.Driver.SeedFile != "" {
		if _, err := mock.LoadCatalog(cfg.Driver.SeedFile); err != nil {
			fmt.Fprintf(out, "  %s Seed catalog\n", crossMark)
			return fmt.Errorf("seed catalog: %w", err)
		}
		fmt.Fprintf(out, "  %s Seed catalog: %s\n", checkMark, cfg.Driver.SeedFile)
	}

	if validateCheckDatabase && cfg.Storage.Driver == "sqlite" {
		if err := checkDatabaseWritable(cmd.Context(), cfg.Storage.DSN); err != nil {
			fmt.Fprintf(out, "  %s Database writable\n", crossMark)
			return fmt.Errorf("database: %w", err)
		}
		fmt.Fprintf(out, "  %s Database writable\n", checkMark)
	}

	fmt.Fprintln(out, "\nConfiguration is valid")
	return nil
}

func checkDatabaseWritable(ctx context.Context, dsn string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return err
		}
	}
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate(ctx)
}
