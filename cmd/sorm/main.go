package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	supportlog "github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sormlabs/sorm/cmd/sorm/internal/config"
	"github.com/sormlabs/sorm/cmd/sorm/internal/daemon"
)

func main() {
	var cfg config.Config

	loadConfig := func() {
		if err := cfg.SetValues(os.LookupEnv); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	newLogger := func() *supportlog.Entry {
		logger := supportlog.New()
		logger.SetLevel(cfg.LogLevel)
		if cfg.LogFormat == config.LogFormatJSON {
			logger.UseJSONFormatter()
		}
		return logger
	}

	rootCmd := &cobra.Command{
		Use:   "sorm",
		Short: "Serve database tables through transactional caches",
		Run: func(_ *cobra.Command, _ []string) {
			loadConfig()
			daemon.MustNew(&cfg, newLogger()).Run()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the migrations of --migrations-dir and exit",
		Run: func(_ *cobra.Command, _ []string) {
			loadConfig()
			if cfg.MigrationsDir == "" {
				fmt.Fprintln(os.Stderr, "--migrations-dir is required")
				os.Exit(1)
			}
			logger := newLogger()
			db, err := daemon.OpenDB(context.Background(), &cfg, logger, nil)
			if err != nil {
				logger.WithError(err).Fatal("could not apply migrations")
			}
			if err := db.Close(); err != nil {
				logger.WithError(err).Fatal("could not close database")
			}
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information and exit",
		Run: func(_ *cobra.Command, _ []string) {
			if config.CommitHash == "" {
				fmt.Printf("sorm dev\n")
			} else {
				// avoid printing the branch for the main branch
				// ( since that's what the end-user would typically have )
				// but keep it for internal build ( so that we'll know from which branch it
				// was built )
				branch := config.Branch
				if branch == "main" {
					branch = ""
				}
				fmt.Printf("sorm %s (%s) %s\n", config.Version, config.CommitHash, branch)
			}
		},
	}

	genConfigFileCmd := &cobra.Command{
		Use:   "gen-config-file",
		Short: "Generate a toml config file with default settings",
		Run: func(_ *cobra.Command, _ []string) {
			// We can't call 'Validate' here because the config file we are
			// generating might not be complete. e.g. It might not have a table
			// declared yet.
			if err := cfg.SetValues(os.LookupEnv); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			out, err := cfg.MarshalTOML()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Println(string(out))
		},
	}

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(genConfigFileCmd)

	if err := cfg.AddFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "could not parse config options: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "could not run: %v\n", err)
		os.Exit(1)
	}
}
