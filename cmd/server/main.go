package main

import (
	"fmt"
	"os"

	"github.com/nadmax/radar/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	load := func() (*config.Config, error) {
		if err := config.LoadDotEnv(); err != nil {
			return nil, err
		}
		return config.Load(v, cfgFile)
	}

	root := &cobra.Command{
		Use:          "radar-server",
		Short:        "Task tracking API with live change notifications",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (yaml)")
	flags.String("addr", "", "listen address")
	flags.String("db-driver", "", "database driver (sqlite, postgres or mysql)")
	flags.String("db-dsn", "", "database connection string")
	flags.String("redis-addr", "", "redis address for cross-instance notifications")
	flags.String("log-level", "", "log level")
	flags.String("log-format", "", "log format (text or json)")

	// Unset flags fall back to the environment, the config file and then the
	// registered defaults.
	for key, name := range map[string]string{
		"http.addr":       "addr",
		"database.driver": "db-driver",
		"database.dsn":    "db-dsn",
		"redis.addr":      "redis-addr",
		"logging.level":   "log-level",
		"logging.format":  "log-format",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the tasks table and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), cfg)
		},
	})

	return root
}
