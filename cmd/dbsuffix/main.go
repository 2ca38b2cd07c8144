package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joestump/dbsuffix/internal/config"
	"github.com/joestump/dbsuffix/internal/db"
	"github.com/joestump/dbsuffix/internal/mcpserver"
	"github.com/joestump/dbsuffix/internal/migrate"
	"github.com/joestump/dbsuffix/internal/report"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "dbsuffix",
		Short: "Migrate legacy SQLite database files to the SQLite.db naming scheme",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return nil
			}
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config %s: %w", configFile, err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&configFile, "config", "", "optional config file (toml, yaml or json)")
	f.String("files-dir", "", "application private files directory")
	f.String("databases-dir", "", "databases directory (default: sibling \"databases\" of --files-dir)")
	f.String("journal", "", "path to the SQLite migration journal (disabled when empty)")
	f.Bool("verify", false, "run an SQLite quick_check on every copied database")
	f.Bool("dry-run", false, "print what would be copied or deleted without touching disk")

	// Viper keys use underscores (files_dir) so they match the env var
	// suffix after stripping the DBSUFFIX_ prefix.
	bindFlag := func(viperKey, flagName string) {
		_ = viper.BindPFlag(viperKey, f.Lookup(flagName))
	}
	bindFlag("files_dir", "files-dir")
	bindFlag("databases_dir", "databases-dir")
	bindFlag("journal", "journal")
	bindFlag("verify", "verify")
	bindFlag("dry_run", "dry-run")

	viper.SetEnvPrefix("DBSUFFIX")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(
		newResolveCmd(),
		newAddSuffixCmd(),
		newDeleteOldCmd(),
		newListCmd(),
		newHistoryCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// withRunner builds a Runner from the loaded config, opening the journal when
// one is configured, and closes everything once fn returns.
func withRunner(fn func(cfg config.Config, r *migrate.Runner) error) error {
	cfg := config.Load()
	roots, err := cfg.Roots()
	if err != nil {
		return err
	}

	r := migrate.NewRunner(roots)
	if cfg.Verify {
		r.Verify = db.Verify
	}
	if cfg.Journal != "" {
		journal, err := db.Open(cfg.Journal)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journal.Close() //nolint:errcheck
		r.Journal = journal

		abs, err := filepath.Abs(cfg.Journal)
		if err != nil {
			return fmt.Errorf("resolve journal path: %w", err)
		}
		r.Exclude = append(r.Exclude, abs)
	}
	return fn(cfg, r)
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <folder>",
		Short: "Print the absolute directory for a logical folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(_ config.Config, r *migrate.Runner) error {
				dir, err := r.Roots.Resolve(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dir)
				return nil
			})
		},
	}
}

func newAddSuffixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-suffix <folder>",
		Short: "Copy legacy .db files into the databases directory with the SQLite.db suffix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, migrate.OpAddSuffix, args[0])
		},
	}
}

func newDeleteOldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-old <folder>",
		Short: "Delete legacy .db files that lack the SQLite.db suffix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, migrate.OpDeleteOld, args[0])
		},
	}
}

func runOperation(cmd *cobra.Command, operation, folder string) error {
	return withRunner(func(cfg config.Config, r *migrate.Runner) error {
		out := cmd.OutOrStdout()
		if cfg.DryRun {
			actions, err := r.Plan(operation, folder)
			if err != nil {
				return err
			}
			for _, a := range actions {
				if a.Destination != "" {
					fmt.Fprintf(out, "would copy %s -> %s\n", a.Source, a.Destination)
				} else {
					fmt.Fprintf(out, "would delete %s\n", a.Source)
				}
			}
			fmt.Fprintf(out, "%d file(s), dry run\n", len(actions))
			return nil
		}

		run := r.AddSuffix
		if operation == migrate.OpDeleteOld {
			run = r.DeleteOld
		}
		if err := run(folder); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s: done\n", operation, folder)
		return nil
	})
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List migrated databases in the databases directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(_ config.Config, r *migrate.Runner) error {
				names, err := r.ListDatabases()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		limit    int
		htmlPath string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded migration runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.Journal == "" {
				return fmt.Errorf("no journal configured (--journal or DBSUFFIX_JOURNAL)")
			}
			journal, err := db.Open(cfg.Journal)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer journal.Close() //nolint:errcheck

			runs, err := journal.ListRuns(limit)
			if err != nil {
				return err
			}

			if htmlPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), report.Markdown(runs))
				return nil
			}
			html, err := report.HTML(runs)
			if err != nil {
				return err
			}
			if err := os.WriteFile(htmlPath, []byte(html), 0644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d run(s) to %s\n", len(runs), htmlPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of runs to show")
	cmd.Flags().StringVar(&htmlPath, "html", "", "write an HTML report to this file instead of printing Markdown")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the migration operations as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(cfg config.Config, r *migrate.Runner) error {
				ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
				defer cancel()

				return mcpserver.NewServer(r, cfg.DryRun).Run(ctx)
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dbsuffix %s\n", config.Version)
		},
	}
}
