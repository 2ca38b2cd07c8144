package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/joestump/dbsuffix/internal/migrate"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds all runtime configuration for dbsuffix.
type Config struct {
	FilesDir     string // application private files root
	DatabasesDir string // empty means the "databases" sibling of FilesDir
	Journal      string // SQLite journal path; empty disables journaling
	Verify       bool   // quick_check every copied database
	DryRun       bool   // print the plan instead of acting
}

// Load reads configuration from viper, which merges flag values, env vars,
// an optional config file and defaults (set up by the cobra command in
// cmd/dbsuffix).
func Load() Config {
	return Config{
		FilesDir:     viper.GetString("files_dir"),
		DatabasesDir: viper.GetString("databases_dir"),
		Journal:      viper.GetString("journal"),
		Verify:       viper.GetBool("verify"),
		DryRun:       viper.GetBool("dry_run"),
	}
}

// Validate reports configuration that cannot drive a migration.
func (c Config) Validate() error {
	if c.FilesDir == "" {
		return fmt.Errorf("files directory is required (--files-dir or DBSUFFIX_FILES_DIR)")
	}
	return nil
}

// Roots returns the absolute storage roots described by c.
func (c Config) Roots() (migrate.Roots, error) {
	if err := c.Validate(); err != nil {
		return migrate.Roots{}, err
	}
	return migrate.NewRoots(c.FilesDir, c.DatabasesDir)
}
