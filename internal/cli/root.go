// Package cli implements the docstore command line interface: schema
// migration plus one command per engine operation, each running inside its
// own transaction with write-conflict retry.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/docstore/internal/resourceconfig"
	"github.com/roach88/docstore/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Driver    string // "sqlite" | "postgres"
	Database  string // file path for sqlite, DSN for postgres
	Resources string // resource definitions file
	Verbose   bool
	Format    string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidDrivers defines the supported database drivers.
var ValidDrivers = []string{"sqlite", "postgres"}

// NewRootCommand creates the root command for the docstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docstore",
		Short: "Document store over relational tables",
		Long:  "Stores JSON resource documents in a relational backend with referential integrity between documents and conflict-safe concurrent writes.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !contains(ValidDrivers, opts.Driver) {
				return fmt.Errorf("invalid driver %q: must be one of %v", opts.Driver, ValidDrivers)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "sqlite", "database driver (sqlite|postgres)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "docstore.db", "database path (sqlite) or DSN (postgres)")
	cmd.PersistentFlags().StringVar(&opts.Resources, "resources", "resources.yaml", "resource definitions file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewUpsertCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

func contains(valid []string, s string) bool {
	for _, v := range valid {
		if v == s {
			return true
		}
	}
	return false
}

// formatter builds the output formatter writing to the command's stdout.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format: o.Format,
		Writer: cmd.OutOrStdout(),
	}
}

// logger builds the CLI logger. Verbose mode enables debug-level console
// output on stderr; otherwise only errors are shown.
func (o *RootOptions) logger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if o.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	return cfg.Build()
}

// openStore opens the configured backend and applies the schema.
func (o *RootOptions) openStore(ctx context.Context) (*store.Store, error) {
	switch o.Driver {
	case "postgres":
		return store.OpenPostgres(ctx, o.Database)
	default:
		return store.OpenSQLite(ctx, o.Database)
	}
}

// loadResources loads and validates the resource definitions file.
func (o *RootOptions) loadResources() (*resourceconfig.Config, error) {
	cfg, err := resourceconfig.Load(o.Resources)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading resource definitions", err)
	}
	return cfg, nil
}
