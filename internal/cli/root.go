package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kobra-dev/kobra/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Families string // directory of CUE family files; empty uses the built-ins
	DB       string // project database path
	Backend  string // "sqlite" | "badger"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidBackends defines the allowed project store backends.
var ValidBackends = []string{BackendSQLite, BackendBadger}

// NewRootCommand creates the root command for the kobra CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "kobra",
		Version: ir.EngineVersion,
		Short:   "kobra - block pipelines for machine learning",
		Long: `Compile and run block graphs of model families.

A graph wires create, fit and predict blocks of registered model families
together with print and plot blocks. kobra checks the wiring, compiles the
graph to an ordered program and runs it, keeping console and plot output
in a project that can be saved and resumed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidBackends, opts.Backend) {
				return fmt.Errorf("invalid backend %q: must be one of %v", opts.Backend, ValidBackends)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Families, "families", "", "directory of CUE family files (defaults to the built-in families)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "kobra.db", "project database path")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", BackendSQLite, "project store backend (sqlite|badger)")

	cmd.AddCommand(NewFamiliesCommand(opts))
	cmd.AddCommand(NewBlocksCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewResumeCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}
