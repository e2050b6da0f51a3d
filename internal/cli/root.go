// Package cli implements the classmodel command line: describing classes
// through any backend, building and validating offline indexes, and
// saving and restoring model snapshots.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/classmodel/internal/loader"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to classmodel.yaml; empty searches the working directory
	Backend string // overrides the configured backend
	Index   string // overrides index.dir

	units *loader.Units
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. units are the program units
// the reflective backend resolves and the default resource tree of the
// pool backend.
func NewRootCommand(units *loader.Units) *cobra.Command {
	opts := &RootOptions{units: units}

	cmd := &cobra.Command{
		Use:   "classmodel",
		Short: "classmodel - backend-independent class and annotation model",
		Long: `Inspect program units as class descriptions with typed annotation usages.

Classes resolve through one of three backends: reflective (registered Go
types), index (an offline CUE index) or pool (lazily read YAML units).
Resolved models can be saved as snapshots and restored without a backend.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (default ./classmodel.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.Backend, "backend", "b", "", "backend (reflective|index|pool)")
	cmd.PersistentFlags().StringVar(&opts.Index, "index", "", "CUE index directory for the index backend")

	// Add subcommands
	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
