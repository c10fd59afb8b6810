// Package cli implements the rest-ingest command line.
package cli

import (
	"fmt"

	"github.com/Sternrassler/rest-ingest/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	Pretty   bool
	Format   string // "json" | "text"
}

// Version is the release reported by --version and ingest_build_info.
var Version = "0.1.0"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "rest-ingest",
		Version: Version,
		Short:   "Ingest paginated REST APIs into JSON files",
		Long: `rest-ingest fetches every page of a REST endpoint using one of six
pagination conventions (none, offset_limit, page_number, cursor, next_url,
link_header) and writes the records as JSON array files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&opts.Pretty, "pretty", false, "human-readable console logs")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// logger configures logging to the command's stderr.
func (o *RootOptions) logger(cmd *cobra.Command) zerolog.Logger {
	return logging.Setup(logging.Config{
		Level:  logging.LogLevel(o.LogLevel),
		Pretty: o.Pretty,
		Output: cmd.ErrOrStderr(),
	})
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
