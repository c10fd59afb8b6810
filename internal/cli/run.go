package cli

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/Sternrassler/rest-ingest/pkg/ingest"
	"github.com/Sternrassler/rest-ingest/pkg/metrics"
	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	OutputDir       string
	MetricsTextfile string
}

// RunSummary is printed after a successful run.
type RunSummary struct {
	RunID   string   `json:"run_id"`
	Records int      `json:"records"`
	Dir     string   `json:"dir"`
	Files   []string `json:"files"`
	Objects []string `json:"objects,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run an ingestion job",
		Long: `Load a YAML or JSON job document, fetch every page and write the records.

Environment variables prefixed with INGEST_ override secrets in the document,
for example INGEST_BEARER_TOKEN or INGEST_AUTH_PASSWORD. A .env file in the
working directory is loaded first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "override output_dir from the job")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")

	return cmd
}

func runIngest(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions, path string) error {
	logger := rootOpts.logger(cmd)

	if opts.MetricsTextfile != "" {
		metrics.RegisterBuildInfo(Version)
		defer func() {
			if werr := metrics.WriteTextfile(opts.MetricsTextfile); werr != nil {
				logger.Warn().Err(werr).Str("path", opts.MetricsTextfile).Msg("Failed to write metrics textfile")
			}
		}()
	}

	job, err := config.Load(path)
	if err != nil {
		return err
	}
	if opts.OutputDir != "" {
		job.Output.Dir = opts.OutputDir
	}

	res, err := ingest.Run(cmd.Context(), job, ingest.WithLogger(logger))
	if err != nil {
		return err
	}

	summary := RunSummary{
		RunID:   res.RunID,
		Records: len(res.Records),
		Dir:     res.Dir,
		Files:   res.Paths,
		Objects: res.Keys,
	}

	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(out, "✓ %d records written to %s\n", summary.Records, summary.Dir)
	for _, f := range summary.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	for _, o := range summary.Objects {
		fmt.Fprintf(out, "  uploaded %s\n", o)
	}
	return nil
}
