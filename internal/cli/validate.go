package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/spf13/cobra"
)

// JobSummary describes a parsed job without secrets.
type JobSummary struct {
	URL        string `json:"url"`
	Method     string `json:"method"`
	Pagination string `json:"pagination"`
	DataPath   string `json:"data_path,omitempty"`
	MaxPages   int    `json:"max_pages,omitempty"`
	MaxRecords int    `json:"max_records,omitempty"`
	SaveMode   string `json:"save_mode"`
	OutputDir  string `json:"output_dir"`
	Cache      bool   `json:"cache"`
	Upload     string `json:"upload,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a job document without fetching",
		Long: `Parse and validate a job document, apply defaults and environment
overrides, and print a summary. No network requests are made.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args[0])
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, path string) error {
	job, err := config.Load(path)
	if err != nil {
		return err
	}

	limits := job.Pagination.Limits()
	summary := JobSummary{
		URL:        joinURL(job.BaseURL, job.Endpoint),
		Method:     job.Method,
		Pagination: string(job.Pagination.Type()),
		DataPath:   limits.DataPath,
		MaxPages:   limits.MaxPages,
		MaxRecords: limits.MaxRecords,
		SaveMode:   string(job.Output.Mode),
		OutputDir:  job.Output.Dir,
		Cache:      job.Cache.Enabled(),
	}
	if job.Output.Upload != nil {
		summary.Upload = "s3://" + job.Output.Upload.Bucket + "/" + job.Output.Upload.Prefix
	}

	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(out, "✓ %s is valid\n", path)
	fmt.Fprintf(out, "  %s %s\n", summary.Method, summary.URL)
	fmt.Fprintf(out, "  pagination: %s\n", summary.Pagination)
	fmt.Fprintf(out, "  save_mode:  %s -> %s\n", summary.SaveMode, summary.OutputDir)
	return nil
}

func joinURL(base, endpoint string) string {
	if endpoint == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(endpoint, "/")
}
