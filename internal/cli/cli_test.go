package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/rest-ingest/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJob(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeJob(t, `
base_url: https://api.example.com/
endpoint: /v1/items
pagination:
  type: cursor
  data_path: data
save_mode: batch
batch_size: 50
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	var summary JobSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
	assert.Equal(t, "https://api.example.com/v1/items", summary.URL)
	assert.Equal(t, "GET", summary.Method)
	assert.Equal(t, "cursor", summary.Pagination)
	assert.Equal(t, "data", summary.DataPath)
	assert.Equal(t, "batch", summary.SaveMode)
	assert.False(t, summary.Cache)
}

func TestValidateCommand_Text(t *testing.T) {
	path := writeJob(t, "base_url: https://api.example.com\n")

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "is valid")
	assert.Contains(t, buf.String(), "pagination: none")
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := writeJob(t, "base_url: https://x\npagination: {type: token}\n")

	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pagination type")
}

func TestRunCommand(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.ServePageNumber("/items", testutil.Items(25))

	outDir := filepath.Join(t.TempDir(), "out")
	metricsFile := filepath.Join(t.TempDir(), "ingest.prom")
	path := writeJob(t, `
base_url: `+api.URL()+`
endpoint: items
pagination:
  type: page_number
  page_size: 10
  data_path: items
output_dir: ignored
`)

	stdout := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--format", "json", "run", path, "--output-dir", outDir, "--metrics-textfile", metricsFile})

	require.NoError(t, root.Execute())

	var summary RunSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, 25, summary.Records)
	assert.Equal(t, outDir, summary.Dir)
	require.Len(t, summary.Files, 1)
	assert.FileExists(t, summary.Files[0])
	assert.NotEmpty(t, summary.RunID)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ingest_pages_total")
	assert.Contains(t, string(data), `ingest_build_info{goversion=`)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--format", "xml", "validate", "whatever.yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
