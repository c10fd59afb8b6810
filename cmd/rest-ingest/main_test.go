package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/rest-ingest/internal/testutil"
)

func TestRunValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte("base_url: https://api.example.com\nendpoint: items\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"validate", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "https://api.example.com/items") {
		t.Errorf("unexpected output: %s", stdout.String())
	}
}

func TestRunIngest(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse("/items", testutil.NewJSONResponse(`{"data":[{"id":1},{"id":2}]}`))

	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	doc := "base_url: " + api.URL() + "\nendpoint: items\npagination:\n  type: none\n  data_path: data\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out := filepath.Join(dir, "out")
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"run", path, "--output-dir", out}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "2 records written") {
		t.Errorf("unexpected output: %s", stdout.String())
	}

	files, err := filepath.Glob(filepath.Join(out, "items_*.json"))
	if err != nil || len(files) != 1 {
		t.Errorf("output files = %v (err %v), want 1", files, err)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing config", []string{"run", filepath.Join(t.TempDir(), "nope.yaml")}, "error:"},
		{"unknown command", []string{"serve"}, "unknown command"},
		{"bad format", []string{"--format", "xml", "validate", "x.yaml"}, "invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tt.args, &stdout, &stderr); code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.want)
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "rest-ingest version") {
		t.Errorf("unexpected version output: %q", stdout.String())
	}
}
