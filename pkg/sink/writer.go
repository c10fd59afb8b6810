// Package sink persists ingested records as indented JSON array files and
// optionally uploads them to S3-compatible object storage.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for persisted output.
var (
	filesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_files_written_total",
		Help: "Total output files written by save mode",
	}, []string{"mode"})

	bytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_bytes_written_total",
		Help: "Total bytes written to output files",
	})
)

// TimestampLayout formats the timestamp in derived filenames.
const TimestampLayout = "20060102_150405"

// Writer writes record sets according to a PersistencePolicy.
type Writer struct {
	policy config.PersistencePolicy
	logger zerolog.Logger
}

// NewWriter creates a writer. Dir defaults to config.DefaultOutputDir and
// Mode to single.
func NewWriter(policy config.PersistencePolicy, logger zerolog.Logger) *Writer {
	if policy.Dir == "" {
		policy.Dir = config.DefaultOutputDir
	}
	if policy.Mode == "" {
		policy.Mode = config.SaveSingle
	}
	return &Writer{policy: policy, logger: logger}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.policy.Dir
}

// Write persists records and returns the written paths in order. Either all
// files are written or none remain.
//
// Single mode always writes one file, "[]" for no records. Batch mode writes
// ceil(len(records)/BatchSize) files and none for no records.
func (w *Writer) Write(records []json.RawMessage, endpoint string, now time.Time) ([]string, error) {
	if err := os.MkdirAll(w.policy.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	name := w.policy.Filename
	if name == "" {
		name = FileName(endpoint, now)
	}

	switch w.policy.Mode {
	case config.SaveSingle:
		path := filepath.Join(w.policy.Dir, name)
		if err := writeAtomic(path, records); err != nil {
			return nil, err
		}
		filesWritten.WithLabelValues(string(config.SaveSingle)).Inc()
		w.logger.Info().
			Str("path", path).
			Int("records", len(records)).
			Msg("Wrote output file")
		return []string{path}, nil

	case config.SaveBatch:
		if w.policy.BatchSize <= 0 {
			return nil, fmt.Errorf("batch_size must be > 0 (got %d)", w.policy.BatchSize)
		}
		var written []string
		for i, chunk := range Chunks(records, w.policy.BatchSize) {
			path := filepath.Join(w.policy.Dir, BatchName(name, i+1))
			if err := writeAtomic(path, chunk); err != nil {
				removeAll(written, w.logger)
				return nil, err
			}
			written = append(written, path)
			filesWritten.WithLabelValues(string(config.SaveBatch)).Inc()
		}
		w.logger.Info().
			Str("dir", w.policy.Dir).
			Int("files", len(written)).
			Int("records", len(records)).
			Msg("Wrote batch files")
		return written, nil

	default:
		return nil, fmt.Errorf("unknown save mode %q", w.policy.Mode)
	}
}

// FileName derives "<endpoint with / as _>_<timestamp>.json", or
// "api_data_<timestamp>.json" when the endpoint is empty.
func FileName(endpoint string, now time.Time) string {
	stem := strings.ReplaceAll(strings.Trim(endpoint, "/"), "/", "_")
	if stem == "" {
		stem = "api_data"
	}
	return stem + "_" + now.Format(TimestampLayout) + ".json"
}

// BatchName inserts "_batch_NNNN" before the extension of name.
func BatchName(name string, n int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_batch_%04d%s", strings.TrimSuffix(name, ext), n, ext)
}

// Chunks splits records into consecutive slices of at most size elements.
func Chunks(records []json.RawMessage, size int) [][]json.RawMessage {
	var out [][]json.RawMessage
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

// Encode renders records as an indented JSON array. Record bytes are kept as
// received apart from whitespace; HTML characters are not escaped.
func Encode(records []json.RawMessage) ([]byte, error) {
	if records == nil {
		records = []json.RawMessage{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return buf.Bytes(), nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// into place.
func writeAtomic(path string, records []json.RawMessage) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	bytesWritten.Add(float64(len(data)))
	return nil
}

func removeAll(paths []string, logger zerolog.Logger) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", p).Msg("Failed to remove partial output")
		}
	}
}
