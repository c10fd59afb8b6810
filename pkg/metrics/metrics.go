// Package metrics documents the Prometheus metrics exported by rest-ingest.
// All metrics are defined in their respective packages (client, pagination,
// cache, ratelimit, sink, ingest) to keep those packages self-contained.
//
// Ingestion runs are batch jobs, so besides the default registry this package
// can write the current metric values to a node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by rest-ingest.
// Package metrics are registered via promauto; collectors defined here are
// registered explicitly.
var Registry = prometheus.DefaultRegisterer

var (
	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingest_build_info",
		Help: "Build information of the running binary; always 1",
	}, []string{"version", "goversion"})

	registerOnce sync.Once
)

// RegisterBuildInfo registers ingest_build_info with Registry and sets it for
// version. Safe to call more than once.
func RegisterBuildInfo(version string) {
	registerOnce.Do(func() {
		Registry.MustRegister(buildInfo)
	})
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// Gatherer is the registry read by WriteTextfile.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path in the Prometheus text
// format. The file is replaced atomically.
func WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Build Metrics (pkg/metrics):
//   - ingest_build_info{version, goversion} (Gauge): Always 1
//
// Run Metrics (pkg/ingest):
//   - ingest_runs_total{strategy, result} (Counter): Runs by strategy and result (success, error)
//   - ingest_run_duration_seconds{strategy} (Histogram): Duration of complete runs
//
// Page Metrics (pkg/pagination):
//   - ingest_pages_total{strategy} (Counter): Non-empty pages fetched
//   - ingest_records_total{strategy} (Counter): Records accumulated
//   - ingest_fetch_duration_seconds{strategy} (Histogram): Duration of a complete page loop
//
// Request Metrics (pkg/client):
//   - ingest_requests_total{method, status} (Counter): Requests by method and HTTP status
//   - ingest_request_duration_seconds{method} (Histogram): Request duration
//   - ingest_errors_total{class} (Counter): Failed attempts by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - ingest_retries_total{error_class} (Counter): Retry attempts by error class
//   - ingest_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ingest_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ingest_rate_limit_remaining (Gauge): Requests left in the server's advertised window
//   - ingest_rate_limit_wait_seconds{reason} (Histogram): Time spent waiting (token_bucket, window_reset)
//
// Cache Metrics (pkg/cache):
//   - ingest_cache_hits_total (Counter): Pages served from Redis
//   - ingest_cache_misses_total (Counter): Cache misses
//   - ingest_cache_errors_total{operation} (Counter): Cache operation errors
//
// Output Metrics (pkg/sink):
//   - ingest_files_written_total{mode} (Counter): Output files by save mode
//   - ingest_bytes_written_total (Counter): Bytes written to output files
//   - ingest_uploads_total{result} (Counter): Object uploads by result
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ingest_cache_hits_total[5m])) /
//   (sum(rate(ingest_cache_hits_total[5m])) + sum(rate(ingest_cache_misses_total[5m])))
//
//   # Failed runs
//   increase(ingest_runs_total{result="error"}[1d])
//
//   # Retry pressure
//   rate(ingest_retries_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ingest_request_duration_seconds_bucket[5m]))
