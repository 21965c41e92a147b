// Package config holds the settings of one scan run and the helpers that
// build them from defaults and the environment. Flags are layered on top by
// cmd/rowscan: flag > env > default.
package config

import (
	"runtime"
	"strconv"
	"strings"

	"rowscan/internal/rowparse"
	"rowscan/internal/scanner"
	"rowscan/internal/storage"
)

// Run modes.
const (
	ModeCount     = "count"
	ModeAggregate = "aggregate"
)

// Metrics backends.
const (
	MetricsNone        = "none"
	MetricsPushgateway = "pushgateway"
	MetricsDatadog     = "datadog"
)

// Run is the complete configuration of a scan.
type Run struct {
	Job     string  `json:"job"`
	Source  Source  `json:"source"`
	Scan    Scan    `json:"scan"`
	Mode    string  `json:"mode"`
	Report  Report  `json:"report"`
	Export  Export  `json:"export"`
	Metrics Metrics `json:"metrics"`
}

// Source names the input file and how to open it ("file" or "mmap").
type Source struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Scan sizes the worker pool and the per-line limits.
type Scan struct {
	Workers    int `json:"workers"`
	SpanSize   int `json:"span_size"`
	MaxLineLen int `json:"max_line_len"`
	MaxKeyLen  int `json:"max_key_len"`
}

// Report selects the output format for aggregate mode.
type Report struct {
	Format string `json:"format"`
}

// Export optionally writes the aggregate to a table. An empty Kind disables
// the export.
type Export struct {
	Kind      string `json:"kind"`
	DSN       string `json:"dsn"`
	Table     string `json:"table"`
	BatchSize int    `json:"batch_size"`
}

// Enabled reports whether an export was requested.
func (e Export) Enabled() bool { return e.Kind != "" }

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr"`
}

// Default returns the built-in configuration.
func Default() Run {
	return Run{
		Job:    "rowscan",
		Source: Source{Kind: "file"},
		Scan: Scan{
			Workers:    runtime.NumCPU(),
			SpanSize:   scanner.DefaultSpanSize,
			MaxLineLen: scanner.DefaultMaxLineLen,
			MaxKeyLen:  rowparse.DefaultMaxKeyLen,
		},
		Mode:    ModeCount,
		Report:  Report{Format: "auto"},
		Export:  Export{Table: "rowscan_agg", BatchSize: storage.DefaultBatchSize},
		Metrics: Metrics{Backend: MetricsNone},
	}
}

// ApplyEnv overrides r with the ROWSCAN_* and metrics environment variables
// read through getenv. Unset or malformed numeric values are ignored.
func ApplyEnv(r *Run, getenv func(string) string) {
	r.Scan.Workers = getenvInt(getenv, "ROWSCAN_WORKERS", r.Scan.Workers)
	r.Scan.SpanSize = getenvInt(getenv, "ROWSCAN_SPAN_SIZE", r.Scan.SpanSize)
	r.Scan.MaxLineLen = getenvInt(getenv, "ROWSCAN_MAX_LINE", r.Scan.MaxLineLen)
	if v := strings.TrimSpace(getenv("METRICS_BACKEND")); v != "" {
		r.Metrics.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv("PUSHGATEWAY_URL")); v != "" {
		r.Metrics.PushgatewayURL = v
	}
	if v := strings.TrimSpace(getenv("DATADOG_ADDR")); v != "" {
		r.Metrics.DatadogAddr = v
	}
}

func getenvInt(getenv func(string) string, key string, def int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
