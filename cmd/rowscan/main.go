// Command rowscan counts, or aggregates per key, the lines of a large
// `key;value` text file with a pool of parallel scanners.
//
//	rowscan -file measurements.txt                      # lines: N
//	rowscan -file measurements.txt -mode aggregate      # {k=min/mean/max, ...}
//	rowscan -file m.txt -mode aggregate -export sqlite -export-dsn agg.db
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rowscan/internal/config"
	"rowscan/internal/metrics"
	"rowscan/internal/metrics/datadog"
	"rowscan/internal/metrics/prompush"
	"rowscan/internal/report"

	// register all export backends with the storage factory.
	_ "rowscan/internal/storage/all"
)

func main() {
	cfg := config.Default()
	config.ApplyEnv(&cfg, os.Getenv)

	fs := flag.NewFlagSet("rowscan", flag.ExitOnError)
	bindFlags(fs, &cfg)
	validate := fs.Bool("validate", false, "validate the configuration and exit")
	verbose := fs.Bool("v", false, "enable verbose logs")
	_ = fs.Parse(os.Args[1:])
	if cfg.Source.Path == "" && fs.NArg() > 0 {
		cfg.Source.Path = fs.Arg(0)
	}

	issues := config.ValidateRun(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fatalf("configuration is invalid")
	}
	if *validate {
		log.Printf("configuration is valid")
		return
	}

	// Resolve the report format before scanning so a bad format never costs a scan.
	format := report.FormatNone
	if cfg.Mode == config.ModeAggregate {
		var err error
		if format, err = report.Resolve(cfg.Report.Format, os.Stdout); err != nil {
			fatalf("%v", err)
		}
	}

	if flush := setupMetrics(cfg, *verbose); flush != nil {
		defer flush()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *verbose {
		log.Printf("scan: file=%s source=%s mode=%s workers=%d span=%d max_line=%d",
			cfg.Source.Path, cfg.Source.Kind, cfg.Mode, cfg.Scan.Workers, cfg.Scan.SpanSize, cfg.Scan.MaxLineLen)
	}

	start := time.Now()
	res, err := runScan(ctx, cfg)
	if err != nil {
		stop()
		fatalf("%v", err)
	}

	if cfg.Mode == config.ModeCount {
		fmt.Printf("lines: %d\n", res.lines)
	} else if err := report.Write(os.Stdout, format, res.agg); err != nil {
		fatalf("write report: %v", err)
	}
	logSummary(res, time.Since(start), *verbose)
}

// bindFlags registers every run flag with cfg's current values (defaults plus
// environment) as flag defaults, so an explicit flag wins over both.
func bindFlags(fs *flag.FlagSet, cfg *config.Run) {
	fs.StringVar(&cfg.Source.Path, "file", cfg.Source.Path, "input file (or first positional argument)")
	fs.StringVar(&cfg.Source.Kind, "source", cfg.Source.Kind, "how to open the input: file|mmap")
	fs.IntVar(&cfg.Scan.Workers, "workers", cfg.Scan.Workers, "number of parallel scanners (env ROWSCAN_WORKERS)")
	fs.IntVar(&cfg.Scan.SpanSize, "span", cfg.Scan.SpanSize, "bytes claimed per read (env ROWSCAN_SPAN_SIZE)")
	fs.IntVar(&cfg.Scan.MaxLineLen, "max-line", cfg.Scan.MaxLineLen, "longest accepted line in bytes (env ROWSCAN_MAX_LINE)")
	fs.IntVar(&cfg.Scan.MaxKeyLen, "max-key", cfg.Scan.MaxKeyLen, "longest accepted key in bytes")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "count|aggregate")
	fs.StringVar(&cfg.Report.Format, "report", cfg.Report.Format, "aggregate output: auto|summary|lines|none")
	fs.StringVar(&cfg.Export.Kind, "export", cfg.Export.Kind, "export the aggregate to sqlite|postgres (empty disables)")
	fs.StringVar(&cfg.Export.DSN, "export-dsn", cfg.Export.DSN, "export connection string or SQLite path")
	fs.StringVar(&cfg.Export.Table, "export-table", cfg.Export.Table, "export destination table")
	fs.IntVar(&cfg.Export.BatchSize, "export-batch", cfg.Export.BatchSize, "rows per export batch")
	fs.StringVar(&cfg.Metrics.Backend, "metrics-backend", cfg.Metrics.Backend, "metrics backend: none|pushgateway|datadog (env METRICS_BACKEND)")
	fs.StringVar(&cfg.Metrics.PushgatewayURL, "pushgateway-url", cfg.Metrics.PushgatewayURL, "Pushgateway base URL (env PUSHGATEWAY_URL)")
	fs.StringVar(&cfg.Metrics.DatadogAddr, "datadog-addr", cfg.Metrics.DatadogAddr, "DogStatsD address (env DATADOG_ADDR)")
	fs.StringVar(&cfg.Job, "job", cfg.Job, "job name used for metrics")
}

// setupMetrics installs the configured backend and returns its flush func,
// or nil when metrics are disabled. A backend that fails to initialize is
// logged and the no-op backend stays in place.
func setupMetrics(cfg config.Run, verbose bool) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch m := cfg.Metrics; m.Backend {
	case config.MetricsPushgateway:
		b, err = prompush.NewBackend(cfg.Job, m.PushgatewayURL)
	case config.MetricsDatadog:
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			Namespace:  "rowscan.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", m.Backend)
		}
		return nil
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", cfg.Metrics.Backend, err)
		return nil
	}

	log.Printf("metrics: backend=%s job=%s", cfg.Metrics.Backend, cfg.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
