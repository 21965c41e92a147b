package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to the user but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is a dotted path into Run, e.g.
// "scan.workers".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateRun performs static checks over r. It does not touch the
// filesystem or the network.
func ValidateRun(r Run) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(r.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it labels metrics")
	}

	if strings.TrimSpace(r.Source.Path) == "" {
		add(SeverityError, "source.path", "input file is required")
	}
	switch r.Source.Kind {
	case "", "file", "mmap":
	default:
		add(SeverityError, "source.kind", "unknown source kind %q (want file|mmap)", r.Source.Kind)
	}

	s := r.Scan
	if s.Workers < 1 {
		add(SeverityError, "scan.workers", "must be >= 1, got %d", s.Workers)
	}
	if s.MaxLineLen < 1 {
		add(SeverityError, "scan.max_line_len", "must be >= 1, got %d", s.MaxLineLen)
	}
	if s.SpanSize < 1 {
		add(SeverityError, "scan.span_size", "must be >= 1, got %d", s.SpanSize)
	} else if s.MaxLineLen > 0 && s.SpanSize <= s.MaxLineLen {
		add(SeverityWarning, "scan.span_size",
			"span size %d is not larger than the max line length %d; most lines will be recovered at span boundaries",
			s.SpanSize, s.MaxLineLen)
	}

	switch r.Mode {
	case ModeCount:
		if r.Export.Enabled() {
			add(SeverityWarning, "export.kind", "export is ignored in %s mode", ModeCount)
		}
	case ModeAggregate:
		if s.MaxKeyLen < 1 {
			add(SeverityError, "scan.max_key_len", "must be >= 1, got %d", s.MaxKeyLen)
		} else if s.MaxKeyLen >= s.MaxLineLen {
			add(SeverityWarning, "scan.max_key_len",
				"key limit %d leaves no room for a value within max line length %d", s.MaxKeyLen, s.MaxLineLen)
		}
	default:
		add(SeverityError, "mode", "unknown mode %q (want %s|%s)", r.Mode, ModeCount, ModeAggregate)
	}

	switch r.Report.Format {
	case "", "auto", "summary", "lines", "none":
	default:
		add(SeverityError, "report.format", "unknown format %q (want auto|summary|lines|none)", r.Report.Format)
	}

	if e := r.Export; e.Enabled() {
		switch e.Kind {
		case "sqlite", "postgres":
		default:
			add(SeverityError, "export.kind", "unsupported export kind %q (want sqlite|postgres)", e.Kind)
		}
		if strings.TrimSpace(e.DSN) == "" {
			add(SeverityError, "export.dsn", "dsn is required when export is enabled")
		}
		if strings.TrimSpace(e.Table) == "" {
			add(SeverityError, "export.table", "table is required when export is enabled")
		}
		if e.BatchSize < 1 {
			add(SeverityError, "export.batch_size", "must be >= 1, got %d", e.BatchSize)
		}
	}

	m := r.Metrics
	switch m.Backend {
	case "", MetricsNone:
	case MetricsPushgateway:
		if m.PushgatewayURL == "" {
			add(SeverityError, "metrics.pushgateway_url", "required for the %s backend", MetricsPushgateway)
		}
	case MetricsDatadog:
		if m.DatadogAddr == "" {
			add(SeverityError, "metrics.datadog_addr", "required for the %s backend", MetricsDatadog)
		}
	default:
		add(SeverityError, "metrics.backend", "unknown backend %q (want none|pushgateway|datadog)", m.Backend)
	}

	return issues
}
