package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"topicetl/internal/pathmap"
	"topicetl/internal/tabular"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the file (e.g. "sink.dsn", "columns[1].path").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be joined into a
// ConfigurationError.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// errorsOf joins the error-severity issues.
func errorsOf(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

var knownSinks = map[string]struct{}{
	"csv":      {},
	"postgres": {},
	"sqlite":   {},
	"mysql":    {},
	"mssql":    {},
}

// ValidateTopic checks a topic file after ApplyDefaults. columns is the
// mapping's column list, used to check key_column and dedupe_keys; pass nil
// to skip those checks.
func ValidateTopic(t Topic, columns []string) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(t.Topic) == "" {
		add(SeverityError, "topic", "topic must not be empty")
	}
	if len(t.Brokers) == 0 {
		add(SeverityError, "brokers", "at least one broker address is required")
	}
	for i, b := range t.Brokers {
		if strings.TrimSpace(b) == "" {
			add(SeverityError, fmt.Sprintf("brokers[%d]", i), "broker address must not be empty")
			continue
		}
		if _, _, err := net.SplitHostPort(b); err != nil {
			add(SeverityWarning, fmt.Sprintf("brokers[%d]", i), "broker %q has no port; the client will fail to connect", b)
		}
	}

	switch t.Offset {
	case "earliest", "latest":
	default:
		add(SeverityError, "offset", "unknown offset %q; want earliest or latest", t.Offset)
	}

	if t.IdleTimeout < 0 {
		add(SeverityWarning, "idle_timeout", "negative idle timeout disables it; extraction runs until the end of partitions or cancellation")
	}
	if t.PollInterval <= 0 {
		add(SeverityError, "poll_interval", "poll interval must be positive")
	} else if t.IdleTimeout > 0 && t.PollInterval > t.IdleTimeout {
		add(SeverityWarning, "poll_interval", "poll interval %s exceeds idle timeout %s; polls are capped by the idle budget", t.PollInterval, t.IdleTimeout)
	}
	if t.PublishTimeout < 0 {
		add(SeverityError, "publish_timeout", "publish timeout must not be negative")
	}

	switch t.Codec.Kind {
	case "json":
		if t.Codec.Schema != "" {
			add(SeverityWarning, "codec.schema", "schema is ignored by the json codec")
		}
	case "avro":
		if strings.TrimSpace(t.Codec.Schema) == "" {
			add(SeverityError, "codec.schema", "avro codec requires a schema file")
		}
	default:
		add(SeverityError, "codec.kind", "unknown codec %q; want json or avro", t.Codec.Kind)
	}

	issues = append(issues, validateSink(t.Sink)...)

	if columns != nil {
		has := make(map[string]bool, len(columns))
		for _, c := range columns {
			has[c] = true
		}
		if t.KeyColumn != "" && !has[t.KeyColumn] {
			add(SeverityError, "key_column", "key column %q is not in the mapping", t.KeyColumn)
		}
		for i, k := range t.DedupeKeys {
			if !has[k] {
				add(SeverityError, fmt.Sprintf("dedupe_keys[%d]", i), "dedupe key %q is not in the mapping", k)
			}
		}
	}
	if len(t.DedupeKeys) > 0 && !t.Dedupe {
		add(SeverityWarning, "dedupe_keys", "dedupe_keys has no effect while dedupe is false")
	}
	return issues
}

func validateSink(s Sink) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if _, ok := knownSinks[s.Kind]; !ok {
		add(SeverityError, "sink.kind", "unknown sink %q; want csv, postgres, sqlite, mysql or mssql", s.Kind)
		return issues
	}
	if _, err := tabular.ParseComma(s.Comma); err != nil {
		add(SeverityError, "sink.comma", "%v", err)
	}
	if !s.IsSQL() {
		if s.DSN != "" || s.Table != "" {
			add(SeverityWarning, "sink", "dsn and table are ignored by the csv sink")
		}
		return issues
	}
	if strings.TrimSpace(s.DSN) == "" {
		add(SeverityError, "sink.dsn", "%s sink requires a dsn", s.Kind)
	}
	if strings.TrimSpace(s.Table) == "" {
		add(SeverityError, "sink.table", "%s sink requires a table", s.Kind)
	}
	if s.BatchSize < 0 {
		add(SeverityError, "sink.batch_size", "batch size must not be negative")
	}
	return issues
}

// ValidateMapping checks a mapping file without building the table, so that
// every problem is reported at once.
func ValidateMapping(m MappingFile) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if len(m.Columns) == 0 {
		add(SeverityError, "columns", "mapping must list at least one column")
		return issues
	}
	seen := make(map[string]int, len(m.Columns))
	for i, c := range m.Columns {
		at := fmt.Sprintf("columns[%d]", i)
		name := strings.TrimSpace(c.Name)
		if name == "" {
			add(SeverityError, at+".name", "column name must not be empty")
		} else if first, dup := seen[name]; dup {
			add(SeverityError, at+".name", "column %q already defined at columns[%d]", name, first)
		} else {
			seen[name] = i
		}
		if _, err := pathmap.Parse(c.Path); err != nil {
			add(SeverityError, at+".path", "%v", err)
		} else if strings.TrimSpace(c.Path) == "" || c.Path == "$" {
			add(SeverityWarning, at+".path", "path addresses the whole message")
		}
		if _, err := pathmap.ParseHint(c.Type); err != nil {
			add(SeverityError, at+".type", "%v", err)
		}
		if c.Required && c.Default != nil {
			add(SeverityWarning, at+".required", "column has a default, so required never fails")
		}
	}
	return issues
}
