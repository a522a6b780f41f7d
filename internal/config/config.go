// Package config defines the per-topic configuration model: a topic file
// (<topic>.cfg as JSON, or <topic>.yaml/.yml) describing the broker side and
// the run options, and a mapping file (<topic>.map as JSON, or
// <topic>.map.yaml/.map.yml) listing the columns.
//
// Example topic file:
//
//	{
//	  "topic": "orders",
//	  "brokers": ["kafka-1:9092", "kafka-2:9092"],
//	  "offset": "earliest",
//	  "idle_timeout": "10s",
//	  "codec": { "kind": "json" },
//	  "sink":  { "kind": "csv", "comma": ";" }
//	}
//
// Example mapping file:
//
//	{
//	  "columns": [
//	    { "name": "id",   "path": "user.id", "required": true, "type": "int" },
//	    { "name": "name", "path": "user.name", "default": "unknown" }
//	  ]
//	}
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"topicetl/internal/mapping"
	"topicetl/internal/pathmap"
)

// Defaults applied by Topic.ApplyDefaults.
const (
	DefaultOffset       = "earliest"
	DefaultIdleTimeout  = 5 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultCodec        = "json"
	DefaultSink         = "csv"
	DefaultBatchSize    = 1000
)

// Topic is the decoded topic file.
type Topic struct {
	Topic   string   `json:"topic" yaml:"topic"`
	Brokers []string `json:"brokers" yaml:"brokers"`

	// Offset is "earliest" or "latest".
	Offset string `json:"offset" yaml:"offset"`
	// OffsetKind is the older spelling of Offset; Offset wins when both are set.
	OffsetKind string `json:"offsetKind,omitempty" yaml:"offsetKind,omitempty"`

	// IdleTimeout ends an extraction after this long without messages. A
	// negative value disables it.
	IdleTimeout    Duration `json:"idle_timeout" yaml:"idle_timeout"`
	PollInterval   Duration `json:"poll_interval" yaml:"poll_interval"`
	PublishTimeout Duration `json:"publish_timeout,omitempty" yaml:"publish_timeout,omitempty"`

	ClientID   string   `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	KeyColumn  string   `json:"key_column,omitempty" yaml:"key_column,omitempty"`
	Dedupe     bool     `json:"dedupe,omitempty" yaml:"dedupe,omitempty"`
	DedupeKeys []string `json:"dedupe_keys,omitempty" yaml:"dedupe_keys,omitempty"`

	Codec Codec `json:"codec" yaml:"codec"`
	Sink  Sink  `json:"sink" yaml:"sink"`
}

// Codec selects the message encoding.
type Codec struct {
	// Kind is "json" or "avro".
	Kind string `json:"kind" yaml:"kind"`
	// Schema is the Avro schema file, relative to the configuration folder.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Sink selects where extracted rows go.
type Sink struct {
	// Kind is "csv" or a SQL backend: postgres, sqlite, mysql, mssql.
	Kind string `json:"kind" yaml:"kind"`

	// Comma is the csv delimiter; "" means ",", "tab" or "\t" means tab.
	Comma string `json:"comma,omitempty" yaml:"comma,omitempty"`

	DSN             string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table           string `json:"table,omitempty" yaml:"table,omitempty"`
	BatchSize       int    `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	AutoCreateTable bool   `json:"auto_create_table,omitempty" yaml:"auto_create_table,omitempty"`
}

// IsSQL reports whether the sink writes to a database.
func (s Sink) IsSQL() bool {
	switch strings.ToLower(s.Kind) {
	case "postgres", "sqlite", "mysql", "mssql":
		return true
	}
	return false
}

// ApplyDefaults fills unset fields. name is used when the file has no topic.
func (t *Topic) ApplyDefaults(name string) {
	if strings.TrimSpace(t.Topic) == "" {
		t.Topic = name
	}
	if t.Offset == "" {
		t.Offset = t.OffsetKind
	}
	if t.Offset == "" {
		t.Offset = DefaultOffset
	}
	t.Offset = strings.ToLower(strings.TrimSpace(t.Offset))
	t.OffsetKind = ""
	if t.IdleTimeout == 0 {
		t.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if t.PollInterval == 0 {
		t.PollInterval = Duration(DefaultPollInterval)
	}
	if t.Codec.Kind == "" {
		t.Codec.Kind = DefaultCodec
	}
	t.Codec.Kind = strings.ToLower(t.Codec.Kind)
	if t.Sink.Kind == "" {
		t.Sink.Kind = DefaultSink
	}
	t.Sink.Kind = strings.ToLower(t.Sink.Kind)
	if t.Sink.BatchSize == 0 {
		t.Sink.BatchSize = DefaultBatchSize
	}
}

// Duration is a time.Duration that decodes from a Go duration string
// ("750ms", "1m30s") or from a number of seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*d = 0
		return nil
	case float64:
		*d = Duration(v * float64(time.Second))
		return nil
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", n.Line)
	}
	if tag := n.ShortTag(); tag == "!!int" || tag == "!!float" {
		secs, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	if err := d.parse(n.Value); err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	return nil
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MappingFile is the decoded mapping file.
type MappingFile struct {
	Columns []Column `json:"columns" yaml:"columns"`
}

// Column is one mapping file entry.
type Column struct {
	Name     string  `json:"name" yaml:"name"`
	Path     string  `json:"path" yaml:"path"`
	Default  *string `json:"default,omitempty" yaml:"default,omitempty"`
	Required bool    `json:"required,omitempty" yaml:"required,omitempty"`
	Type     string  `json:"type,omitempty" yaml:"type,omitempty"`
}

// Table builds the mapping table.
func (m MappingFile) Table() (*mapping.Table, error) {
	fms := make([]mapping.FieldMapping, len(m.Columns))
	for i, c := range m.Columns {
		fms[i] = mapping.FieldMapping{
			Column:   c.Name,
			Path:     c.Path,
			Default:  c.Default,
			Required: c.Required,
			Type:     pathmap.Hint(c.Type),
		}
	}
	return mapping.NewTable(fms)
}
