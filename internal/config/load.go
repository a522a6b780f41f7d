package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"topicetl/internal/mapping"
)

// File name suffixes, in lookup order.
var (
	topicSuffixes   = []string{".cfg", ".yaml", ".yml"}
	mappingSuffixes = []string{".map", ".map.yaml", ".map.yml"}
)

// ErrNotFound is wrapped by ConfigurationError when no file exists for a
// topic.
var ErrNotFound = errors.New("configuration file not found")

// ConfigurationError reports a missing, unreadable or invalid configuration.
type ConfigurationError struct {
	Topic string
	Path  string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config %s: %v", e.Topic, e.Err)
	}
	return fmt.Sprintf("config %s: %s: %v", e.Topic, e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Bundle is everything a run needs for one topic.
type Bundle struct {
	Topic       Topic
	TopicPath   string
	Mapping     MappingFile
	MappingPath string
	Table       *mapping.Table
	// Schema is the Avro schema text, read from Topic.Codec.Schema.
	Schema string
	// Issues holds every finding, warnings included.
	Issues []Issue
}

// Load reads, defaults and validates the topic and mapping files of topic
// from dir. Any error-severity issue fails with a *ConfigurationError; the
// returned Bundle still carries the issues for reporting.
func Load(dir, topic string) (*Bundle, error) {
	b := &Bundle{}

	tp, err := findFile(dir, topic, topicSuffixes)
	if err != nil {
		return b, &ConfigurationError{Topic: topic, Err: err}
	}
	b.TopicPath = tp
	if err := decodeFile(tp, &b.Topic); err != nil {
		return b, &ConfigurationError{Topic: topic, Path: tp, Err: err}
	}
	b.Topic.ApplyDefaults(topic)

	mp, err := findFile(dir, topic, mappingSuffixes)
	if err != nil {
		return b, &ConfigurationError{Topic: topic, Err: err}
	}
	b.MappingPath = mp
	if err := decodeFile(mp, &b.Mapping); err != nil {
		return b, &ConfigurationError{Topic: topic, Path: mp, Err: err}
	}

	mIssues := ValidateMapping(b.Mapping)
	b.Issues = append(b.Issues, mIssues...)
	if HasErrors(mIssues) {
		return b, &ConfigurationError{Topic: topic, Path: mp, Err: errorsOf(mIssues)}
	}
	tbl, err := b.Mapping.Table()
	if err != nil {
		return b, &ConfigurationError{Topic: topic, Path: mp, Err: err}
	}
	b.Table = tbl

	tIssues := ValidateTopic(b.Topic, tbl.Columns())
	b.Issues = append(b.Issues, tIssues...)
	if HasErrors(tIssues) {
		return b, &ConfigurationError{Topic: topic, Path: tp, Err: errorsOf(tIssues)}
	}

	if b.Topic.Codec.Kind == "avro" {
		sp := b.Topic.Codec.Schema
		if !filepath.IsAbs(sp) {
			sp = filepath.Join(dir, sp)
		}
		raw, err := os.ReadFile(sp)
		if err != nil {
			return b, &ConfigurationError{Topic: topic, Path: tp, Err: fmt.Errorf("codec.schema: %w", err)}
		}
		b.Schema = string(raw)
	}

	for _, iss := range b.Issues {
		log.Printf("config: %s topic=%s", iss.Error(), topic)
	}
	return b, nil
}

// findFile returns the first dir/<topic><suffix> that exists.
func findFile(dir, topic string, suffixes []string) (string, error) {
	for _, sfx := range suffixes {
		p := filepath.Join(dir, topic+sfx)
		st, err := os.Stat(p)
		if err == nil && !st.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	want := make([]string, len(suffixes))
	for i, s := range suffixes {
		want[i] = topic + s
	}
	return "", fmt.Errorf("%w in %s (looked for %s)", ErrNotFound, dir, strings.Join(want, ", "))
}

// decodeFile decodes JSON or YAML by extension. Unknown fields are errors.
func decodeFile(path string, into any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(into); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode yaml: %w", err)
		}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// Entry is one topic found in a configuration folder.
type Entry struct {
	Topic   string `json:"topic"`
	Config  string `json:"config"`
	Mapping string `json:"mapping,omitempty"`
}

// ListTopics returns the topics of dir that have a topic file, sorted by
// name. Mapping is empty when the topic has no mapping file.
func ListTopics(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	found := map[string]*Entry{}
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if topic, ok := trimAny(name, mappingSuffixes); ok {
			e := entry(found, topic)
			if e.Mapping == "" {
				e.Mapping = filepath.Join(dir, name)
			}
			continue
		}
		if topic, ok := trimAny(name, topicSuffixes); ok {
			e := entry(found, topic)
			if e.Config == "" {
				e.Config = filepath.Join(dir, name)
			}
		}
	}

	out := make([]Entry, 0, len(found))
	for _, e := range found {
		if e.Config != "" {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}

func entry(m map[string]*Entry, topic string) *Entry {
	e, ok := m[topic]
	if !ok {
		e = &Entry{Topic: topic}
		m[topic] = e
	}
	return e
}

// trimAny strips the longest matching suffix.
func trimAny(name string, suffixes []string) (string, bool) {
	best := ""
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) && len(s) > len(best) {
			best = s
		}
	}
	if best == "" || len(name) == len(best) {
		return "", false
	}
	return strings.TrimSuffix(name, best), true
}
