package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"topicetl/internal/broker"
	"topicetl/internal/codec"
	"topicetl/internal/config"
	"topicetl/internal/datasource/file"
	"topicetl/internal/extract"
	"topicetl/internal/produce"
	"topicetl/internal/storage"
	"topicetl/internal/tabular"
)

// publisher is what production needs from the broker side.
type publisher interface {
	produce.Publisher
	Close() error
}

// Test hooks.
var (
	now           = time.Now
	newPollSource = func(ctx context.Context, cfg broker.Config) (extract.PollSource, error) {
		c, err := broker.NewConsumer(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	newPublisher = func(cfg broker.Config) (publisher, error) {
		p, err := broker.NewProducer(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
)

type app struct {
	settings Settings
	stdout   io.Writer
	stderr   io.Writer
}

func brokerConfig(t config.Topic) (broker.Config, error) {
	off, err := broker.ParseOffsetPolicy(t.Offset)
	if err != nil {
		return broker.Config{}, err
	}
	return broker.Config{
		Brokers:        t.Brokers,
		Topic:          t.Topic,
		Offset:         off,
		ClientID:       t.ClientID,
		PublishTimeout: t.PublishTimeout.D(),
	}, nil
}

func (a *app) extractCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	topicsFile := fs.String("topics-file", "", "file listing one topic per line")
	if err := fs.Parse(args); err != nil {
		return usagef("extract: %v", err)
	}

	topics := fs.Args()
	if *topicsFile != "" {
		listed, err := file.ReadTopicList(*topicsFile)
		if err != nil {
			return err
		}
		topics = append(topics, listed...)
	}
	if len(topics) == 0 {
		return usagef("extract: at least one topic is required")
	}

	for _, topic := range topics {
		if ctx.Err() != nil {
			log.Printf("extract: interrupted, skipping remaining topics")
			return nil
		}
		if err := a.extractTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) extractTopic(ctx context.Context, topic string) error {
	b, err := config.Load(a.settings.ConfigDir, topic)
	if err != nil {
		return err
	}
	cdc, err := codec.New(b.Topic.Codec.Kind, b.Schema)
	if err != nil {
		return &config.ConfigurationError{Topic: topic, Path: b.TopicPath, Err: err}
	}
	bcfg, err := brokerConfig(b.Topic)
	if err != nil {
		return &config.ConfigurationError{Topic: topic, Path: b.TopicPath, Err: err}
	}

	src, err := newPollSource(ctx, bcfg)
	if err != nil {
		return err
	}
	sink, target, err := a.openSink(ctx, b)
	if err != nil {
		_ = src.Close()
		return err
	}

	loop := &extract.Loop{
		Source: src,
		Codec:  cdc,
		Table:  b.Table,
		Sink:   sink,
		Opts: extract.Options{
			Topic:        b.Topic.Topic,
			IdleTimeout:  b.Topic.IdleTimeout.D(),
			PollInterval: b.Topic.PollInterval.D(),
			Dedupe:       b.Topic.Dedupe,
			DedupeKeys:   b.Topic.DedupeKeys,
		},
	}
	sum, err := loop.Run(ctx)
	if err != nil {
		return err
	}

	size := ""
	if st, serr := os.Stat(target); serr == nil {
		size = ", " + humanize.Bytes(uint64(st.Size()))
	}
	fmt.Fprintf(a.stdout, "%s: %s rows to %s%s (skipped %s, duplicates %s, %s, %s)\n",
		sum.Topic, humanize.Comma(sum.Rows), target, size,
		humanize.Comma(sum.Skipped), humanize.Comma(sum.Duplicates), sum.Reason,
		sum.Elapsed.Truncate(time.Millisecond))
	return nil
}

// openSink returns the configured row sink and a description of its target:
// the output file path, or kind:table for SQL sinks.
func (a *app) openSink(ctx context.Context, b *config.Bundle) (extract.Sink, string, error) {
	s := b.Topic.Sink
	cols := b.Table.Columns()

	if s.IsSQL() {
		scfg := storage.Config{Kind: s.Kind, DSN: s.DSN, Table: s.Table, Columns: cols}
		repo, err := storage.New(ctx, scfg)
		if err != nil {
			return nil, "", err
		}
		if s.AutoCreateTable {
			if err := storage.EnsureTable(ctx, scfg, repo); err != nil {
				repo.Close()
				return nil, "", err
			}
		}
		ts, err := storage.NewTableSink(ctx, repo, scfg, s.BatchSize)
		if err != nil {
			repo.Close()
			return nil, "", err
		}
		return ts, s.Kind + ":" + s.Table, nil
	}

	comma, err := tabular.ParseComma(s.Comma)
	if err != nil {
		return nil, "", err
	}
	path := file.Tagger{Now: now}.Path(a.settings.Destination, b.Topic.Topic)
	w, err := file.NewLocal(path).Create(ctx)
	if err != nil {
		return nil, "", err
	}
	tw, err := tabular.NewWriter(w, cols, tabular.Options{Comma: comma})
	if err != nil {
		_ = w.Close()
		return nil, "", err
	}
	log.Printf("extract: writing topic=%s file=%s", b.Topic.Topic, path)
	return tw, path, nil
}

func (a *app) produceCmd(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usagef("produce: want <topic> <file>")
	}
	topic, path := args[0], args[1]

	b, err := config.Load(a.settings.ConfigDir, topic)
	if err != nil {
		return err
	}
	cdc, err := codec.New(b.Topic.Codec.Kind, b.Schema)
	if err != nil {
		return &config.ConfigurationError{Topic: topic, Path: b.TopicPath, Err: err}
	}
	bcfg, err := brokerConfig(b.Topic)
	if err != nil {
		return &config.ConfigurationError{Topic: topic, Path: b.TopicPath, Err: err}
	}
	comma, err := tabular.ParseComma(b.Topic.Sink.Comma)
	if err != nil {
		return &config.ConfigurationError{Topic: topic, Path: b.TopicPath, Err: err}
	}

	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return err
	}
	r, err := tabular.NewReader(rc, tabular.Options{Comma: comma})
	if err != nil {
		_ = rc.Close()
		return fmt.Errorf("produce %s: %s: %w", topic, path, err)
	}
	defer r.Close()
	for _, c := range r.Columns() {
		if _, ok := b.Table.Lookup(c); !ok {
			log.Printf("produce: column %q of %s is not mapped and will be ignored", c, path)
		}
	}

	pub, err := newPublisher(bcfg)
	if err != nil {
		return err
	}
	loop := &produce.Loop{
		Source:    r,
		Table:     b.Table,
		Codec:     cdc,
		Publisher: pub,
		Opts:      produce.Options{Topic: b.Topic.Topic, KeyColumn: b.Topic.KeyColumn},
	}
	sum, err := loop.Run(ctx)
	if cerr := pub.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return err
	}

	state := "completed"
	if sum.Stopped {
		state = "stopped"
	}
	fmt.Fprintf(a.stdout, "%s: %s messages published from %s (%s, %s)\n",
		sum.Topic, humanize.Comma(sum.Published), path, state, sum.Elapsed.Truncate(time.Millisecond))
	return nil
}

func (a *app) validateCmd(args []string) error {
	if len(args) == 0 {
		return usagef("validate: at least one topic is required")
	}
	var errs []error
	for _, topic := range args {
		b, err := config.Load(a.settings.ConfigDir, topic)
		for _, iss := range b.Issues {
			fmt.Fprintf(a.stderr, "%s: %s: %s: %s\n", topic, iss.Severity, iss.Path, iss.Message)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(a.stdout, "%s: configuration is valid (%d columns)\n", topic, b.Table.Len())
	}
	return errors.Join(errs...)
}

func (a *app) listCmd() error {
	entries, err := config.ListTopics(a.settings.ConfigDir)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tCONFIG\tMAPPING")
	for _, e := range entries {
		m := e.Mapping
		if m == "" {
			m = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Topic, e.Config, m)
	}
	return tw.Flush()
}

func (a *app) configCmd(args []string) error {
	var out any = a.settings
	switch len(args) {
	case 0:
	case 1:
		b, err := config.Load(a.settings.ConfigDir, args[0])
		if err != nil {
			return err
		}
		out = struct {
			Settings Settings           `json:"settings"`
			Topic    config.Topic       `json:"topic"`
			Mapping  config.MappingFile `json:"mapping"`
		}{a.settings, b.Topic, b.Mapping}
	default:
		return usagef("config: at most one topic")
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
