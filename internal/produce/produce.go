// Package produce replays rows onto a topic, one acknowledged message at a
// time. The first publish failure stops the run; nothing is retried.
package produce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"topicetl/internal/codec"
	"topicetl/internal/convert"
	"topicetl/internal/mapping"
	"topicetl/internal/metrics"
)

// RowSource yields rows until io.EOF.
type RowSource interface {
	Next() (convert.Row, error)
}

// Publisher sends one message and returns once it is acknowledged.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// PublishError reports the 1-based row whose publish failed.
type PublishError struct {
	Row   int64
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish row %d to %s: %v", e.Row, e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Options tunes a run.
type Options struct {
	Topic string
	// KeyColumn names the column used as message key; empty sends no key.
	KeyColumn string
}

// Summary reports the outcome of a run.
type Summary struct {
	Topic     string
	Published int64
	Stopped   bool // canceled before the source was exhausted
	Elapsed   time.Duration
}

// Loop wires a row source, a table, a codec and a publisher.
type Loop struct {
	Source    RowSource
	Table     *mapping.Table
	Codec     codec.Codec
	Publisher Publisher
	Opts      Options
}

// Run publishes every row in order. Cancellation is checked before each row
// and ends the run cleanly with Stopped set.
func (l *Loop) Run(ctx context.Context) (sum Summary, err error) {
	start := time.Now()
	topic := l.Opts.Topic
	sum.Topic = topic
	defer func() {
		sum.Elapsed = time.Since(start)
		metrics.RecordRow(topic, metrics.KindPublished, sum.Published)
		metrics.RecordStep(topic, "produce", err, sum.Elapsed)
		if err != nil {
			log.Printf("produce: failed topic=%s published=%d elapsed=%s err=%v",
				topic, sum.Published, sum.Elapsed.Truncate(time.Millisecond), err)
			return
		}
		log.Printf("produce: completed topic=%s published=%d stopped=%t elapsed=%s",
			topic, sum.Published, sum.Stopped, sum.Elapsed.Truncate(time.Millisecond))
	}()

	for n := int64(1); ; n++ {
		if ctx.Err() != nil {
			sum.Stopped = true
			return sum, nil
		}
		row, rerr := l.Source.Next()
		if errors.Is(rerr, io.EOF) {
			return sum, nil
		}
		if rerr != nil {
			return sum, fmt.Errorf("produce %s: read row %d: %w", topic, n, rerr)
		}

		payload, eerr := l.Codec.Encode(convert.ToMessage(row, l.Table))
		if eerr != nil {
			return sum, fmt.Errorf("produce %s: encode row %d: %w", topic, n, eerr)
		}
		var key []byte
		if l.Opts.KeyColumn != "" {
			if k, ok := row.Get(l.Opts.KeyColumn); ok {
				key = []byte(k)
			}
		}

		if perr := l.Publisher.Publish(ctx, key, payload); perr != nil {
			if ctx.Err() != nil && errors.Is(perr, ctx.Err()) {
				sum.Stopped = true
				return sum, nil
			}
			return sum, &PublishError{Row: n, Topic: topic, Err: perr}
		}
		sum.Published++
	}
}
