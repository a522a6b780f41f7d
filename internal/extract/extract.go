// Package extract drains a topic into a row sink.
//
// The loop is driven by the pure transition function Next: every poll
// outcome becomes an Event, and the returned Action decides whether to
// convert a message, poll again or finish. The run ends on the end-of-
// partition marker, when the idle budget is used up, or on cancellation;
// all three are clean completions.
//
// On every exit the sink is closed (flushing it) and the poll source is
// closed (unsubscribing).
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zeebo/xxh3"

	"topicetl/internal/codec"
	"topicetl/internal/convert"
	"topicetl/internal/mapping"
	"topicetl/internal/metrics"
)

// PollSource yields broker events. Poll blocks for at most timeout and
// reports EventPollTimeout with the time actually waited when nothing
// arrived.
type PollSource interface {
	Poll(ctx context.Context, timeout time.Duration) (Event, error)
	Close() error
}

// Sink receives converted rows. Close flushes.
type Sink interface {
	Write(convert.Row) error
	Close() error
}

// Defaults for Options.
const (
	DefaultIdleTimeout  = 5 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultErrorSamples = 10
)

// Options tunes a run.
type Options struct {
	Topic        string
	IdleTimeout  time.Duration // zero means DefaultIdleTimeout; negative disables
	PollInterval time.Duration // zero means DefaultPollInterval
	Dedupe       bool
	DedupeKeys   []string // columns forming the dedupe key; empty means all
	ErrorSamples int      // decode errors logged individually; zero means DefaultErrorSamples
}

// Summary reports the outcome of a run.
type Summary struct {
	Topic      string
	Rows       int64
	Skipped    int64
	Duplicates int64
	Reason     Reason
	Elapsed    time.Duration
	// DecodeErrors holds the first ErrorSamples decode error messages.
	DecodeErrors []string
}

// Loop wires a source, a codec, a table and a sink.
type Loop struct {
	Source PollSource
	Codec  codec.Codec
	Table  *mapping.Table
	Sink   Sink
	Opts   Options
}

// Run extracts until completion. A nil error means the run completed (for
// any Reason); fatal errors are a MissingRequiredFieldError, a sink write
// failure or a poll failure. The sink and the source are closed in every
// case and their close errors are joined to the result.
func (l *Loop) Run(ctx context.Context) (sum Summary, err error) {
	opts := l.Opts.withDefaults()
	start := time.Now()
	sum.Topic = opts.Topic

	defer func() {
		cerr := errors.Join(l.closeSink(), l.closeSource())
		if cerr != nil {
			err = errors.Join(err, cerr)
		}
		sum.Elapsed = time.Since(start)
		metrics.RecordRow(opts.Topic, metrics.KindExtracted, sum.Rows)
		metrics.RecordRow(opts.Topic, metrics.KindSkipped, sum.Skipped)
		metrics.RecordRow(opts.Topic, metrics.KindDuplicates, sum.Duplicates)
		metrics.RecordStep(opts.Topic, "extract", err, sum.Elapsed)
		logSummary(sum, err)
	}()

	var seen map[uint64]struct{}
	if opts.Dedupe {
		seen = make(map[uint64]struct{})
	}

	st := Status{State: Subscribed}
	for {
		var ev Event
		if ctx.Err() != nil {
			ev = Event{Kind: EventCanceled}
		} else {
			var perr error
			ev, perr = l.Source.Poll(ctx, PollWait(st, opts.PollInterval, opts.IdleTimeout))
			switch {
			case perr != nil && ctx.Err() != nil:
				ev = Event{Kind: EventCanceled}
			case perr != nil:
				return sum, fmt.Errorf("extract %s: poll: %w", opts.Topic, perr)
			}
		}

		var act Action
		st, act = Next(st, ev, opts.IdleTimeout)
		switch act {
		case ActionFinish:
			sum.Reason = st.Reason
			return sum, nil
		case ActionPoll:
			continue
		}

		row, skip, cerr := l.convert(ev.Message)
		if cerr != nil {
			return sum, fmt.Errorf("extract %s: %w", opts.Topic, cerr)
		}
		if skip != nil {
			sum.Skipped++
			if len(sum.DecodeErrors) < opts.ErrorSamples {
				msg := fmt.Sprintf("partition=%d offset=%d: %v", ev.Message.Partition, ev.Message.Offset, skip)
				sum.DecodeErrors = append(sum.DecodeErrors, msg)
				log.Printf("extract: skip message topic=%s %s", opts.Topic, msg)
			}
			continue
		}
		if seen != nil {
			h := rowHash(row, opts.DedupeKeys)
			if _, dup := seen[h]; dup {
				sum.Duplicates++
				continue
			}
			seen[h] = struct{}{}
		}
		if werr := l.Sink.Write(row); werr != nil {
			return sum, fmt.Errorf("extract %s: write row %d: %w", opts.Topic, sum.Rows+1, werr)
		}
		sum.Rows++
	}
}

// convert decodes and maps one message. A decode failure is returned as
// skip; anything else is fatal.
func (l *Loop) convert(m *Message) (row convert.Row, skip error, err error) {
	if m == nil {
		return nil, errors.New("empty message"), nil
	}
	v, derr := l.Codec.Decode(m.Value)
	if derr != nil {
		var de *codec.DecodeError
		if errors.As(derr, &de) {
			return nil, derr, nil
		}
		return nil, nil, derr
	}
	row, err = convert.ToRow(v, l.Table)
	if err != nil {
		return nil, nil, fmt.Errorf("partition=%d offset=%d: %w", m.Partition, m.Offset, err)
	}
	return row, nil, nil
}

func (l *Loop) closeSink() error {
	if l.Sink == nil {
		return nil
	}
	if err := l.Sink.Close(); err != nil {
		return fmt.Errorf("close sink: %w", err)
	}
	return nil
}

func (l *Loop) closeSource() error {
	if l.Source == nil {
		return nil
	}
	if err := l.Source.Close(); err != nil {
		return fmt.Errorf("close source: %w", err)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout == 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ErrorSamples <= 0 {
		o.ErrorSamples = DefaultErrorSamples
	}
	return o
}

// rowHash hashes the selected cells with a unit separator between them so
// ("ab","c") and ("a","bc") differ.
func rowHash(row convert.Row, keys []string) uint64 {
	h := xxh3.New()
	write := func(s string) {
		_, _ = h.WriteString(s)
		_, _ = h.Write([]byte{0x1f})
	}
	if len(keys) == 0 {
		for _, c := range row {
			write(c.Value)
		}
	} else {
		for _, k := range keys {
			v, _ := row.Get(k)
			write(v)
		}
	}
	return h.Sum64()
}

func logSummary(s Summary, err error) {
	if err != nil {
		log.Printf("extract: failed topic=%s rows=%d skipped=%d duplicates=%d elapsed=%s err=%v",
			s.Topic, s.Rows, s.Skipped, s.Duplicates, s.Elapsed.Truncate(time.Millisecond), err)
		return
	}
	log.Printf("extract: completed topic=%s reason=%s rows=%d skipped=%d duplicates=%d elapsed=%s",
		s.Topic, s.Reason, s.Rows, s.Skipped, s.Duplicates, s.Elapsed.Truncate(time.Millisecond))
}
