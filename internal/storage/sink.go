package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"topicetl/internal/convert"
	"topicetl/internal/metrics"
)

// TableSink buffers rows and writes them to a Repository in batches. It is
// the SQL counterpart of the delimited file writer and satisfies the same
// Write/Close contract.
type TableSink struct {
	ctx       context.Context
	repo      Repository
	table     string
	columns   []string
	batchSize int
	batch     [][]any

	total     int64
	batches   int64
	start     time.Time
	lastFlush time.Time
	lastTotal int64
}

// NewTableSink returns a sink that flushes every batchSize rows. Flushes use
// ctx without its cancellation so rows already accepted still reach the table
// when the run is interrupted.
func NewTableSink(ctx context.Context, repo Repository, cfg Config, batchSize int) (*TableSink, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batchSize must be > 0")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository must not be nil")
	}
	now := time.Now()
	return &TableSink{
		ctx:       context.WithoutCancel(ctx),
		repo:      repo,
		table:     cfg.Table,
		columns:   append([]string(nil), cfg.Columns...),
		batchSize: batchSize,
		batch:     make([][]any, 0, batchSize),
		start:     now,
		lastFlush: now,
	}, nil
}

// Write queues row and flushes when the batch is full. Cells are placed by
// column name.
func (s *TableSink) Write(row convert.Row) error {
	rec := make([]any, len(s.columns))
	for i, col := range s.columns {
		if v, ok := row.Get(col); ok {
			rec[i] = v
		}
	}
	s.batch = append(s.batch, rec)
	if len(s.batch) >= s.batchSize {
		return s.Flush()
	}
	return nil
}

// Flush writes any queued rows.
func (s *TableSink) Flush() error {
	if len(s.batch) == 0 {
		return nil
	}
	n, err := s.repo.CopyFrom(s.ctx, s.columns, s.batch)
	s.total += n
	s.batch = s.batch[:0]
	if err != nil {
		log.Printf("storage: copy failed after=%d total=%d err=%v", n, s.total, err)
		return err
	}

	s.batches++
	metrics.RecordBatches(s.table, 1)
	now := time.Now()
	since := now.Sub(s.lastFlush)
	rps := float64(0)
	if since > 0 {
		rps = float64(s.total-s.lastTotal) / since.Seconds()
	}
	log.Printf("storage: batch #%d rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
		s.batches, rps, n, s.total, now.Sub(s.start).Truncate(time.Millisecond))
	s.lastFlush = now
	s.lastTotal = s.total
	return nil
}

// Inserted returns the number of rows the backend has acknowledged.
func (s *TableSink) Inserted() int64 { return s.total }

// Close flushes the remaining rows and closes the repository.
func (s *TableSink) Close() error {
	err := s.Flush()
	s.repo.Close()
	if err != nil {
		return fmt.Errorf("storage: final flush: %w", err)
	}
	return nil
}
