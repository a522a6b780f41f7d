package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"golang.org/x/sync/errgroup"

	"topicetl/internal/extract"
)

// OffsetSource reports partition offsets. sarama.Client satisfies it.
type OffsetSource interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
}

// item is one element of the merged partition stream. A nil msg marks the
// partition as drained.
type item struct {
	partition int32
	msg       *sarama.ConsumerMessage
}

// Consumer fans every partition of a topic into one poll channel.
//
// For the earliest policy each partition's end offset is captured at start;
// once every partition has delivered up to that offset Poll reports
// EventEndOfPartitions. The latest policy follows the topic and never
// reports the end marker.
type Consumer struct {
	topic   string
	follow  bool
	pending int

	consumer sarama.Consumer
	parts    []sarama.PartitionConsumer
	closers  []io.Closer

	items  chan item
	cancel context.CancelFunc
	group  *errgroup.Group
}

var _ extract.PollSource = (*Consumer)(nil)

// newClient is a test hook.
var newClient = sarama.NewClient

// NewConsumer connects to the brokers and starts consuming cfg.Topic.
func NewConsumer(ctx context.Context, cfg Config) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("broker: no brokers configured")
	}
	sc := NewSaramaConfig(cfg)
	client, err := newClient(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("broker: connect %s: %w", strings.Join(cfg.Brokers, ","), err)
	}
	cons, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("broker: new consumer: %w", err)
	}
	c, err := newConsumer(ctx, cfg, cons, client)
	if err != nil {
		_ = cons.Close()
		_ = client.Close()
		return nil, err
	}
	c.closers = append(c.closers, client)
	log.Printf("broker: consumer created brokers=%s topic=%s offset=%s client_id=%s",
		strings.Join(cfg.Brokers, ","), cfg.Topic, cfg.Offset, sc.ClientID)
	return c, nil
}

func newConsumer(ctx context.Context, cfg Config, consumer sarama.Consumer, offsets OffsetSource) (*Consumer, error) {
	partitions, err := consumer.Partitions(cfg.Topic)
	if err != nil {
		return nil, fmt.Errorf("broker: partitions of %s: %w", cfg.Topic, err)
	}

	c := &Consumer{
		topic:    cfg.Topic,
		follow:   cfg.Offset == OffsetLatest,
		consumer: consumer,
		items:    make(chan item, 256),
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.group, runCtx = errgroup.WithContext(runCtx)

	for _, p := range partitions {
		oldest, err := offsets.GetOffset(cfg.Topic, p, sarama.OffsetOldest)
		if err != nil {
			c.abort()
			return nil, fmt.Errorf("broker: oldest offset %s/%d: %w", cfg.Topic, p, err)
		}
		newest, err := offsets.GetOffset(cfg.Topic, p, sarama.OffsetNewest)
		if err != nil {
			c.abort()
			return nil, fmt.Errorf("broker: newest offset %s/%d: %w", cfg.Topic, p, err)
		}

		start := oldest
		if c.follow {
			start = newest
		}
		if !c.follow && start >= newest {
			// Already drained; never opened.
			continue
		}
		c.pending++

		pc, err := consumer.ConsumePartition(cfg.Topic, p, start)
		if err != nil {
			c.abort()
			return nil, fmt.Errorf("broker: consume %s/%d: %w", cfg.Topic, p, err)
		}
		c.parts = append(c.parts, pc)
		end := newest
		if c.follow {
			end = -1
		}
		p := p
		c.group.Go(func() error { return c.pump(runCtx, pc, p, end) })
	}
	return c, nil
}

// pump forwards one partition's messages and reports the partition drained
// once the message at end-1 has been sent. end < 0 disables the marker.
// Transaction markers are never delivered, so a partition whose last offset
// is a marker is not reported drained; the idle timeout ends that run.
func (c *Consumer) pump(ctx context.Context, pc sarama.PartitionConsumer, p int32, end int64) error {
	msgs, errs := pc.Messages(), pc.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case perr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("broker: partition error topic=%s partition=%d err=%v", c.topic, p, perr)
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if !c.send(ctx, item{partition: p, msg: m}) {
				return nil
			}
			if end >= 0 && m.Offset+1 >= end {
				c.send(ctx, item{partition: p})
				return nil
			}
		}
	}
}

func (c *Consumer) send(ctx context.Context, it item) bool {
	select {
	case c.items <- it:
		return true
	case <-ctx.Done():
		return false
	}
}

// Poll waits up to timeout for the next message.
func (c *Consumer) Poll(ctx context.Context, timeout time.Duration) (extract.Event, error) {
	if !c.follow && c.pending == 0 {
		return extract.Event{Kind: extract.EventEndOfPartitions}, nil
	}
	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return extract.Event{}, ctx.Err()
		case <-timer.C:
			return extract.Event{Kind: extract.EventPollTimeout, Waited: time.Since(start)}, nil
		case it := <-c.items:
			if it.msg == nil {
				c.pending--
				if !c.follow && c.pending == 0 {
					return extract.Event{Kind: extract.EventEndOfPartitions}, nil
				}
				continue
			}
			return extract.Event{Kind: extract.EventMessage, Message: toMessage(it.msg)}, nil
		}
	}
}

// Close stops every partition consumer and releases the client.
func (c *Consumer) Close() error {
	c.cancel()
	var errs []error
	for _, pc := range c.parts {
		pc.AsyncClose()
	}
	if err := c.group.Wait(); err != nil {
		errs = append(errs, err)
	}
	if err := c.consumer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("broker: close consumer: %w", err))
	}
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, fmt.Errorf("broker: close client: %w", err))
		}
	}
	log.Printf("broker: consumer closed topic=%s", c.topic)
	return errors.Join(errs...)
}

func (c *Consumer) abort() {
	c.cancel()
	for _, pc := range c.parts {
		pc.AsyncClose()
	}
	_ = c.group.Wait()
}

func toMessage(m *sarama.ConsumerMessage) *extract.Message {
	return &extract.Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Timestamp,
	}
}
