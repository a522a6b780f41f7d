package broker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/IBM/sarama"
)

// Producer publishes to one topic with a synchronous sarama producer, so
// Publish returns only after the broker acknowledged the message.
type Producer struct {
	topic string
	sp    sarama.SyncProducer
}

// newSyncProducer is a test hook.
var newSyncProducer = sarama.NewSyncProducer

// NewProducer connects a producer for cfg.Topic.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("broker: no brokers configured")
	}
	sc := NewSaramaConfig(cfg)
	sp, err := newSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("broker: connect producer %s: %w", strings.Join(cfg.Brokers, ","), err)
	}
	log.Printf("broker: producer created brokers=%s topic=%s client_id=%s",
		strings.Join(cfg.Brokers, ","), cfg.Topic, sc.ClientID)
	return NewProducerFrom(cfg.Topic, sp), nil
}

// NewProducerFrom wraps an existing SyncProducer.
func NewProducerFrom(topic string, sp sarama.SyncProducer) *Producer {
	return &Producer{topic: topic, sp: sp}
}

// Publish sends one message. An empty key is sent as a null key.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(value),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	if _, _, err := p.sp.SendMessage(msg); err != nil {
		return fmt.Errorf("broker: send to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	if err := p.sp.Close(); err != nil {
		return fmt.Errorf("broker: close producer: %w", err)
	}
	return nil
}
