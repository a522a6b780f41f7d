// Package broker adapts sarama to the extraction and production loops.
//
// A Consumer reads every partition of one topic and exposes the merged
// stream through extract.PollSource. A Producer publishes one message at a
// time and blocks until the broker acknowledges it.
package broker

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// OffsetPolicy selects where a new consumer starts.
type OffsetPolicy string

const (
	OffsetEarliest OffsetPolicy = "earliest"
	OffsetLatest   OffsetPolicy = "latest"
)

// ParseOffsetPolicy accepts "earliest" or "latest" in any case. The empty
// string means earliest.
func ParseOffsetPolicy(s string) (OffsetPolicy, error) {
	switch p := OffsetPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OffsetEarliest, nil
	case OffsetEarliest, OffsetLatest:
		return p, nil
	default:
		return "", fmt.Errorf("broker: unknown offset policy %q (want earliest or latest)", s)
	}
}

// Config is what the adapters need from a topic configuration.
type Config struct {
	Brokers        []string
	Topic          string
	Offset         OffsetPolicy
	ClientID       string        // empty: generated per process
	PublishTimeout time.Duration // zero: sarama default
}

// NewSaramaConfig builds the client configuration shared by consumer and
// producer.
func NewSaramaConfig(cfg Config) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.ClientID = cfg.ClientID
	if sc.ClientID == "" {
		sc.ClientID = NewClientID()
	}

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	if cfg.Offset == OffsetLatest {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	if cfg.PublishTimeout > 0 {
		sc.Producer.Timeout = cfg.PublishTimeout
	}
	return sc
}

// NewClientID returns a unique client id for this process.
func NewClientID() string {
	return "topicetl-" + uuid.NewString()
}

// SetVerbose routes sarama's internal logging to stderr.
func SetVerbose(on bool) {
	if on {
		sarama.Logger = log.New(os.Stderr, "[sarama] ", log.LstdFlags)
		return
	}
	sarama.Logger = log.New(discard{}, "", 0)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
