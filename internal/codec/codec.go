// Package codec converts broker payload bytes to and from value trees.
//
// Two wire encodings are supported:
//
//   - "json": one JSON document per message (the default).
//   - "avro": Avro binary against a fixed writer schema.
//
// Decode failures are reported as *DecodeError so the extraction loop can
// skip the message and carry on.
package codec

import (
	"fmt"
	"strings"

	"topicetl/internal/value"
)

// Codec is the broker boundary: payload bytes in, value tree out, and back.
type Codec interface {
	Name() string
	Decode(payload []byte) (*value.Value, error)
	Encode(v *value.Value) ([]byte, error)
}

// DecodeError wraps any failure to turn a payload into a value tree.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// New returns the codec named kind. schema is the Avro schema text and is
// ignored by the JSON codec.
func New(kind, schema string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "json":
		return JSON{}, nil
	case "avro":
		return NewAvro(schema)
	default:
		return nil, fmt.Errorf("codec: unknown kind %q", kind)
	}
}
