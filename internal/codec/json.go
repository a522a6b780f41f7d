package codec

import (
	"topicetl/internal/value"
)

// JSON encodes messages as compact JSON documents. Object key order is kept
// on decode and reproduced on encode.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Decode(payload []byte) (*value.Value, error) {
	v, err := value.ParseJSON(payload)
	if err != nil {
		return nil, &DecodeError{Codec: "json", Err: err}
	}
	return v, nil
}

func (JSON) Encode(v *value.Value) ([]byte, error) {
	return value.AppendJSON(nil, v), nil
}
