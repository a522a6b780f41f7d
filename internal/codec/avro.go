package codec

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/linkedin/goavro/v2"

	"topicetl/internal/value"
)

// Avro encodes messages as Avro binary datums of one schema.
//
// goavro hands records back as Go maps, so decoded map keys are sorted to
// keep rows deterministic. Unions keep goavro's native shape: a non-null
// union value is a single-key map named after the branch type, e.g.
// {"email":{"string":"a@b"}}, and mapping paths address it as email.string.
type Avro struct {
	codec *goavro.Codec
}

// NewAvro compiles schema.
func NewAvro(schema string) (*Avro, error) {
	if schema == "" {
		return nil, errors.New("codec: avro requires a schema")
	}
	c, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, fmt.Errorf("codec: compile avro schema: %w", err)
	}
	return &Avro{codec: c}, nil
}

func (a *Avro) Name() string { return "avro" }

func (a *Avro) Decode(payload []byte) (*value.Value, error) {
	native, rest, err := a.codec.NativeFromBinary(payload)
	if err != nil {
		return nil, &DecodeError{Codec: "avro", Err: err}
	}
	if len(rest) > 0 {
		return nil, &DecodeError{Codec: "avro", Err: fmt.Errorf("%d trailing bytes", len(rest))}
	}
	return fromNative(native), nil
}

func (a *Avro) Encode(v *value.Value) ([]byte, error) {
	b, err := a.codec.BinaryFromNative(nil, toNative(v))
	if err != nil {
		return nil, fmt.Errorf("avro encode: %w", err)
	}
	return b, nil
}

func fromNative(n any) *value.Value {
	switch x := n.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Boolean(x)
	case int:
		return value.Number(strconv.Itoa(x))
	case int32:
		return value.Number(strconv.FormatInt(int64(x), 10))
	case int64:
		return value.Number(strconv.FormatInt(x, 10))
	case float32:
		return floatValue(float64(x), 32)
	case float64:
		return floatValue(x, 64)
	case string:
		return value.String(x)
	case []byte:
		return value.String(string(x))
	case time.Time:
		return value.String(x.UTC().Format(time.RFC3339Nano))
	case time.Duration:
		return value.Number(strconv.FormatInt(x.Milliseconds(), 10))
	case *big.Rat:
		return value.Number(x.FloatString(ratScale(x)))
	case []any:
		seq := value.NewSeq()
		for _, it := range x {
			seq.Items = append(seq.Items, fromNative(it))
		}
		return seq
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := value.NewMap()
		for _, k := range keys {
			m.Map.Set(k, fromNative(x[k]))
		}
		return m
	default:
		return value.String(fmt.Sprint(x))
	}
}

func floatValue(f float64, bits int) *value.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return value.String(strconv.FormatFloat(f, 'g', -1, bits))
	}
	return value.Number(strconv.FormatFloat(f, 'f', -1, bits))
}

// ratScale picks enough fractional digits to print r exactly when its
// denominator is a power of ten, which is how decimal logical types arrive.
func ratScale(r *big.Rat) int {
	d := new(big.Int).Set(r.Denom())
	ten := big.NewInt(10)
	scale := 0
	for d.Cmp(big.NewInt(1)) > 0 && scale < 38 {
		q, m := new(big.Int).QuoRem(d, ten, new(big.Int))
		if m.Sign() != 0 {
			return 18
		}
		d = q
		scale++
	}
	return scale
}

func toNative(v *value.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case value.KindBool:
		return v.Bool
	case value.KindNumber:
		if i, err := strconv.ParseInt(v.Text, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(v.Text, 64); err == nil {
			return f
		}
		return v.Text
	case value.KindString:
		return v.Text
	case value.KindSeq:
		out := make([]any, len(v.Items))
		for i, it := range v.Items {
			out[i] = toNative(it)
		}
		return out
	case value.KindMap:
		out := make(map[string]any, v.Map.Len())
		for _, k := range v.Map.Keys() {
			child, _ := v.Map.Get(k)
			out[k] = toNative(child)
		}
		return out
	}
	return nil
}
