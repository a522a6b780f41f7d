package value

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by ParseJSON for input that is not a single
// well-formed JSON document.
var ErrInvalidJSON = errors.New("invalid JSON document")

// ParseJSON decodes a JSON document into a Value tree. Object keys keep their
// document order; a repeated key keeps its first position and its last value.
// Numbers keep their literal text.
func ParseJSON(b []byte) (*Value, error) {
	if !gjson.ValidBytes(b) {
		return nil, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(b)), nil
}

func fromResult(r gjson.Result) *Value {
	switch r.Type {
	case gjson.False:
		return Boolean(false)
	case gjson.True:
		return Boolean(true)
	case gjson.Number:
		return Number(r.Raw)
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			seq := NewSeq()
			r.ForEach(func(_, item gjson.Result) bool {
				seq.Items = append(seq.Items, fromResult(item))
				return true
			})
			return seq
		}
		m := NewMap()
		r.ForEach(func(k, item gjson.Result) bool {
			m.Map.Set(k.Str, fromResult(item))
			return true
		})
		return m
	}
	return Null()
}
