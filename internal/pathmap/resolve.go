package pathmap

import (
	"strconv"

	"topicetl/internal/value"
)

// Lookup descends v along p and returns the addressed node. ok is false when
// a key is missing, an index is out of range, or a step does not match the
// node kind (e.g. indexing into a scalar).
func (p Path) Lookup(v *value.Value) (*value.Value, bool) {
	if v == nil {
		return nil, false
	}
	cur := v
	for _, st := range p.steps {
		if st.IsIndex {
			if cur.Kind != value.KindSeq || st.Index >= len(cur.Items) {
				return nil, false
			}
			cur = cur.Items[st.Index]
		} else {
			if cur.Kind != value.KindMap {
				return nil, false
			}
			next, ok := cur.Map.Get(st.Key)
			if !ok {
				return nil, false
			}
			cur = next
		}
		if cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Resolve returns the text form of the node addressed by p, or ok=false when
// the node is absent. A present null resolves to "" with ok=true.
func (p Path) Resolve(v *value.Value) (string, bool) {
	node, ok := p.Lookup(v)
	if !ok {
		return "", false
	}
	return Text(node), true
}

// Resolve parses expr and resolves it against v. An unparsable expression is
// reported as absent rather than as an error.
func Resolve(expr string, v *value.Value) (string, bool) {
	p, err := Parse(expr)
	if err != nil {
		return "", false
	}
	return p.Resolve(v)
}

// Text converts a node to its column text. Conversion is total:
//
//	null           ""
//	bool           "true" / "false"
//	number         canonical decimal ("42", "3.5"), no grouping
//	string         the string itself
//	map, sequence  compact canonical JSON of the subtree
func Text(v *value.Value) string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case value.KindNull:
		return ""
	case value.KindBool:
		return strconv.FormatBool(v.Bool)
	case value.KindNumber:
		if n := value.CanonicalNumber(v.Text); n != "" {
			return n
		}
		return v.Text
	case value.KindString:
		return v.Text
	default:
		return value.JSON(v)
	}
}
