// Package value defines the in-memory representation of one broker message
// payload: a tree of scalars, ordered key/value maps and ordered sequences.
//
// A Value is a tagged variant. Exactly one of the payload fields is meaningful
// for a given Kind:
//
//	Null    -> none
//	Bool    -> Bool
//	Number  -> Text (the numeric literal, e.g. "42" or "3.5")
//	String  -> Text
//	Map     -> Map
//	Seq     -> Items
//
// Containers own their children exclusively; a *Value is never shared between
// two parents.
package value

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindMap
	KindSeq
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindSeq:
		return "seq"
	default:
		return "unknown"
	}
}

// Value is one node of a structured message.
type Value struct {
	Kind  Kind
	Bool  bool
	Text  string
	Map   *Map
	Items []*Value
}

// Null returns a new null value.
func Null() *Value { return &Value{Kind: KindNull} }

// Boolean returns a new boolean value.
func Boolean(b bool) *Value { return &Value{Kind: KindBool, Bool: b} }

// Number returns a new number value holding the literal lit. The literal is
// kept as text so integers wider than float64 survive a round trip.
func Number(lit string) *Value { return &Value{Kind: KindNumber, Text: lit} }

// String returns a new string value.
func String(s string) *Value { return &Value{Kind: KindString, Text: s} }

// NewMap returns a new empty map value.
func NewMap() *Value { return &Value{Kind: KindMap, Map: &Map{}} }

// NewSeq returns a new sequence value with the given items.
func NewSeq(items ...*Value) *Value { return &Value{Kind: KindSeq, Items: items} }

// IsNull reports whether v is nil or a null value.
func (v *Value) IsNull() bool { return v == nil || v.Kind == KindNull }

// IsContainer reports whether v is a map or a sequence.
func (v *Value) IsContainer() bool {
	return v != nil && (v.Kind == KindMap || v.Kind == KindSeq)
}

// Map is an insertion-ordered string-keyed map of values.
type Map struct {
	keys []string
	vals map[string]*Value
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (*Value, bool) {
	if m == nil || m.vals == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Set stores v under key. A new key is appended at the end; an existing key
// keeps its position.
func (m *Map) Set(key string, v *Value) {
	if m.vals == nil {
		m.vals = make(map[string]*Value)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Set is a convenience for v.Map.Set on a map value. It panics if v is not a
// map, which is a programming error.
func (v *Value) Set(key string, child *Value) *Value {
	if v.Kind != KindMap {
		panic("value: Set on " + v.Kind.String())
	}
	if v.Map == nil {
		v.Map = &Map{}
	}
	v.Map.Set(key, child)
	return v
}
