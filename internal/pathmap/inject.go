package pathmap

import (
	"fmt"
	"strconv"
	"strings"

	"topicetl/internal/value"
)

// Hint selects how Inject turns column text into a typed leaf.
type Hint string

const (
	HintAuto      Hint = "auto"
	HintString    Hint = "string"
	HintInt       Hint = "int"
	HintFloat     Hint = "float"
	HintBool      Hint = "bool"
	HintJSON      Hint = "json"
	HintNullEmpty Hint = "null-empty"
)

// ParseHint validates a hint name. The empty string means HintAuto.
func ParseHint(s string) (Hint, error) {
	switch h := Hint(strings.ToLower(strings.TrimSpace(s))); h {
	case "":
		return HintAuto, nil
	case HintAuto, HintString, HintInt, HintFloat, HintBool, HintJSON, HintNullEmpty:
		return h, nil
	default:
		return "", fmt.Errorf("unknown type hint %q", s)
	}
}

// Infer converts text to a leaf value according to hint. It never fails: a
// hint whose parse does not succeed yields a string leaf.
//
// In auto mode a numeric pattern only becomes a number when its canonical
// form equals the text, so "007" or "1.50" stay strings and survive a
// Resolve round trip unchanged.
func Infer(text string, hint Hint) *value.Value {
	switch hint {
	case HintString:
		return value.String(text)
	case HintInt:
		if isIntLiteral(text) {
			return value.Number(value.CanonicalNumber(text))
		}
	case HintFloat:
		if n := value.CanonicalNumber(text); n != "" {
			return value.Number(n)
		}
	case HintBool:
		if b, err := strconv.ParseBool(strings.TrimSpace(text)); err == nil {
			return value.Boolean(b)
		}
	case HintJSON:
		if v, err := value.ParseJSON([]byte(text)); err == nil {
			return v
		}
	case HintNullEmpty:
		if text == "" {
			return value.Null()
		}
		return inferAuto(text)
	default:
		return inferAuto(text)
	}
	return value.String(text)
}

func inferAuto(text string) *value.Value {
	if isIntLiteral(text) || isDecimalLiteral(text) {
		if value.CanonicalNumber(text) == text {
			return value.Number(text)
		}
		return value.String(text)
	}
	switch text {
	case "true":
		return value.Boolean(true)
	case "false":
		return value.Boolean(false)
	}
	return value.String(text)
}

// isIntLiteral matches -?[0-9]+.
func isIntLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isDecimalLiteral matches -?[0-9]+\.[0-9]+.
func isDecimalLiteral(s string) bool {
	whole, frac, ok := strings.Cut(s, ".")
	if !ok || frac == "" {
		return false
	}
	if !isIntLiteral(whole) {
		return false
	}
	for i := 0; i < len(frac); i++ {
		if frac[i] < '0' || frac[i] > '9' {
			return false
		}
	}
	return true
}

// Inject sets the leaf addressed by p inside root to the value inferred from
// text and returns the (possibly new) root. Missing containers are created:
// maps for key steps and sequences for index steps, with sequences padded
// with nulls up to the index. Anything of the wrong kind along the way is
// replaced. Injecting at the root path returns the leaf itself.
func (p Path) Inject(root *value.Value, text string, hint Hint) *value.Value {
	return p.InjectValue(root, Infer(text, hint))
}

// InjectValue is Inject with an already built leaf.
func (p Path) InjectValue(root *value.Value, leaf *value.Value) *value.Value {
	if len(p.steps) == 0 {
		return leaf
	}
	root = ensureContainer(root, p.steps[0])
	cur := root
	for i, st := range p.steps {
		if i == len(p.steps)-1 {
			setChild(cur, st, leaf)
			break
		}
		child := ensureContainer(getChild(cur, st), p.steps[i+1])
		setChild(cur, st, child)
		cur = child
	}
	return root
}

// Inject parses expr and injects text into root. Unlike Resolve, a bad
// expression is reported since it indicates a broken mapping.
func Inject(expr string, root *value.Value, text string, hint Hint) (*value.Value, error) {
	p, err := Parse(expr)
	if err != nil {
		return root, err
	}
	return p.Inject(root, text, hint), nil
}

// ensureContainer returns v if it already has the kind next needs, or a new
// empty container of that kind. A map value without storage gets one.
func ensureContainer(v *value.Value, next Step) *value.Value {
	if next.IsIndex {
		if v != nil && v.Kind == value.KindSeq {
			return v
		}
		return value.NewSeq()
	}
	if v != nil && v.Kind == value.KindMap {
		if v.Map == nil {
			v.Map = &value.Map{}
		}
		return v
	}
	return value.NewMap()
}

func getChild(v *value.Value, st Step) *value.Value {
	if st.IsIndex {
		if st.Index < len(v.Items) {
			return v.Items[st.Index]
		}
		return nil
	}
	child, _ := v.Map.Get(st.Key)
	return child
}

func setChild(v *value.Value, st Step, child *value.Value) {
	if !st.IsIndex {
		v.Set(st.Key, child)
		return
	}
	for len(v.Items) <= st.Index {
		v.Items = append(v.Items, value.Null())
	}
	v.Items[st.Index] = child
}
