package value

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// AppendJSON appends the compact canonical JSON encoding of v to dst. Map
// keys are written in insertion order and numbers in canonical decimal form,
// so equal trees always encode to identical bytes.
func AppendJSON(dst []byte, v *Value) []byte {
	if v == nil {
		return append(dst, "null"...)
	}
	switch v.Kind {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		return strconv.AppendBool(dst, v.Bool)
	case KindNumber:
		n := CanonicalNumber(v.Text)
		if n == "" {
			// Not a usable literal; keep the output valid JSON.
			return appendString(dst, v.Text)
		}
		return append(dst, n...)
	case KindString:
		return appendString(dst, v.Text)
	case KindMap:
		dst = append(dst, '{')
		for i, k := range v.Map.Keys() {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendString(dst, k)
			dst = append(dst, ':')
			child, _ := v.Map.Get(k)
			dst = AppendJSON(dst, child)
		}
		return append(dst, '}')
	case KindSeq:
		dst = append(dst, '[')
		for i, it := range v.Items {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendJSON(dst, it)
		}
		return append(dst, ']')
	}
	return append(dst, "null"...)
}

// JSON returns the compact canonical JSON encoding of v.
func JSON(v *Value) string { return string(AppendJSON(nil, v)) }

// appendString writes s as a JSON string without HTML escaping.
func appendString(dst []byte, s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	return append(dst, bytes.TrimRight(buf.Bytes(), "\n")...)
}

// CanonicalNumber returns the canonical decimal text of a numeric literal, or
// "" if lit is not a number.
//
// Integer literals are returned verbatim (minus a leading '+' and redundant
// leading zeros) so values wider than float64 are not rounded. Anything with
// a fraction or exponent goes through float64 and is printed in the shortest
// plain decimal form: "42.50" -> "42.5", "1e3" -> "1000".
func CanonicalNumber(lit string) string {
	s := strings.TrimPrefix(strings.TrimSpace(lit), "+")
	if s == "" {
		return ""
	}
	if isIntLiteral(s) {
		neg := s[0] == '-'
		digits := strings.TrimLeft(strings.TrimPrefix(s, "-"), "0")
		if digits == "" {
			return "0"
		}
		if neg {
			return "-" + digits
		}
		return digits
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return ""
	}
	out := strconv.FormatFloat(f, 'f', -1, 64)
	if out == "-0" {
		return "0"
	}
	return out
}

// isIntLiteral reports whether s is an optionally negative run of digits.
func isIntLiteral(s string) bool {
	if s[0] == '-' {
		s = s[1:]
	}
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
