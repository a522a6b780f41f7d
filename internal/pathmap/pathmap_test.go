package pathmap

import (
	"errors"
	"testing"

	"topicetl/internal/value"
)

func mustJSON(t *testing.T, s string) *value.Value {
	t.Helper()
	v, err := value.ParseJSON([]byte(s))
	if err != nil {
		t.Fatalf("ParseJSON(%s): %v", s, err)
	}
	return v
}

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"$", nil},
		{"user.id", []string{"user", "id"}},
		{"$.user.id", []string{"user", "id"}},
		{"items[2].sku", []string{"items", "[2]", "sku"}},
		{"[0].id", []string{"[0]", "id"}},
		{"$[1]", []string{"[1]"}},
		{"m[0][1]", []string{"m", "[0]", "[1]"}},
		{"a-b.c d", []string{"a-b", "c d"}},
	}
	for _, tt := range tests {
		p, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q) err = %v", tt.in, err)
			continue
		}
		var got []string
		for _, st := range p.Steps() {
			got = append(got, st.String())
		}
		if len(got) != len(tt.want) {
			t.Errorf("Parse(%q) steps = %v; want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Parse(%q) steps = %v; want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"a..b", "a.", ".a", "$.", "a[", "a[x]", "a[-1]", "a[+1]", "a[]", "a]", "a[0]b", "a[99999999]"} {
		_, err := Parse(in)
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q) err = %v; want *SyntaxError", in, err)
		}
	}
}

func TestResolve_Scalars(t *testing.T) {
	msg := mustJSON(t, `{"user":{"id":42,"score":1.50,"ok":false,"nick":null,"name":"ann"},"tags":["x","y"],"big":12345678901234567890}`)
	tests := []struct {
		path string
		want string
	}{
		{"user.id", "42"},
		{"user.score", "1.5"},
		{"user.ok", "false"},
		{"user.nick", ""},
		{"user.name", "ann"},
		{"tags[1]", "y"},
		{"big", "12345678901234567890"},
		{"tags", `["x","y"]`},
		{"user", `{"id":42,"score":1.5,"ok":false,"nick":null,"name":"ann"}`},
	}
	for _, tt := range tests {
		got, ok := Resolve(tt.path, msg)
		if !ok || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q, true", tt.path, got, ok, tt.want)
		}
	}
}

/*
TestResolve_AbsentNeverPanics verifies that missing keys, out-of-range
indices, kind mismatches, malformed expressions and nil roots all report
absent.
*/
func TestResolve_AbsentNeverPanics(t *testing.T) {
	msg := mustJSON(t, `{"user":{"id":42},"tags":["x"],"n":7}`)
	for _, path := range []string{
		"user.missing", "nope", "tags[5]", "tags.key", "user[0]", "n.x", "n[0]", "a..b", "tags[", "[0]",
	} {
		if got, ok := Resolve(path, msg); ok {
			t.Errorf("Resolve(%q) = %q, true; want absent", path, got)
		}
	}
	if _, ok := Resolve("a", nil); ok {
		t.Fatalf("Resolve on nil message reported present")
	}
}

func TestResolve_Root(t *testing.T) {
	msg := mustJSON(t, `{"a":1}`)
	got, ok := Resolve("$", msg)
	if !ok || got != `{"a":1}` {
		t.Fatalf("Resolve($) = %q, %v", got, ok)
	}
}

func TestInfer_Auto(t *testing.T) {
	tests := []struct {
		text string
		kind value.Kind
	}{
		{"42", value.KindNumber},
		{"-7", value.KindNumber},
		{"3.25", value.KindNumber},
		{"true", value.KindBool},
		{"false", value.KindBool},
		{"007", value.KindString},
		{"1.50", value.KindString},
		{"1e3", value.KindString},
		{"True", value.KindString},
		{"", value.KindString},
		{"abc", value.KindString},
	}
	for _, tt := range tests {
		if got := Infer(tt.text, HintAuto); got.Kind != tt.kind {
			t.Errorf("Infer(%q, auto) kind = %s; want %s", tt.text, got.Kind, tt.kind)
		}
	}
}

func TestInfer_Hints(t *testing.T) {
	tests := []struct {
		text string
		hint Hint
		want string // canonical JSON of the leaf
	}{
		{"123", HintString, `"123"`},
		{"007", HintInt, `7`},
		{"1.2", HintInt, `"1.2"`},
		{"1.50", HintFloat, `1.5`},
		{"x", HintFloat, `"x"`},
		{"1", HintBool, `true`},
		{"maybe", HintBool, `"maybe"`},
		{`{"a":[1,2]}`, HintJSON, `{"a":[1,2]}`},
		{`{broken`, HintJSON, `"{broken"`},
		{"", HintNullEmpty, `null`},
		{"5", HintNullEmpty, `5`},
	}
	for _, tt := range tests {
		if got := value.JSON(Infer(tt.text, tt.hint)); got != tt.want {
			t.Errorf("Infer(%q, %s) = %s; want %s", tt.text, tt.hint, got, tt.want)
		}
	}
}

func TestParseHint(t *testing.T) {
	if h, err := ParseHint(""); err != nil || h != HintAuto {
		t.Fatalf("ParseHint(\"\") = %q, %v; want auto", h, err)
	}
	if h, err := ParseHint(" JSON "); err != nil || h != HintJSON {
		t.Fatalf("ParseHint(JSON) = %q, %v", h, err)
	}
	if _, err := ParseHint("decimal"); err == nil {
		t.Fatalf("ParseHint(decimal) succeeded; want error")
	}
}

func TestInject_BuildsContainers(t *testing.T) {
	var root *value.Value
	root = MustParse("user.id").Inject(root, "42", HintAuto)
	root = MustParse("user.name").Inject(root, "ann", HintAuto)
	root = MustParse("items[2].sku").Inject(root, "A-1", HintAuto)

	const want = `{"user":{"id":42,"name":"ann"},"items":[null,null,{"sku":"A-1"}]}`
	if got := value.JSON(root); got != want {
		t.Fatalf("JSON = %s; want %s", got, want)
	}
}

func TestInject_ReplacesScalarInTheWay(t *testing.T) {
	root := mustJSON(t, `{"a":5,"b":[1]}`)
	root = MustParse("a.x").Inject(root, "y", HintAuto)
	root = MustParse("b.k").Inject(root, "true", HintAuto)

	if got := value.JSON(root); got != `{"a":{"x":"y"},"b":{"k":true}}` {
		t.Fatalf("JSON = %s", got)
	}
}

func TestInject_MapLiteralWithoutStorage(t *testing.T) {
	root := &value.Value{Kind: value.KindMap}
	inner := &value.Value{Kind: value.KindMap}
	root = MustParse("user.id").Inject(root, "7", HintAuto)
	root = MustParse("meta").InjectValue(root, inner)
	root = MustParse("meta.src").Inject(root, "kafka", HintAuto)

	if got := value.JSON(root); got != `{"user":{"id":7},"meta":{"src":"kafka"}}` {
		t.Fatalf("JSON = %s", got)
	}
}

func TestInject_RootPath(t *testing.T) {
	got := MustParse("").Inject(value.NewMap(), "12", HintAuto)
	if got.Kind != value.KindNumber || got.Text != "12" {
		t.Fatalf("root inject = %+v; want number 12", got)
	}
	got = MustParse("[1]").Inject(nil, "x", HintAuto)
	if value.JSON(got) != `[null,"x"]` {
		t.Fatalf("root seq inject = %s", value.JSON(got))
	}
}

func TestInject_BadExpression(t *testing.T) {
	if _, err := Inject("a..b", nil, "x", HintAuto); err == nil {
		t.Fatalf("Inject with bad path succeeded; want error")
	}
}

func TestInjectResolve_RoundTrip(t *testing.T) {
	for _, text := range []string{"42", "-3", "2.5", "true", "false", "hello", "", "007", "1.50", "1e3", "12345678901234567890"} {
		p := MustParse("a.b[1]")
		root := p.Inject(nil, text, HintAuto)
		got, ok := p.Resolve(root)
		if !ok || got != text {
			t.Errorf("round trip %q -> %q, %v", text, got, ok)
		}
	}
}
