package jsonv

import (
	"math"
	"strings"
	"testing"
)

func TestDump_Scalars(t *testing.T) {
	tests := []struct {
		name string
		v    *Value
		want string
	}{
		{"null", Null(), "null"},
		{"true", True(), "true"},
		{"false", False(), "false"},
		{"int", Int(42), "42"},
		{"negative int", Int(-7), "-7"},
		{"min int64", Int(math.MinInt64), "-9223372036854775808"},
		{"integral float", Number(2), "2"},
		{"half", Number(0.5), "0.5"},
		{"tenth", Number(0.1), "0.10000000000000001"},
		{"large float", Number(1e21), "1e+21"},
		{"hundred thousand", Number(100000), "100000"},
		{"nan", Number(math.NaN()), "null"},
		{"inf", Number(math.Inf(1)), "null"},
		{"neg inf", Number(math.Inf(-1)), "null"},
		{"empty string", String(""), `""`},
		{"plain string", String("abc"), `"abc"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dump(tt.v); got != tt.want {
				t.Errorf("Dump = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDump_StringEscapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"short escapes", "\b\f\n\r\t", `"\b\f\n\r\t"`},
		{"control bytes", "\x00\x01\x1f", `"\u0000\u0001\u001f"`},
		{"slash unescaped", "a/b", `"a/b"`},
		{"non-ascii passthrough", "h\xc3\xa9llo \xe2\x82\xac", "\"h\xc3\xa9llo \xe2\x82\xac\""},
		{"line separator", "a\xe2\x80\xa8b", `"a\u2028b"`},
		{"paragraph separator", "a\xe2\x80\xa9b", `"a\u2029b"`},
		{"truncated separator prefix", "\xe2\x80", "\"\xe2\x80\""},
		{"lone surrogate bytes", "\xed\xa0\x80", "\"\xed\xa0\x80\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dump(String(tt.in)); got != tt.want {
				t.Errorf("Dump = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDump_Containers(t *testing.T) {
	v := Object(
		M("list", Array(Int(1), Number(2.5), Null())),
		M("empty", Object()),
		M("nested", Object(M("b", True()), M("a", Array()))),
	)

	want := `{"empty": {}, "list": [1, 2.5, null], "nested": {"a": [], "b": true}}`
	if got := Dump(v); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if got := string(AppendDump([]byte("prefix:"), Int(1))); got != "prefix:1" {
		t.Errorf("AppendDump should append, got %q", got)
	}
	if v.String() != want {
		t.Errorf("String should match Dump")
	}

	b, err := v.MarshalJSON()
	if err != nil || string(b) != want {
		t.Errorf("MarshalJSON = %s, %v", b, err)
	}
}

func TestDump_RoundTrip(t *testing.T) {
	inputs := []string{
		`null`,
		`[1, -2.5, 1e300, "x", true, false, null]`,
		`{"a": {"b": [{"c": "\u00e9"}]}, "z": 0}`,
		`"tab\tnew\nline \u2028 sep"`,
		`"\uD800 lone"`,
		`[0.1, 0.2, 0.30000000000000004, 5e-324, 1.7976931348623157e308]`,
		`{"dup": 1, "dup": 2}`,
		`-0`,
		`123456789012345678`,
		`1234567890123456789`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			v, err := Parse(in, Standard)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}

			text := Dump(v)
			again, err := Parse(text, Standard)
			if err != nil {
				t.Fatalf("Reparse of %q: %v", text, err)
			}
			if !Equal(v, again) {
				t.Errorf("Round trip changed value: %s -> %s", in, Dump(again))
			}
			if Dump(again) != text {
				t.Errorf("Dump not idempotent: %q vs %q", text, Dump(again))
			}
		})
	}
}

func TestDump_NonFiniteInsideContainers(t *testing.T) {
	v := Array(Number(math.NaN()), Object(M("x", Number(math.Inf(1)))))
	if got := Dump(v); got != `[null, {"x": null}]` {
		t.Errorf("Unexpected dump %s", got)
	}
}

func TestDump_DeepValue(t *testing.T) {
	v := Int(1)
	for i := 0; i < MaxDepth; i++ {
		v = Array(v)
	}
	text := Dump(v)
	if !strings.HasPrefix(text, strings.Repeat("[", MaxDepth)) {
		t.Errorf("Unexpected prefix")
	}
	if _, err := Parse(text, Standard); err != nil {
		t.Errorf("Expected %d levels to reparse: %v", MaxDepth, err)
	}
}
