package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Basic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"nested", map[string]any{"z": []any{1, "a"}, "a": false}, `{"a":false,"z":[1,"a"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonical_Escaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"quote and backslash", `a"b\c`, `"a\"b\\c"`},
		{"html stays literal", "<a&b>", `"<a&b>"`},
		{"newline and tab", "a\nb\tc", `"a\nb\tc"`},
		{"control char", "\x01", `"\u0001"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"nfc normalized", "e\u0301", "\"\u00e9\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates D83D DE00, which sort before U+FF61
	// in UTF-16 even though its UTF-8 bytes sort after.
	obj := map[string]any{"\uFF61": 1, "\U0001F600": 2}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFF61\":1}", string(got))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	for _, v := range []any{nil, 1.5, float32(2), struct{}{}, []any{nil}} {
		_, err := MarshalCanonical(v)
		assert.Error(t, err, "%#v", v)
	}
}
