package survey

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueDecode(t *testing.T) {
	var raw map[string]Value
	err := json.Unmarshal([]byte(`{"s":"text","n":4,"f":-1.50,"t":true,"x":false,"z":null}`), &raw)
	require.NoError(t, err)

	assert.Equal(t, String, raw["s"].Kind())
	assert.Equal(t, "text", raw["s"].String())

	assert.Equal(t, Number, raw["n"].Kind())
	assert.Equal(t, "4", raw["n"].String())
	assert.Equal(t, "-1.50", raw["f"].String(), "numbers keep their text")

	assert.Equal(t, Bool, raw["t"].Kind())
	assert.True(t, raw["t"].Truthy())
	assert.False(t, raw["x"].Truthy())

	assert.True(t, raw["z"].IsNull())
	assert.Nil(t, raw["z"].Ptr())
	assert.True(t, raw["missing"].IsNull())
}

func TestValueRejectsNested(t *testing.T) {
	for _, body := range []string{`{"a":{"b":1}}`, `{"a":[1,2]}`} {
		var raw map[string]Value
		err := json.Unmarshal([]byte(body), &raw)
		assert.Error(t, err, body)
	}
}

func TestValueTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Value{}, false},
		{BoolValue(true), true},
		{NumberValue("0"), false},
		{NumberValue("2"), true},
		{StringValue(""), false},
		{StringValue("0"), false},
		{StringValue("false"), false},
		{StringValue("1"), true},
		{StringValue("yes"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.Truthy(), "%#v", tt.v)
	}
}

func TestValueEncode(t *testing.T) {
	out, err := json.Marshal(map[string]Value{
		"s": StringValue(`say "hi"`),
		"n": NumberValue("3"),
		"b": BoolValue(false),
		"z": {},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"say \"hi\"","n":3,"b":false,"z":null}`, string(out))
}
