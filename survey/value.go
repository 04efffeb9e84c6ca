package survey

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

type Kind int

const (
	Null Kind = iota
	String
	Number
	Bool
)

// Value is a scalar received from the form backend. The zero Value is null.
type Value struct {
	kind Kind
	text string
	b    bool
}

func StringValue(s string) Value { return Value{kind: String, text: s} }
func BoolValue(b bool) Value     { return Value{kind: Bool, b: b, text: strconv.FormatBool(b)} }

// NumberValue keeps the number as written, so "2" stays "2" once stored.
func NumberValue(n json.Number) Value { return Value{kind: Number, text: n.String()} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

// String returns the text form of the value, "" for null.
func (v Value) String() string {
	return v.text
}

// Ptr returns the value as a nullable column value.
func (v Value) Ptr() *string {
	if v.kind == Null {
		return nil
	}
	s := v.text
	return &s
}

// Truthy converts the value to a boolean: strings that parse as booleans
// ("1", "true", "F", ...) use that meaning, other strings are true when not
// empty.
func (v Value) Truthy() bool {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		f, err := strconv.ParseFloat(v.text, 64)
		return err == nil && f != 0
	case String:
		if b, err := strconv.ParseBool(v.text); err == nil {
			return b
		}
		return v.text != ""
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case String:
		return json.Marshal(v.text)
	case Number:
		return []byte(v.text), nil
	case Bool:
		return json.Marshal(v.b)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty value")
	}

	switch c := data[0]; {
	case c == 'n':
		*v = Value{}
	case c == 't' || c == 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
	default:
		return errors.Errorf("unsupported value %.20s: only strings, numbers, booleans and null are accepted", data)
	}
	return nil
}
