package survey

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRaw(t *testing.T, body string) map[string]Value {
	t.Helper()
	var raw map[string]Value
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func reshapeJSON(t *testing.T, rs Reshaper, body string) string {
	t.Helper()
	p, err := rs.Reshape(decodeRaw(t, body))
	require.NoError(t, err)
	out, err := json.Marshal(p)
	require.NoError(t, err)
	return string(out)
}

func TestReshape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{
			name: "non numeric suffix stays flat",
			in:   `{"other_appr_comm":"x"}`,
			out:  `{"other_appr_comm":"x"}`,
		},
		{
			name: "numeric suffix is grouped by prefix",
			in:   `{"prod_1":"a","prod_2":"b"}`,
			out:  `{"prod":{"prod_1":"a","prod_2":"b"}}`,
		},
		{
			name: "group named by first underscore",
			in:   `{"complaints_handling_3":"4"}`,
			out:  `{"complaints":{"complaints_handling_3":"4"}}`,
		},
		{
			name: "mixed flat and grouped",
			in:   `{"instanceID":"uuid:1","channel_1":2,"age":"25-34","channel_2":null}`,
			out:  `{"age":"25-34","channel":{"channel_1":2,"channel_2":null},"instanceID":"uuid:1"}`,
		},
		{
			name: "note fields look grouped",
			in:   `{"note_24":"n"}`,
			out:  `{"note":{"note_24":"n"}}`,
		},
		{
			name: "no underscore",
			in:   `{"KEY":"k","SubmissionDate":"2024-05-01T10:00:00.000Z"}`,
			out:  `{"KEY":"k","SubmissionDate":"2024-05-01T10:00:00.000Z"}`,
		},
		{
			name: "signed or empty suffix stays flat",
			in:   `{"prod_":"a","prod_-1":"b","prod_+2":"c"}`,
			out:  `{"prod_":"a","prod_+2":"c","prod_-1":"b"}`,
		},
		{
			name: "leading underscore groups under empty prefix",
			in:   `{"_1":"a"}`,
			out:  `{"":{"_1":"a"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.out, reshapeJSON(t, Reshaper{}, tt.in))
		})
	}
}

func TestReshapeFlatAllowList(t *testing.T) {
	rs := NewReshaper([]string{"note_24", "note_25"})
	out := reshapeJSON(t, rs, `{"note_24":"a","note_25":"b","note_26":"c"}`)
	assert.JSONEq(t, `{"note_24":"a","note_25":"b","note":{"note_26":"c"}}`, out)
}

func TestReshapeGroupHidesScalar(t *testing.T) {
	p, err := Reshaper{}.Reshape(decodeRaw(t, `{"prod":"x","prod_1":"a"}`))
	require.NoError(t, err)

	assert.Equal(t, "x", p.Get("prod").String())
	assert.Equal(t, []string{"prod"}, p.GroupNames())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prod":{"prod_1":"a"}}`, string(out))
}

func TestReshapeEmpty(t *testing.T) {
	_, err := Reshaper{}.Reshape(nil)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Reshaper{}.Reshape(map[string]Value{})
	assert.ErrorIs(t, err, ErrNoData)
}
