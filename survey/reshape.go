package survey

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var ErrNoData = errors.New("no JSON data received")

// Payload is a submission after reshaping: scalar fields, plus the grouped
// question families keyed by prefix, each keyed by the full field name.
type Payload struct {
	Fields map[string]Value
	Groups map[string]map[string]Value
}

// Get returns a scalar field, null when missing.
func (p Payload) Get(key string) Value {
	return p.Fields[key]
}

// GroupNames returns the group prefixes in a stable order.
func (p Payload) GroupNames() []string {
	return sortedKeys(p.Groups)
}

// MarshalJSON renders the two-level mapping. A group hides a scalar field
// with the same name.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+len(p.Groups))
	for k, v := range p.Fields {
		out[k] = v
	}
	for k, g := range p.Groups {
		out[k] = g
	}
	return json.Marshal(out)
}

// Reshaper groups fields such as prod_1, prod_2 under "prod". Names listed in
// Flat are always kept as scalar fields.
type Reshaper struct {
	Flat map[string]bool
}

func NewReshaper(flatFields []string) Reshaper {
	flat := make(map[string]bool, len(flatFields))
	for _, f := range flatFields {
		flat[f] = true
	}
	return Reshaper{Flat: flat}
}

func (rs Reshaper) Reshape(raw map[string]Value) (Payload, error) {
	if len(raw) == 0 {
		return Payload{}, ErrNoData
	}

	p := Payload{
		Fields: map[string]Value{},
		Groups: map[string]map[string]Value{},
	}
	for key, value := range raw {
		prefix, grouped := rs.group(key)
		if !grouped {
			p.Fields[key] = value
			continue
		}

		g, ok := p.Groups[prefix]
		if !ok {
			g = map[string]Value{}
			p.Groups[prefix] = g
		}
		g[key] = value
	}
	return p, nil
}

// group reports whether key belongs to a question family: its part after the
// last underscore is all digits. The family is named by the part before the
// first underscore, so note_24 is grouped under "note" unless listed in Flat.
func (rs Reshaper) group(key string) (prefix string, ok bool) {
	if rs.Flat[key] {
		return "", false
	}
	last := strings.LastIndexByte(key, '_')
	if last < 0 || !isDigits(key[last+1:]) {
		return "", false
	}
	return key[:strings.IndexByte(key, '_')], true
}

func isDigits(s string) bool {
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

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
