package brutaltpl

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Map is a string-keyed mapping that remembers insertion order, so that
// #each walks it the way it was built. The zero value is an empty map.
type Map struct {
	keys []string
	vals map[string]any
}

// NewMap returns a Map holding pairs, read as key, value, key, value.
func NewMap(pairs ...any) *Map {
	m := &Map{vals: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(fmt.Sprint(pairs[i]), pairs[i+1])
	}
	return m
}

// Set stores v under k. A new key goes to the end; an existing key keeps its
// position.
func (m *Map) Set(k string, v any) {
	if m.vals == nil {
		m.vals = make(map[string]any)
	}
	if _, ok := m.vals[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
}

func (m *Map) Get(k string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[k]
	return v, ok
}

func (m *Map) Delete(k string) {
	if _, ok := m.vals[k]; !ok {
		return
	}
	delete(m.vals, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// UnmarshalYAML decodes a YAML mapping, keeping document order. Nested
// mappings become *Map as well and sequences become []any.
func (m *Map) UnmarshalYAML(n *yaml.Node) error {
	v, err := decodeYAML(n)
	if err != nil {
		return err
	}
	src, ok := v.(*Map)
	if !ok {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	m.Merge(src)
	return nil
}

// Merge copies every pair of other into m, in other's order.
func (m *Map) Merge(other *Map) {
	for _, k := range other.keys {
		m.Set(k, other.vals[k])
	}
}

func decodeYAML(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return decodeYAML(n.Content[0])
	case yaml.AliasNode:
		return decodeYAML(n.Alias)
	case yaml.MappingNode:
		out := NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, err
			}
			v, err := decodeYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out.Set(key, v)
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decodeYAML(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// ReadYAMLFiles decodes each file as a YAML mapping and merges them in order,
// so later files override earlier keys.
func ReadYAMLFiles(paths ...string) (*Map, error) {
	data := NewMap()
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading data %q: %w", p, err)
		}
		var m Map
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("decoding data %q: %w", p, err)
		}
		data.Merge(&m)
	}
	return data, nil
}
