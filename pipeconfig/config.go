// Package pipeconfig holds the pipeline run configuration as an immutable,
// ordered mapping. Each preparation step returns a fragment and the caller
// composes fragments with With or WithDefaults; nothing is mutated in place.
package pipeconfig

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/carbocation/metaprep"
	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"
)

// Config is an ordered set of keys and values. The zero value is an empty
// configuration. Nested YAML mappings decode to Config, sequences to
// []interface{}, and scalars to their natural Go types.
type Config struct {
	keys   []string
	values map[string]interface{}
}

// Builder accumulates keys for a new Config.
type Builder struct {
	c Config
}

func NewBuilder() *Builder {
	return &Builder{c: Config{values: make(map[string]interface{})}}
}

// Set adds or replaces key. A replaced key keeps its original position.
func (b *Builder) Set(key string, value interface{}) *Builder {
	if _, exists := b.c.values[key]; !exists {
		b.c.keys = append(b.c.keys, key)
	}
	b.c.values[key] = value

	return b
}

// Config returns the configuration built so far. The builder may keep being
// used without affecting the returned value.
func (b *Builder) Config() Config {
	return b.c.clone()
}

func (c Config) clone() Config {
	out := Config{
		keys:   make([]string, len(c.keys)),
		values: make(map[string]interface{}, len(c.values)),
	}
	copy(out.keys, c.keys)
	for k, v := range c.values {
		out.values[k] = v
	}

	return out
}

func (c Config) Len() int {
	return len(c.keys)
}

// Keys returns the keys in order.
func (c Config) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)

	return out
}

func (c Config) Has(key string) bool {
	_, exists := c.values[key]
	return exists
}

func (c Config) Get(key string) (interface{}, bool) {
	v, exists := c.values[key]
	return v, exists
}

// String returns the scalar at key formatted as text. It returns false if the
// key is absent, null, or not a scalar.
func (c Config) String(key string) (string, bool) {
	v, exists := c.values[key]
	if !exists || v == nil {
		return "", false
	}

	switch v.(type) {
	case Config, []interface{}, map[string]interface{}:
		return "", false
	}

	return FormatScalar(v), true
}

// IsEmpty reports whether key is absent or holds a null, false, zero or empty
// value. This mirrors the "not in config or not config[key]" test used for
// tool paths.
func (c Config) IsEmpty(key string) bool {
	v, exists := c.values[key]
	if !exists || v == nil {
		return true
	}

	switch x := v.(type) {
	case string:
		return x == ""
	case bool:
		return !x
	case int:
		return x == 0
	case float64:
		return x == 0
	case []interface{}:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case Config:
		return x.Len() == 0
	}

	return false
}

// Map returns the nested mapping at key.
func (c Config) Map(key string) (Config, bool) {
	v, exists := c.values[key]
	if !exists {
		return Config{}, false
	}
	m, ok := v.(Config)

	return m, ok
}

// Set returns a copy of c with key set to value.
func (c Config) Set(key string, value interface{}) Config {
	out := c.clone()
	if _, exists := out.values[key]; !exists {
		out.keys = append(out.keys, key)
	}
	out.values[key] = value

	return out
}

// With returns a copy of c overlaid by fragment: keys in fragment replace
// those in c, and new keys are appended in fragment order.
func (c Config) With(fragment Config) Config {
	out := c.clone()
	for _, k := range fragment.keys {
		if _, exists := out.values[k]; !exists {
			out.keys = append(out.keys, k)
		}
		out.values[k] = fragment.values[k]
	}

	return out
}

// WithDefaults returns a copy of c with every key of defaults that c lacks.
// Keys already present in c are never overwritten, even when their values
// are empty.
func (c Config) WithDefaults(defaults Config) Config {
	out := c.clone()
	for _, k := range defaults.keys {
		if _, exists := out.values[k]; exists {
			continue
		}
		out.keys = append(out.keys, k)
		out.values[k] = defaults.values[k]
	}

	return out
}

// UnmarshalYAML decodes a YAML mapping, preserving key order.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}

	b := NewBuilder()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var key string
		if err := keyNode.Decode(&key); err != nil {
			return err
		}

		value, err := decodeNode(valueNode)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		b.Set(key, value)
	}

	*c = b.Config()
	return nil
}

func decodeNode(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return decodeNode(node.Alias)
	case yaml.MappingNode:
		var nested Config
		if err := nested.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return nested, nil
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := decodeNode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	var v interface{}
	if err := node.Decode(&v); err != nil {
		return nil, err
	}

	return v, nil
}

// MarshalYAML encodes c as a mapping in key order.
func (c Config) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range c.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}

		valueNode := &yaml.Node{}
		if err := valueNode.Encode(c.values[k]); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}

		node.Content = append(node.Content, keyNode, valueNode)
	}

	return node, nil
}

// Parse decodes a YAML document into a Config. An empty document yields an
// empty Config.
func Parse(data []byte) (Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Config{}, nil
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, pfx.Err(err)
	}

	return c, nil
}

// Marshal encodes c as a YAML document.
func Marshal(c Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, pfx.Err(err)
	}
	if err := enc.Close(); err != nil {
		return nil, pfx.Err(err)
	}

	return buf.Bytes(), nil
}

// Load reads and parses the YAML configuration at path.
func Load(store *metaprep.Store, path string) (Config, error) {
	data, err := store.ReadFile(path)
	if err != nil {
		return Config{}, pfx.Err(err)
	}

	c, err := Parse(data)
	if err != nil {
		return Config{}, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return c, nil
}

// Save writes c to path as YAML.
func Save(store *metaprep.Store, path string, c Config) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}

	return store.WriteFile(path, data)
}

// StringList interprets a configuration value as a list of strings. A single
// scalar becomes a one-element list; null becomes an empty list.
func StringList(v interface{}) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		return []string{x}, nil
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out, nil
	case []interface{}:
		out := make([]string, 0, len(x))
		for i, item := range x {
			switch item.(type) {
			case nil, Config, []interface{}, map[string]interface{}:
				return nil, fmt.Errorf("item %d: expected a scalar, got %T", i, item)
			}
			out = append(out, FormatScalar(item))
		}
		return out, nil
	case Config, map[string]interface{}:
		return nil, fmt.Errorf("expected a string or a list of strings, got a mapping")
	}

	return []string{FormatScalar(v)}, nil
}

// FormatScalar renders a decoded YAML scalar the way the downstream
// Snakemake rules expect to see it stringified: booleans as True/False,
// integral floats with a trailing ".0", and null as None.
func FormatScalar(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		if math.IsInf(x, 1) {
			return "inf"
		} else if math.IsInf(x, -1) {
			return "-inf"
		} else if math.IsNaN(x) {
			return "nan"
		}
		if x == math.Trunc(x) && math.Abs(x) < 1e16 {
			return strconv.FormatFloat(x, 'f', 1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	}

	return fmt.Sprint(v)
}
