package configtree

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/yaml"
)

// Parse parses YAML document into a configuration tree.
//
// The document root must be a mapping. Null values are skipped.
func Parse(data []byte) (*Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}
	if doc.Kind == 0 {
		// Empty document.
		return newTable(), nil
	}
	return FromYAML(&doc)
}

// FromYAML converts YAML node into a configuration tree.
func FromYAML(node *yaml.Node) (*Table, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return newTable(), nil
		}
		node = node.Content[0]
	}
	n, ok, err := convertYAML(node)
	if err != nil {
		return nil, err
	}
	if !ok {
		return newTable(), nil
	}
	if n.kind != KindTable {
		return nil, errors.Errorf("root must be a mapping, got %s", n.kind)
	}
	return n.table, nil
}

func convertYAML(node *yaml.Node) (n Node, ok bool, _ error) {
	switch node.Kind {
	case yaml.AliasNode:
		return convertYAML(node.Alias)
	case yaml.MappingNode:
		t := newTable()
		if len(node.Content)%2 != 0 {
			return n, false, errors.Errorf("line %d: malformed mapping", node.Line)
		}
		for i := 0; i < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return n, false, errors.Errorf("line %d: mapping key must be a scalar", key.Line)
			}
			child, ok, err := convertYAML(value)
			if err != nil {
				return n, false, errors.Wrapf(err, "key %q", key.Value)
			}
			if ok {
				t.set(key.Value, child)
			}
		}
		return Node{kind: KindTable, table: t}, true, nil
	case yaml.SequenceNode:
		a := &Array{items: make([]Node, 0, len(node.Content))}
		for i, item := range node.Content {
			child, ok, err := convertYAML(item)
			if err != nil {
				return n, false, errors.Wrapf(err, "index %d", i)
			}
			if ok {
				a.items = append(a.items, child)
			}
		}
		return Node{kind: KindArray, array: a}, true, nil
	case yaml.ScalarNode:
		return convertScalar(node)
	default:
		return n, false, errors.Errorf("line %d: unexpected node kind %d", node.Line, node.Kind)
	}
}

func convertScalar(node *yaml.Node) (n Node, ok bool, _ error) {
	switch tag := node.ShortTag(); tag {
	case "!!null":
		return n, false, nil
	case "!!bool":
		if err := node.Decode(&n.b); err != nil {
			return n, false, errors.Wrapf(err, "line %d", node.Line)
		}
		n.kind = KindBool
	case "!!int":
		if err := node.Decode(&n.i); err != nil {
			return n, false, errors.Wrapf(err, "line %d", node.Line)
		}
		n.kind = KindInt
	case "!!float":
		if err := node.Decode(&n.f); err != nil {
			return n, false, errors.Wrapf(err, "line %d", node.Line)
		}
		n.kind = KindFloat
	default:
		n.kind = KindString
		n.str = node.Value
	}
	return n, true, nil
}

// FromMap creates configuration tree from Go values.
//
// Supported values are nested maps, slices, strings, integers, floats
// and booleans. Map keys are sorted, nil values are skipped.
func FromMap(m map[string]any) (*Table, error) {
	n, _, err := convertValue(m)
	if err != nil {
		return nil, err
	}
	return n.table, nil
}

func convertValue(v any) (n Node, ok bool, _ error) {
	switch v := v.(type) {
	case nil:
		return n, false, nil
	case map[string]any:
		t := newTable()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			child, ok, err := convertValue(v[k])
			if err != nil {
				return n, false, errors.Wrapf(err, "key %q", k)
			}
			if ok {
				t.set(k, child)
			}
		}
		return Node{kind: KindTable, table: t}, true, nil
	case []any:
		a := &Array{items: make([]Node, 0, len(v))}
		for i, item := range v {
			child, ok, err := convertValue(item)
			if err != nil {
				return n, false, errors.Wrapf(err, "index %d", i)
			}
			if ok {
				a.items = append(a.items, child)
			}
		}
		return Node{kind: KindArray, array: a}, true, nil
	case []string:
		a := &Array{items: make([]Node, 0, len(v))}
		for _, s := range v {
			a.items = append(a.items, Node{kind: KindString, str: s})
		}
		return Node{kind: KindArray, array: a}, true, nil
	case string:
		return Node{kind: KindString, str: v}, true, nil
	case bool:
		return Node{kind: KindBool, b: v}, true, nil
	case int:
		return Node{kind: KindInt, i: int64(v)}, true, nil
	case int64:
		return Node{kind: KindInt, i: v}, true, nil
	case int32:
		return Node{kind: KindInt, i: int64(v)}, true, nil
	case uint32:
		return Node{kind: KindInt, i: int64(v)}, true, nil
	case float64:
		return Node{kind: KindFloat, f: v}, true, nil
	case float32:
		return Node{kind: KindFloat, f: float64(v)}, true, nil
	default:
		return n, false, errors.Errorf("unsupported value type %T", v)
	}
}
