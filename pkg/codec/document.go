// Package codec converts flows to and from their tree document form: an
// ordered, title-addressed mapping serialized as line-oriented text.
//
// The two addressing schemes are reconciled per call: export synthesizes
// human titles from stable ids, import synthesizes ids from titles. Both
// directions keep their lookup tables local to the call, so the codec is
// stateless and safely reentrant.
package codec

import (
	"sort"

	yamlv2 "gopkg.in/yaml.v2"
)

// startEntryTitle is the reserved document key whose value names the node
// the start transitions to. It is never assigned to a regular node.
const startEntryTitle = "Start"

// Document is the ordered tree form of a flow: a title-keyed node mapping
// plus an optional flow-level metadata block. Ordered mappings are
// represented as yaml.MapSlice so entry order survives serialization.
type Document struct {
	Flow     yamlv2.MapSlice
	Metadata yamlv2.MapSlice
}

// Root assembles the top-level mapping of the document.
func (d Document) Root() yamlv2.MapSlice {
	root := yamlv2.MapSlice{{Key: "flow", Value: d.Flow}}
	if len(d.Metadata) > 0 {
		root = append(root, yamlv2.MapItem{Key: "metadata", Value: d.Metadata})
	}
	return root
}

// Interface converts the document into plain maps and slices for JSON
// responses. Mapping order is lost, which is fine for API consumers; the
// textual form is the order-preserving representation.
func (d Document) Interface() map[string]any {
	root := make(map[string]any, 2)
	for _, item := range d.Root() {
		root[item.Key.(string)] = plainValue(item.Value)
	}
	return root
}

func plainValue(value any) any {
	switch v := value.(type) {
	case yamlv2.MapSlice:
		m := make(map[string]any, len(v))
		for _, item := range v {
			m[item.Key.(string)] = plainValue(item.Value)
		}
		return m
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}

// sortedMapSlice renders an unordered map deterministically, sorting keys
// and converting nested values recursively.
func sortedMapSlice(m map[string]any) yamlv2.MapSlice {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(yamlv2.MapSlice, 0, len(keys))
	for _, key := range keys {
		out = append(out, yamlv2.MapItem{Key: key, Value: orderedValue(m[key])})
	}
	return out
}

func orderedValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sortedMapSlice(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = orderedValue(item)
		}
		return out
	default:
		return v
	}
}
