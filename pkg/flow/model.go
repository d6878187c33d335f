// Package flow defines the in-memory model for decision-tree flows:
// nodes, labeled edges, and the flow envelope the editor exchanges as JSON.
package flow

import (
	"encoding/json"
	"sort"
	"strings"
)

// Node type constants define the behavior of a step in the tree.
const (
	// TypeStart is the unique entry point. Its id must be the literal "start".
	TypeStart = "start"

	// TypeQuestion presents a question and branches on the answer.
	TypeQuestion = "question"

	// TypeAction performs a named action before continuing.
	TypeAction = "action"

	// TypeMessage shows a final message. Message nodes are terminal.
	TypeMessage = "message"
)

// Flow is the full decision-tree document: nodes, edges and metadata.
// Instances are transient; the core packages read them and return new
// values, they never mutate a Flow in place.
type Flow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`

	// MalformedEdges counts edge entries in the source JSON that were not
	// objects. They are excluded from Edges; the validator reports one
	// warning per entry.
	MalformedEdges int `json:"-"`
}

// Edge is a labeled directed transition between two nodes.
type Edge struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	Label      string `json:"label"`
	SourcePort string `json:"source_port,omitempty"`
	TargetPort string `json:"target_port,omitempty"`
}

// ExpectedAnswer is one admissible answer of a question node.
type ExpectedAnswer struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// Node is a step in the tree. A single struct covers every node kind;
// kind-specific fields are only populated for the matching type, and
// Extra carries arbitrary passthrough fields of unknown kinds.
type Node struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// Question node fields.
	Question        string           `json:"question,omitempty"`
	Check           string           `json:"check,omitempty"`
	ExpectedAnswers []ExpectedAnswer `json:"expected_answers,omitempty"`

	// Action node fields. Parameters may be a map or a bare scalar; the
	// export codec wraps scalars into {value: ...}.
	Action     string `json:"action,omitempty"`
	Parameters any    `json:"parameters,omitempty"`

	// Message node fields.
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity,omitempty"`

	// Metadata is free-form: a map or a bare text.
	Metadata any `json:"metadata,omitempty"`

	// Appearance and Position are opaque to the core and passed through.
	Appearance map[string]any `json:"appearance,omitempty"`
	Position   map[string]any `json:"position,omitempty"`

	// Extra holds fields of unknown node kinds verbatim.
	Extra map[string]any `json:"-"`
}

// Kind returns the node type lowercased for bucket decisions.
func (n *Node) Kind() string {
	return strings.ToLower(strings.TrimSpace(n.Type))
}

// knownNodeKeys are the JSON keys bound to struct fields; everything else
// lands in Extra.
var knownNodeKeys = map[string]bool{
	"id":               true,
	"type":             true,
	"question":         true,
	"check":            true,
	"expected_answers": true,
	"action":           true,
	"parameters":       true,
	"message":          true,
	"severity":         true,
	"metadata":         true,
	"appearance":       true,
	"position":         true,
}

// UnmarshalJSON decodes a node, keeping unknown fields in Extra so that
// custom node kinds survive a load/save cycle untouched.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if err := unmarshalString(raw, "id", &n.ID); err != nil {
		return err
	}
	if err := unmarshalString(raw, "type", &n.Type); err != nil {
		return err
	}
	if err := unmarshalString(raw, "question", &n.Question); err != nil {
		return err
	}
	if err := unmarshalString(raw, "check", &n.Check); err != nil {
		return err
	}
	if err := unmarshalString(raw, "action", &n.Action); err != nil {
		return err
	}
	if err := unmarshalString(raw, "message", &n.Message); err != nil {
		return err
	}
	if err := unmarshalString(raw, "severity", &n.Severity); err != nil {
		return err
	}

	if v, ok := raw["expected_answers"]; ok {
		answers, err := parseExpectedAnswers(v)
		if err != nil {
			return err
		}
		n.ExpectedAnswers = answers
	}
	if v, ok := raw["parameters"]; ok {
		if err := json.Unmarshal(v, &n.Parameters); err != nil {
			return err
		}
	}
	if v, ok := raw["metadata"]; ok {
		if err := json.Unmarshal(v, &n.Metadata); err != nil {
			return err
		}
	}
	if v, ok := raw["appearance"]; ok {
		if err := json.Unmarshal(v, &n.Appearance); err != nil {
			// Non-object appearance is dropped, matching the importer.
			n.Appearance = nil
		}
	}
	if v, ok := raw["position"]; ok {
		if err := json.Unmarshal(v, &n.Position); err != nil {
			n.Position = nil
		}
	}

	for key, value := range raw {
		if knownNodeKeys[key] {
			continue
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if n.Extra == nil {
			n.Extra = make(map[string]any)
		}
		n.Extra[key] = decoded
	}

	return nil
}

// MarshalJSON re-inlines Extra fields next to the typed ones.
func (n Node) MarshalJSON() ([]byte, error) {
	type alias Node
	data, err := json.Marshal(alias(n))
	if err != nil {
		return nil, err
	}
	if len(n.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range n.Extra {
		if knownNodeKeys[key] {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		merged[key] = encoded
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes a flow, tolerating malformed edge entries: entries
// that are not objects are counted in MalformedEdges instead of failing the
// whole decode, so the validator can report them.
func (f *Flow) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string            `json:"id"`
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Nodes       []json.RawMessage `json:"nodes"`
		Edges       []json.RawMessage `json:"edges"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.ID = raw.ID
	f.Name = raw.Name
	f.Description = raw.Description
	f.Nodes = nil
	f.Edges = nil
	f.MalformedEdges = 0

	for _, item := range raw.Nodes {
		var node Node
		if err := json.Unmarshal(item, &node); err != nil {
			// A node entry that is not an object becomes a node without an
			// identifier; the validator flags it.
			f.Nodes = append(f.Nodes, Node{})
			continue
		}
		f.Nodes = append(f.Nodes, node)
	}

	for _, item := range raw.Edges {
		var edge Edge
		if err := json.Unmarshal(item, &edge); err != nil {
			f.MalformedEdges++
			continue
		}
		f.Edges = append(f.Edges, edge)
	}

	return nil
}

func unmarshalString(raw map[string]json.RawMessage, key string, dst *string) error {
	value, ok := raw[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(value, dst); err != nil {
		// Scalars of other types (numbers, booleans) are coerced through
		// their generic decoding, mirroring the tolerant Python shapes.
		var generic any
		if err2 := json.Unmarshal(value, &generic); err2 != nil {
			return err
		}
		*dst = stringify(generic)
	}
	return nil
}

// parseExpectedAnswers accepts the three shapes the editor historically
// produced: a comma-separated string, a list of bare values, or a list of
// {value, description} objects / one-key mappings.
func parseExpectedAnswers(raw json.RawMessage) ([]ExpectedAnswer, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var answers []ExpectedAnswer
		for _, part := range strings.Split(asString, ",") {
			if text := strings.TrimSpace(part); text != "" {
				answers = append(answers, ExpectedAnswer{Value: text})
			}
		}
		return answers, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	var answers []ExpectedAnswer
	for _, item := range items {
		var scalar any
		if err := json.Unmarshal(item, &scalar); err != nil {
			return nil, err
		}
		switch value := scalar.(type) {
		case map[string]any:
			if answer, ok := answerFromMap(value); ok {
				answers = append(answers, answer)
			}
		case nil:
			// skipped, like the Python extractor
		default:
			if text := strings.TrimSpace(stringify(value)); text != "" {
				answers = append(answers, ExpectedAnswer{Value: text})
			}
		}
	}
	return answers, nil
}

func answerFromMap(item map[string]any) (ExpectedAnswer, bool) {
	for _, key := range []string{"value", "label", "answer"} {
		if raw, ok := item[key]; ok {
			value := strings.TrimSpace(stringify(raw))
			if value == "" {
				return ExpectedAnswer{}, false
			}
			description := ""
			if d, ok := item["description"]; ok {
				description = strings.TrimSpace(stringify(d))
			}
			return ExpectedAnswer{Value: value, Description: description}, true
		}
	}
	if len(item) == 1 {
		keys := make([]string, 0, 1)
		for key := range item {
			keys = append(keys, key)
		}
		value := strings.TrimSpace(keys[0])
		if value == "" {
			return ExpectedAnswer{}, false
		}
		description := strings.TrimSpace(stringify(item[keys[0]]))
		return ExpectedAnswer{Value: value, Description: description}, true
	}
	return ExpectedAnswer{}, false
}

// stringify renders a decoded JSON scalar the way the editor displays it.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		data, _ := json.Marshal(v)
		return string(data)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

// SortedExtraKeys returns the passthrough field names in a stable order.
func (n *Node) SortedExtraKeys() []string {
	keys := make([]string, 0, len(n.Extra))
	for key := range n.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
