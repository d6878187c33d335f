package codec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvalderas/flowtree/pkg/flow"
	yamlv2 "gopkg.in/yaml.v2"
)

// Export converts a flow into its ordered tree document and the textual
// serialization of that document. Export never fails on a well-typed flow:
// missing optional fields simply omit the corresponding document fields.
func Export(f *flow.Flow) (string, Document) {
	edgesBySource := make(map[string][]flow.Edge)
	for _, edge := range f.Edges {
		if edge.Source != "" {
			edgesBySource[edge.Source] = append(edgesBySource[edge.Source], edge)
		}
	}

	titles := synthesizeTitles(f.Nodes)

	// Canonical bucket ordering: question, action, message, other. The
	// start node is not a bucket member; it is rendered as the Start entry.
	buckets := map[string][]*flow.Node{}
	for i := range f.Nodes {
		node := &f.Nodes[i]
		kind := node.Kind()
		switch kind {
		case flow.TypeStart:
			continue
		case flow.TypeQuestion, flow.TypeAction, flow.TypeMessage:
			buckets[kind] = append(buckets[kind], node)
		default:
			buckets["other"] = append(buckets["other"], node)
		}
	}

	var ordered []*flow.Node
	for _, kind := range []string{flow.TypeQuestion, flow.TypeAction, flow.TypeMessage, "other"} {
		bucket := buckets[kind]
		sort.SliceStable(bucket, func(i, j int) bool {
			return titles[bucket[i].ID] < titles[bucket[j].ID]
		})
		ordered = append(ordered, bucket...)
	}

	tree := yamlv2.MapSlice{
		{Key: startEntryTitle, Value: startTarget(f, edgesBySource, titles)},
	}
	for _, node := range ordered {
		tree = append(tree, yamlv2.MapItem{
			Key:   titles[node.ID],
			Value: nodeBody(node, edgesBySource[node.ID], titles),
		})
	}

	doc := Document{Flow: tree, Metadata: flowMetadata(f)}
	return Marshal(doc.Root()), doc
}

// startTarget resolves the title of the node the start transitions to, or
// the empty string when the start has no outgoing edge.
func startTarget(f *flow.Flow, edgesBySource map[string][]flow.Edge, titles map[string]string) string {
	for i := range f.Nodes {
		if f.Nodes[i].Kind() != flow.TypeStart {
			continue
		}
		outgoing := edgesBySource[f.Nodes[i].ID]
		if len(outgoing) == 0 {
			return ""
		}
		if title, ok := titles[outgoing[0].Target]; ok {
			return title
		}
		return outgoing[0].Target
	}
	return ""
}

// synthesizeTitles assigns every non-start node a unique display title.
// Preference order: explicit title/name field, metadata title, humanized
// id, capitalized type, the literal "Nodo". Collisions and the reserved
// "Start" title are resolved with " (2)", " (3)", ... suffixes.
func synthesizeTitles(nodes []flow.Node) map[string]string {
	titles := make(map[string]string, len(nodes))
	taken := map[string]bool{strings.ToLower(startEntryTitle): true}

	for i := range nodes {
		node := &nodes[i]
		if node.Kind() == flow.TypeStart || node.ID == "" {
			continue
		}

		base := titleCandidate(node)
		title := base
		for suffix := 2; taken[strings.ToLower(title)]; suffix++ {
			title = fmt.Sprintf("%s (%d)", base, suffix)
		}
		taken[strings.ToLower(title)] = true
		titles[node.ID] = title
	}
	return titles
}

func titleCandidate(node *flow.Node) string {
	for _, key := range []string{"title", "name"} {
		if raw, ok := node.Extra[key]; ok {
			if text, ok := raw.(string); ok && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	if meta, ok := node.Metadata.(map[string]any); ok {
		if raw, ok := meta["title"]; ok {
			if text, ok := raw.(string); ok && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	if node.ID != "" {
		return humanize(node.ID)
	}
	if kind := node.Kind(); kind != "" {
		return capitalize(kind)
	}
	return "Nodo"
}

// humanize turns an identifier into a display title: parts split on '_'
// and '-', each capitalized, joined by spaces.
func humanize(id string) string {
	parts := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return "Nodo"
	}
	for i, part := range parts {
		parts[i] = capitalize(part)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// nextEntries builds the label → target-title transition map of a node,
// defaulting empty labels and disambiguating repeats with numeric suffixes.
func nextEntries(outgoing []flow.Edge, titles map[string]string) yamlv2.MapSlice {
	next := make(yamlv2.MapSlice, 0, len(outgoing))
	used := make(map[string]bool, len(outgoing))

	for _, edge := range outgoing {
		label := edge.Label
		if label == "" {
			target := edge.Target
			if target == "" {
				target = "desconocido"
			}
			label = "next_" + target
		}
		if used[label] {
			suffix := 2
			for used[fmt.Sprintf("%s_%d", label, suffix)] {
				suffix++
			}
			label = fmt.Sprintf("%s_%d", label, suffix)
		}
		used[label] = true

		target := edge.Target
		if title, ok := titles[edge.Target]; ok {
			target = title
		}
		next = append(next, yamlv2.MapItem{Key: label, Value: target})
	}
	return next
}

// nodeBody renders one node into its document body.
func nodeBody(node *flow.Node, outgoing []flow.Edge, titles map[string]string) yamlv2.MapSlice {
	switch node.Kind() {
	case flow.TypeQuestion:
		return questionBody(node, outgoing, titles)
	case flow.TypeAction:
		return actionBody(node, outgoing, titles)
	case flow.TypeMessage:
		return messageBody(node)
	default:
		return passthroughBody(node)
	}
}

func questionBody(node *flow.Node, outgoing []flow.Edge, titles map[string]string) yamlv2.MapSlice {
	body := yamlv2.MapSlice{
		{Key: "type", Value: "question"},
		{Key: "question", Value: node.Question},
	}
	if node.Check != "" {
		body = append(body, yamlv2.MapItem{Key: "check", Value: node.Check})
	}
	if len(node.ExpectedAnswers) > 0 {
		answers := make([]any, 0, len(node.ExpectedAnswers))
		for _, answer := range node.ExpectedAnswers {
			if answer.Description != "" {
				answers = append(answers, yamlv2.MapSlice{{Key: answer.Value, Value: answer.Description}})
			} else {
				answers = append(answers, answer.Value)
			}
		}
		body = append(body, yamlv2.MapItem{Key: "expected_answers", Value: answers})
	}
	if len(outgoing) > 0 {
		body = append(body, yamlv2.MapItem{Key: "next", Value: nextEntries(outgoing, titles)})
	}
	if meta := serializeMetadata(node.Metadata); len(meta) > 0 {
		body = append(body, yamlv2.MapItem{Key: "metadata", Value: meta})
	}
	return body
}

func actionBody(node *flow.Node, outgoing []flow.Edge, titles map[string]string) yamlv2.MapSlice {
	body := yamlv2.MapSlice{
		{Key: "type", Value: "action"},
		{Key: "action", Value: node.Action},
	}
	switch params := node.Parameters.(type) {
	case map[string]any:
		if len(params) > 0 {
			body = append(body, yamlv2.MapItem{Key: "parameters", Value: sortedMapSlice(params)})
		}
	case string:
		if strings.TrimSpace(params) != "" {
			body = append(body, yamlv2.MapItem{
				Key:   "parameters",
				Value: yamlv2.MapSlice{{Key: "value", Value: strings.TrimSpace(params)}},
			})
		}
	}
	// Transitions always use the mapping form, even for a single unlabeled
	// edge, so the document re-imports without a special case.
	if len(outgoing) > 0 {
		body = append(body, yamlv2.MapItem{Key: "next", Value: nextEntries(outgoing, titles)})
	}
	if meta := serializeMetadata(node.Metadata); len(meta) > 0 {
		body = append(body, yamlv2.MapItem{Key: "metadata", Value: meta})
	}
	return body
}

func messageBody(node *flow.Node) yamlv2.MapSlice {
	body := yamlv2.MapSlice{
		{Key: "type", Value: "message"},
		{Key: "message", Value: node.Message},
	}
	if node.Severity != "" {
		body = append(body, yamlv2.MapItem{Key: "severity", Value: node.Severity})
	}
	if meta := serializeMetadata(node.Metadata); len(meta) > 0 {
		body = append(body, yamlv2.MapItem{Key: "metadata", Value: meta})
	}
	return body
}

// passthroughBody keeps every field of an unknown node kind except the
// position, plus an explicit type.
func passthroughBody(node *flow.Node) yamlv2.MapSlice {
	body := yamlv2.MapSlice{}
	if node.ID != "" {
		body = append(body, yamlv2.MapItem{Key: "id", Value: node.ID})
	}
	for _, key := range node.SortedExtraKeys() {
		body = append(body, yamlv2.MapItem{Key: key, Value: orderedValue(node.Extra[key])})
	}
	if meta := serializeMetadata(node.Metadata); len(meta) > 0 {
		body = append(body, yamlv2.MapItem{Key: "metadata", Value: meta})
	}
	if len(node.Appearance) > 0 {
		body = append(body, yamlv2.MapItem{Key: "appearance", Value: sortedMapSlice(node.Appearance)})
	}
	kind := node.Kind()
	if kind == "" {
		kind = "custom"
	}
	body = append(body, yamlv2.MapItem{Key: "type", Value: kind})
	return body
}

// serializeMetadata keeps map metadata as-is and wraps bare text into
// {text: ...}; anything else is omitted.
func serializeMetadata(metadata any) yamlv2.MapSlice {
	switch value := metadata.(type) {
	case map[string]any:
		return sortedMapSlice(value)
	case string:
		if strings.TrimSpace(value) != "" {
			return yamlv2.MapSlice{{Key: "text", Value: value}}
		}
	}
	return nil
}

// flowMetadata builds the flow-level metadata block from the present,
// non-empty fields.
func flowMetadata(f *flow.Flow) yamlv2.MapSlice {
	meta := yamlv2.MapSlice{}
	if f.ID != "" {
		meta = append(meta, yamlv2.MapItem{Key: "id", Value: f.ID})
	}
	if f.Name != "" {
		meta = append(meta, yamlv2.MapItem{Key: "name", Value: f.Name})
	}
	if f.Description != "" {
		meta = append(meta, yamlv2.MapItem{Key: "description", Value: f.Description})
	}
	return meta
}
