package codec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dvalderas/flowtree/pkg/flow"
	"github.com/google/uuid"
	yamlv3 "gopkg.in/yaml.v3"
)

var (
	nonSlugRunRe  = regexp.MustCompile(`[^a-z0-9_-]+`)
	underscoreRe  = regexp.MustCompile(`_+`)
	nonPortRunRe  = regexp.MustCompile(`[^a-z0-9]+`)
	reservedField = map[string]bool{"next": true, "metadata": true, "appearance": true, "id": true, "type": true}
)

// Import parses a tree document back into a flow. It fails with an
// *ImportError naming the offending title or label; a hard error aborts
// before any partial flow is produced. Node identifiers are synthesized
// fresh from titles, so they are not guaranteed to match a previous export.
func Import(documentText string) (*flow.Flow, error) {
	if strings.TrimSpace(documentText) == "" {
		return nil, importErrorf("El contenido YAML está vacío.")
	}

	var root yamlv3.Node
	if err := yamlv3.Unmarshal([]byte(documentText), &root); err != nil {
		return nil, importErrorf("YAML inválido: %v", err)
	}

	document := documentMapping(&root)
	if document == nil {
		return nil, importErrorf("El YAML debe representar un objeto con la sección 'flow'.")
	}

	flowSection := mappingValue(document, "flow")
	if flowSection == nil || flowSection.Kind != yamlv3.MappingNode {
		return nil, importErrorf("El YAML debe contener una sección 'flow'.")
	}

	metadataSection := mappingValue(document, "metadata")
	if metadataSection != nil && metadataSection.Kind != yamlv3.MappingNode {
		return nil, importErrorf("La sección 'metadata' debe ser un objeto.")
	}

	imp := &importer{
		usage:       make(map[string]int),
		titleLookup: make(map[string]string),
	}

	startTarget := ""
	for i := 0; i < len(flowSection.Content)-1; i += 2 {
		keyNode := resolve(flowSection.Content[i])
		valueNode := resolve(flowSection.Content[i+1])
		title := normalizeMultiline(keyNode.Value)

		if strings.EqualFold(title, startEntryTitle) {
			target, err := extractStartTarget(valueNode)
			if err != nil {
				return nil, err
			}
			startTarget = target
			continue
		}

		if err := imp.addNode(title, valueNode); err != nil {
			return nil, err
		}
	}

	var edges []flow.Edge
	if startTarget != "" {
		targetID := imp.resolveTitle(startTarget)
		if targetID == "" {
			return nil, importErrorf("El nodo Start apunta a '%s', que no existe en el flujo.", startTarget)
		}
		edges = append(edges, flow.Edge{
			ID:         newEdgeID(),
			Source:     "start",
			Target:     targetID,
			Label:      "",
			SourcePort: "salida",
			TargetPort: "input",
		})
	}

	for _, pending := range imp.pending {
		targetID := imp.resolveTitle(pending.targetTitle)
		if targetID == "" {
			label := pending.label
			if label == "" {
				label = "sin etiqueta"
			}
			return nil, importErrorf("La transición '%s' apunta a '%s', que no existe.", label, pending.targetTitle)
		}
		edges = append(edges, flow.Edge{
			ID:         newEdgeID(),
			Source:     pending.sourceID,
			Target:     targetID,
			Label:      pending.label,
			SourcePort: sanitizePort(pending.label),
			TargetPort: "input",
		})
	}

	result := &flow.Flow{Nodes: imp.nodes, Edges: edges}
	if metadataSection != nil {
		var meta map[string]any
		if err := metadataSection.Decode(&meta); err == nil {
			result.ID = strings.TrimSpace(anyToString(meta["id"]))
			result.Name = normalizeMultiline(anyToString(meta["name"]))
			result.Description = normalizeMultiline(anyToString(meta["description"]))
		}
	}
	return result, nil
}

// importer accumulates state for a single Import call: slug usage counters,
// the title→id lookup, parsed nodes and unresolved transitions.
type importer struct {
	usage       map[string]int
	titleLookup map[string]string
	nodes       []flow.Node
	pending     []pendingEdge
}

type pendingEdge struct {
	sourceID    string
	label       string
	targetTitle string
}

func (imp *importer) addNode(title string, body *yamlv3.Node) error {
	if body.Kind != yamlv3.MappingNode {
		return importErrorf("El nodo '%s' debe ser un objeto.", title)
	}

	nodeType := "message"
	if typeNode := mappingValue(body, "type"); typeNode != nil {
		if text := strings.TrimSpace(typeNode.Value); text != "" {
			nodeType = text
		}
	}

	candidate := title
	if idNode := mappingValue(body, "id"); idNode != nil && idNode.Kind == yamlv3.ScalarNode && idNode.Value != "" {
		candidate = idNode.Value
	}
	nodeID := makeIdentifier(candidate, imp.usage)
	imp.titleLookup[title] = nodeID
	imp.titleLookup[strings.ToLower(title)] = nodeID

	node := flow.Node{
		ID:       nodeID,
		Type:     nodeType,
		Position: defaultPosition(len(imp.nodes)),
	}

	if meta := mappingValue(body, "metadata"); meta != nil && meta.Kind == yamlv3.MappingNode {
		var decoded map[string]any
		if err := meta.Decode(&decoded); err == nil {
			node.Metadata = decoded
		}
	}
	if appearance := mappingValue(body, "appearance"); appearance != nil && appearance.Kind == yamlv3.MappingNode {
		var decoded map[string]any
		if err := appearance.Decode(&decoded); err == nil {
			node.Appearance = decoded
		}
	}

	switch nodeType {
	case flow.TypeQuestion:
		node.Question = normalizeMultiline(scalarText(mappingValue(body, "question")))
		node.Check = strings.TrimSpace(scalarText(mappingValue(body, "check")))
		node.ExpectedAnswers = parseAnswerNodes(mappingValue(body, "expected_answers"))
	case flow.TypeMessage:
		node.Message = normalizeMultiline(scalarText(mappingValue(body, "message")))
		if severity := mappingValue(body, "severity"); severity != nil {
			node.Severity = strings.TrimSpace(scalarText(severity))
		}
	default:
		if err := imp.passthroughFields(&node, body); err != nil {
			return err
		}
	}

	if next := mappingValue(body, "next"); next != nil {
		if next.Kind != yamlv3.MappingNode {
			return importErrorf("El nodo '%s' tiene un bloque 'next' inválido.", title)
		}
		for i := 0; i < len(next.Content)-1; i += 2 {
			label := strings.TrimSpace(resolve(next.Content[i]).Value)
			targetTitle := strings.TrimSpace(scalarText(resolve(next.Content[i+1])))
			if targetTitle == "" {
				return importErrorf("El nodo '%s' tiene un destino vacío en 'next'.", title)
			}
			imp.pending = append(imp.pending, pendingEdge{
				sourceID:    nodeID,
				label:       label,
				targetTitle: targetTitle,
			})
		}
	}

	imp.nodes = append(imp.nodes, node)
	return nil
}

// passthroughFields restores action and unknown node kinds: known field
// names bind to their typed slots, everything else is kept verbatim.
func (imp *importer) passthroughFields(node *flow.Node, body *yamlv3.Node) error {
	for i := 0; i < len(body.Content)-1; i += 2 {
		key := resolve(body.Content[i]).Value
		if reservedField[key] {
			continue
		}
		value := resolve(body.Content[i+1])
		switch key {
		case "action":
			node.Action = strings.TrimSpace(scalarText(value))
		case "parameters":
			var decoded any
			if err := value.Decode(&decoded); err == nil {
				node.Parameters = decoded
			}
		case "question":
			node.Question = normalizeMultiline(scalarText(value))
		case "check":
			node.Check = strings.TrimSpace(scalarText(value))
		case "expected_answers":
			node.ExpectedAnswers = parseAnswerNodes(value)
		case "message":
			node.Message = normalizeMultiline(scalarText(value))
		case "severity":
			node.Severity = strings.TrimSpace(scalarText(value))
		default:
			var decoded any
			if err := value.Decode(&decoded); err != nil {
				return importErrorf("El nodo '%s' tiene un campo '%s' inválido.", node.ID, key)
			}
			if node.Extra == nil {
				node.Extra = make(map[string]any)
			}
			node.Extra[key] = decoded
		}
	}
	return nil
}

func (imp *importer) resolveTitle(title string) string {
	if id, ok := imp.titleLookup[title]; ok {
		return id
	}
	return imp.titleLookup[strings.ToLower(title)]
}

// extractStartTarget accepts the Start entry as a bare scalar or as a
// mapping with a next/target/to key.
func extractStartTarget(node *yamlv3.Node) (string, error) {
	switch node.Kind {
	case yamlv3.ScalarNode:
		return strings.TrimSpace(scalarText(node)), nil
	case yamlv3.MappingNode:
		for _, key := range []string{"next", "target", "to"} {
			if value := mappingValue(node, key); value != nil {
				if text := strings.TrimSpace(scalarText(value)); text != "" {
					return text, nil
				}
			}
		}
	}
	return "", importErrorf("El nodo Start debe apuntar a un destino válido.")
}

// parseAnswerNodes normalizes expected answers back into value/description
// entries: bare scalars or one-key mappings.
func parseAnswerNodes(list *yamlv3.Node) []flow.ExpectedAnswer {
	if list == nil || list.Kind != yamlv3.SequenceNode {
		return nil
	}
	var answers []flow.ExpectedAnswer
	for _, item := range list.Content {
		item = resolve(item)
		switch item.Kind {
		case yamlv3.MappingNode:
			for i := 0; i < len(item.Content)-1; i += 2 {
				value := strings.TrimSpace(resolve(item.Content[i]).Value)
				if value == "" {
					continue
				}
				answers = append(answers, flow.ExpectedAnswer{
					Value:       value,
					Description: strings.TrimSpace(scalarText(resolve(item.Content[i+1]))),
				})
			}
		case yamlv3.ScalarNode:
			if value := strings.TrimSpace(scalarText(item)); value != "" {
				answers = append(answers, flow.ExpectedAnswer{Value: value})
			}
		}
	}
	return answers
}

// makeIdentifier slugifies a title into a stable node id, disambiguating
// collisions with monotonic per-base counters that are never reused within
// one import call.
func makeIdentifier(value string, used map[string]int) string {
	base := strings.ToLower(strings.TrimSpace(value))
	base = nonSlugRunRe.ReplaceAllString(base, "_")
	base = underscoreRe.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "nodo"
	}

	counter := used[base]
	candidate := base
	if counter > 0 {
		candidate = fmt.Sprintf("%s_%d", base, counter+1)
	}
	for used[candidate] > 0 {
		counter++
		candidate = fmt.Sprintf("%s_%d", base, counter+1)
	}
	used[candidate] = counter + 1
	return candidate
}

// sanitizePort slugs an edge label into a connection-point name; unlabeled
// transitions use the default output port.
func sanitizePort(label string) string {
	text := strings.TrimSpace(label)
	if text == "" {
		return "salida"
	}
	slug := strings.Trim(nonPortRunRe.ReplaceAllString(strings.ToLower(text), "_"), "_")
	if slug == "" {
		return "salida"
	}
	return slug
}

// newEdgeID derives a readable edge id from a fresh UUID token.
func newEdgeID() string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("edge_%s_%s", token[:8], token[8:16])
}

// defaultPosition lays imported nodes on a simple grid so the editor has
// something reasonable to show before the user rearranges them.
func defaultPosition(index int) map[string]any {
	const (
		columns  = 4
		spacingX = 320
		spacingY = 220
		originX  = 160
		originY  = 120
	)
	row := index / columns
	col := index % columns
	return map[string]any{
		"x": originX + col*spacingX,
		"y": originY + row*spacingY,
	}
}

// documentMapping unwraps the document node down to the top-level mapping.
func documentMapping(root *yamlv3.Node) *yamlv3.Node {
	node := root
	if node.Kind == yamlv3.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = resolve(node.Content[0])
	}
	if node.Kind != yamlv3.MappingNode {
		return nil
	}
	return node
}

// mappingValue finds the value node of a key within a mapping.
func mappingValue(mapping *yamlv3.Node, key string) *yamlv3.Node {
	if mapping == nil || mapping.Kind != yamlv3.MappingNode {
		return nil
	}
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if resolve(mapping.Content[i]).Value == key {
			return resolve(mapping.Content[i+1])
		}
	}
	return nil
}

func resolve(node *yamlv3.Node) *yamlv3.Node {
	for node != nil && node.Kind == yamlv3.AliasNode {
		node = node.Alias
	}
	return node
}

// scalarText renders a scalar node as text, treating null as empty.
func scalarText(node *yamlv3.Node) string {
	if node == nil || node.Kind != yamlv3.ScalarNode || node.Tag == "!!null" {
		return ""
	}
	return node.Value
}

func normalizeMultiline(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

func anyToString(value any) string {
	if value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return text
	}
	return fmt.Sprintf("%v", value)
}
