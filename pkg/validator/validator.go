// Package validator applies the structural rules of a decision-tree flow
// and reports diagnostics. Problems are reported, never thrown: errors
// block validity, warnings do not, and every check that can run does run.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvalderas/flowtree/pkg/flow"
	"github.com/dvalderas/flowtree/pkg/graph"
)

// Diagnostics is the result of validating a flow. Valid is true exactly
// when Errors is empty; Paths is populated only for error-free flows.
type Diagnostics struct {
	Valid    bool       `json:"valid"`
	Errors   []string   `json:"errors"`
	Warnings []string   `json:"warnings"`
	Paths    [][]string `json:"paths"`
}

// Validate checks the flow structure and returns accumulated diagnostics.
func Validate(f *flow.Flow) Diagnostics {
	errors := []string{}
	warnings := []string{}

	// 1. Node identifiers: missing and duplicated ids.
	var nodeIDs []string
	missing := false
	for i := range f.Nodes {
		if f.Nodes[i].ID == "" {
			missing = true
			continue
		}
		nodeIDs = append(nodeIDs, f.Nodes[i].ID)
	}
	if missing {
		errors = append(errors, "Hay nodos sin identificador definido.")
	}

	counts := make(map[string]int, len(nodeIDs))
	for _, id := range nodeIDs {
		counts[id]++
	}
	var duplicates []string
	for id, n := range counts {
		if n > 1 {
			duplicates = append(duplicates, id)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		errors = append(errors, fmt.Sprintf("IDs duplicados detectados: %s.", strings.Join(duplicates, ", ")))
	}

	nodeLookup := make(map[string]*flow.Node, len(f.Nodes))
	for i := range f.Nodes {
		if f.Nodes[i].ID != "" {
			nodeLookup[f.Nodes[i].ID] = &f.Nodes[i]
		}
	}

	// 2. Edge indices plus referential integrity.
	for i := 0; i < f.MalformedEdges; i++ {
		warnings = append(warnings, "Se ignoró una arista con formato inválido.")
	}

	edgesBySource := make(map[string][]flow.Edge)
	edgesByTarget := make(map[string][]flow.Edge)
	for _, edge := range f.Edges {
		if edge.Source == "" || edge.Target == "" {
			errors = append(errors, "Una conexión carece de origen o destino.")
			continue
		}
		if _, ok := nodeLookup[edge.Source]; !ok {
			errors = append(errors, fmt.Sprintf("La conexión hace referencia a un nodo inexistente: %s.", edge.Source))
		}
		if _, ok := nodeLookup[edge.Target]; !ok {
			errors = append(errors, fmt.Sprintf("La conexión hace referencia a un nodo inexistente: %s.", edge.Target))
		}
		if edge.Label == "" {
			warnings = append(warnings, fmt.Sprintf("La conexión %s → %s no tiene etiqueta definida.", edge.Source, edge.Target))
		}
		edgesBySource[edge.Source] = append(edgesBySource[edge.Source], edge)
		edgesByTarget[edge.Target] = append(edgesByTarget[edge.Target], edge)
	}

	// 3. Start node shape.
	var startNodes []*flow.Node
	for i := range f.Nodes {
		if f.Nodes[i].Type == flow.TypeStart {
			startNodes = append(startNodes, &f.Nodes[i])
		}
	}
	startID := ""
	if len(startNodes) == 0 {
		errors = append(errors, "Debe existir un nodo de inicio (Start).")
	} else {
		if len(startNodes) > 1 {
			errors = append(errors, "Solo puede existir un nodo de inicio (Start).")
		}
		start := startNodes[0]
		startID = start.ID
		if startID == "" {
			errors = append(errors, "El nodo de inicio debe tener un identificador definido.")
		} else if strings.ToLower(startID) != "start" {
			errors = append(errors, "El identificador del nodo de inicio debe ser 'start'.")
		}
		if len(edgesByTarget[startID]) > 0 {
			errors = append(errors, "El nodo de inicio no puede tener conexiones entrantes.")
		}
		outgoing := edgesBySource[startID]
		if len(outgoing) > 1 {
			errors = append(errors, "El nodo de inicio solo puede tener una conexión saliente.")
		}
		if len(outgoing) == 0 {
			warnings = append(warnings, "El nodo de inicio no tiene conexiones salientes.")
		}
	}

	g := graph.Build(f.Nodes, f.Edges)

	// 4. Early out: an empty graph makes every further check meaningless.
	if g.Len() == 0 {
		errors = append(errors, "El flujo no contiene nodos.")
		return Diagnostics{Valid: false, Errors: errors, Warnings: warnings, Paths: [][]string{}}
	}

	// 5. Root and terminal existence; roots the start node cannot reach.
	roots := g.Roots()
	if len(roots) == 0 {
		errors = append(errors, "No se encontraron nodos raíz (sin entradas).")
	} else if startID != "" {
		var unreached []string
		for _, id := range roots {
			if id != startID {
				unreached = append(unreached, id)
			}
		}
		if len(unreached) > 0 {
			sort.Strings(unreached)
			errors = append(errors, fmt.Sprintf(
				"Todos los nodos raíz deben estar conectados desde Start. Sin entradas: %s.",
				strings.Join(unreached, ", ")))
		}
	}

	if len(g.Terminals()) == 0 {
		errors = append(errors, "No se encontraron nodos terminales.")
	}

	// 6. Cycle detection over the full edge set.
	if cycle := g.FindCycle(); cycle != nil {
		loop := append(append([]string{}, cycle...), cycle[0])
		errors = append(errors, fmt.Sprintf("Se detectó un ciclo en el flujo: %s.", strings.Join(loop, " → ")))
	}

	// 7. Per-node rules: terminal messages, question label consistency.
	for i := range f.Nodes {
		node := &f.Nodes[i]
		outgoing := edgesBySource[node.ID]

		if node.Type == flow.TypeMessage && len(outgoing) > 0 {
			errors = append(errors, fmt.Sprintf("El nodo terminal '%s' no debe tener conexiones salientes.", node.ID))
		}

		if node.Type == flow.TypeQuestion {
			expected := expectedLabels(node.ExpectedAnswers)
			if len(expected) == 0 {
				continue
			}
			expectedSet := make(map[string]bool, len(expected))
			for _, label := range expected {
				expectedSet[label] = true
			}

			connected := make(map[string]bool)
			for _, edge := range outgoing {
				label := labelValue(edge.Label)
				connected[label] = true
				if label != "" && !expectedSet[label] {
					errors = append(errors, fmt.Sprintf(
						"La etiqueta '%s' desde '%s' no coincide con expected_answers.", label, node.ID))
				}
			}

			var unmatched []string
			for label := range expectedSet {
				if !connected[label] {
					unmatched = append(unmatched, label)
				}
			}
			if len(unmatched) > 0 {
				sort.Strings(unmatched)
				warnings = append(warnings, fmt.Sprintf(
					"La pregunta '%s' tiene respuestas esperadas sin conexión: %s.",
					node.ID, strings.Join(unmatched, ", ")))
			}
		}
	}

	// 8. Paths are a consequence; they are only reported once the structure
	// itself is sound.
	paths := [][]string{}
	if len(errors) == 0 {
		paths = graph.EnumeratePaths(f)
		if paths == nil {
			paths = [][]string{}
		}
	}

	return Diagnostics{
		Valid:    len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
		Paths:    paths,
	}
}

// expectedLabels extracts the non-empty expected answer values in order.
func expectedLabels(answers []flow.ExpectedAnswer) []string {
	var labels []string
	for _, answer := range answers {
		if text := strings.TrimSpace(answer.Value); text != "" {
			labels = append(labels, text)
		}
	}
	return labels
}

// labelValue keeps the answer part of an edge label: the text before an
// optional ':' separator, trimmed.
func labelValue(label string) string {
	value, _, _ := strings.Cut(label, ":")
	return strings.TrimSpace(value)
}
