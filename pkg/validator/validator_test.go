package validator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvalderas/flowtree/pkg/flow"
)

// diagnosticFlow is the canonical well-formed test flow: a start, one
// question with two answers, and two terminal messages.
func diagnosticFlow() *flow.Flow {
	return &flow.Flow{
		Nodes: []flow.Node{
			{ID: "start", Type: flow.TypeStart},
			{ID: "q1", Type: flow.TypeQuestion, Question: "¿Funciona?", ExpectedAnswers: []flow.ExpectedAnswer{{Value: "sí"}, {Value: "no"}}},
			{ID: "end", Type: flow.TypeMessage, Message: "Todo bien"},
			{ID: "end2", Type: flow.TypeMessage, Message: "Revisar"},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "start", Target: "q1", Label: "siguiente"},
			{ID: "e2", Source: "q1", Target: "end", Label: "sí"},
			{ID: "e3", Source: "q1", Target: "end2", Label: "no"},
		},
	}
}

func TestValidateWellFormedFlow(t *testing.T) {
	diag := Validate(diagnosticFlow())

	assert.True(t, diag.Valid)
	assert.Empty(t, diag.Errors)
	assert.Empty(t, diag.Warnings)
	require.Len(t, diag.Paths, 2)
	assert.Equal(t, []string{"start", "q1", "end"}, diag.Paths[0])
	assert.Equal(t, []string{"start", "q1", "end2"}, diag.Paths[1])
}

func TestValidateEmptyFlow(t *testing.T) {
	diag := Validate(&flow.Flow{})

	assert.False(t, diag.Valid)
	assert.Contains(t, diag.Errors, "Debe existir un nodo de inicio (Start).")
	assert.Contains(t, diag.Errors, "El flujo no contiene nodos.")
	assert.Equal(t, [][]string{}, diag.Paths)
}

func TestValidateMissingAndDuplicateIDs(t *testing.T) {
	f := diagnosticFlow()
	f.Nodes = append(f.Nodes, flow.Node{Type: flow.TypeMessage})
	f.Nodes = append(f.Nodes, flow.Node{ID: "end", Type: flow.TypeMessage})

	diag := Validate(f)

	assert.False(t, diag.Valid)
	assert.Contains(t, diag.Errors, "Hay nodos sin identificador definido.")
	assert.Contains(t, diag.Errors, "IDs duplicados detectados: end.")
	assert.Empty(t, diag.Paths)
}

func TestValidateEdgeIntegrity(t *testing.T) {
	f := diagnosticFlow()
	f.Edges = append(f.Edges,
		flow.Edge{ID: "e4", Source: "q1", Target: ""},
		flow.Edge{ID: "e5", Source: "q1", Target: "ghost", Label: "sí"},
	)

	diag := Validate(f)

	assert.False(t, diag.Valid)
	assert.Contains(t, diag.Errors, "Una conexión carece de origen o destino.")
	assert.Contains(t, diag.Errors, "La conexión hace referencia a un nodo inexistente: ghost.")
}

func TestValidateMalformedEdgesWarn(t *testing.T) {
	data := `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "end", "type": "message", "message": "ok"}
		],
		"edges": ["bogus", {"id": "e1", "source": "start", "target": "end", "label": "ir"}]
	}`
	var f flow.Flow
	require.NoError(t, json.Unmarshal([]byte(data), &f))

	diag := Validate(&f)

	assert.True(t, diag.Valid)
	assert.Contains(t, diag.Warnings, "Se ignoró una arista con formato inválido.")
}

func TestValidateUnlabeledEdgeWarns(t *testing.T) {
	f := diagnosticFlow()
	f.Edges[0].Label = ""

	diag := Validate(f)

	assert.True(t, diag.Valid)
	assert.Contains(t, diag.Warnings, "La conexión start → q1 no tiene etiqueta definida.")
}

func TestValidateStartNodeShape(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*flow.Flow)
		wantErr string
	}{
		{
			name:    "missing start",
			mutate:  func(f *flow.Flow) { f.Nodes = f.Nodes[1:]; f.Edges = f.Edges[1:] },
			wantErr: "Debe existir un nodo de inicio (Start).",
		},
		{
			name: "multiple starts",
			mutate: func(f *flow.Flow) {
				f.Nodes = append(f.Nodes, flow.Node{ID: "start2", Type: flow.TypeStart})
			},
			wantErr: "Solo puede existir un nodo de inicio (Start).",
		},
		{
			name:    "wrong literal id",
			mutate:  func(f *flow.Flow) { f.Nodes[0].ID = "inicio"; f.Edges[0].Source = "inicio" },
			wantErr: "El identificador del nodo de inicio debe ser 'start'.",
		},
		{
			name: "incoming edge",
			mutate: func(f *flow.Flow) {
				f.Edges = append(f.Edges, flow.Edge{ID: "back", Source: "end", Target: "start", Label: "volver"})
			},
			wantErr: "El nodo de inicio no puede tener conexiones entrantes.",
		},
		{
			name: "two outgoing edges",
			mutate: func(f *flow.Flow) {
				f.Edges = append(f.Edges, flow.Edge{ID: "extra", Source: "start", Target: "end", Label: "atajo"})
			},
			wantErr: "El nodo de inicio solo puede tener una conexión saliente.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := diagnosticFlow()
			tt.mutate(f)

			diag := Validate(f)

			assert.False(t, diag.Valid)
			assert.Contains(t, diag.Errors, tt.wantErr)
		})
	}
}

func TestValidateStartUppercaseIDAccepted(t *testing.T) {
	f := diagnosticFlow()
	f.Nodes[0].ID = "Start"
	f.Edges[0].Source = "Start"

	diag := Validate(f)

	assert.True(t, diag.Valid)
}

func TestValidateStartWithoutOutgoingWarns(t *testing.T) {
	f := &flow.Flow{
		Nodes: []flow.Node{
			{ID: "start", Type: flow.TypeStart},
			{ID: "end", Type: flow.TypeMessage, Message: "ok"},
		},
	}

	diag := Validate(f)

	assert.Contains(t, diag.Warnings, "El nodo de inicio no tiene conexiones salientes.")
}

func TestValidateUnreachedRoots(t *testing.T) {
	f := diagnosticFlow()
	f.Nodes = append(f.Nodes, flow.Node{ID: "huerfano", Type: flow.TypeAction, Action: "noop"})
	f.Edges = append(f.Edges, flow.Edge{ID: "e6", Source: "huerfano", Target: "end", Label: "ir"})

	diag := Validate(f)

	assert.False(t, diag.Valid)
	assert.Contains(t, diag.Errors, "Todos los nodos raíz deben estar conectados desde Start. Sin entradas: huerfano.")
}

func TestValidateCycle(t *testing.T) {
	f := diagnosticFlow()
	f.Nodes = append(f.Nodes,
		flow.Node{ID: "a", Type: flow.TypeAction, Action: "uno"},
		flow.Node{ID: "b", Type: flow.TypeAction, Action: "dos"},
	)
	f.Edges = append(f.Edges,
		flow.Edge{ID: "c1", Source: "end2", Target: "a", Label: "ir"},
		flow.Edge{ID: "c2", Source: "a", Target: "b", Label: "ir"},
		flow.Edge{ID: "c3", Source: "b", Target: "a", Label: "volver"},
	)

	diag := Validate(f)

	assert.False(t, diag.Valid)
	assert.Contains(t, diag.Errors, "Se detectó un ciclo en el flujo: a → b → a.")
}

func TestValidateMessageWithOutgoingEdge(t *testing.T) {
	f := diagnosticFlow()
	f.Edges = append(f.Edges, flow.Edge{ID: "e7", Source: "end", Target: "end2", Label: "seguir"})

	diag := Validate(f)

	assert.False(t, diag.Valid)
	assert.Contains(t, diag.Errors, "El nodo terminal 'end' no debe tener conexiones salientes.")
}

func TestValidateQuestionLabelMismatch(t *testing.T) {
	f := diagnosticFlow()
	f.Edges[1].Label = "quizás"

	diag := Validate(f)

	assert.False(t, diag.Valid)
	assert.Contains(t, diag.Errors, "La etiqueta 'quizás' desde 'q1' no coincide con expected_answers.")
	assert.Contains(t, diag.Warnings, "La pregunta 'q1' tiene respuestas esperadas sin conexión: sí.")
}

func TestValidateQuestionLabelWithDescriptionSuffix(t *testing.T) {
	// Only the text before ':' counts as the answer value.
	f := diagnosticFlow()
	f.Edges[1].Label = "sí: todo bien"

	diag := Validate(f)

	assert.True(t, diag.Valid)
	assert.Empty(t, diag.Warnings)
}
