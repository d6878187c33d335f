package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvalderas/flowtree/pkg/flow"
)

const diagnosticDocument = `flow:
  Start: Q1
  Q1:
    type: question
    question: "¿Funciona?"
    check: "estado de la conexión"
    expected_answers:
      - "sí"
      - "no"
    next:
      "sí": End
      "no": End2
  End:
    type: message
    message: "Todo bien"
    severity: info
  End2:
    type: message
    message: Revisar
metadata:
  id: diagnostico
  name: "Diagnóstico"
`

func TestImportDiagnosticDocument(t *testing.T) {
	f, err := Import(diagnosticDocument)
	require.NoError(t, err)

	assert.Equal(t, "diagnostico", f.ID)
	assert.Equal(t, "Diagnóstico", f.Name)

	require.Len(t, f.Nodes, 3)
	q1 := f.Nodes[0]
	assert.Equal(t, "q1", q1.ID)
	assert.Equal(t, flow.TypeQuestion, q1.Type)
	assert.Equal(t, "¿Funciona?", q1.Question)
	assert.Equal(t, "estado de la conexión", q1.Check)
	require.Len(t, q1.ExpectedAnswers, 2)
	assert.Equal(t, "sí", q1.ExpectedAnswers[0].Value)

	end := f.Nodes[1]
	assert.Equal(t, "end", end.ID)
	assert.Equal(t, "Todo bien", end.Message)
	assert.Equal(t, "info", end.Severity)

	// Synthetic start edge first, then the question transitions in order.
	require.Len(t, f.Edges, 3)
	start := f.Edges[0]
	assert.Equal(t, "start", start.Source)
	assert.Equal(t, "q1", start.Target)
	assert.Equal(t, "", start.Label)
	assert.Equal(t, "salida", start.SourcePort)
	assert.Equal(t, "input", start.TargetPort)

	si := f.Edges[1]
	assert.Equal(t, "q1", si.Source)
	assert.Equal(t, "end", si.Target)
	assert.Equal(t, "sí", si.Label)
	assert.Equal(t, "s", si.SourcePort)

	assert.True(t, strings.HasPrefix(start.ID, "edge_"))
}

func TestImportGridPositions(t *testing.T) {
	f, err := Import(diagnosticDocument)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"x": 160, "y": 120}, f.Nodes[0].Position)
	assert.Equal(t, map[string]any{"x": 480, "y": 120}, f.Nodes[1].Position)
}

func TestImportDefaultsToMessageType(t *testing.T) {
	f, err := Import("flow:\n  Nota:\n    message: hola\n")
	require.NoError(t, err)

	require.Len(t, f.Nodes, 1)
	assert.Equal(t, flow.TypeMessage, f.Nodes[0].Type)
	assert.Equal(t, "hola", f.Nodes[0].Message)
}

func TestImportActionPassthrough(t *testing.T) {
	doc := `flow:
  Reiniciar:
    type: action
    action: reiniciar_router
    parameters:
      espera: 30
    custom_field: valor
    next:
      listo: Fin
  Fin:
    type: message
    message: ok
`
	f, err := Import(doc)
	require.NoError(t, err)

	action := f.Nodes[0]
	assert.Equal(t, "reiniciar_router", action.Action)
	assert.Equal(t, map[string]any{"espera": 30}, action.Parameters)
	assert.Equal(t, "valor", action.Extra["custom_field"])
}

func TestImportStartMappingForms(t *testing.T) {
	for _, key := range []string{"next", "target", "to"} {
		doc := "flow:\n  Start:\n    " + key + ": Fin\n  Fin:\n    type: message\n    message: ok\n"
		f, err := Import(doc)
		require.NoError(t, err, "start mapping with %q", key)
		require.Len(t, f.Edges, 1)
		assert.Equal(t, "fin", f.Edges[0].Target)
	}
}

func TestImportIdentifierCollisions(t *testing.T) {
	doc := `flow:
  Nodo Uno:
    type: message
    message: a
  "Nodo  Uno":
    type: message
    message: b
  nodo_uno:
    type: message
    message: c
`
	f, err := Import(doc)
	require.NoError(t, err)

	require.Len(t, f.Nodes, 3)
	assert.Equal(t, "nodo_uno", f.Nodes[0].ID)
	assert.Equal(t, "nodo_uno_2", f.Nodes[1].ID)
	assert.Equal(t, "nodo_uno_3", f.Nodes[2].ID)
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		message string
	}{
		{
			name:    "empty document",
			doc:     "   \n",
			message: "El contenido YAML está vacío.",
		},
		{
			name:    "not a mapping",
			doc:     "- a\n- b\n",
			message: "El YAML debe representar un objeto con la sección 'flow'.",
		},
		{
			name:    "missing flow section",
			doc:     "metadata:\n  id: x\n",
			message: "El YAML debe contener una sección 'flow'.",
		},
		{
			name:    "metadata not a mapping",
			doc:     "flow:\n  Fin:\n    type: message\nmetadata: texto\n",
			message: "La sección 'metadata' debe ser un objeto.",
		},
		{
			name:    "node not a mapping",
			doc:     "flow:\n  Fin: hola\n",
			message: "El nodo 'Fin' debe ser un objeto.",
		},
		{
			name:    "start without target",
			doc:     "flow:\n  Start:\n    otro: Fin\n  Fin:\n    type: message\n",
			message: "El nodo Start debe apuntar a un destino válido.",
		},
		{
			name:    "start target unknown",
			doc:     "flow:\n  Start: Fantasma\n  Fin:\n    type: message\n",
			message: "El nodo Start apunta a 'Fantasma', que no existe en el flujo.",
		},
		{
			name:    "invalid next block",
			doc:     "flow:\n  Fin:\n    type: message\n    next: lista\n",
			message: "El nodo 'Fin' tiene un bloque 'next' inválido.",
		},
		{
			name:    "empty next target",
			doc:     "flow:\n  Fin:\n    type: message\n    next:\n      ir: \"\"\n",
			message: "El nodo 'Fin' tiene un destino vacío en 'next'.",
		},
		{
			name:    "unresolved next target",
			doc:     "flow:\n  Fin:\n    type: message\n    next:\n      ir: Fantasma\n",
			message: "La transición 'ir' apunta a 'Fantasma', que no existe.",
		},
		{
			name:    "unresolved unlabeled next target",
			doc:     "flow:\n  Fin:\n    type: message\n    next:\n      \"\": Fantasma\n",
			message: "La transición 'sin etiqueta' apunta a 'Fantasma', que no existe.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(tt.doc)
			require.Error(t, err)

			var importErr *ImportError
			require.ErrorAs(t, err, &importErr)
			assert.Equal(t, tt.message, importErr.Message)
		})
	}
}

func TestImportCaseInsensitiveTitleLookup(t *testing.T) {
	doc := `flow:
  Start: pregunta inicial
  Pregunta Inicial:
    type: question
    question: ok?
    next:
      ok: FIN
  Fin:
    type: message
    message: listo
`
	f, err := Import(doc)
	require.NoError(t, err)

	require.Len(t, f.Edges, 2)
	assert.Equal(t, "pregunta_inicial", f.Edges[0].Target)
	assert.Equal(t, "fin", f.Edges[1].Target)
}

func TestRoundTripPreservesStructure(t *testing.T) {
	original := diagnosticFlow()
	original.Nodes[1].Check = "estado"

	text, _ := Export(original)
	imported, err := Import(text)
	require.NoError(t, err)

	// Identifiers are synthesized from titles, so compare structure by
	// type, content and labeled transitions instead.
	require.Len(t, imported.Nodes, 3)
	byType := make(map[string][]flow.Node)
	for _, node := range imported.Nodes {
		byType[node.Type] = append(byType[node.Type], node)
	}
	require.Len(t, byType[flow.TypeQuestion], 1)
	require.Len(t, byType[flow.TypeMessage], 2)

	question := byType[flow.TypeQuestion][0]
	assert.Equal(t, "¿Funciona?", question.Question)
	assert.Equal(t, "estado", question.Check)
	require.Len(t, question.ExpectedAnswers, 2)

	labels := make(map[string]bool)
	for _, edge := range imported.Edges {
		labels[edge.Label] = true
	}
	assert.True(t, labels["sí"])
	assert.True(t, labels["no"])
	assert.True(t, labels[""], "synthetic start edge is unlabeled")

	// A second pass is stable.
	text2, _ := Export(imported)
	imported2, err := Import(text2)
	require.NoError(t, err)
	assert.Len(t, imported2.Nodes, len(imported.Nodes))
	assert.Len(t, imported2.Edges, len(imported.Edges))
}
