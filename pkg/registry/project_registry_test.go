package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvalderas/flowtree/pkg/flow"
	"github.com/dvalderas/flowtree/pkg/logging"
	"github.com/dvalderas/flowtree/pkg/storage"
)

func newTestRegistry(t *testing.T) *ProjectRegistryService {
	t.Helper()
	provider := storage.NewMemoryProvider()
	require.NoError(t, provider.Initialize())
	return NewProjectRegistry(provider, logging.NewNopLogger())
}

func TestCreateProjectGeneratesSlugs(t *testing.T) {
	r := newTestRegistry(t)

	first, err := r.CreateProject("Mi Red", "casa")
	require.NoError(t, err)
	assert.Equal(t, "mi_red", first)

	second, err := r.CreateProject("Mi Red", "oficina")
	require.NoError(t, err)
	assert.Equal(t, "mi_red_2", second)

	third, err := r.CreateProject("???", "")
	require.NoError(t, err)
	assert.Equal(t, "proyecto", third)
}

func TestProjectLifecycle(t *testing.T) {
	r := newTestRegistry(t)

	projectID, err := r.CreateProject("Casa", "")
	require.NoError(t, err)

	require.NoError(t, r.RenameProject(projectID, "Casa Nueva"))

	summaries, err := r.ListProjects()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Casa Nueva", summaries[0].Name)
	assert.Empty(t, summaries[0].Flows)

	require.NoError(t, r.DeleteProject(projectID))
	summaries, err = r.ListProjects()
	require.NoError(t, err)
	assert.Empty(t, summaries)

	assert.ErrorIs(t, r.RenameProject("fantasma", "x"), ErrProjectNotFound)
	assert.ErrorIs(t, r.DeleteProject("fantasma"), ErrProjectNotFound)
}

func TestCreateFlowDefaults(t *testing.T) {
	r := newTestRegistry(t)

	projectID, err := r.CreateProject("Casa", "")
	require.NoError(t, err)

	flowID, err := r.CreateFlow(projectID, "")
	require.NoError(t, err)
	assert.Equal(t, "nuevo_flujo", flowID)

	definition, err := r.GetFlow(projectID, flowID)
	require.NoError(t, err)
	assert.Equal(t, DefaultFlowName, definition.Name)
	assert.Empty(t, definition.Nodes)

	// Same default name gets a suffixed id.
	second, err := r.CreateFlow(projectID, "")
	require.NoError(t, err)
	assert.Equal(t, "nuevo_flujo_2", second)

	_, err = r.CreateFlow("fantasma", "x")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestSaveFlowKeepsBothArtifacts(t *testing.T) {
	r := newTestRegistry(t)

	projectID, err := r.CreateProject("Casa", "")
	require.NoError(t, err)
	flowID, err := r.CreateFlow(projectID, "Router")
	require.NoError(t, err)

	definition := &flow.Flow{
		ID:   flowID,
		Name: "Router",
		Nodes: []flow.Node{
			{ID: "start", Type: flow.TypeStart},
			{ID: "fin", Type: flow.TypeMessage, Message: "listo"},
		},
		Edges: []flow.Edge{{ID: "e1", Source: "start", Target: "fin"}},
	}
	require.NoError(t, r.SaveFlow(projectID, flowID, definition))

	loaded, err := r.GetFlow(projectID, flowID)
	require.NoError(t, err)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "listo", loaded.Nodes[1].Message)

	document, err := r.GetFlowDocument(projectID, flowID)
	require.NoError(t, err)
	assert.Contains(t, document, "Start: Fin")
	assert.Contains(t, document, "message: listo")
}

func TestGetFlowSkeletonForMissing(t *testing.T) {
	r := newTestRegistry(t)

	projectID, err := r.CreateProject("Casa", "")
	require.NoError(t, err)

	definition, err := r.GetFlow(projectID, "inexistente")
	require.NoError(t, err)
	assert.Equal(t, "inexistente", definition.ID)
	assert.Empty(t, definition.Nodes)
	assert.Empty(t, definition.Edges)
}

func TestRenameFlowRewritesIdentity(t *testing.T) {
	r := newTestRegistry(t)

	projectID, err := r.CreateProject("Casa", "")
	require.NoError(t, err)
	flowID, err := r.CreateFlow(projectID, "Router")
	require.NoError(t, err)

	newID, err := r.RenameFlow(projectID, flowID, "Router Principal")
	require.NoError(t, err)
	assert.Equal(t, "router_principal", newID)

	// The old id is gone; the new definition carries the new identity.
	_, err = r.GetFlowDocument(projectID, flowID)
	assert.ErrorIs(t, err, ErrFlowNotFound)

	definition, err := r.GetFlow(projectID, newID)
	require.NoError(t, err)
	assert.Equal(t, newID, definition.ID)
	assert.Equal(t, "Router Principal", definition.Name)

	_, err = r.RenameFlow(projectID, "fantasma", "x")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestListProjectsDedupesFlows(t *testing.T) {
	r := newTestRegistry(t)

	projectID, err := r.CreateProject("Casa", "")
	require.NoError(t, err)
	flowID, err := r.CreateFlow(projectID, "Router")
	require.NoError(t, err)

	// A stale copy saved under another key but carrying the same embedded
	// id must not show up twice.
	definition, err := r.GetFlow(projectID, flowID)
	require.NoError(t, err)
	require.NoError(t, r.SaveFlow(projectID, "copia_vieja", definition))

	summaries, err := r.ListProjects()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Len(t, summaries[0].Flows, 1)
	assert.Equal(t, flowID, summaries[0].Flows[0].ID)
	assert.Equal(t, "Router", summaries[0].Flows[0].Name)
}

func TestDeleteFlow(t *testing.T) {
	r := newTestRegistry(t)

	projectID, err := r.CreateProject("Casa", "")
	require.NoError(t, err)
	flowID, err := r.CreateFlow(projectID, "Router")
	require.NoError(t, err)

	require.NoError(t, r.DeleteFlow(projectID, flowID))
	assert.ErrorIs(t, r.DeleteFlow(projectID, flowID), ErrFlowNotFound)
}
