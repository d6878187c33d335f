package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvalderas/flowtree/pkg/config"
	"github.com/dvalderas/flowtree/pkg/logging"
	"github.com/dvalderas/flowtree/pkg/registry"
	"github.com/dvalderas/flowtree/pkg/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	provider := storage.NewMemoryProvider()
	require.NoError(t, provider.Initialize())

	logger := logging.NewNopLogger()
	projects := registry.NewProjectRegistry(provider, logger)
	return NewServer(config.DefaultConfig(), projects, logger)
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	recorder := doJSON(t, server, http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", decodeBody(t, recorder)["status"])
}

func TestProjectAndFlowLifecycle(t *testing.T) {
	server := newTestServer(t)

	// Create a project
	recorder := doJSON(t, server, http.MethodPost, "/api/v1/projects", map[string]string{"name": "Mi Red"})
	require.Equal(t, http.StatusCreated, recorder.Code)
	projectID := decodeBody(t, recorder)["id"].(string)
	assert.Equal(t, "mi_red", projectID)

	// Create a flow inside it
	recorder = doJSON(t, server, http.MethodPost, "/api/v1/projects/"+projectID+"/flows", map[string]string{"name": "Router"})
	require.Equal(t, http.StatusCreated, recorder.Code)
	flowID := decodeBody(t, recorder)["id"].(string)
	assert.Equal(t, "router", flowID)

	// Save a definition
	definition := map[string]any{
		"id":   flowID,
		"name": "Router",
		"nodes": []map[string]any{
			{"id": "start", "type": "start"},
			{"id": "fin", "type": "message", "message": "listo"},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "start", "target": "fin"},
		},
	}
	recorder = doJSON(t, server, http.MethodPost, "/api/v1/projects/"+projectID+"/flows/"+flowID+"/save", definition)
	require.Equal(t, http.StatusOK, recorder.Code)

	// Read it back
	recorder = doJSON(t, server, http.MethodGet, "/api/v1/projects/"+projectID+"/flows/"+flowID, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	loaded := decodeBody(t, recorder)
	assert.Equal(t, flowID, loaded["id"])
	assert.Len(t, loaded["nodes"], 2)

	// Export the stored flow
	recorder = doJSON(t, server, http.MethodGet, "/api/v1/projects/"+projectID+"/flows/"+flowID+"/export", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	exported := decodeBody(t, recorder)
	assert.Contains(t, exported["yaml"], "Start: Fin")

	// Paths of the stored flow
	recorder = doJSON(t, server, http.MethodGet, "/api/v1/projects/"+projectID+"/flows/"+flowID+"/paths", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decodeBody(t, recorder)["paths"], 1)

	// Listing shows the flow
	recorder = doJSON(t, server, http.MethodGet, "/api/v1/projects", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	projects := decodeBody(t, recorder)["projects"].([]any)
	require.Len(t, projects, 1)

	// Rename and delete
	recorder = doJSON(t, server, http.MethodPut, "/api/v1/projects/"+projectID+"/flows/"+flowID, map[string]string{"name": "Router Principal"})
	require.Equal(t, http.StatusOK, recorder.Code)
	newID := decodeBody(t, recorder)["id"].(string)
	assert.Equal(t, "router_principal", newID)

	recorder = doJSON(t, server, http.MethodDelete, "/api/v1/projects/"+projectID+"/flows/"+newID, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, server, http.MethodDelete, "/api/v1/projects/"+projectID, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestProjectValidation(t *testing.T) {
	server := newTestServer(t)

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/projects", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, server, http.MethodPut, "/api/v1/projects/fantasma", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doJSON(t, server, http.MethodDelete, "/api/v1/projects/fantasma", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestValidateEndpoint(t *testing.T) {
	server := newTestServer(t)

	definition := map[string]any{
		"nodes": []map[string]any{
			{"id": "start", "type": "start"},
			{"id": "fin", "type": "message", "message": "listo"},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "start", "target": "fin", "label": "ir"},
		},
	}

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/flows/validate", definition)
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := decodeBody(t, recorder)
	assert.Equal(t, true, payload["valid"])
	assert.Len(t, payload["paths"], 1)
}

func TestValidateEndpointReportsErrors(t *testing.T) {
	server := newTestServer(t)

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/flows/validate", map[string]any{"nodes": []any{}})
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := decodeBody(t, recorder)
	assert.Equal(t, false, payload["valid"])
	assert.NotEmpty(t, payload["errors"])
}

func TestExportEndpoint(t *testing.T) {
	server := newTestServer(t)

	definition := map[string]any{
		"nodes": []map[string]any{
			{"id": "start", "type": "start"},
			{"id": "fin", "type": "message", "message": "listo"},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "start", "target": "fin"},
		},
	}

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/flows/export", definition)
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := decodeBody(t, recorder)
	assert.Equal(t, true, payload["success"])
	assert.Contains(t, payload["yaml"], "Start: Fin")

	structure := payload["structure"].(map[string]any)
	assert.Contains(t, structure, "flow")
}

func TestImportEndpoint(t *testing.T) {
	server := newTestServer(t)

	document := "flow:\n  Start: Fin\n  Fin:\n    type: message\n    message: listo\n"
	recorder := doJSON(t, server, http.MethodPost, "/api/v1/flows/import", map[string]string{"yaml": document})
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := decodeBody(t, recorder)
	assert.Equal(t, true, payload["success"])

	flowData := payload["flow_data"].(map[string]any)
	nodes := flowData["nodes"].([]any)
	require.Len(t, nodes, 1)
}

func TestImportEndpointBadDocument(t *testing.T) {
	server := newTestServer(t)

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/flows/import", map[string]string{"yaml": "   "})
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	payload := decodeBody(t, recorder)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "El contenido YAML está vacío.", payload["error"])
}
