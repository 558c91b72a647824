package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/internal/server/handlers"
	"github.com/gridwright/gridwright/pkg/workspace"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port)
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_Handler(t *testing.T) {
	srv := New("127.0.0.1", 8080)
	handler := srv.Handler()
	assert.NotNil(t, handler)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	// POST to a GET-only endpoint should return 405
	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&body)
	require.NoError(t, err)

	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_RoutesRegistered(t *testing.T) {
	handlers.InitHealthManager("test")

	srv := New("127.0.0.1", 0, WithVersion("test"))

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/health/startup", http.StatusOK},
		{"GET", "/version", http.StatusOK},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, ep.want, rec.Code, "endpoint %s %s should return %d", ep.method, ep.path, ep.want)
		})
	}
}

func TestServer_APIRoutesNotMountedWithoutAPI(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/api/errors", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DataPlaneRoundTrip(t *testing.T) {
	ws := workspace.New()
	defer ws.Close()
	api := handlers.NewAPI(ws, nil)
	srv := New("127.0.0.1", 0, WithAPI(api))

	uploads := map[string]string{
		"clients": `{"rows":[{"ClientID":"C1","ClientName":"Acme","PriorityLevel":"3","RequestedTaskIDs":"T1","GroupTag":"g","AttributesJSON":"{}"}]}`,
		"workers": `{"rows":[{"WorkerID":"W1","WorkerName":"Ada","Skills":"welding","AvailableSlots":"[1,2]","MaxLoadPerPhase":"1","WorkerGroup":"g","QualificationLevel":"2"}]}`,
		"tasks":   `{"rows":[{"TaskID":"T1","TaskName":"Weld","Category":"fab","Duration":"2","RequiredSkills":"welding","PreferredPhases":"1-2","MaxConcurrent":"1"}]}`,
	}
	for kind, body := range uploads {
		req := httptest.NewRequest(http.MethodPut, "/api/datasets/"+kind, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/clients", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Kind string           `json:"kind"`
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "C1", got.Rows[0]["ClientID"])
	assert.Equal(t, float64(3), got.Rows[0]["PriorityLevel"])

	req = httptest.NewRequest(http.MethodGet, "/api/readiness", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var ready struct {
		Ready  bool `json:"ready"`
		Errors int  `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ready))
	assert.True(t, ready.Ready)
	assert.Zero(t, ready.Errors)

	req = httptest.NewRequest(http.MethodGet, "/api/export/clients?format=csv", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "clients_export.csv")
	assert.Contains(t, rec.Body.String(), "C1")
}

func TestServer_UnknownKindRejected(t *testing.T) {
	ws := workspace.New()
	defer ws.Close()
	srv := New("127.0.0.1", 0, WithAPI(handlers.NewAPI(ws, nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/vendors", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "BAD_REQUEST", body.Error.Code)
}
