package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/normalize"
	"github.com/gridwright/gridwright/pkg/suggest"
	"github.com/gridwright/gridwright/pkg/validate"
	"github.com/gridwright/gridwright/pkg/workspace"
)

type stubProducer struct {
	change *suggest.TableChange
	fixes  suggest.Fixes
	err    error
}

func (s stubProducer) ModifyTable(ctx context.Context, kind entity.Kind, instruction string, rows []entity.Row) (*suggest.TableChange, error) {
	return s.change, s.err
}

func (s stubProducer) FixAll(ctx context.Context, datasets map[entity.Kind][]entity.Row, errs validate.Errors) (suggest.Fixes, error) {
	return s.fixes, s.err
}

func seedWorkspace(t *testing.T, ws *workspace.Workspace) {
	t.Helper()
	rows := normalize.Dataset(entity.Tasks, []entity.Row{{
		"TaskID": "T1", "TaskName": "Weld", "Category": "fab",
		"Duration": "2", "RequiredSkills": "welding",
		"PreferredPhases": "1-2", "MaxConcurrent": "1",
	}})
	require.NoError(t, ws.ReplaceDataset(entity.Tasks, rows))
}

func routeRequest(api *API, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/api/datasets/{kind}/proposals", func(r chi.Router) {
		r.Post("/", api.ProposeChanges)
		r.Get("/", api.GetPending)
		r.Post("/accept", api.AcceptProposal)
		r.Post("/reject", api.RejectProposal)
	})
	r.Post("/api/fixes", api.FixAll)

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestProposeAcceptFlow(t *testing.T) {
	ws := workspace.New()
	defer ws.Close()
	seedWorkspace(t, ws)

	producer := stubProducer{change: &suggest.TableChange{
		Message: "Renamed the task.",
		Changes: map[int]map[string]any{0: {"TaskName": "Weld frame"}},
	}}
	api := NewAPI(ws, producer)

	rec := routeRequest(api, http.MethodPost, "/api/datasets/tasks/proposals",
		`{"instruction":"rename the task"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp proposalResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Renamed the task.", resp.Message)

	// Proposal is staged, not applied.
	assert.Equal(t, "Weld", ws.Dataset(entity.Tasks).Row(0)["TaskName"])

	rec = routeRequest(api, http.MethodGet, "/api/datasets/tasks/proposals", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = routeRequest(api, http.MethodPost, "/api/datasets/tasks/proposals/accept", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var accepted acceptResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&accepted))
	assert.Equal(t, 1, accepted.Applied)
	assert.Equal(t, "Weld frame", ws.Dataset(entity.Tasks).Row(0)["TaskName"])
	assert.True(t, ws.IsConfirmed(entity.Tasks, 0, "TaskName"))
}

func TestRejectClearsPending(t *testing.T) {
	ws := workspace.New()
	defer ws.Close()
	seedWorkspace(t, ws)

	producer := stubProducer{change: &suggest.TableChange{
		Message: "Changed category.",
		Changes: map[int]map[string]any{0: {"Category": "assembly"}},
	}}
	api := NewAPI(ws, producer)

	rec := routeRequest(api, http.MethodPost, "/api/datasets/tasks/proposals",
		`{"instruction":"change the category"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = routeRequest(api, http.MethodPost, "/api/datasets/tasks/proposals/reject", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Nil(t, ws.Pending(entity.Tasks))
	assert.Equal(t, "fab", ws.Dataset(entity.Tasks).Row(0)["Category"])

	rec = routeRequest(api, http.MethodGet, "/api/datasets/tasks/proposals", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProposeRequiresInstruction(t *testing.T) {
	ws := workspace.New()
	defer ws.Close()
	seedWorkspace(t, ws)
	api := NewAPI(ws, stubProducer{})

	rec := routeRequest(api, http.MethodPost, "/api/datasets/tasks/proposals", `{"instruction":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFixAllAppliesProducerFixes(t *testing.T) {
	ws := workspace.New()
	defer ws.Close()

	// Duration below minimum produces a validation error.
	rows := normalize.Dataset(entity.Tasks, []entity.Row{{
		"TaskID": "T1", "TaskName": "Weld", "Category": "fab",
		"Duration": "0", "RequiredSkills": "welding",
		"PreferredPhases": "1", "MaxConcurrent": "1",
	}})
	require.NoError(t, ws.ReplaceDataset(entity.Tasks, rows))

	// A worker covering the required skill keeps the coverage check quiet.
	workers := normalize.Dataset(entity.Workers, []entity.Row{{
		"WorkerID": "W1", "WorkerName": "Ada", "Skills": "welding",
		"AvailableSlots": "[1,2]", "MaxLoadPerPhase": "1",
		"WorkerGroup": "shop", "QualificationLevel": "2",
	}})
	require.NoError(t, ws.ReplaceDataset(entity.Workers, workers))
	require.NotEmpty(t, ws.Errors()[entity.Tasks])

	producer := stubProducer{fixes: suggest.Fixes{
		entity.Tasks: {0: {"Duration": float64(2)}},
	}}
	api := NewAPI(ws, producer)

	rec := routeRequest(api, http.MethodPost, "/api/fixes", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp fixAllResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Applied)
	assert.Empty(t, ws.Errors()[entity.Tasks])
}

func TestNilProducerFallsBackToNull(t *testing.T) {
	ws := workspace.New()
	defer ws.Close()
	seedWorkspace(t, ws)
	api := NewAPI(ws, nil)

	rec := routeRequest(api, http.MethodPost, "/api/datasets/tasks/proposals",
		`{"instruction":"do something"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp proposalResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Changes)
}
