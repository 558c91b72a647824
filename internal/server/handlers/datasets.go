package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/normalize"
)

type uploadRequest struct {
	Rows []entity.Row `json:"rows"`
}

type uploadResponse struct {
	Kind entity.Kind `json:"kind"`
	Rows int         `json:"rows"`
}

// UploadDataset serves PUT /api/datasets/{kind}. The body carries raw
// rows as read from a spreadsheet; they are normalized and replace the
// current dataset, which revalidates everything.
func (a *API) UploadDataset(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var req uploadRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	rows := normalize.Dataset(kind, req.Rows)
	if err := a.Workspace.ReplaceDataset(kind, rows); err != nil {
		respondWithError(w, r, apperrors.Internal("failed to replace dataset", err))
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Kind: kind, Rows: len(rows)})
}

type datasetResponse struct {
	Kind entity.Kind  `json:"kind"`
	Rows []entity.Row `json:"rows"`
}

// GetDataset serves GET /api/datasets/{kind}.
func (a *API) GetDataset(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	ds := a.Workspace.Dataset(kind)
	if ds == nil {
		respondWithError(w, r, apperrors.NotFound("no dataset uploaded for "+string(kind)))
		return
	}

	writeJSON(w, http.StatusOK, datasetResponse{Kind: kind, Rows: apiRows(ds.Rows)})
}

type cellUpdateRequest struct {
	Value any `json:"value"`
}

type cellUpdateResponse struct {
	Errors map[string]string `json:"errors"`
}

// UpdateCell serves PATCH /api/datasets/{kind}/rows/{row}/cells/{field}.
// The edited row is revalidated immediately so the response reflects
// the cell's new error state.
func (a *API) UpdateCell(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		respondWithError(w, r, apperrors.BadRequest("row index must be an integer", err))
		return
	}
	field := chi.URLParam(r, "field")

	var req cellUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := a.Workspace.UpdateCell(kind, index, field, req.Value); err != nil {
		respondWithError(w, r, apperrors.NotFound(err.Error()))
		return
	}
	a.Workspace.ValidateRowNow(kind, index)

	rowErrs := a.Workspace.Errors()[kind][index]
	resp := cellUpdateResponse{Errors: map[string]string{}}
	for f, msg := range rowErrs {
		resp.Errors[f] = msg
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetErrors serves GET /api/errors: the full error map keyed by
// entity, row index, and field.
func (a *API) GetErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Workspace.Errors())
}

type readinessResponse struct {
	Ready  bool `json:"ready"`
	Errors int  `json:"errors"`
}

// GetReadiness serves GET /api/readiness: whether every uploaded
// dataset is free of validation errors.
func (a *API) GetReadiness(w http.ResponseWriter, r *http.Request) {
	errs := a.Workspace.Errors()
	writeJSON(w, http.StatusOK, readinessResponse{
		Ready:  a.Workspace.Ready(),
		Errors: errs.Count(),
	})
}
