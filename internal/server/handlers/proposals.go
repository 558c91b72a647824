package handlers

import (
	"net/http"

	apperrors "github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/workspace"
)

type proposeRequest struct {
	Instruction string `json:"instruction"`
}

type proposalResponse struct {
	Kind    entity.Kind            `json:"kind"`
	Message string                 `json:"message"`
	Changes map[int]map[string]any `json:"changes"`
}

// ProposeChanges serves POST /api/datasets/{kind}/proposals. The
// instruction goes to the suggestion producer; the returned change set
// is staged as pending, superseding any earlier pending proposal.
func (a *API) ProposeChanges(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var req proposeRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Instruction == "" {
		respondWithError(w, r, apperrors.BadRequest("instruction is required", nil))
		return
	}

	ds := a.Workspace.Dataset(kind)
	if ds == nil {
		respondWithError(w, r, apperrors.NotFound("no dataset uploaded for "+string(kind)))
		return
	}

	change, err := a.Producer.ModifyTable(r.Context(), kind, req.Instruction, ds.Rows)
	if err != nil {
		respondWithError(w, r, apperrors.Internal("suggestion producer failed", err))
		return
	}

	a.Workspace.Propose(kind, &workspace.Proposal{
		Message: change.Message,
		Changes: change.Changes,
	})

	writeJSON(w, http.StatusOK, proposalResponse{
		Kind:    kind,
		Message: change.Message,
		Changes: change.Changes,
	})
}

// GetPending serves GET /api/datasets/{kind}/proposals.
func (a *API) GetPending(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	pending := a.Workspace.Pending(kind)
	if pending == nil {
		respondWithError(w, r, apperrors.NotFound("no pending proposal for "+string(kind)))
		return
	}

	writeJSON(w, http.StatusOK, proposalResponse{
		Kind:    kind,
		Message: pending.Message,
		Changes: pending.Changes,
	})
}

type acceptRequest struct {
	Row   *int    `json:"row,omitempty"`
	Field *string `json:"field,omitempty"`
}

type acceptResponse struct {
	Applied int `json:"applied"`
}

// AcceptProposal serves POST /api/datasets/{kind}/proposals/accept.
// With a row and field in the body only that cell is applied; with an
// empty body the whole pending set is applied.
func (a *API) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var req acceptRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondWithError(w, r, err)
			return
		}
	}

	if (req.Row == nil) != (req.Field == nil) {
		respondWithError(w, r, apperrors.BadRequest("row and field must be provided together", nil))
		return
	}

	var applied int
	if req.Row != nil {
		if a.Workspace.AcceptCell(kind, *req.Row, *req.Field) {
			applied = 1
		}
	} else {
		applied = a.Workspace.AcceptAll(kind)
	}

	writeJSON(w, http.StatusOK, acceptResponse{Applied: applied})
}

// RejectProposal serves POST /api/datasets/{kind}/proposals/reject.
func (a *API) RejectProposal(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	a.Workspace.Reject(kind)
	w.WriteHeader(http.StatusNoContent)
}

type fixAllResponse struct {
	Applied int  `json:"applied"`
	Ready   bool `json:"ready"`
}

// FixAll serves POST /api/fixes. Every errored cell across all
// datasets is sent to the producer in one call; returned fixes are
// applied immediately and everything revalidates.
func (a *API) FixAll(w http.ResponseWriter, r *http.Request) {
	errs := a.Workspace.Errors()
	if errs.Empty() {
		writeJSON(w, http.StatusOK, fixAllResponse{Applied: 0, Ready: a.Workspace.Ready()})
		return
	}

	datasets := make(map[entity.Kind][]entity.Row)
	for _, kind := range entity.Kinds() {
		if ds := a.Workspace.Dataset(kind); ds != nil {
			datasets[kind] = ds.Rows
		}
	}

	fixes, err := a.Producer.FixAll(r.Context(), datasets, errs)
	if err != nil {
		respondWithError(w, r, apperrors.Internal("fix-all failed", err))
		return
	}

	applied := a.Workspace.ApplyFixes(fixes)
	writeJSON(w, http.StatusOK, fixAllResponse{Applied: applied, Ready: a.Workspace.Ready()})
}
