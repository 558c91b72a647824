package handlers

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/pkg/auditstore"
	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/workspace"
)

const defaultAuditLimit = 100

type auditResponse struct {
	Events []auditstore.Event `json:"events"`
	Count  int                `json:"count"`
}

// GetAudit serves GET /api/audit with optional entity, source, since,
// and limit query parameters. Events come back newest first.
func (a *API) GetAudit(w http.ResponseWriter, r *http.Request) {
	if a.Audit == nil {
		respondWithError(w, r, apperrors.Unavailable("audit log is not enabled", nil))
		return
	}

	q := auditstore.Query{Limit: defaultAuditLimit}

	if raw := r.URL.Query().Get("entity"); raw != "" {
		kind, err := entity.ParseKind(raw)
		if err != nil {
			respondWithError(w, r, apperrors.BadRequest("unknown entity kind "+raw, err))
			return
		}
		q.Entity = kind
	}
	if raw := r.URL.Query().Get("source"); raw != "" {
		q.Source = workspace.ChangeSource(raw)
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, r, apperrors.BadRequest("since must be RFC3339", err))
			return
		}
		q.Since = since
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondWithError(w, r, apperrors.BadRequest("limit must be a positive integer", err))
			return
		}
		q.Limit = limit
	}

	events, err := a.Audit.Events(r.Context(), q)
	if err != nil {
		respondWithError(w, r, apperrors.Internal("failed to query audit log", err))
		return
	}

	writeJSON(w, http.StatusOK, auditResponse{Events: events, Count: len(events)})
}
