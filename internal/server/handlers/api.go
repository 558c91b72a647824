package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/pkg/auditstore"
	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/rules"
	"github.com/gridwright/gridwright/pkg/suggest"
	"github.com/gridwright/gridwright/pkg/workspace"
)

// API bundles the dependencies the data-plane handlers need. Audit may
// be nil when audit logging is disabled; Producer defaults to the null
// producer when AI is not configured.
type API struct {
	Workspace *workspace.Workspace
	Producer  suggest.Producer

	Audit *auditstore.Store

	rulesMu sync.RWMutex
	rules   *rules.Ruleset
}

// NewAPI creates the handler set. A nil producer is replaced with the
// null producer so AI endpoints degrade gracefully.
func NewAPI(ws *workspace.Workspace, producer suggest.Producer) *API {
	if producer == nil {
		producer = suggest.Null{}
	}
	return &API{Workspace: ws, Producer: producer}
}

func kindParam(r *http.Request) (entity.Kind, error) {
	raw := chi.URLParam(r, "kind")
	kind, err := entity.ParseKind(raw)
	if err != nil {
		return "", apperrors.BadRequest("unknown entity kind "+raw, err)
	}
	return kind, nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.BadRequest("invalid request body", err)
	}
	return nil
}

// apiRows makes rows JSON-safe for responses. Unparseable numbers carry
// their original text; NaN itself has no JSON representation and is
// sent as null.
func apiRows(rows []entity.Row) []entity.Row {
	out := make([]entity.Row, len(rows))
	for i, row := range rows {
		clean := make(entity.Row, len(row))
		for field, v := range row {
			switch tv := v.(type) {
			case entity.Invalid:
				clean[field] = tv.Raw
			case float64:
				if math.IsNaN(tv) || math.IsInf(tv, 0) {
					clean[field] = nil
				} else {
					clean[field] = tv
				}
			default:
				clean[field] = v
			}
		}
		out[i] = clean
	}
	return out
}
