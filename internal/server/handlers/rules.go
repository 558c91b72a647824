package handlers

import (
	"errors"
	"io"
	"net/http"

	apperrors "github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/pkg/rules"
)

// PutRules serves PUT /api/rules. The body is a ruleset in JSON or
// YAML; it is schema-validated before replacing the current ruleset.
func (a *API) PutRules(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondWithError(w, r, apperrors.BadRequest("failed to read request body", err))
		return
	}

	ext := ".json"
	if ct := r.Header.Get("Content-Type"); ct == "application/yaml" || ct == "text/yaml" {
		ext = ".yaml"
	}

	rs, err := rules.LoadFromBytes(body, ext)
	if err != nil {
		var verrs rules.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]any, len(verrs))
			for _, ve := range verrs {
				details[ve.Path] = ve.Message
			}
			envelope, _ := apperrors.NewErrorEnvelope(
				apperrors.CodeBadRequest, "ruleset failed schema validation",
			).WithContext(details)
			envelope.WriteJSON(w, http.StatusBadRequest)
			return
		}
		respondWithError(w, r, apperrors.BadRequest("invalid ruleset", err))
		return
	}

	a.rulesMu.Lock()
	a.rules = rs
	a.rulesMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"warnings": rs.Warnings()})
}

// GetRules serves GET /api/rules.
func (a *API) GetRules(w http.ResponseWriter, r *http.Request) {
	a.rulesMu.RLock()
	rs := a.rules
	a.rulesMu.RUnlock()

	if rs == nil {
		respondWithError(w, r, apperrors.NotFound("no ruleset configured"))
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// SetRules installs a ruleset loaded outside the HTTP path, such as
// from a file named on the serve command line.
func (a *API) SetRules(rs *rules.Ruleset) {
	a.rulesMu.Lock()
	a.rules = rs
	a.rulesMu.Unlock()
}
