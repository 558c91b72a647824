package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	apperrors "github.com/gridwright/gridwright/internal/errors"
	"github.com/gridwright/gridwright/pkg/export"
)

// ExportDataset serves GET /api/export/{kind}?format=csv|xlsx as a
// file download.
func (a *API) ExportDataset(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	format := export.FormatCSV
	if raw := r.URL.Query().Get("format"); raw != "" {
		format, err = export.ParseFormat(raw)
		if err != nil {
			respondWithError(w, r, apperrors.BadRequest("unknown export format "+raw, err))
			return
		}
	}

	ds := a.Workspace.Dataset(kind)
	if ds == nil {
		respondWithError(w, r, apperrors.NotFound("no dataset uploaded for "+string(kind)))
		return
	}

	var buf bytes.Buffer
	var contentType string
	switch format {
	case export.FormatCSV:
		contentType = "text/csv"
		err = export.WriteCSV(&buf, ds)
	case export.FormatXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = export.WriteXLSX(&buf, ds)
	}
	if err != nil {
		respondWithError(w, r, apperrors.Internal("export failed", err))
		return
	}

	filename := fmt.Sprintf("%s_export.%s", kind, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ExportRules serves GET /api/export/rules as rules.json.
func (a *API) ExportRules(w http.ResponseWriter, r *http.Request) {
	a.rulesMu.RLock()
	rs := a.rules
	a.rulesMu.RUnlock()

	if rs == nil {
		respondWithError(w, r, apperrors.NotFound("no ruleset configured"))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteRules(&buf, rs); err != nil {
		respondWithError(w, r, apperrors.Internal("export failed", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="rules.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
