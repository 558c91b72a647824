package handlers

import (
	"net/http"

	apperrors "github.com/gridwright/gridwright/internal/errors"
)

// HTTPErrorResponder writes an error as an HTTP response. The default
// delegates to the shared coded-error writer; tests swap it to observe
// error paths without decoding JSON.
type HTTPErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

func defaultHTTPErrorResponder(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

var httpErrorResponder HTTPErrorResponder = defaultHTTPErrorResponder

// SetHTTPErrorResponder replaces the responder. Passing nil restores
// the default.
func SetHTTPErrorResponder(responder HTTPErrorResponder) {
	if responder == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = responder
}

// ResetHTTPErrorResponder restores the default responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultHTTPErrorResponder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
