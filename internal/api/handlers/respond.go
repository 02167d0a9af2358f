package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/feedwall-be/internal/apperr"
)

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

var kindNames = map[apperr.Kind]string{
	apperr.KindValidation:      "ValidationFailed",
	apperr.KindUnauthenticated: "NotAuthenticated",
	apperr.KindForbidden:       "Forbidden",
	apperr.KindNotFound:        "NotFound",
	apperr.KindInvalidPage:     "InvalidPage",
	apperr.KindMissingImage:    "MissingImage",
	apperr.KindDuplicateEmail:  "DuplicateEmail",
}

// writeError maps a service error to its HTTP status and a structured JSON
// body. Unclassified errors become a generic 500; their details are logged,
// never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
		writeJSON(w, status, errorResponse{Error: "Internal", Message: "Something went wrong"})
		return
	}

	name, ok := kindNames[kind]
	if !ok {
		name = "Error"
	}
	writeJSON(w, status, errorResponse{
		Error:   name,
		Message: err.Error(),
		Fields:  apperr.FieldsOf(err),
	})
}
