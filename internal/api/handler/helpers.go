package handler

import (
	"net/http"

	"github.com/edvin/deploycenter/internal/api/response"
	"github.com/edvin/deploycenter/internal/core"
)

// writeServiceError maps a core service error to its HTTP status. Rejected
// writes carry their rule code; missing rows become 404; anything else is a
// server error.
func writeServiceError(w http.ResponseWriter, err error) {
	if verr, ok := core.AsValidation(err); ok {
		response.WriteValidationError(w, http.StatusUnprocessableEntity, verr.Code, verr.Message)
		return
	}
	if core.IsNotFound(err) {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	response.WriteError(w, http.StatusInternalServerError, err.Error())
}
