package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophdrive/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

var statusByError = []struct {
	status int
	errs   []error
}{
	{http.StatusNotFound, []error{common.ErrorNotFound, common.ErrParentNotFound, common.ErrDestinationNotFound}},
	{http.StatusConflict, []error{common.ErrNameConflict, common.ErrRestoreConflict, common.ErrConstraintViolation, common.ErrAlreadyExists}},
	{http.StatusUnprocessableEntity, []error{common.ErrSelfMove, common.ErrCyclicMove, common.ErrNotInTrash,
		common.ErrParentGone, common.ErrInvalidName, common.ErrInvalidItemType}},
	{http.StatusBadRequest, []error{common.ErrInvalidArgument}},
	{http.StatusUnauthorized, []error{common.ErrorUnauthorized, common.ErrInvalidCredentials,
		common.ErrInvalidToken, common.ErrTokenExpired}},
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	for _, group := range statusByError {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.status
			}
		}
	}
	return http.StatusInternalServerError
}

// errorMessage hides everything but typed validation results.
func errorMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return common.ErrorInternal.Error()
	}
	return err.Error()
}

func sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, code int, message string) {
	sendJSON(w, code, errorResponse{Error: message, Code: code})
}

func sendServiceError(w http.ResponseWriter, err error) {
	sendError(w, statusFor(err), errorMessage(err))
}
