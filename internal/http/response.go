package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"bmeutil/internal/core"
	applog "bmeutil/internal/log"
)

type (
	initialDataResponse struct {
		BMEMap map[string]core.Equipment `json:"bmeMap"`
	}

	summaryResponse struct {
		AETitle string              `json:"aeTitle"`
		Service string              `json:"service,omitempty"`
		Months  []core.MonthSummary `json:"months"`
	}

	statusResponse struct {
		Status string `json:"status"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", applog.FieldError, err)
	}
}

// writeError maps domain errors to status codes. Only not-found and
// validation messages reach the client; everything else is logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := applog.FromContext(r.Context())

	var (
		status  int
		message string
		errType string
	)
	switch {
	case errors.Is(err, core.ErrNotFound):
		status, message, errType = http.StatusNotFound, err.Error(), applog.ErrorTypeNotFound
	case errors.Is(err, core.ErrValidation):
		status, message, errType = http.StatusBadRequest, err.Error(), applog.ErrorTypeValidation
	case core.IsFatalLoad(err):
		status, message, errType = http.StatusServiceUnavailable, "reference data unavailable", applog.ErrorTypeLoad
	default:
		status, message, errType = http.StatusInternalServerError, "internal server error", applog.ErrorTypeInternal
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			applog.NewFields().WithError(err, errType).ToSlice()...)
	}
	writeJSON(w, r, status, errorResponse{Error: message})
}
