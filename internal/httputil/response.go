package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"student-registry/internal/apperr"
)

// APIResponse is the uniform success envelope returned by every endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// APIError is the uniform error envelope.
type APIError struct {
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithSuccess wraps data in the success envelope.
func RespondWithSuccess(w http.ResponseWriter, code int, message string, data interface{}) {
	RespondWithJSON(w, code, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondWithError writes an error envelope with the given status and message.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	respondError(w, code, message, nil)
}

// RespondWithAppError translates an application error into an HTTP status
// and error envelope. This is the single place that decides status codes:
// handlers pass every service error through here untouched. Unexpected
// errors are logged with full detail and returned as a generic 500.
func RespondWithAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	appErr := apperr.As(err)
	if appErr == nil {
		logger.Error("unexpected error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}

	switch appErr.Kind {
	case apperr.KindValidation:
		respondError(w, http.StatusBadRequest, appErr.Message, appErr.Fields)
	case apperr.KindBadArgument:
		respondError(w, http.StatusBadRequest, appErr.Message, nil)
	case apperr.KindNotFound:
		respondError(w, http.StatusNotFound, appErr.Message, nil)
	case apperr.KindConflict:
		respondError(w, http.StatusConflict, appErr.Message, nil)
	default:
		logger.Error("unexpected error kind", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

func respondError(w http.ResponseWriter, code int, message string, details map[string]string) {
	RespondWithJSON(w, code, APIError{
		Status:    code,
		Error:     http.StatusText(code),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Details:   details,
	})
}
