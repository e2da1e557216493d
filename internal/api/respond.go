package api

import (
	"encoding/json"
	"net/http"

	"github.com/appdiversa/diversa-server/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a service failure to its HTTP status. Batch
// validation failures are 400 with the full per-answer error list so the
// client can fix the whole form at once.
func writeServiceError(w http.ResponseWriter, err error) {
	if be, ok := services.AsBatchValidationError(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": be.Errors})
		return
	}
	if se, ok := services.AsServiceError(err); ok {
		writeJSON(w, statusForCode(se.Code), map[string]string{"error": se.Message, "code": string(se.Code)})
		return
	}
	writeMessage(w, http.StatusInternalServerError, "internal error")
}

func statusForCode(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
