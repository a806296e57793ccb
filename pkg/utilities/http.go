package utilities

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ovaphlow/pitchfork/service-registry-go/pkg/sentinel"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{sentinel.ErrInvalidNationalID, "invalid_national_id", http.StatusBadRequest},
	{sentinel.ErrInvalidPhone, "invalid_phone", http.StatusBadRequest},
	{sentinel.ErrInvalidEmail, "invalid_email", http.StatusBadRequest},
	{sentinel.ErrInvalidArgument, "invalid_argument", http.StatusBadRequest},
	{sentinel.ErrDuplicateNationalID, "duplicate_national_id", http.StatusConflict},
	{sentinel.ErrNotFound, "not_found", http.StatusNotFound},
	{sentinel.ErrForbiddenOperation, "forbidden", http.StatusForbidden},
}

// ErrorCode maps err to its wire code and HTTP status. Storage failures and
// unclassified errors are internal.
func ErrorCode(err error) (string, int) {
	if errors.Is(err, sentinel.ErrStorage) {
		return "internal_error", http.StatusInternalServerError
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code, e.status
		}
	}
	return "internal_error", http.StatusInternalServerError
}

// WriteError writes {"error": code, "error_description": msg}. Internal
// errors omit the description.
func WriteError(w http.ResponseWriter, err error) {
	code, status := ErrorCode(err)
	body := map[string]string{"error": code}
	if status != http.StatusInternalServerError {
		body["error_description"] = err.Error()
	}
	WriteJSON(w, status, body)
}
