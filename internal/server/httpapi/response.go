package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// envelope wraps every JSON response.
type envelope struct {
	Status    int       `json:"status"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// apiError is the data of a failed response.
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Error codes.
const (
	codeInvalidRequest       = "invalid_request"
	codeInvalidCredentials   = "invalid_credentials"
	codeUnauthorized         = "unauthorized"
	codeForbidden            = "forbidden"
	codeRefreshTokenNotFound = "refresh_token_not_found"
	codeRefreshTokenRevoked  = "refresh_token_revoked"
	codeRefreshTokenExpired  = "refresh_token_expired"
	codeConflict             = "conflict"
	codeInternal             = "internal_error"
	codeUnavailable          = "unavailable"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{
		Status:    http.StatusOK,
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, envelope{
		Status:  status,
		Success: false,
		Message: message,
		Data: apiError{
			Status:  status,
			Code:    code,
			Message: message,
			Path:    r.URL.Path,
		},
		Timestamp: time.Now().UTC(),
	})
}

// errorStatus maps a service error onto a status code and error code.
// Anything outside the client taxonomy is a 500.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, codeInvalidCredentials
	case errors.Is(err, common.ErrRefreshTokenNotFound):
		return http.StatusUnauthorized, codeRefreshTokenNotFound
	case errors.Is(err, common.ErrRefreshTokenRevoked):
		return http.StatusUnauthorized, codeRefreshTokenRevoked
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized, codeRefreshTokenExpired
	case errors.Is(err, common.ErrAccountExists):
		return http.StatusConflict, codeConflict
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// decodeRequest reads a JSON body into req. Unknown fields are ignored.
func decodeRequest[T any](req *T, w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidRequest, "malformed request body")
		return false
	}
	return true
}
