package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/directory"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest           = "bad_request"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidCredentials   = "invalid_credentials"
	ErrCodeRefreshTokenMissing  = "refresh_token_missing"
	ErrCodeTokenExpired         = "token_expired"
	ErrCodeInvalidToken         = "invalid_token"
	ErrCodeSubjectNotFound      = "subject_not_found"
	ErrCodeForbidden            = "forbidden"
	ErrCodeConflict             = "conflict"
	ErrCodeValidation           = "validation_error"
	ErrCodeDirectoryUnavailable = "directory_unavailable"
	ErrCodeInternal             = "internal_error"
)

// retryAfterSeconds is suggested to clients when the directory is down.
const retryAfterSeconds = 5

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnauthenticated writes a 401 with a bearer challenge.
func writeUnauthenticated(w http.ResponseWriter, code, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	writeError(w, http.StatusUnauthorized, code, message)
}

// writeServiceError maps auth and directory errors to HTTP responses.
// It reports false if err is not one of the known kinds; the caller then
// logs it and writes a 500.
//
// Expiry is checked before the generic unauthenticated wrapper so an
// expired bearer token still reports token_expired.
func writeServiceError(w http.ResponseWriter, err error) bool { //nolint:gocyclo // flat mapping table
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrRefreshTokenMissing):
		writeError(w, http.StatusNotFound, ErrCodeRefreshTokenMissing, auth.ErrRefreshTokenMissing.Error())
	case errors.Is(err, auth.ErrTokenExpired):
		writeUnauthenticated(w, ErrCodeTokenExpired, auth.ErrTokenExpired.Error())
	case errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrUnauthenticated):
		writeUnauthenticated(w, ErrCodeInvalidToken, "invalid or missing access token")
	case errors.Is(err, auth.ErrSubjectNotFound):
		writeError(w, http.StatusNotFound, ErrCodeSubjectNotFound, auth.ErrSubjectNotFound.Error())
	case errors.Is(err, auth.ErrInsufficientPrivilege):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, auth.ErrInsufficientPrivilege.Error())
	case errors.Is(err, directory.ErrOldPasswordRequired),
		errors.Is(err, directory.ErrOldPasswordMismatch):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, auth.ErrDirectoryUnavailable):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, http.StatusServiceUnavailable, ErrCodeDirectoryUnavailable, "user directory unavailable, retry later")
	case errors.Is(err, auth.ErrUserNotFound):
		writeNotFound(w, "user not found")
	case errors.Is(err, directory.ErrUsernameExists),
		errors.Is(err, directory.ErrEmailExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		return false
	}
	return true
}
