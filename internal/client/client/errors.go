package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

var ErrUnavailable = errors.New("server unavailable")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

var codeErrors = map[string]error{
	"invalid_request":         common.ErrInvalidRequest,
	"invalid_credentials":     common.ErrInvalidCredentials,
	"unauthorized":            common.ErrorUnauthorized,
	"forbidden":               common.ErrorUnauthorized,
	"refresh_token_not_found": common.ErrRefreshTokenNotFound,
	"refresh_token_revoked":   common.ErrRefreshTokenRevoked,
	"refresh_token_expired":   common.ErrRefreshTokenExpired,
	"conflict":                common.ErrAccountExists,
	"unavailable":             ErrUnavailable,
	"internal_error":          common.ErrorInternal,
}

func (e *APIError) Unwrap() error {
	if err, ok := codeErrors[e.Code]; ok {
		return err
	}
	return nil
}
