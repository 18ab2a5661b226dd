// Package client talks to the gophauth HTTP API.
//
// HTTPClient wraps the /auth endpoints. Failures come back as *APIError,
// which unwraps to the shared sentinels in internal/common, so callers can
// match with errors.Is:
//
//	if errors.Is(err, common.ErrRefreshTokenRevoked) { ... }
//
// Transport failures unwrap to ErrUnavailable.
package client
