package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
)

// SignerSource yields the active access-token signer.
type SignerSource interface {
	Signer() *auth.Signer
}

// Authenticator turns a bearer access token into a request identity. It
// never rejects a request: a missing or bad credential simply leaves the
// request without identity, and authorization is decided downstream.
type Authenticator struct {
	signers SignerSource
	metrics *metrics.Collectors
	logger  logging.Logger
}

func NewAuthenticator(signers SignerSource, m *metrics.Collectors, l logging.Logger) *Authenticator {
	return &Authenticator{signers: signers, metrics: m, logger: l.With("module", "authenticator")}
}

// Authenticate reports the identity carried by r's Authorization header.
// The second result is false when there is none.
func (a *Authenticator) Authenticate(r *http.Request) (*identity.Identity, bool) {
	return a.FromHeader(r.Context(), r.Header.Get(common.AuthorizationHeaderName))
}

// FromHeader resolves a raw Authorization value. gRPC metadata goes
// through here too.
func (a *Authenticator) FromHeader(ctx context.Context, header string) (*identity.Identity, bool) {
	id, result := a.authenticate(ctx, header)
	a.metrics.Authenticated(result)
	return id, id != nil
}

func (a *Authenticator) authenticate(ctx context.Context, header string) (id *identity.Identity, result string) {
	defer func() {
		if p := recover(); p != nil {
			a.logger.Warn(ctx, "recovered panic while authenticating", "panic", p)
			id, result = nil, metrics.ResultInvalid
		}
	}()

	if header == "" {
		return nil, metrics.ResultAbsent
	}

	token, ok := BearerToken(header)
	if !ok {
		a.logger.Debug(ctx, "authorization header ignored", "reason", "not a bearer credential")
		return nil, metrics.ResultInvalid
	}

	claims, err := a.signers.Signer().Verify(token)
	if err != nil {
		if common.IsClientError(err) {
			a.logger.Debug(ctx, "bearer token rejected", "reason", err.Error())
		} else {
			a.logger.Warn(ctx, "bearer token could not be verified", "error", err)
		}
		return nil, metrics.ResultInvalid
	}

	return identity.FromClaims(claims), metrics.ResultValid
}

// Middleware publishes the identity, if any, into the request context and
// always calls next.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := a.Authenticate(r); ok {
			r = r.WithContext(identity.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the credential of a "Bearer <token>" header value.
// The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme := common.BearerScheme
	if len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(scheme):])
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireIdentity answers 401 when the authenticator found no identity.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identity.FromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gophauth"`)
			writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers 401 without identity and 403 without role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := identity.FromContext(r.Context())
			if !id.HasRole(role) {
				writeError(w, r, http.StatusForbidden, codeForbidden, "missing role "+role)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
