package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	TokenType             string    `json:"tokenType"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type LoginResponse struct {
	TokenResponse
	UserID  string   `json:"userId"`
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

type SessionResponse struct {
	ID         string    `json:"id"`
	HashPrefix string    `json:"hashPrefix"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type MeResponse struct {
	Subject   string    `json:"subject"`
	Roles     []string  `json:"roles"`
	TokenID   string    `json:"tokenId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type LogoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

// API holds the HTTP handlers of the auth endpoints.
type API struct {
	auth   *services.AuthService
	issuer *services.TokenIssuer
	health func(context.Context) error
	logger logging.Logger
}

// NewAPI builds the handlers. health backs /healthz; nil means always up.
func NewAPI(auth *services.AuthService, issuer *services.TokenIssuer, health func(context.Context) error, l logging.Logger) *API {
	if health == nil {
		health = func(context.Context) error { return nil }
	}
	return &API{auth: auth, issuer: issuer, health: health, logger: l.With("module", "httpapi")}
}

func (a *API) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := LoginRequest{}
		if ok := decodeRequest(&req, w, r); !ok {
			return
		}

		res, err := a.auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			a.fail(w, r, err)
			return
		}

		writeOK(w, "login successful", loginResponse(res))
	}
}

func (a *API) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := RefreshRequest{}
		if ok := decodeRequest(&req, w, r); !ok {
			return
		}
		if req.RefreshToken == "" {
			writeError(w, r, http.StatusBadRequest, codeInvalidRequest, "refreshToken is required")
			return
		}

		res, err := a.issuer.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			a.fail(w, r, err)
			return
		}

		writeOK(w, "token refreshed", loginResponse(res))
	}
}

func (a *API) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := RefreshRequest{}
		if ok := decodeRequest(&req, w, r); !ok {
			return
		}
		if req.RefreshToken == "" {
			writeError(w, r, http.StatusBadRequest, codeInvalidRequest, "refreshToken is required")
			return
		}

		if err := a.issuer.Logout(r.Context(), req.RefreshToken); err != nil {
			a.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutAll requires an identity.
func (a *API) LogoutAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())

		n, err := a.issuer.LogoutAll(r.Context(), id.Subject)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeOK(w, "sessions revoked", LogoutAllResponse{Revoked: n})
	}
}

// Sessions requires an identity.
func (a *API) Sessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())

		recs, err := a.issuer.Sessions(r.Context(), id.Subject)
		if err != nil {
			a.fail(w, r, err)
			return
		}

		out := make([]SessionResponse, 0, len(recs))
		for _, rec := range recs {
			out = append(out, SessionResponse{
				ID:         rec.ID,
				HashPrefix: rec.HashPrefix(),
				CreatedAt:  rec.CreatedAt,
				ExpiresAt:  rec.ExpiresAt,
			})
		}
		writeOK(w, "active sessions", out)
	}
}

// Me requires an identity.
func (a *API) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		writeOK(w, "authenticated", MeResponse{
			Subject:   id.Subject,
			Roles:     id.Roles,
			TokenID:   id.TokenID,
			ExpiresAt: id.ExpiresAt,
		})
	}
}

func (a *API) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.health(r.Context()); err != nil {
			a.logger.Warn(r.Context(), "health check failed", "error", err)
			writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "store unavailable")
			return
		}
		writeOK(w, "ok", nil)
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, status, code, "internal error")
		return
	}
	writeError(w, r, status, code, err.Error())
}

func tokenResponse(p *services.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		TokenType:             "Bearer",
		AccessTokenExpiresAt:  p.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: p.RefreshTokenExpiresAt,
	}
}

func loginResponse(res *services.LoginResult) LoginResponse {
	return LoginResponse{
		TokenResponse: tokenResponse(&res.TokenPair),
		UserID:        res.UserID,
		Subject:       res.Subject,
		Roles:         res.Roles,
	}
}
