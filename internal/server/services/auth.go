package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
)

// AuthService ties the credential check to token issuance.
type AuthService struct {
	creds   CredentialVerifier
	issuer  *TokenIssuer
	metrics *metrics.Collectors
	logger  logging.Logger
}

func NewAuthService(creds CredentialVerifier, issuer *TokenIssuer, m *metrics.Collectors, l logging.Logger) *AuthService {
	return &AuthService{creds: creds, issuer: issuer, metrics: m, logger: l.With("module", "auth_service")}
}

// Login checks the password and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		s.metrics.Login(metrics.ResultInvalid)
		return nil, common.ErrInvalidRequest
	}

	p, err := s.creds.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.metrics.Login(metrics.ResultInvalid)
			s.logger.Info(ctx, "login rejected")
			return nil, err
		}
		s.metrics.Login(metrics.ResultError)
		return nil, err
	}

	pair, err := s.issuer.Login(ctx, p.Subject, p.Roles)
	if err != nil {
		s.metrics.Login(metrics.ResultError)
		return nil, err
	}

	s.metrics.Login(metrics.ResultOK)
	s.logger.Info(ctx, "login succeeded", "subject", p.Subject)
	return &LoginResult{TokenPair: *pair, UserID: p.UserID, Subject: p.Subject, Roles: p.Roles}, nil
}
