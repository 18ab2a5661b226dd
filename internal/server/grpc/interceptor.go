package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// HeaderAuthenticator resolves a raw authorization value into an identity.
type HeaderAuthenticator interface {
	FromHeader(ctx context.Context, header string) (*identity.Identity, bool)
}

var authorizationKey = strings.ToLower(common.AuthorizationHeaderName)

// withIdentity attaches the caller identity, if any. A call is never
// rejected here.
func (s *GRPCServer) withIdentity(ctx context.Context) context.Context {
	if s.authn == nil {
		return ctx
	}
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationKey); len(values) > 0 {
			header = values[0]
		}
	}
	if id, ok := s.authn.FromHeader(ctx, header); ok {
		return identity.WithIdentity(ctx, id)
	}
	return ctx
}

func (s *GRPCServer) identityUnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	return handler(s.withIdentity(ctx), req)
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }

func (s *GRPCServer) identityStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return handler(srv, &identityStream{ServerStream: ss, ctx: s.withIdentity(ss.Context())})
}
