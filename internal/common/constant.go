// Package common contains shared constants and sentinel errors used across
// gophauth components.
package common

const (
	// AuthorizationHeaderName carries the bearer access token on HTTP requests
	// and, lowercased, in gRPC metadata.
	AuthorizationHeaderName = "Authorization"

	// BearerScheme is the authorization scheme prefix, including the trailing space.
	BearerScheme = "Bearer "

	// RolePrefix is prepended to stored role names when they are exposed
	// as token claims.
	RolePrefix = "ROLE_"
)
