package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string          HTTP bind address (e.g., ":8080")
//	-grpc string       gRPC bind address (e.g., ":50051")
//	-driver string     database driver, postgres or sqlite
//	-d string          database DSN
//	-backend string    refresh-token backend, sql or redis
//	-redis string      Redis address
//	-redis-prefix      Redis key prefix
//	-s string          JWT HMAC secret key
//	-key-file string   file holding the secret key, watched for rotation
//	-t duration        access token validity (e.g., "15m")
//	-r duration        refresh token validity (e.g., "168h")
//	-shutdown duration graceful shutdown timeout
//	-log-level string  debug, info, warn or error
//	-dev               accept the development secret key
//
// Flags belonging to other components (such as -c) are filtered out by
// flagx before parsing.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("gophauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "gRPC address and port to run server")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver (postgres|sqlite)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.TokenBackend, "backend", config.TokenBackend, "refresh token backend (sql|redis)")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisKeyPrefix, "redis-prefix", config.RedisKeyPrefix, "redis key prefix")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SecretKeyFile, "key-file", config.SecretKeyFile, "secret key file")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.DurationVar(&config.ShutdownTimeout, "shutdown", config.ShutdownTimeout, "graceful shutdown timeout")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.BoolVar(&config.AllowDevSecret, "dev", config.AllowDevSecret, "allow the development secret key")

	return flagx.ParseKnown(fs, args)
}
