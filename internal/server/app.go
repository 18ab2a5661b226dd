// Package server wires storage, token services and the HTTP and gRPC
// listeners into one application and runs it until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/tokenstore"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

// connectAttempts bounds the startup retries against the database and Redis.
var connectAttempts uint = 5

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   redis.UniversalClient
	store   *tokenstore.Store
	holder  *auth.Holder
	watcher *auth.KeyFileWatcher
	handler http.Handler
	grpc    *gs.GRPCServer
}

// NewApp connects to the stores, applies migrations and builds the
// services. The caller owns the returned App and must Close it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	app := &App{config: c, logger: logger}

	repos, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	app.db, err = openDB(ctx, repos, c.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	backend, err := app.tokenBackend(ctx, repos)
	if err != nil {
		app.Close()
		return nil, err
	}

	if err := app.initSigner(ctx); err != nil {
		app.Close()
		return nil, err
	}

	m := metrics.New()
	app.store = tokenstore.New(backend, c.RefreshTokenValidityDuration, logger)

	directory, err := services.NewAccountDirectory(app.db, repos)
	if err != nil {
		app.Close()
		return nil, err
	}
	issuer := services.NewTokenIssuer(app.holder, app.store, directory, c.AccessTokenValidityDuration, m, logger)
	authService := services.NewAuthService(directory, issuer, m, logger)

	authn := httpapi.NewAuthenticator(app.holder, m, logger)
	api := httpapi.NewAPI(authService, issuer, app.health, logger)
	app.handler = httpapi.NewRouter(api, authn, m)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, authn, app.health, logger)

	return app, nil
}

// Handler is the HTTP surface of the app.
func (app *App) Handler() http.Handler { return app.handler }

func openDB(ctx context.Context, repos repomanager.RepositoryManager, dsn string, logger logging.Logger) (*sql.DB, error) {
	db, err := sql.Open(repos.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	if repos.DriverName() == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if err := retry(ctx, "database", logger, func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, err
	}

	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (app *App) tokenBackend(ctx context.Context, repos repomanager.RepositoryManager) (tokenstore.Backend, error) {
	if app.config.TokenBackend != config.BackendRedis {
		return tokenstore.NewSQLBackend(app.db, repos), nil
	}

	app.redis = redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	err := retry(ctx, "redis", app.logger, func() error { return app.redis.Ping(ctx).Err() })
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	return tokenstore.NewRedisBackend(app.redis, app.config.RedisKeyPrefix), nil
}

func (app *App) initSigner(ctx context.Context) error {
	secret := []byte(app.config.SecretKey)
	if app.config.SecretKeyFile != "" {
		var err error
		if secret, err = auth.ReadKeyFile(app.config.SecretKeyFile); err != nil {
			return err
		}
	}

	ring, err := auth.NewKeyring(secret)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	app.holder = auth.NewHolder(auth.NewSigner(ring))
	app.logger.Info(ctx, "signing key loaded", "kid", ring.CurrentID())

	if app.config.SecretKeyFile != "" {
		app.watcher = auth.NewKeyFileWatcher(app.config.SecretKeyFile, app.holder, app.logger)
	}
	return nil
}

// retry runs op with exponential backoff until it succeeds or the
// attempts run out.
func retry(ctx context.Context, what string, logger logging.Logger, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(connectAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Warn(ctx, "connection attempt failed", "target", what, "retry_in", d.String(), "error", err)
		}),
	)
	return err
}

func (app *App) health(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return err
	}
	return app.store.Ping(ctx)
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			app.logger.Info(ctx, "Shutdown signal received", "signal", sig.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) runHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is cancelled, a shutdown signal arrives, or one of
// the listeners fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(ctx, cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.runHTTPServer(gctx) })
	g.Go(func() error { return app.grpc.Run(gctx) })
	if app.watcher != nil {
		g.Go(func() error { return app.watcher.Run(gctx) })
	}

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// Close releases the store connections.
func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}
