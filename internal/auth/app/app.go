package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	authhttp "github.com/vaultra/cardbank/internal/auth/http"
	"github.com/vaultra/cardbank/internal/auth/rpc"
	"github.com/vaultra/cardbank/internal/auth/service"
	"github.com/vaultra/cardbank/internal/auth/session"
	authpg "github.com/vaultra/cardbank/internal/auth/store/drivers/postgres"
	"github.com/vaultra/cardbank/internal/platform/audit"
	"github.com/vaultra/cardbank/internal/platform/authguard"
	"github.com/vaultra/cardbank/internal/platform/directory"
	"github.com/vaultra/cardbank/pkg/rpcx"
	"github.com/vaultra/cardbank/pkg/slogx"
)

const BuildVersion = "v0.1.0"

// Queue is the auth service's command queue.
const Queue = "auth-service"

// Application is the auth service: credentials, sessions and two-factor
// enrollment in front of the user directory.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     *authpg.Store
	rdb    *redis.Client
	broker *rpcx.Conn
	server *rpcx.Server
	web    *http.Server
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	db, err := authpg.NewStore(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	broker, err := rpcx.Dial(cfg.BrokerURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	app.broker = broker

	userClient, err := rpcx.NewClient(broker, "user-service")
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to open user channel: %w", err)
	}
	historyClient, err := rpcx.NewClient(broker, "history-service")
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to open history channel: %w", err)
	}

	auth := &service.AuthService{
		Directory: directory.NewClient(userClient),
		Store:     db,
		Audit:     audit.NewClient(historyClient, app.logger),
	}

	var guard authguard.Guard
	if cfg.AuthMode == "token" {
		issuer := &service.TokenIssuer{
			AccessSecret:  []byte(cfg.AccessSecret),
			RefreshSecret: []byte(cfg.RefreshSecret),
			AccessTTL:     cfg.AccessTTL,
			RefreshTTL:    cfg.RefreshTTL,
		}
		auth.Issuer = issuer
		auth.Tokens = issuer
		guard = &authguard.TokenGuard{Secret: []byte(cfg.AccessSecret)}
	} else {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			app.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.rdb = rdb

		sessions := session.NewRedisStore(rdb, cfg.SessionTTL)
		auth.Sessions = sessions
		auth.Issuer = &service.SessionIssuer{Sessions: sessions}
		guard = &sessionSelfGuard{auth: auth}
	}

	app.server = rpcx.NewServer(broker, Queue, app.logger)
	rpc.Register(app.server, auth)

	app.web = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: authhttp.NewRouter(auth, guard, cfg.SessionTTL, cfg.SecureCookies, app.logger),
	}

	return app, nil
}

// Run serves the command queue and the HTTP API until a shutdown signal
// arrives.
func (app *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.Info("auth service starting",
		"queue", Queue,
		"addr", app.cfg.HTTPAddr,
		"mode", app.cfg.AuthMode,
		"version", BuildVersion,
	)

	webErr := make(chan error, 1)
	go func() {
		if err := app.web.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			webErr <- err
		}
	}()

	rpcErr := make(chan error, 1)
	go func() {
		rpcErr <- app.server.Serve(ctx)
	}()

	var runErr error
	select {
	case err := <-webErr:
		runErr = fmt.Errorf("http server failed: %w", err)
		stop()
		<-rpcErr
	case err := <-rpcErr:
		if err != nil && ctx.Err() == nil {
			runErr = fmt.Errorf("rpc server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownTime)
	defer cancel()
	if err := app.web.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}

	app.close()
	if runErr == nil {
		app.logger.Info("auth service stopped")
	}
	return runErr
}

func (app *Application) close() {
	if app.broker != nil {
		_ = app.broker.Close()
	}
	if app.rdb != nil {
		_ = app.rdb.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
