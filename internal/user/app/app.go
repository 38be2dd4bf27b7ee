package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vaultra/cardbank/internal/platform/audit"
	"github.com/vaultra/cardbank/internal/user/rpc"
	"github.com/vaultra/cardbank/internal/user/service"
	userpg "github.com/vaultra/cardbank/internal/user/store/drivers/postgres"
	"github.com/vaultra/cardbank/pkg/rpcx"
	"github.com/vaultra/cardbank/pkg/slogx"
)

const BuildVersion = "v0.1.0"

// Queue is the user directory's command queue.
const Queue = "user-service"

// Application is the user directory service: profile storage consulted by
// every other service over the broker.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     *userpg.Store
	broker *rpcx.Conn
	server *rpcx.Server
}

// New wires the application. Every outbound channel (database, broker) is
// established and checked here, before any traffic is accepted.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "user-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	db, err := userpg.NewStore(cfg.DatabaseDSN)
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

	historyClient, err := rpcx.NewClient(broker, "history-service")
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to open history channel: %w", err)
	}

	users := &service.UserService{
		Store: db,
		Audit: audit.NewClient(historyClient, app.logger),
	}

	app.server = rpcx.NewServer(broker, Queue, app.logger)
	rpc.Register(app.server, users)

	return app, nil
}

// Run serves the command queue until a shutdown signal arrives.
func (app *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.Info("user service starting", "queue", Queue, "version", BuildVersion)

	err := app.server.Serve(ctx)
	app.close()

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("rpc server failed: %w", err)
	}

	app.logger.Info("user service stopped")
	return nil
}

func (app *Application) close() {
	if app.broker != nil {
		_ = app.broker.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
