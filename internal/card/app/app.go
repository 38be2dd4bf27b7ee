package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cardhttp "github.com/vaultra/cardbank/internal/card/http"
	"github.com/vaultra/cardbank/internal/card/rpc"
	"github.com/vaultra/cardbank/internal/card/service"
	cardpg "github.com/vaultra/cardbank/internal/card/store/drivers/postgres"
	"github.com/vaultra/cardbank/internal/platform/audit"
	"github.com/vaultra/cardbank/internal/platform/authguard"
	"github.com/vaultra/cardbank/pkg/rpcx"
	"github.com/vaultra/cardbank/pkg/slogx"
)

const BuildVersion = "v0.1.0"

// Queue is the ledger's command queue on the broker.
const Queue = "card-service"

// Application is the card service: the balance ledger plus the
// holder-facing card management API.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     *cardpg.Store
	broker *rpcx.Conn
	server *rpcx.Server
	web    *http.Server
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "card-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	db, err := cardpg.NewStore(cfg.DatabaseDSN)
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
	authClient, err := rpcx.NewClient(broker, "auth-service")
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to open auth channel: %w", err)
	}

	cards := &service.CardService{
		Store: db,
		Audit: audit.NewClient(historyClient, app.logger),
	}

	app.server = rpcx.NewServer(broker, Queue, app.logger)
	rpc.Register(app.server, cards)

	guard := authguard.ForMode(cfg.AuthMode, authClient, cfg.AccessSecret)
	app.web = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: cardhttp.NewRouter(cards, guard, app.logger),
	}

	return app, nil
}

// Run serves the command queue and the HTTP API until a shutdown signal
// arrives, then drains both.
func (app *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.Info("card service starting",
		"queue", Queue,
		"addr", app.cfg.HTTPAddr,
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
		app.logger.Info("card service stopped")
	}
	return runErr
}

func (app *Application) close() {
	if app.broker != nil {
		_ = app.broker.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
