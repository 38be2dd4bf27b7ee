package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vaultra/cardbank/internal/payment/cardgw"
	paymenthttp "github.com/vaultra/cardbank/internal/payment/http"
	"github.com/vaultra/cardbank/internal/payment/service"
	paymentpg "github.com/vaultra/cardbank/internal/payment/store/drivers/postgres"
	"github.com/vaultra/cardbank/internal/platform/audit"
	"github.com/vaultra/cardbank/internal/platform/authguard"
	"github.com/vaultra/cardbank/pkg/rpcx"
	"github.com/vaultra/cardbank/pkg/slogx"
)

const BuildVersion = "v0.1.0"

// Application is the payment service: transfer orchestration over the
// card ledger plus the archived payment history.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     *paymentpg.Store
	broker *rpcx.Conn
	web    *http.Server
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "payment-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	db, err := paymentpg.NewStore(cfg.DatabaseDSN)
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

	cardClient, err := rpcx.NewClient(broker, "card-service")
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to open card channel: %w", err)
	}
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
	verificationClient, err := rpcx.NewClient(broker, "verification-service")
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to open verification channel: %w", err)
	}

	payments := &service.PaymentService{
		Store: db,
		Cards: cardgw.NewClient(cardClient),
		Audit: audit.NewClient(historyClient, app.logger),
	}

	guard := authguard.ForMode(cfg.AuthMode, authClient, cfg.AccessSecret)
	verify := &authguard.VerificationGuard{Verification: verificationClient}

	app.web = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: paymenthttp.NewRouter(payments, guard, verify, app.logger),
	}

	return app, nil
}

// Run serves the HTTP API until a shutdown signal arrives.
func (app *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.Info("payment service starting",
		"addr", app.cfg.HTTPAddr,
		"version", BuildVersion,
	)

	webErr := make(chan error, 1)
	go func() {
		if err := app.web.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			webErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-webErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownTime)
	defer cancel()
	if err := app.web.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}

	app.close()
	if runErr == nil {
		app.logger.Info("payment service stopped")
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
