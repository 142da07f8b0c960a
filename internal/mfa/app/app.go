package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	httpapi "github.com/ikimina/sacco-auth/internal/mfa/http"
	"github.com/ikimina/sacco-auth/internal/mfa/ratelimit"
	"github.com/ikimina/sacco-auth/internal/mfa/replay"
	"github.com/ikimina/sacco-auth/internal/mfa/service"
	"github.com/ikimina/sacco-auth/internal/mfa/sessionx"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
	"github.com/ikimina/sacco-auth/internal/mfa/store/drivers/sqlite"
	"github.com/ikimina/sacco-auth/internal/mfa/verify"
	"github.com/ikimina/sacco-auth/pkg/cryptox"
	"github.com/ikimina/sacco-auth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the MFA service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	replays *replay.Guard
	limits  *ratelimit.Limiter

	challengeService    *service.ChallengeService
	initiateService     *service.InitiateService
	enrollmentService   *service.EnrollmentService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// logSender logs delivery requests instead of sending them. Used in dev
// environments where no mail or messaging provider is wired up.
type logSender struct {
	logger *slog.Logger
}

func (s *logSender) SendCode(_ context.Context, factor domain.Factor, userID, destination, code string) error {
	s.logger.Info("out-of-band code delivery (dev sender)",
		"factor", string(factor),
		"user_id", userID,
		"destination", destination,
		"code", code,
	)
	return nil
}

// New creates an Application with all dependencies initialized. Sender is
// the out-of-band delivery channel; pass nil to disable code delivery
// outside dev environments. Passkeys is the platform's assertion verifier;
// pass nil when passkeys are not offered.
func New(cfg Config, sender service.Sender, passkeys verify.AssertionVerifier) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "mfa-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Pepper for backup code hashing
	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if sender == nil && cfg.Env == "dev" {
		sender = &logSender{logger: app.logger}
	}
	app.initServices(sender, passkeys)
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("mfa service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down mfa service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("mfa service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices(sender service.Sender, passkeys verify.AssertionVerifier) {
	app.replays = replay.New(app.cfg.ReplayTTL)
	app.limits = ratelimit.New()

	sessions := sessionx.NewManager(sessionx.Config{
		SessionSecret: app.cfg.SessionSecret,
		TrustedSecret: app.cfg.TrustedDeviceSecret,
		SessionTTL:    app.cfg.SessionTTL,
		TrustedTTL:    app.cfg.TrustedDeviceTTL,
	})

	app.challengeService = &service.ChallengeService{
		Store: app.db,
		Verifier: verify.New(verify.Config{
			TOTPSkew: &app.cfg.TOTPSkew,
		}, app.replays, passkeys),
		Limits:   app.limits,
		Sessions: sessions,
		Logger:   app.logger,
		UserPolicy: service.Policy{
			MaxAttempts: app.cfg.UserMaxAttempts,
			Window:      app.cfg.UserWindow,
		},
		IPPolicy: service.Policy{
			MaxAttempts: app.cfg.IPMaxAttempts,
			Window:      app.cfg.IPWindow,
		},
	}

	app.initiateService = &service.InitiateService{
		Store:        app.db,
		Sender:       sender,
		Logger:       app.logger,
		ChallengeTTL: app.cfg.ChallengeTTL,
	}

	app.enrollmentService = &service.EnrollmentService{
		Store:  app.db,
		Issuer: app.cfg.TOTPIssuer,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.replays,
		app.limits,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.ChallengeService = app.challengeService
	router.InitiateService = app.initiateService
	router.EnrollmentService = app.enrollmentService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
