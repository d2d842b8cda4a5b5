package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go-user-api/internal/config"
	"go-user-api/internal/database"
	"go-user-api/internal/event"
	"go-user-api/internal/handler"
	"go-user-api/internal/mail"
	"go-user-api/internal/metrics"
	"go-user-api/internal/middleware"
	"go-user-api/internal/model"
	"go-user-api/internal/repository"
	"go-user-api/internal/router"
	"go-user-api/internal/service"
)

const (
	shutdownTimeout      = 10 * time.Second
	resetCleanupInterval = time.Hour
)

type resetLedger interface {
	service.ResetLedger
	service.ExpiredResetCleaner
}

type App struct {
	server       *http.Server
	background   []func(ctx context.Context)
	cleanupFuncs []func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	slog.Info("connecting to PostgreSQL")
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.onShutdown(db.Close)

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	slog.Info("database ready")

	ledger, err := a.newResetLedger(ctx, cfg, db)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	tokens, err := service.NewTokenService(cfg.JWTSecret)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	bus := event.NewBus()
	hasher := service.NewBcryptHasher(cfg.BcryptCost)

	authService, err := service.NewAuthService(userRepo, hasher, tokens, mailer, ledger, bus, service.AuthConfig{
		SessionTTL: cfg.SessionTokenTTL,
		ResetTTL:   cfg.ResetTokenTTL,
	})
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	userService := service.NewUserService(userRepo, bus)
	auditService := service.NewAuditService(auditRepo)

	m := metrics.New()
	if err := m.Register(metrics.NewPoolCollector(pool)); err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to register pool metrics: %w", err)
	}

	a.background = append(a.background,
		func(ctx context.Context) { auditService.Run(ctx, bus) },
		func(ctx context.Context) { m.Observe(ctx, bus) },
		func(ctx context.Context) { service.StartResetCleanupTicker(ctx, ledger, resetCleanupInterval) },
	)

	if cfg.NATSURL != "" {
		conn, err := event.ConnectNATS(cfg.NATSURL)
		if err != nil {
			a.cleanup()
			return nil, err
		}
		a.onShutdown(func() {
			if err := conn.Drain(); err != nil {
				slog.Warn("failed to drain NATS connection", "error", err)
			}
		})
		forwarder := event.NewNATSForwarder(conn, cfg.NATSSubjectPrefix)
		a.background = append(a.background, func(ctx context.Context) { forwarder.Run(ctx, bus) })
		slog.Info("forwarding events to NATS", "prefix", cfg.NATSSubjectPrefix)
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(tokens, userRepo), router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(userService, hasher),
		Audit:  handler.NewAuditHandler(auditService),
		Health: handler.NewHealthHandler(db),
	}, m)

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	for _, run := range a.background {
		go run(bgCtx)
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.cleanup()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(shutdownCtx)
	cancelBackground()
	a.cleanup()

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

// Migrate applies pending schema migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	db.Close()
	return nil
}

// CreateAdmin inserts an administrator account.
func CreateAdmin(ctx context.Context, cfg *config.Config, name string, email string, password string) (model.User, error) {
	req := model.UserRequest{Name: name, Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return model.User{}, err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return model.User{}, err
	}
	defer db.Close()

	hash, err := service.NewBcryptHasher(cfg.BcryptCost).Hash(req.Password)
	if err != nil {
		return model.User{}, err
	}

	in := req.Input(hash)
	in.Role = model.RoleAdmin

	return repository.NewUserRepository(db.Pool).Create(ctx, in)
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (a *App) newResetLedger(ctx context.Context, cfg *config.Config, db *database.DB) (resetLedger, error) {
	if cfg.RedisURL == "" {
		return repository.NewResetRepository(db.Pool), nil
	}

	client, err := repository.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.onShutdown(func() { _ = client.Close() })

	slog.Info("using redis for reset token ledger")
	return repository.NewRedisResetRepository(client), nil
}

func newMailer(cfg *config.Config) (mail.Mailer, error) {
	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, err
	}

	if cfg.SMTPHost == "" {
		slog.Warn("SMTP_HOST not set; reset mails are logged instead of sent")
		return mail.NewLogMailer(renderer), nil
	}

	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, renderer), nil
}

func (a *App) onShutdown(fn func()) {
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

// cleanup releases resources in reverse acquisition order.
func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
