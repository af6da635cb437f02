package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/turfbook/turfbook/internal/accounts"
	"github.com/turfbook/turfbook/internal/auth"
	"github.com/turfbook/turfbook/internal/config"
	"github.com/turfbook/turfbook/internal/middleware"
	"github.com/turfbook/turfbook/internal/notification"
	"github.com/turfbook/turfbook/internal/otp"
	"github.com/turfbook/turfbook/internal/phone"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Notifier overrides code delivery. Defaults to the log, plus the Redis
	// SMS outbox when Redis is configured.
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var accountRepo accounts.Repository
	if d.DB != nil {
		pg := accounts.NewPostgresRepository(d.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate accounts: %w", err)
		}
		accountRepo = pg
	} else {
		accountRepo = accounts.NewMemoryRepository()
	}

	var codeStore otp.Store
	if d.Cache != nil {
		codeStore = otp.NewRedisStore(d.Cache)
	} else {
		codeStore = otp.NewMemoryStore()
	}

	notifier := d.Notifier
	if notifier == nil {
		logNotifier := notification.NewLoggerNotifier(d.Logger)
		if d.Cache != nil {
			notifier = notification.Fanout{logNotifier, notification.NewRedisOutbox(d.Cache)}
		} else {
			notifier = logNotifier
		}
	}

	tokens, err := auth.NewTokenIssuer(d.Cfg.JWTSecret, d.Cfg.TokenTTL)
	if err != nil {
		return err
	}
	codeSvc := otp.NewService(codeStore, notifier, d.Cfg.OTPTTL, d.Cfg.OTPMaxAttempts)
	accountSvc := accounts.NewService(accountRepo, d.Cfg.Roles)
	phones := phone.NewValidator(d.Cfg.PhoneRegion)
	authSvc := auth.NewService(phones, codeSvc, accountSvc, tokens)
	authHandler := auth.NewHandler(authSvc, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, authHandler, middleware.OTPRateLimit(d.Cache, phones, d.Cfg.OTPPerMinute))

	protected := api.Group("", middleware.BearerAuth(tokens))
	RegisterUserRoutes(protected, authHandler)

	return nil
}
