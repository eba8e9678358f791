package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/animora/animora/app/controllers"
	"github.com/animora/animora/app/repository"
	"github.com/animora/animora/internal/pkg/billing"
	"github.com/animora/animora/internal/pkg/cache"
	"github.com/animora/animora/internal/pkg/credits"
	"github.com/animora/animora/internal/pkg/database"
	"github.com/animora/animora/internal/pkg/env"
	"github.com/animora/animora/internal/pkg/eventarchive"
	"github.com/animora/animora/internal/pkg/router"
	"github.com/animora/animora/internal/pkg/subscriptions"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
	// limiter counters live apart from the cache database
	limiterDatabase = 2
)

// Application owns the long lived resources of the service
type Application struct {
	App   *fiber.App
	db    *gorm.DB
	cache *redis.Client
}

func main() {
	env.SetupEnvFile()

	application, err := NewApplication(context.Background())
	if err != nil {
		log.Fatalf("[Main] Startup failed: %v", err)
	}
	defer application.Close()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		if err := application.App.Listen(addr); err != nil {
			log.Errorf("[Main] Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Main] Shutting down")
	if err := application.App.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[Main] Graceful shutdown failed: %v", err)
	}
}

// NewApplication connects the stores and wires services, controllers and routes.
func NewApplication(ctx context.Context) (*Application, error) {
	db, err := database.Open(database.LoadConfig())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a := &Application{db: db}

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	// Redis is optional. Without it webhook locks are no-ops and the
	// limiter counts in memory.
	cacheCfg := cache.LoadConfig()
	var locker billing.Locker = billing.NoopLocker{}
	var limiterStorage fiber.Storage
	if cacheCfg.Enabled() {
		if client, err := cache.Connect(startCtx, cacheCfg); err == nil {
			a.cache = client
			locker = billing.NewRedisLocker(client)
			limiterStorage = newLimiterStorage(cacheCfg)
		}
	}

	// S3 payload archive is optional as well
	var archiver billing.Archiver
	archiveCfg, err := eventarchive.LoadConfig()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("webhook archive: %w", err)
	}
	if archiveCfg.IsEnabled() {
		archive, err := eventarchive.New(startCtx, archiveCfg)
		if err != nil {
			log.Warnf("[Main] Webhook archive unavailable, continuing without it: %v", err)
		} else {
			archiver = archive
		}
	}

	repos := repository.NewFactory(db).GetRepositories()
	ledger := credits.NewService(repos.Credit, credits.LoadSignupGrant())
	packs := credits.NewCatalog(repos.Pack)
	subs := subscriptions.NewService(repos.Subscription, repos.Plan)

	billingCfg := billing.LoadConfig()
	if billingCfg.WebhookSecret == "" {
		log.Warn("[Main] CREEM_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}
	deps := billing.Deps{
		Events:        repos.WebhookEvent,
		Payments:      repos.Payment,
		Ledger:        ledger,
		Subscriptions: subs,
		Packs:         packs,
		Locker:        locker,
		Archiver:      archiver,
	}
	ingestor := billing.NewIngestor(billingCfg, deps)

	app := fiber.New(fiber.Config{
		AppName:   "Animora",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app, router.LoadConfig(), &router.Handlers{
		Credits:       controllers.NewCreditsController(ledger, packs),
		Subscriptions: controllers.NewSubscriptionController(subs, billing.NewCreemClient(billingCfg)),
		Webhooks:      controllers.NewWebhookController(ingestor),
		AdminWebhooks: controllers.NewAdminWebhookController(ingestor),
	}, limiterStorage)

	a.App = app
	return a, nil
}

// Close releases the database and cache connections
func (a *Application) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warnf("[Main] Closing cache: %v", err)
		}
	}
	if err := database.Close(a.db); err != nil {
		log.Warnf("[Main] Closing database: %v", err)
	}
}

// newLimiterStorage must only be called once the cache answered a ping,
// redisstorage.New panics on an unreachable server.
func newLimiterStorage(cfg *cache.Config) fiber.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Warnf("[Main] Invalid CACHE_PORT %q, rate limiter uses memory", cfg.Port)
		return nil
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}
