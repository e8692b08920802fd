package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/courseloop/courseloop-backend/api/routes"
	checkoutsvc "github.com/courseloop/courseloop-backend/internal/checkout"
	"github.com/courseloop/courseloop-backend/internal/courses"
	"github.com/courseloop/courseloop-backend/internal/licenses"
	"github.com/courseloop/courseloop-backend/internal/notifications"
	"github.com/courseloop/courseloop-backend/internal/pricing"
	"github.com/courseloop/courseloop-backend/internal/tenants"
	stripewebhook "github.com/courseloop/courseloop-backend/internal/webhooks/stripe"
	"github.com/courseloop/courseloop-backend/pkg/config"
	"github.com/courseloop/courseloop-backend/pkg/db"
	"github.com/courseloop/courseloop-backend/pkg/logger"
	"github.com/courseloop/courseloop-backend/pkg/metrics"
	"github.com/courseloop/courseloop-backend/pkg/migrate"
	"github.com/courseloop/courseloop-backend/pkg/redis"
	"github.com/courseloop/courseloop-backend/pkg/stripe"
)

const (
	webhookIdempotencyScope = "stripe-webhook"
	webhookIdempotencyTTL   = 72 * time.Hour
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	defaultTiers, err := pricing.ParseTierSpec(cfg.Pricing.DefaultTiers)
	if err != nil {
		logg.Error(context.Background(), "invalid default discount tiers", err)
		os.Exit(1)
	}
	calculator, err := pricing.NewCalculator(cfg.Pricing.UnlimitedMultiplier)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing calculator", err)
		os.Exit(1)
	}

	courseRepo := courses.NewRepository(dbClient.DB())
	tenantRepo := tenants.NewRepository(dbClient.DB())
	licenseRepo := licenses.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())

	notificationService, err := notifications.NewService(notificationRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	gateway := checkoutsvc.NewStripeGateway(stripeClient)

	licenseService, err := licenses.NewService(licenseRepo, dbClient, gateway, notificationService, cfg.Licensing.Term(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create license service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(courseRepo, tenantRepo, licenseRepo, gateway, calculator, defaultTiers, cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	tenantService, err := tenants.NewService(tenantRepo, defaultTiers, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create tenant service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger:  licenseService,
		Metrics: metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, webhookIdempotencyScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			licenseService,
			tenantService,
			stripeClient,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
