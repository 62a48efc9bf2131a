package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adamzielonka/coursepath-backend/api/routes"
	"github.com/adamzielonka/coursepath-backend/internal/cancellation"
	"github.com/adamzielonka/coursepath-backend/internal/catalog"
	checkoutsvc "github.com/adamzielonka/coursepath-backend/internal/checkout"
	"github.com/adamzielonka/coursepath-backend/internal/grants"
	paymentwebhook "github.com/adamzielonka/coursepath-backend/internal/webhooks/payment"
	"github.com/adamzielonka/coursepath-backend/pkg/config"
	"github.com/adamzielonka/coursepath-backend/pkg/db"
	"github.com/adamzielonka/coursepath-backend/pkg/env"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
	"github.com/adamzielonka/coursepath-backend/pkg/metrics"
	"github.com/adamzielonka/coursepath-backend/pkg/migrate"
	"github.com/adamzielonka/coursepath-backend/pkg/outbox"
	"github.com/adamzielonka/coursepath-backend/pkg/outbox/idempotency"
	"github.com/adamzielonka/coursepath-backend/pkg/redis"
	pkgstripe "github.com/adamzielonka/coursepath-backend/pkg/stripe"
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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	grantsService, err := grants.NewService(grants.ServiceParams{
		Repository:        grants.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create grants service", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Catalog:    catalogService,
		Promos:     catalogRepo,
		Grants:     grantsService,
		Stripe:     checkoutsvc.NewSessionCreator(stripeClient),
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	cancelService, err := cancellation.NewService(cancellation.ServiceParams{
		Grants: grantsService,
		Stripe: cancellation.NewStripeCanceller(stripeClient),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cancellation service", err)
		os.Exit(1)
	}

	dedupe, err := idempotency.NewManager(redisClient, cfg.Webhook.EventDedupeTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dedupe", err)
		os.Exit(1)
	}

	webhookService, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Grants:       grantsService,
		Subscription: paymentwebhook.NewSubscriptionFetcher(stripeClient),
		Dedupe:       dedupe,
		Metrics:      metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
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
			catalogService,
			checkoutService,
			grantsService,
			cancelService,
			webhookService,
			stripeClient,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
