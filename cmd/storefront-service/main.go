package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-service/internal/account"
	"github.com/vasiliy-maslov/storefront-service/internal/admin"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/cache"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/config"
	"github.com/vasiliy-maslov/storefront-service/internal/db"
	"github.com/vasiliy-maslov/storefront-service/internal/events"
	storefrontHTTP "github.com/vasiliy-maslov/storefront-service/internal/handler/http"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/payment"
	"github.com/vasiliy-maslov/storefront-service/internal/storage"
	"github.com/vasiliy-maslov/storefront-service/internal/upload"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.App)
	log.Info().Str("env", cfg.App.Env).Msg("Storefront service starting...")

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	ctx := context.Background()
	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	minioClient, err := storage.NewMinioClient(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object storage client")
	}
	objectStore := storage.NewMinioStorage(minioClient, cfg.Storage)

	eventStore := cache.NewNoopEventStore()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		eventStore = cache.NewRedisEventStore(rdb, cfg.Redis.EventTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Webhook deduplication backed by Redis")
	}

	publisher := events.NewNoopPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing order events to Kafka")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}()

	catalogRepository := catalog.NewRepository(dbConn.Pool)
	cartRepository := cart.NewRepository(dbConn.Pool)
	orderRepository := order.NewRepository(dbConn.Pool)
	accountRepository := account.NewRepository(dbConn.Pool)
	uploadRepository := upload.NewRepository(dbConn.Pool)

	catalogSvc := catalog.NewService(catalogRepository)
	cartSvc := cart.NewService(cartRepository, catalogRepository)
	orderSvc := order.NewService(orderRepository)
	accountSvc := account.NewService(accountRepository, orderRepository, catalogRepository)
	uploadSvc := upload.NewService(uploadRepository, objectStore)
	checkoutSvc := checkout.NewService(cartRepository, catalogRepository, orderRepository,
		payment.NewStripeProvider(cfg.Stripe.SecretKey), eventStore, publisher, checkout.Config{
			Currency:                cfg.Stripe.Currency,
			MinChargeCents:          cfg.Stripe.MinChargeCents,
			WebhookSecret:           cfg.Stripe.WebhookSecret,
			AllowUnverifiedWebhooks: cfg.Stripe.AllowUnverifiedWebhooks,
		})
	dashboardSvc := admin.NewDashboardService(orderRepository, catalogRepository)
	adminCatalogSvc := admin.NewCatalogService(catalogRepository, objectStore)

	if cfg.Stripe.WebhookSecret == "" {
		log.Warn().Bool("allow_unverified", cfg.Stripe.AllowUnverifiedWebhooks).Msg("Stripe webhook secret is not configured")
	}

	authenticator := storefrontHTTP.NewAuthenticator(
		auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		auth.NewAdminChecker(cfg.Auth.AdminSecret),
	)
	router := storefrontHTTP.NewRouter(storefrontHTTP.Handlers{
		Catalog:  storefrontHTTP.NewCatalogHandler(catalogSvc, cartSvc, uploadSvc),
		Cart:     storefrontHTTP.NewCartHandler(cartSvc, authenticator),
		Checkout: storefrontHTTP.NewCheckoutHandler(checkoutSvc),
		Account:  storefrontHTTP.NewAccountHandler(accountSvc),
		Admin:    storefrontHTTP.NewAdminHandler(dashboardSvc, orderSvc, adminCatalogSvc, uploadSvc),
	}, authenticator, storefrontHTTP.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst), dbConn.Pool)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.Name).Logger()
}
