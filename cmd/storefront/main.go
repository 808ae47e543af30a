package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"props-shop/internal/admin"
	"props-shop/internal/auth"
	"props-shop/internal/cart"
	"props-shop/internal/catalog"
	"props-shop/internal/config"
	"props-shop/internal/coupon"
	"props-shop/internal/database/migrations"
	"props-shop/internal/email"
	"props-shop/internal/kafka"
	"props-shop/internal/logger"
	"props-shop/internal/order"
	"props-shop/internal/order/api"
	orderdb "props-shop/internal/order/db"
	"props-shop/internal/payment"
	"props-shop/internal/payment/storage"
	"props-shop/internal/pricing"
	"props-shop/internal/sse"
	"props-shop/internal/webhook"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	maxRetries := 5
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		if err = sqldb.Ping(); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("PostgreSQL not ready: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}
	log.Info("DATABASE", "PostgreSQL connection successful")

	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting storefront service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.ValidateWebhookConfig(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	migrationRunner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: "./migrations",
		AutoMigrate:   true,
		SeedData:      os.Getenv("SEED_DATA") == "true",
	})
	if err := migrationRunner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer migrationRunner.Close()
	log.Info("DATABASE", "Migrations up to date")

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, kafka.Topics{
			Created:   cfg.Kafka.Topics.OrderCreated,
			Paid:      cfg.Kafka.Topics.OrderPaid,
			Cancelled: cfg.Kafka.Topics.OrderCancelled,
			Refunded:  cfg.Kafka.Topics.OrderRefunded,
		})
		defer producer.Close()
		for _, topic := range []string{
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.OrderPaid,
			cfg.Kafka.Topics.OrderCancelled,
			cfg.Kafka.Topics.OrderRefunded,
		} {
			if err := kafka.CreateTopicIfNotExists(cfg.Kafka.Brokers, topic); err != nil {
				log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed for %s: %v", topic, err))
			}
		}
		log.Info("KAFKA", "Kafka producer initialized")
	} else {
		producer = &kafka.Producer{}
		log.Warn("KAFKA", "Kafka disabled, order events will not be published")
	}

	catalogStore, err := catalog.NewFileStore(cfg.Catalog.Dir, log)
	if err != nil {
		log.Fatal("CATALOG", fmt.Sprintf("Failed to load catalog from %s: %v", cfg.Catalog.Dir, err))
	}

	ledgerStore, err := storage.NewPostgreSQLStoreWithDB(bunDB.DB, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize payment ledger: %v", err))
	}

	paypalProvider := payment.NewPayPalProvider(cfg.PayPal, log)
	registry := payment.NewRegistry(
		paypalProvider,
		payment.NewStripeProvider(cfg.Stripe, log),
		payment.NewBankTransferProvider(cfg.Bank, log),
	)

	couponService := coupon.NewService(&coupon.DB{Bun: bunDB}, log)
	pricingEngine := pricing.NewEngine(catalogStore, log)
	cartStore := cart.NewStore(redisClient, cfg.Redis.CartTTL)
	mailer := email.NewMailer(cfg.Email, log)
	events := sse.NewOrderEventEmitter()
	orderDB := &orderdb.DB{Bun: bunDB}

	orderService := order.NewService(
		orderDB,
		cartStore,
		pricingEngine,
		couponService,
		registry,
		ledgerStore,
		producer,
		mailer,
		events,
		order.ShippingRule{FlatRate: cfg.Shipping.FlatRate, FreeAbove: cfg.Shipping.FreeAbove},
		cfg.PayPal.Currency,
		log,
	)

	apiHandler := api.NewHandler(orderService, couponService, catalogStore, events, log)
	webhookHandler := webhook.NewHandler(paypalProvider, orderDB, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(auth.VisitorID())
	r.Use(auth.OptionalUser(cfg.Auth.SupabaseJWTSecret))

	r.Get("/healthz", apiHandler.Healthz(map[string]func(context.Context) error{
		"postgres": func(ctx context.Context) error { return bunDB.PingContext(ctx) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"ledger":   ledgerStore.HealthCheck,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", apiHandler.ListProducts)
		r.Get("/products/{slug}", apiHandler.GetProduct)

		r.Post("/cart/validate", apiHandler.ValidateCart)
		r.Post("/coupons/validate", apiHandler.ValidateCoupon)

		r.Post("/checkout/create-order", apiHandler.CreateOrder)
		r.Post("/checkout/capture-order", apiHandler.CaptureOrder)

		r.Get("/orders/lookup", apiHandler.LookupOrder)
		r.Get("/orders/{orderNumber}/events", apiHandler.OrderEvents)

		r.Post("/webhooks/paypal", webhookHandler.HandlePayPal)
	})
	log.Info("ROUTER", "Public routes registered under /api")

	// admin surface rides on gin behind the OIDC guard, mounted into chi
	if cfg.Auth.AdminOIDCIssuer != "" {
		guard, err := auth.AdminGuard(cfg.Auth.AdminOIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to initialize admin guard: %v", err))
		}
		gin.SetMode(gin.ReleaseMode)
		ginEngine := gin.New()
		ginEngine.Use(gin.Recovery())
		adminGroup := ginEngine.Group("/api/admin", guard)
		admin.NewHandler(orderDB, orderService, ledgerStore, log).RegisterRoutes(adminGroup)
		r.Mount("/api/admin", ginEngine)
		log.Info("ROUTER", "Admin routes registered under /api/admin")
	} else {
		log.Warn("AUTH", "ADMIN_OIDC_ISSUER not set, admin API disabled")
	}

	// no WriteTimeout: the SSE endpoint holds its response open indefinitely
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Storefront running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Storefront shutdown complete")
	}
}
