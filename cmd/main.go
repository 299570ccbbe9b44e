/**
 * @description
 * This is the main entry point for the payments service. It is responsible
 * for initializing all components of the service, including configuration,
 * database connection, the Stripe client, message broker, repositories, the
 * core onboarding service, and the HTTP server. It wires everything together
 * and starts the service.
 *
 * Key features:
 * - Loads application configuration from environment variables.
 * - Establishes and manages a connection pool to the PostgreSQL database.
 * - Degrades gracefully when optional infrastructure (Redis, RabbitMQ) is
 *   unreachable: dedupe and event publishing switch off, onboarding stays up.
 * - Starts the webhook-substitute reconciler outside production only.
 *
 * @dependencies
 * - The service's internal packages for config, app logic, storage, and the
 *   Stripe client.
 * - pgxpool for database connection, godotenv for local config, go-redis for
 *   webhook dedupe, and rabbitmq for messaging.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/andriel300/tec-shop-sub000/internal/api"
	"github.com/andriel300/tec-shop-sub000/internal/app"
	"github.com/andriel300/tec-shop-sub000/internal/config"
	"github.com/andriel300/tec-shop-sub000/internal/store"
	"github.com/andriel300/tec-shop-sub000/pkg/rabbitmq"
	"github.com/andriel300/tec-shop-sub000/pkg/stripeclient"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load application configuration.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.ServiceMasterSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"service master secret must be configured\" env=SERVICE_MASTER_SECRET")
	}
	if strings.TrimSpace(cfg.StripeAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"stripe api key must be configured\" env=STRIPE_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting payments-service\" port=%s environment=%s", cfg.ServerPort, cfg.Environment)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Align pool sizing with the other tec-shop services.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Connect to Redis for webhook event dedupe. The service runs without it;
	// duplicate webhooks are then reprocessed, which is safe but wasteful.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; webhook dedupe disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; webhook dedupe disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; webhook dedupe disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the RabbitMQ producer to publish status-change events.
	// This service only needs to publish, so we use a producer.
	var publisher app.EventPublisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.PaymentEventsExchange)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; status events disabled\" err=%v", err)
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the Stripe API.
	stripeClient := stripeclient.NewClient(cfg.StripeAPIBaseURL, cfg.StripeAPIKey)

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core onboarding service with its dependencies.
	onboardingService := app.NewOnboardingService(
		repository,
		stripeClient,
		publisher,
		[]byte(cfg.ServiceMasterSecret),
		cfg.PublicBaseURL,
	)

	var dedupe *store.EventDedupe
	if redisClient != nil {
		dedupe = store.NewEventDedupe(redisClient, "", 0)
	}

	// Initialize the API handlers and router.
	handlers := api.NewPaymentAccountHandlers(onboardingService, cfg.OnboardingCompleteURL, cfg.OnboardingErrorURL)
	webhookHandler := api.NewStripeWebhookHandler(onboardingService, cfg.StripeWebhookSecret, dedupe)
	router := api.PaymentRoutes(handlers, webhookHandler, []byte(cfg.ServiceMasterSecret), cfg.AllowedServices())

	// Outside production Stripe cannot reach the webhook endpoint, so a cron
	// reconciler polls accounts stuck mid-onboarding instead.
	var reconciler *app.Reconciler
	if !cfg.IsProduction() {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		reconciler = app.NewReconciler(onboardingService, logger, cfg.ReconcileSchedule)
		reconciler.Start()
		log.Printf("level=info component=bootstrap msg=\"reconciler started\" schedule=%q", cfg.ReconcileSchedule)
	} else {
		log.Println("level=info component=bootstrap msg=\"reconciler disabled in production; webhooks drive status\"")
	}

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	// Wait for termination signal for graceful shutdown.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	if reconciler != nil {
		// Stop returns once no reconcile pass is mid-flight.
		<-reconciler.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
