/**
 * @description
 * This is the main entry point for the transaction-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * the balance cache, message brokers, the chain client, repositories, the application
 * services, and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Balance cache backend.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/chainclient: Client for the EVM JSON-RPC node.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/coinpay/transaction-service/internal/api"
	"github.com/coinpay/transaction-service/internal/app"
	"github.com/coinpay/transaction-service/internal/config"
	"github.com/coinpay/transaction-service/internal/store"
	"github.com/coinpay/transaction-service/pkg/chainclient"
	rmrabbit "github.com/coinpay/transaction-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url must be configured\" env=DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		log.Println("level=warn component=bootstrap msg=\"jwt secret missing; authenticated routes will reject requests\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting transaction-service\" port=%s", cfg.ServerPort)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	repository := store.NewPostgresRepository(dbpool)
	healthChecks := map[string]api.HealthCheck{"postgres": repository.Ping}

	var balanceCache app.BalanceCache = app.NoopBalanceCache{}
	if redisClient := connectRedis(cfg.RedisURL); redisClient != nil {
		defer redisClient.Close()
		balanceCache = app.NewRedisBalanceCache(redisClient)
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	// The producer is optional; without it status notifications are dropped.
	var publisher rmrabbit.Publisher = &rmrabbit.EventProducerFallback{}
	if cfg.RabbitMQURL == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; using fallback producer\" env=RABBITMQ_URL")
	} else if producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		defer producer.Close()
		publisher = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	notifier := app.NewRabbitNotifier(publisher, cfg.EventsExchange)

	metrics := api.NewMetrics()
	statusService := app.NewStatusService(repository, balanceCache, notifier, metrics)

	var refresher *app.ChainRefresher
	if cfg.ChainRPCURL == "" {
		log.Println("level=warn component=bootstrap msg=\"chain rpc url missing; on-read receipt refresh disabled\" env=CHAIN_RPC_URL")
	} else {
		dialCtx, cancelDial := context.WithTimeout(context.Background(), 10*time.Second)
		chainClient, err := chainclient.Dial(dialCtx, cfg.ChainRPCURL)
		cancelDial()
		if err != nil {
			log.Printf("level=warn component=bootstrap msg=\"chain rpc dial failed; on-read receipt refresh disabled\" err=%v", err)
		} else {
			defer chainClient.Close()
			refresher = app.NewChainRefresher(chainClient, statusService)
			log.Println("level=info component=bootstrap msg=\"chain rpc connected\"")
		}
	}

	queryService := app.NewChainQueryService(repository, balanceCache, refresher, cfg.BalanceCacheTTL())
	ledgerService := app.NewLedgerService(repository)

	// Receipt events are consumed only when a broker is configured.
	if cfg.RabbitMQURL != "" {
		rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
		}
		defer rabbitConsumer.Close()

		receiptConsumer := app.NewReceiptConsumer(statusService)
		if err := rabbitConsumer.ConsumeWithBindings(cfg.EventsExchange, cfg.ReceiptEventQueue, receiptConsumer.Bindings()); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"receipt consumer start failed\" err=%v", err)
		}
		log.Printf("level=info component=bootstrap msg=\"receipt consumer started\" exchange=%s queue=%s", cfg.EventsExchange, cfg.ReceiptEventQueue)
	}

	router := api.TransactionRoutes(api.RouterConfig{
		Ledger:  api.NewLedgerHandlers(ledgerService),
		Chain:   api.NewChainHandlers(statusService, queryService, metrics),
		Health:  api.NewHealthHandlers(healthChecks),
		Metrics: metrics,
		JWT: api.JWTConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		},
		AllowedOrigins: cfg.AllowedOrigins,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

// connectRedis returns a pinged client, or nil when the balance cache must be disabled.
func connectRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; balance cache disabled\" env=REDIS_URL")
		return nil
	}
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; balance cache disabled\" err=%v", err)
		return nil
	}
	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; balance cache disabled\" err=%v", err)
		client.Close()
		return nil
	}
	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}
