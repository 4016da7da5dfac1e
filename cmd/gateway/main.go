/**
 * @description
 * Entry point for the CoinPay gateway. It loads the shared configuration, builds the
 * prefix route table and serves the reverse proxy until it receives a shutdown signal.
 *
 * @dependencies
 * - github.com/joho/godotenv: Loads a local .env file into the process environment.
 * - internal/config, internal/gateway: Configuration and proxy implementation.
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

	"github.com/joho/godotenv"

	"github.com/coinpay/transaction-service/internal/config"
	"github.com/coinpay/transaction-service/internal/gateway"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=gateway msg=\"no .env file found; using process environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=gateway msg=\"config load failed\" err=%v", err)
	}

	defaults, err := gateway.DefaultRoutes(cfg.GatewayAPIURL)
	if err != nil {
		log.Fatalf("level=fatal component=gateway msg=\"invalid GATEWAY_API_URL\" err=%v", err)
	}
	extra, err := gateway.ParseRoutes(cfg.GatewayRoutes)
	if err != nil {
		log.Fatalf("level=fatal component=gateway msg=\"invalid GATEWAY_ROUTES\" err=%v", err)
	}
	table, err := gateway.NewRouteTable(gateway.MergeRoutes(defaults, extra))
	if err != nil {
		log.Fatalf("level=fatal component=gateway msg=\"route table invalid\" err=%v", err)
	}
	for _, route := range table.Routes() {
		log.Printf("level=info component=gateway msg=\"route registered\" prefix=%s upstream=%s", route.Prefix, route.Upstream)
	}

	serverAddr := fmt.Sprintf(":%s", cfg.GatewayPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           gateway.Routes(table, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=gateway msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=gateway msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=gateway msg=\"shutdown failed\" err=%v", err)
	}
	log.Println("level=info component=gateway msg=\"shutdown complete\"")
}
