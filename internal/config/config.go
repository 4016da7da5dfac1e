/**
 * @description
 * This package handles the configuration management for the API service and the
 * gateway. It uses the Viper library to read configuration from environment variables
 * and an optional .env file, providing a centralized and straightforward way to manage
 * application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultBalanceCacheTTLSeconds = 300
	defaultGatewayAPIURL          = "http://localhost:8080"
)

// Config holds all the configuration variables for the transaction-service and gateway.
// These values are loaded from environment variables.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	BalanceCacheTTLSeconds int    `mapstructure:"BALANCE_CACHE_TTL_SECONDS"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	EventsExchange         string `mapstructure:"EVENTS_EXCHANGE"`
	ReceiptEventQueue      string `mapstructure:"RECEIPT_EVENT_QUEUE"`
	ChainRPCURL            string `mapstructure:"CHAIN_RPC_URL"`
	JWTSecret              string `mapstructure:"JWT_SECRET"`
	JWTIssuer              string `mapstructure:"JWT_ISSUER"`
	JWTAudience            string `mapstructure:"JWT_AUDIENCE"`
	CORSAllowedOrigins     string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	GatewayPort            string `mapstructure:"GATEWAY_PORT"`
	GatewayAPIURL          string `mapstructure:"GATEWAY_API_URL"`
	GatewayRoutes          string `mapstructure:"GATEWAY_ROUTES"`

	// AllowedOrigins is CORSAllowedOrigins split on commas.
	AllowedOrigins []string `mapstructure:"-"`
}

// BalanceCacheTTL is the lifetime of balance entries written by the balance endpoint.
func (c Config) BalanceCacheTTL() time.Duration {
	return time.Duration(c.BalanceCacheTTLSeconds) * time.Second
}

// LoadConfig reads configuration from environment variables and an optional .env file
// in the given path.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BALANCE_CACHE_TTL_SECONDS", defaultBalanceCacheTTLSeconds)
	viper.SetDefault("EVENTS_EXCHANGE", "coinpay.events")
	viper.SetDefault("RECEIPT_EVENT_QUEUE", "transaction_service.receipts")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("GATEWAY_PORT", "8000")
	viper.SetDefault("GATEWAY_API_URL", defaultGatewayAPIURL)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL", "DATABASE_URL", "COINPAY_DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "COINPAY_REDIS_URL")
	_ = viper.BindEnv("BALANCE_CACHE_TTL_SECONDS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("RECEIPT_EVENT_QUEUE")
	_ = viper.BindEnv("CHAIN_RPC_URL", "CHAIN_RPC_URL", "POLYGON_RPC_URL")
	_ = viper.BindEnv("JWT_SECRET", "JWT_SECRET", "JWT_SECRET_KEY")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("JWT_AUDIENCE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("GATEWAY_PORT")
	_ = viper.BindEnv("GATEWAY_API_URL")
	_ = viper.BindEnv("GATEWAY_ROUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	normalize(&config)
	return config, nil
}

func normalize(config *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.ServerPort = strings.TrimSpace(config.ServerPort)
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.ChainRPCURL = strings.TrimSpace(config.ChainRPCURL)
	config.JWTSecret = strings.TrimSpace(config.JWTSecret)
	config.JWTIssuer = strings.TrimSpace(config.JWTIssuer)
	config.JWTAudience = strings.TrimSpace(config.JWTAudience)
	config.EventsExchange = strings.TrimSpace(config.EventsExchange)
	config.ReceiptEventQueue = strings.TrimSpace(config.ReceiptEventQueue)
	config.GatewayPort = strings.TrimSpace(config.GatewayPort)
	config.GatewayRoutes = strings.TrimSpace(config.GatewayRoutes)

	if config.BalanceCacheTTLSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive BALANCE_CACHE_TTL_SECONDS; using default\" value=%d default=%d", config.BalanceCacheTTLSeconds, defaultBalanceCacheTTLSeconds)
		config.BalanceCacheTTLSeconds = defaultBalanceCacheTTLSeconds
	}

	config.GatewayAPIURL = strings.TrimRight(strings.TrimSpace(config.GatewayAPIURL), "/")
	if config.GatewayAPIURL == "" {
		config.GatewayAPIURL = defaultGatewayAPIURL
	}

	config.AllowedOrigins = nil
	for _, origin := range strings.Split(config.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			config.AllowedOrigins = append(config.AllowedOrigins, origin)
		}
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	if config.JWTSecret != "" && len(config.JWTSecret) < 32 {
		log.Printf("level=warn component=config msg=\"JWT_SECRET is shorter than 32 bytes\"")
	}
}
