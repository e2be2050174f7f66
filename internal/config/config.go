// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
}

// MongoConfig holds document store settings
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds the listing cache settings. The cache is optional; an
// unreachable Redis only disables snapshot caching, never the service.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// S3Config holds post image storage settings
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string // set for MinIO in local development
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Mongo          *MongoConfig
	Redis          *RedisConfig
	S3             *S3Config
	JWTSecret      string
	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try a couple of locations so running from cmd/server also picks up the
	// project root .env. A missing file is fine.
	for _, location := range []string{".env", "../../.env"} {
		if err := godotenv.Load(location); err == nil {
			break
		}
	}

	serverConfig := DefaultConfig()
	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			serverConfig.Port = port
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	mongoConfig := &MongoConfig{
		URI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		Database: getEnvOrDefault("MONGODB_DATABASE", "inkgate"),
	}

	redisConfig := &RedisConfig{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		CacheTTL: 30 * time.Second,
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			redisConfig.DB = db
		}
	}
	if ttlStr := os.Getenv("CACHE_TTL"); ttlStr != "" {
		if ttl, err := time.ParseDuration(ttlStr); err == nil {
			redisConfig.CacheTTL = ttl
		}
	}

	s3Config := &S3Config{
		Region:          getEnvOrDefault("AWS_REGION", "us-east-1"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Bucket:          getEnvOrDefault("S3_BUCKET_NAME", "inkgate-content"),
		Endpoint:        os.Getenv("AWS_ENDPOINT"),
	}

	config := &Config{
		Server:         serverConfig,
		Mongo:          mongoConfig,
		Redis:          redisConfig,
		S3:             s3Config,
		JWTSecret:      getEnvOrDefault("JWT_SECRET", "inkgate-dev-secret-change-in-production"),
		AllowedOrigins: []string{"*"},
		Debug:          false,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}
	if debug := os.Getenv("DEBUG"); debug == "true" {
		config.Debug = true
	}

	return config, nil
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
