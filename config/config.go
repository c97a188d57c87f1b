/*
Package config provides configuration management for the rank tracking backend.

This package separates configuration concerns from business logic and provides
a centralized way to manage application configuration including the scraper
boundary, the scheduler worker pool, streaming, and archival.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/academy-ops/rank-tracking-backend/container"
	"github.com/academy-ops/rank-tracking-backend/middleware"
	"github.com/academy-ops/rank-tracking-backend/scheduler"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	ProjectID  string
	LogLevel   string
	ServerPort string
	// Rate limiting configuration
	RateLimitRequestsPerMinute float64
	RateLimitBurst             int
	RateLimitCleanupInterval   time.Duration
	// Enhanced CORS configuration
	CORSConfig CORSConfig
	// Cleanup intervals
	ClientCleanupInterval time.Duration
	// Tracking pipeline settings
	TrackingConfig TrackingConfig
}

// TrackingConfig holds tracking pipeline configuration
type TrackingConfig struct {
	// Scraper boundary
	ScraperBaseURL string        `json:"scraper_base_url"`
	ScraperTimeout time.Duration `json:"scraper_timeout"`
	// Worker pool settings
	Workers     int           `json:"workers"`
	QueueSize   int           `json:"queue_size"`
	ItemTimeout time.Duration `json:"item_timeout"`
	// Outbound call pacing
	TrackRatePerSecond float64 `json:"track_rate_per_second"`
	TrackBurst         int     `json:"track_burst"`
	// Streaming settings
	EventBufferSize      int           `json:"event_buffer_size"`
	SubscriberBufferSize int           `json:"subscriber_buffer_size"`
	HeartbeatInterval    time.Duration `json:"heartbeat_interval"`
	// Recent logs window
	LogRingSize int `json:"log_ring_size"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	// Environment-specific settings
	Environment string
	// Allowed origins based on environment
	DevelopmentOrigins []string
	StagingOrigins     []string
	ProductionOrigins  []string
	// Additional CORS settings
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
	// Dynamic origin validation
	AllowSubdomains bool
	AllowedDomains  []string
}

// Services holds all service dependencies
type Services struct {
	Container *container.Container
	Logger    *logrus.Logger
}

// AppConfig holds both configuration and services
type AppConfig struct {
	Config   *Config
	Services *Services
}

// NewConfig creates a new configuration instance
func NewConfig() *Config {
	environment := getEnv("ENVIRONMENT", "development")

	return &Config{
		ProjectID:  getEnv("PROJECT_ID", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		// Rate limiting defaults (60 requests per minute, burst of 10)
		RateLimitRequestsPerMinute: getEnvFloat("RATE_LIMIT_RPM", 60.0),
		RateLimitBurst:             getEnvInt("RATE_LIMIT_BURST", 10),
		RateLimitCleanupInterval:   getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		// Enhanced CORS configuration
		CORSConfig: CORSConfig{
			Environment: environment,
			DevelopmentOrigins: getEnvSlice("DEV_CORS_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:3001",
				"http://localhost:8080",
			}),
			StagingOrigins: getEnvSlice("STAGING_CORS_ORIGINS", []string{
				"https://staging.yourdomain.com",
				"https://staging-api.yourdomain.com",
			}),
			ProductionOrigins: getEnvSlice("PROD_CORS_ORIGINS", []string{
				"https://yourdomain.com",
				"https://www.yourdomain.com",
				"https://api.yourdomain.com",
			}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{
				"GET", "POST", "PUT", "DELETE", "OPTIONS",
			}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{
				"Content-Type", "Authorization", "X-Requested-With",
				"X-Request-ID", "Accept", "Origin", "Cache-Control",
			}),
			ExposedHeaders: getEnvSlice("CORS_EXPOSED_HEADERS", []string{
				"X-Request-ID", "X-Total-Count",
			}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 86400), // 24 hours
			AllowSubdomains:  getEnvBool("CORS_ALLOW_SUBDOMAINS", false),
			AllowedDomains:   getEnvSlice("CORS_ALLOWED_DOMAINS", []string{}),
		},
		// Cleanup intervals
		ClientCleanupInterval: getEnvDuration("CLIENT_CLEANUP_INTERVAL", 1*time.Minute),
		// Tracking pipeline settings
		TrackingConfig: TrackingConfig{
			ScraperBaseURL:       getEnv("SCRAPER_BASE_URL", "http://localhost:8081"),
			ScraperTimeout:       getEnvDuration("SCRAPER_TIMEOUT", 30*time.Second),
			Workers:              getEnvInt("TRACKING_WORKERS", 2),
			QueueSize:            getEnvInt("TRACKING_QUEUE_SIZE", 50),
			ItemTimeout:          getEnvDuration("TRACKING_ITEM_TIMEOUT", 15*time.Second),
			TrackRatePerSecond:   getEnvFloat("TRACK_RATE_PER_SECOND", 5.0),
			TrackBurst:           getEnvInt("TRACK_BURST", 1),
			EventBufferSize:      getEnvInt("EVENT_BUFFER_SIZE", 200),
			SubscriberBufferSize: getEnvInt("SUBSCRIBER_BUFFER_SIZE", 64),
			HeartbeatInterval:    getEnvDuration("STREAM_HEARTBEAT_INTERVAL", 30*time.Second),
			LogRingSize:          getEnvInt("LOG_RING_SIZE", 100),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TrackingConfig.ScraperBaseURL == "" {
		return fmt.Errorf("SCRAPER_BASE_URL environment variable is required")
	}
	return nil
}

// NewServices creates and initializes all service dependencies using DI
// container. A missing PROJECT_ID disables datastore archival rather
// than failing startup.
func NewServices(config *Config) (*Services, error) {
	logger := middleware.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	var datastoreClient *datastore.Client
	if config.ProjectID != "" {
		client, err := datastore.NewClient(context.Background(), config.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create Datastore client: %v", err)
		}
		datastoreClient = client
		logger.WithField("project_id", config.ProjectID).Info("Datastore client initialized successfully")
	} else {
		logger.Info("PROJECT_ID not set, archival disabled")
	}

	settings := container.Settings{
		EventBufferSize:      config.TrackingConfig.EventBufferSize,
		SubscriberBufferSize: config.TrackingConfig.SubscriberBufferSize,
		LogRingSize:          config.TrackingConfig.LogRingSize,
		HeartbeatInterval:    config.TrackingConfig.HeartbeatInterval,
		ScraperBaseURL:       config.TrackingConfig.ScraperBaseURL,
		ScraperTimeout:       config.TrackingConfig.ScraperTimeout,
		Scheduler: scheduler.Config{
			Workers:            config.TrackingConfig.Workers,
			QueueSize:          config.TrackingConfig.QueueSize,
			ItemTimeout:        config.TrackingConfig.ItemTimeout,
			TrackRatePerSecond: config.TrackingConfig.TrackRatePerSecond,
			TrackBurst:         config.TrackingConfig.TrackBurst,
		},
	}

	diContainer := container.NewContainer()
	if err := diContainer.InitializeServices(datastoreClient, settings, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize dependency container: %v", err)
	}

	return &Services{
		Container: diContainer,
		Logger:    logger,
	}, nil
}

// NewAppConfig creates a new application configuration with all dependencies
func NewAppConfig() (*AppConfig, error) {
	config := NewConfig()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	services, err := NewServices(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %v", err)
	}

	return &AppConfig{
		Config:   config,
		Services: services,
	}, nil
}

// Close gracefully closes all service connections
func (s *Services) Close() error {
	if s.Container != nil {
		return s.Container.Close()
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float64 with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as time.Duration with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as bool with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvSlice gets an environment variable as a string slice with a default value
func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
