package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	CORSOrigins    []string

	// Storage backend: postgres or memory
	Storage StorageConfig

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig

	RateLimit RateLimitConfig

	// Booking flow tunables
	Booking BookingConfig

	Realtime RealtimeConfig

	// External services
	Kafka  KafkaConfig
	Email  EmailConfig
	Stripe StripeConfig

	Swagger SwaggerConfig

	// Logging
	LogLevel string
}

type StorageConfig struct {
	Driver string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	CacheTTL time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	Issuer           string
	JWTExpiresIn     time.Duration
	RefreshExpiresIn time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	WindowDuration  time.Duration `json:"window_duration"`
	DefaultRequests int           `json:"default_requests"`
	PublicRequests  int           `json:"public_requests"`
	AuthRequests    int           `json:"auth_requests"`
	BookingRequests int           `json:"booking_requests"`
	SeatRequests    int           `json:"seat_requests"`
	AdminRequests   int           `json:"admin_requests"`
	WhitelistedIPs  []string      `json:"whitelisted_ips"`
}

// BookingConfig holds seat lock and booking lifecycle settings
type BookingConfig struct {
	SeatLockTTL          time.Duration
	PendingTTL           time.Duration
	ReferenceMaxAttempts int
	Currency             string
	ExpiryCheckInterval  time.Duration
	ExpiryBatchSize      int
	CheckInGrace         time.Duration
	QRCodeSize           int
	// Signs QR verification payloads; defaults to the JWT secret
	VerificationSecret string
}

// RealtimeConfig holds websocket and fan-out settings
type RealtimeConfig struct {
	UseRedis       bool
	ClientBuffer   int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

// KafkaConfig holds notification messaging configuration
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	ClientID      string
	Topic         string
	ConsumerGroup string
	MaxRetries    int
	RetryBackoff  time.Duration
}

// EmailConfig holds email configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

// StripeConfig selects and configures the payment gateway
type StripeConfig struct {
	Gateway       string
	SecretKey     string
	WebhookSecret string
}

type SwaggerConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB
		CORSOrigins:    getStringSliceEnv("CORS_ORIGINS", []string{"http://localhost:3000"}),

		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "postgres"),
		},

		// Database configuration
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "eventix_db"),
			User:            getEnv("DB_USER", "eventix_user"),
			Password:        getEnv("DB_PASSWORD", "eventix_password"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},

		// Redis configuration
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			CacheTTL: getDurationEnv("REDIS_CACHE_TTL", 30*time.Second),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret:           getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			Issuer:           getEnv("JWT_ISSUER", "eventix"),
			JWTExpiresIn:     getDurationEnvSeconds("JWT_EXPIRES_IN", 15*time.Minute),
			RefreshExpiresIn: getDurationEnvSeconds("JWT_REFRESH_EXPIRES_IN", 24*time.Hour),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:         getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:  getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests: getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:  getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 100),
			AuthRequests:    getIntEnv("RATE_LIMIT_AUTH_REQUESTS", 10),
			BookingRequests: getIntEnv("RATE_LIMIT_BOOKING_REQUESTS", 20),
			SeatRequests:    getIntEnv("RATE_LIMIT_SEAT_REQUESTS", 60),
			AdminRequests:   getIntEnv("RATE_LIMIT_ADMIN_REQUESTS", 200),
			WhitelistedIPs:  getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		Booking: BookingConfig{
			SeatLockTTL:          getDurationEnv("SEAT_LOCK_TTL", 10*time.Minute),
			PendingTTL:           getDurationEnv("BOOKING_PENDING_TTL", 24*time.Hour),
			ReferenceMaxAttempts: getIntEnv("REFERENCE_MAX_ATTEMPTS", 5),
			Currency:             strings.ToLower(getEnv("CURRENCY", "usd")),
			ExpiryCheckInterval:  getDurationEnv("EXPIRY_CHECK_INTERVAL", 5*time.Minute),
			ExpiryBatchSize:      getIntEnv("EXPIRY_BATCH_SIZE", 100),
			CheckInGrace:         getDurationEnv("CHECKIN_GRACE", 24*time.Hour),
			QRCodeSize:           getIntEnv("QR_CODE_SIZE", 256),
			VerificationSecret:   getEnv("CHECKIN_SIGNING_SECRET", ""),
		},

		Realtime: RealtimeConfig{
			UseRedis:       getBoolEnv("REALTIME_USE_REDIS", true),
			ClientBuffer:   getIntEnv("REALTIME_CLIENT_BUFFER", 64),
			WriteTimeout:   getDurationEnv("REALTIME_WRITE_TIMEOUT", 10*time.Second),
			PongTimeout:    getDurationEnv("REALTIME_PONG_TIMEOUT", 60*time.Second),
			MaxMessageSize: getInt64Env("REALTIME_MAX_MESSAGE_SIZE", 4096),
			AllowedOrigins: getStringSliceEnv("REALTIME_ALLOWED_ORIGINS", []string{"*"}),
		},

		Kafka: KafkaConfig{
			Enabled:       getBoolEnv("KAFKA_ENABLED", false),
			Brokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			ClientID:      getEnv("KAFKA_CLIENT_ID", "eventix"),
			Topic:         getEnv("KAFKA_NOTIFICATION_TOPIC", "eventix.notifications"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "eventix-notification-workers"),
			MaxRetries:    getIntEnv("KAFKA_MAX_RETRIES", 3),
			RetryBackoff:  getDurationEnv("KAFKA_RETRY_BACKOFF", 2*time.Second),
		},

		// Email configuration
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "noreply@eventix.com"),
			FromName:     getEnv("FROM_NAME", "Eventix"),
		},

		Stripe: StripeConfig{
			Gateway:       getEnv("PAYMENT_GATEWAY", "local"),
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},

		Swagger: SwaggerConfig{
			Enabled: getBoolEnv("SWAGGER_ENABLED", true),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port
	if cfg.Booking.VerificationSecret == "" {
		cfg.Booking.VerificationSecret = cfg.JWT.Secret
	}

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getInt64Env gets an int64 environment variable with a fallback value
func getInt64Env(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}

// UsesMemoryStorage reports whether repositories are backed by the in-process store.
func (c *Config) UsesMemoryStorage() bool {
	return strings.EqualFold(c.Storage.Driver, "memory")
}

// EmailConfigured reports whether an SMTP relay is set.
func (c *Config) EmailConfigured() bool {
	return c.Email.SMTPHost != ""
}
