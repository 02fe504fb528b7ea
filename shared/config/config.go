package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort   string
	FrontendURL  string
	PublicAPIURL string
	GinMode      string

	// Database
	DatabaseURL    string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Sessions (main app cookie sessions)
	SessionSecret       string
	SessionCookieName   string
	SessionCookieSecure bool
	SessionTTLHours     int

	// Employee portal bearer tokens
	EmployeeTokenTTLHours int

	// Redis
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       string

	// Super Admin
	SuperAdminEmail    string
	SuperAdminPassword string

	// Email Configuration
	EmailFrom     string
	EmailFromName string
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SMTPUseTLS    bool

	// Login Rate Limiting
	LoginRateLimitMaxAttempts   int
	LoginRateLimitWindowSeconds int
	LoginRateLimitBlockMinutes  int

	// Register Rate Limiting
	RegisterRateLimitMaxAttempts int
	RegisterRateLimitWindowHours int
	RegisterRateLimitBlockHours  int

	// MinIO Configuration
	MinIOServerURL    string
	MinIORootUser     string
	MinIORootPassword string
	MinIOUseSSL       bool
	MinIOBucketName   string
	UploadMaxBytes    int64

	// Search
	MeiliURL       string
	MeiliMasterKey string

	// Web push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// Payments
	PaymentWebhookSecret string
	PaymentCheckoutURL   string
	DefaultCurrency      string

	// Task automation relay
	AutomationWebhookURL    string
	AutomationWebhookSecret string

	// Status stories
	StatusTTLHours int
}

var cfg *Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("✅ Environment loaded from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg = &Config{
		ServerPort:   getEnv("SERVER_PORT", "5000"),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:5173"),
		PublicAPIURL: getEnv("PUBLIC_API_URL", "http://localhost:5000"),
		GinMode:      getEnv("GIN_MODE", "debug"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "desktown"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),

		SessionSecret:       getEnv("SESSION_SECRET", "desktown-dev-session-secret"),
		SessionCookieName:   getEnv("SESSION_COOKIE_NAME", "desktown.sid"),
		SessionCookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", false),
		SessionTTLHours:     getEnvAsInt("SESSION_TTL_HOURS", 168),

		EmployeeTokenTTLHours: getEnvAsInt("EMPLOYEE_TOKEN_TTL_HOURS", 12),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),

		SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", "admin@desktown.app"),
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", "admin12345"),

		EmailFrom:     getEnv("EMAIL_FROM", "noreply@desktown.app"),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "DeskTown"),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:    getEnvAsBool("SMTP_USE_TLS", false),

		LoginRateLimitMaxAttempts:   getEnvAsInt("LOGIN_RATE_LIMIT_MAX_ATTEMPTS", 10),
		LoginRateLimitWindowSeconds: getEnvAsInt("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 300),
		LoginRateLimitBlockMinutes:  getEnvAsInt("LOGIN_RATE_LIMIT_BLOCK_MINUTES", 15),

		RegisterRateLimitMaxAttempts: getEnvAsInt("REGISTER_RATE_LIMIT_MAX_ATTEMPTS", 5),
		RegisterRateLimitWindowHours: getEnvAsInt("REGISTER_RATE_LIMIT_WINDOW_HOURS", 1),
		RegisterRateLimitBlockHours:  getEnvAsInt("REGISTER_RATE_LIMIT_BLOCK_HOURS", 6),

		MinIOServerURL:    getEnv("MINIO_SERVER_URL", "http://localhost:9000"),
		MinIORootUser:     getEnv("MINIO_ROOT_USER", "minioadmin"),
		MinIORootPassword: getEnv("MINIO_ROOT_PASSWORD", "minioadmin"),
		MinIOUseSSL:       getEnvAsBool("MINIO_USE_SSL", false),
		MinIOBucketName:   getEnv("MINIO_BUCKET_NAME", "desktown-media"),
		UploadMaxBytes:    int64(getEnvAsInt("UPLOAD_MAX_MB", 25)) << 20,

		MeiliURL:       getEnv("MEILI_URL", ""),
		MeiliMasterKey: getEnv("MEILI_MASTER_KEY", ""),

		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@desktown.app"),

		PaymentWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentCheckoutURL:   getEnv("PAYMENT_CHECKOUT_URL", "http://localhost:5173/checkout"),
		DefaultCurrency:      getEnv("DEFAULT_CURRENCY", "usd"),

		AutomationWebhookURL:    getEnv("AUTOMATION_WEBHOOK_URL", ""),
		AutomationWebhookSecret: getEnv("AUTOMATION_WEBHOOK_SECRET", ""),

		StatusTTLHours: getEnvAsInt("STATUS_TTL_HOURS", 24),
	}

	log.Println("✅ Configuration loaded successfully")
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	if cfg == nil {
		LoadConfig()
	}
	return cfg
}

// SetConfig replaces the active configuration. Tests use it to avoid reading the environment.
func SetConfig(c *Config) {
	cfg = c
}

// DSN returns the Postgres connection string, preferring DATABASE_URL when set
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBPort,
		c.DBSSLMode,
	)
}

// SessionTTL is how long an idle cookie session survives in the session store
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// EmployeeTokenTTL is the lifetime of an employee portal bearer token
func (c *Config) EmployeeTokenTTL() time.Duration {
	return time.Duration(c.EmployeeTokenTTLHours) * time.Hour
}

// StatusTTL is how long a status story stays visible after it is posted
func (c *Config) StatusTTL() time.Duration {
	return time.Duration(c.StatusTTLHours) * time.Hour
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Warning: Could not convert %s value '%s' to int, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
