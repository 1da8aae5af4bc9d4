package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// Booking intake
	BookingCooldown time.Duration
	DedupBackend    string
	SessionLockTTL  time.Duration
	NotifyTimeout   time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	CatalogPath     string
	StudioName      string

	// Email notifications
	EmailProvider        string
	SendGridAPIKey       string
	EmailFrom            string
	EmailFromName        string
	AdminEmailRecipients []string

	// AWS (SES)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Admin WhatsApp follow-up and in-app alerts
	WhatsAppAdminNumber  string
	WhatsAppContextTurns int
	AlertHistorySize     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		BookingCooldown: getEnvAsDuration("BOOKING_COOLDOWN", 24*time.Hour),
		DedupBackend:    strings.ToLower(strings.TrimSpace(getEnv("DEDUP_BACKEND", "auto"))),
		SessionLockTTL:  getEnvAsDuration("SESSION_LOCK_TTL", 10*time.Second),
		NotifyTimeout:   getEnvAsDuration("NOTIFY_TIMEOUT", 15*time.Second),
		RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 10),
		CatalogPath:     getEnv("CATALOG_PATH", ""),
		StudioName:      getEnv("STUDIO_NAME", ""),

		EmailProvider:        strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:       getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:            getEnv("EMAIL_FROM", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "Studio Bookings"),
		AdminEmailRecipients: getEnvAsList("ADMIN_EMAIL_RECIPIENTS", nil),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		WhatsAppAdminNumber:  getEnv("WHATSAPP_ADMIN_NUMBER", ""),
		WhatsAppContextTurns: getEnvAsInt("WHATSAPP_CONTEXT_TURNS", 5),
		AlertHistorySize:     getEnvAsInt("ALERT_HISTORY_SIZE", 200),
	}
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "", "development", "dev", "local":
		return true
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
