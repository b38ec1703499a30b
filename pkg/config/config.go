package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Key derivation modes for the platform signing secret
const (
	KeyDerivationRaw  = "raw"
	KeyDerivationHKDF = "hkdf"
)

const (
	DefaultTokenTTL    = time.Hour
	DefaultIssuer      = "civicpulse-platform"
	DefaultAudience    = "civicpulse-api"
	DefaultPlatformTag = "civicpulse"
)

var ErrMissingSigningSecret = errors.New("PLATFORM_JWT_SECRET is required")

type Config struct {
	// Server settings
	ServerAddr      string
	ShutdownTimeout time.Duration
	FunctionAPIKey  string // optional gate on the `apikey` header

	// Identity provider
	ProviderURL        string
	ProviderServiceKey string
	ProviderTimeout    time.Duration

	// Platform JWT settings
	JWTSecret        string
	JWTIssuer        string
	JWTAudience      string
	JWTPlatformTag   string
	JWTTTL           time.Duration
	JWTKeyDerivation string // "raw" or "hkdf"
	JWTKeyInfo       string
	RequireExpiry    bool

	// Audit events
	RabbitMQURL      string
	RabbitMQExchange string

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		FunctionAPIKey:  getEnv("FUNCTION_API_KEY", ""),

		ProviderURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		ProviderServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		ProviderTimeout:    getEnvDuration("IDP_TIMEOUT", 10*time.Second),

		JWTSecret:        getEnv("PLATFORM_JWT_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", DefaultIssuer),
		JWTAudience:      getEnv("JWT_AUDIENCE", DefaultAudience),
		JWTPlatformTag:   getEnv("JWT_PLATFORM_TAG", DefaultPlatformTag),
		JWTTTL:           getEnvDuration("JWT_TTL", DefaultTokenTTL),
		JWTKeyDerivation: strings.ToLower(getEnv("JWT_KEY_DERIVATION", KeyDerivationRaw)),
		JWTKeyInfo:       getEnv("JWT_KEY_INFO", "civicpulse platform jwt v1"),
		RequireExpiry:    getEnvBool("REQUIRE_EXP", false),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "platform.tokens"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate reports configuration the service cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSigningSecret
	}
	switch c.JWTKeyDerivation {
	case KeyDerivationRaw, KeyDerivationHKDF:
	default:
		return fmt.Errorf("unsupported JWT_KEY_DERIVATION %q (want %q or %q)",
			c.JWTKeyDerivation, KeyDerivationRaw, KeyDerivationHKDF)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
