package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers supported by the API.
const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	StoreDriver            string
	SupabaseURL            string
	SupabaseServiceRoleKey string
	JWTSecret              string
	DatabaseURL            string
	MigrateOnStart         bool

	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	RefreshTokenBytes int
	JWKSTimeout       time.Duration

	AdminEmail    string
	AdminPassword string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
	TrustedProxies       []string
}

// Issuer is the expected `iss` claim of access tokens.
func (c Config) Issuer() string {
	return strings.TrimRight(c.SupabaseURL, "/") + "/auth/v1"
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:            getEnv("APP_ENV", "development"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		ServiceName:            getEnv("SERVICE_NAME", "decisionlog"),
		StoreDriver:            strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", DriverSupabase))),
		SupabaseURL:            strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseServiceRoleKey: strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
		JWTSecret:              strings.TrimSpace(os.Getenv("SUPABASE_JWT_SECRET")),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		MigrateOnStart:         getBool("MIGRATE_ON_START", false),
		AccessTokenTTL:         getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:        getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RefreshTokenBytes:      getInt("REFRESH_TOKEN_BYTES", 32),
		JWKSTimeout:            getDuration("JWKS_TIMEOUT", 5*time.Second),
		AdminEmail:             strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword:          strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
		RedisAddr:              strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0),
		RateLimitRPM:           getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:      getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:     getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:     getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:     getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials:   getBool("CORS_ALLOW_CREDENTIALS", false),
		TrustedProxies:         getList("TRUSTED_PROXIES", nil),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if cfg.RefreshTokenBytes < 32 {
		cfg.RefreshTokenBytes = 32
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.SupabaseServiceRoleKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		// Tokens are issued locally, so a signing secret is mandatory.
		if c.JWTSecret == "" {
			return fmt.Errorf("SUPABASE_JWT_SECRET is required for the postgres driver")
		}
		if c.SupabaseURL == "" {
			c.SupabaseURL = "http://localhost:" + c.HTTPPort
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", DriverSupabase, DriverPostgres)
	}

	// HS256 needs a key at least as long as the hash output.
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("SUPABASE_JWT_SECRET must be at least 32 bytes")
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
