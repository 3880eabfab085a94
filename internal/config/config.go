// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Port   int
	AppEnv string

	// DatabaseURL wins over the BLUEPRINT_DB_* pieces when set.
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUsername  string
	DBPassword  string
	DBDatabase  string
	DBSchema    string

	SessionSecret string

	// ClinicianSecretHash is a bcrypt hash. When only CLINICIAN_SECRET is given
	// the caller hashes it at startup.
	ClinicianSecretHash string
	ClinicianSecret     string

	// TrustedProxies are CIDR ranges whose X-Forwarded-For is believed.
	// Empty means the TCP peer address is the client address.
	TrustedProxies []string

	DashboardRefresh   time.Duration
	EstimatorCacheSize int
	LogLevel           zerolog.Level
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ConnString builds the Postgres DSN.
func (c *Config) ConnString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	query := url.Values{"sslmode": {"disable"}}
	if c.DBSchema != "" {
		query.Set("search_path", c.DBSchema)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUsername, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBDatabase,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Load reads the environment (after an optional .env file) and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DBHost:              os.Getenv("BLUEPRINT_DB_HOST"),
		DBPort:              getEnv("BLUEPRINT_DB_PORT", "5432"),
		DBUsername:          os.Getenv("BLUEPRINT_DB_USERNAME"),
		DBPassword:          os.Getenv("BLUEPRINT_DB_PASSWORD"),
		DBDatabase:          os.Getenv("BLUEPRINT_DB_DATABASE"),
		DBSchema:            os.Getenv("BLUEPRINT_DB_SCHEMA"),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		ClinicianSecretHash: os.Getenv("CLINICIAN_SECRET_HASH"),
		ClinicianSecret:     os.Getenv("CLINICIAN_SECRET"),
	}

	// Fallback to 8080 if not set or invalid.
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port == 0 {
		port = 8080
	}
	cfg.Port = port

	refresh, err := strconv.Atoi(getEnv("DASHBOARD_REFRESH_SECONDS", "5"))
	if err != nil || refresh <= 0 {
		return nil, fmt.Errorf("DASHBOARD_REFRESH_SECONDS must be a positive integer")
	}
	cfg.DashboardRefresh = time.Duration(refresh) * time.Second

	cacheSize, err := strconv.Atoi(getEnv("ESTIMATOR_CACHE_SIZE", "512"))
	if err != nil || cacheSize <= 0 {
		return nil, fmt.Errorf("ESTIMATOR_CACHE_SIZE must be a positive integer")
	}
	cfg.EstimatorCacheSize = cacheSize

	for _, cidr := range strings.Split(os.Getenv("TRUSTED_PROXIES"), ",") {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", cidr, err)
		}
		cfg.TrustedProxies = append(cfg.TrustedProxies, cidr)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if cfg.DatabaseURL == "" && (cfg.DBHost == "" || cfg.DBDatabase == "") {
		return nil, fmt.Errorf("DATABASE_URL or BLUEPRINT_DB_HOST and BLUEPRINT_DB_DATABASE must be set")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("required environment variable SESSION_SECRET is not set")
	}
	if cfg.ClinicianSecretHash == "" && cfg.ClinicianSecret == "" {
		return nil, fmt.Errorf("CLINICIAN_SECRET_HASH or CLINICIAN_SECRET must be set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
