package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port    string
	GinMode string

	StoreDriver  string
	MongoURI     string
	DatabaseName string
	DatabaseURL  string
	StoreTimeout time.Duration

	JWTSecret   string
	TokenTTL    time.Duration
	TokenIssuer string
	BcryptCost  int

	AllowedOrigins []string

	LogLevel  string
	LogFormat string

	AdminEmail    string
	AdminUsername string
	AdminPassword string

	ReconnectInterval    time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
	HealthCheckInterval  time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the process environment (after an optional .env file) into a Config.
// Every invalid value is reported, not only the first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using system environment variables")
	}

	var errs []error

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "release"),

		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURI:     getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017")),
		DatabaseName: getEnv("DATABASE_NAME", "authgate"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenIssuer: getEnv("TOKEN_ISSUER", "authgate"),

		AllowedOrigins: parseList(os.Getenv("ALLOWED_ORIGINS")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AdminEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	cfg.StoreTimeout = getDuration("STORE_TIMEOUT", 5*time.Second, &errs)
	cfg.TokenTTL = getDuration("TOKEN_TTL", 24*time.Hour, &errs)
	cfg.BcryptCost = getInt("BCRYPT_COST", 10, &errs)

	cfg.ReconnectInterval = getDuration("DB_RECONNECT_INTERVAL", 5*time.Second, &errs)
	cfg.MaxReconnectDelay = getDuration("DB_MAX_RECONNECT_DELAY", time.Minute, &errs)
	cfg.MaxReconnectAttempts = getInt("DB_MAX_RECONNECT_ATTEMPTS", 10, &errs)
	cfg.HealthCheckInterval = getDuration("DB_HEALTH_INTERVAL", 10*time.Second, &errs)

	cfg.ReadTimeout = getDuration("HTTP_READ_TIMEOUT", 15*time.Second, &errs)
	cfg.WriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second, &errs)
	cfg.IdleTimeout = getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second, &errs)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs)

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks cross-field rules. Load calls it; tests building a Config by hand can too.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo store"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST: out of range [4..31]"))
	}
	if c.MaxReconnectAttempts <= 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_RECONNECT_ATTEMPTS: must be positive"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

// SeedAdmin reports whether an admin bootstrap identity is configured.
func (c *Config) SeedAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func getInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: not an integer", key))
		return def
	}
	return n
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
