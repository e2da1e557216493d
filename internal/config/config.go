package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Log      LogConfig
	App      AppConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration
}

// DatabaseConfig selects the SQL driver and its DSN. Supported drivers are
// "sqlite3" and "postgres".
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type LogConfig struct {
	Level string
}

// AppConfig carries the survey-domain knobs. DomesticCountryCode is the
// country whose selection makes department and municipality mandatory.
type AppConfig struct {
	DomesticCountryCode int
	MinimumAge          int
	NegativeSentinel    string
	OtherSentinel       string
	BirthDateLayout     string
}

// Load reads configuration from the environment, merging a .env file if one
// is present. Missing values fall back to development defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("DIVERSA_ADDR", ":8080"),
			TimeoutRead:  getDuration("DIVERSA_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite: getDuration("DIVERSA_TIMEOUT_WRITE", 30*time.Second),
			TimeoutIdle:  getDuration("DIVERSA_TIMEOUT_IDLE", 60*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DIVERSA_DB_DRIVER", "sqlite3"),
			DSN:             getEnv("DIVERSA_DB_DSN", "file:diversa.db?_fk=1"),
			MaxOpenConns:    getInt("DIVERSA_DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DIVERSA_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DIVERSA_DB_CONN_MAX_LIFETIME", time.Hour),
			MigrationsDir:   os.Getenv("DIVERSA_MIGRATIONS_DIR"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("DIVERSA_JWT_SECRET", "diversa-dev-secret"),
			Expiration: getDuration("DIVERSA_JWT_EXPIRATION", 24*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("DIVERSA_LOG_LEVEL", "info"),
		},
		App: AppConfig{
			DomesticCountryCode: getInt("DIVERSA_DOMESTIC_COUNTRY_CODE", 170), // Colombia
			MinimumAge:          getInt("DIVERSA_MINIMUM_AGE", 18),
			NegativeSentinel:    getEnv("DIVERSA_NEGATIVE_SENTINEL", "no"),
			OtherSentinel:       getEnv("DIVERSA_OTHER_SENTINEL", "Otro"),
			BirthDateLayout:     getEnv("DIVERSA_BIRTH_DATE_LAYOUT", "2006-01-02"),
		},
	}

	if cfg.Database.Driver != "sqlite3" && cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.App.MinimumAge <= 0 {
		return nil, fmt.Errorf("minimum age must be positive, got %d", cfg.App.MinimumAge)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
