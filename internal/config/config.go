// Package config loads and validates environment-based configuration.
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

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// DBDSN selects the cloud backend when set; otherwise documents are kept
	// in the JSON file at LocalStorePath.
	DBDSN          string
	LocalStorePath string
	Port           int

	// JWT authentication settings.
	JWTSecret       string // Required for auth endpoints; signing key for HS256.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	DriverTokenTTL  time.Duration

	UploadDir string

	// Geocoding.
	NominatimURL      string
	GeocoderUserAgent string
	GeocodeCountry    string

	// Events. An empty NATSURL disables publishing.
	NATSURL           string
	NATSSubjectPrefix string

	MetricsEnabled bool

	// SettingsFile is an optional YAML file with default branding.
	SettingsFile string

	TruckSpeedKmh float64

	BootstrapAdminUsername string
	BootstrapAdminPassword string
}

// CloudMode reports whether documents are stored in Postgres.
func (c *Config) CloudMode() bool { return c.DBDSN != "" }

// Load reads .env (when present) and the environment, and validates the
// result. Returns a ConfigError for any invalid value.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDSN:                  os.Getenv("DB_DSN"),
		LocalStorePath:         envOr("LOCAL_STORE_PATH", "./data/rodovar.json"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		AccessTokenTTL:         parseDurationEnv("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:        parseDurationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		DriverTokenTTL:         parseDurationEnv("DRIVER_TOKEN_TTL", 24*time.Hour),
		UploadDir:              envOr("UPLOAD_DIR", "./uploads/images"),
		NominatimURL:           envOr("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:      envOr("GEOCODER_USER_AGENT", "rodovar-api/1.0"),
		GeocodeCountry:         envOr("GEOCODE_COUNTRY", "Brazil"),
		NATSURL:                os.Getenv("NATS_URL"),
		NATSSubjectPrefix:      envOr("NATS_SUBJECT_PREFIX", "rodovar"),
		SettingsFile:           os.Getenv("SETTINGS_FILE"),
		BootstrapAdminUsername: os.Getenv("BOOTSTRAP_ADMIN_USERNAME"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port < 1 || port > 65535 {
		return nil, &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"}
	}
	cfg.Port = port

	cfg.MetricsEnabled, err = parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return nil, err
	}

	cfg.TruckSpeedKmh, err = parseFloatEnv("TRUCK_SPEED_KMH", 60)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate re-checks fields on an already-constructed Config.
func (c *Config) Validate() error {
	var errs []error
	if !c.CloudMode() && strings.TrimSpace(c.LocalStorePath) == "" {
		errs = append(errs, &ConfigError{Field: "LOCAL_STORE_PATH", Message: "required when DB_DSN is not set"})
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"})
	}
	if c.TruckSpeedKmh <= 0 {
		errs = append(errs, &ConfigError{Field: "TRUCK_SPEED_KMH", Message: "must be positive"})
	}
	if (c.BootstrapAdminUsername == "") != (c.BootstrapAdminPassword == "") {
		errs = append(errs, &ConfigError{Field: "BOOTSTRAP_ADMIN_PASSWORD", Message: "username and password must be set together"})
	}
	return errors.Join(errs...)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// parseDurationEnv reads a duration from an environment variable.
// Falls back to defaultVal if the variable is unset or unparseable.
// Accepts Go duration strings like "15m", "24h", "168h".
func parseDurationEnv(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseIntEnv(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: "must be a valid integer"}
	}
	return v, nil
}

func parseFloatEnv(key string, defaultVal float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: "must be a valid number"}
	}
	return v, nil
}

func parseBoolEnv(key string, defaultVal bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ConfigError{Field: key, Message: "must be true or false"}
	}
	return v, nil
}
