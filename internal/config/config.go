// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig is returned when the environment does not match Config.
var ErrParsingConfig = errors.New("failed to parse configuration")

// Config is the full service configuration.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"apsconnect.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseBusyTimeout time.Duration `env:"DATABASE_BUSY_TIMEOUT" envDefault:"5s"`

	// RedisURL enables the tenant schema cache when set.
	RedisURL       string        `env:"REDIS_URL"`
	SchemaCacheTTL time.Duration `env:"SCHEMA_CACHE_TTL" envDefault:"1h"`

	// EffectWorkers bounds the concurrent best-effort jobs.
	EffectWorkers int `env:"EFFECT_WORKERS" envDefault:"2"`

	Connect ConnectConfig
	OA      OAConfig
	OTel    OTelConfig
	Seed    SeedConfig
}

// ConnectConfig configures the Connect API client.
type ConnectConfig struct {
	APIURL      string        `env:"CONNECT_API_URL" envDefault:"https://api.connect.cloudblue.com/public/v1"`
	APIKey      string        `env:"CONNECT_API_KEY"`
	ExtensionID string        `env:"CONNECT_EXTENSION_ID"`
	Timeout     time.Duration `env:"CONNECT_TIMEOUT" envDefault:"30s"`
	Retries     int           `env:"CONNECT_RETRIES" envDefault:"3"`
	RetryWait   time.Duration `env:"CONNECT_RETRY_WAIT" envDefault:"2s"`
}

// OAConfig configures the OA bus client.
type OAConfig struct {
	Timeout time.Duration `env:"OA_TIMEOUT" envDefault:"300s"`
	Retries int           `env:"OA_RETRIES" envDefault:"10"`
}

// OTelConfig configures tracing and metrics export.
type OTelConfig struct {
	ServiceName    string  `env:"OTEL_SERVICE_NAME" envDefault:"apsconnect"`
	ServiceVersion string  `env:"OTEL_SERVICE_VERSION" envDefault:"0.1.0"`
	Environment    string  `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	Exporter       string  `env:"OTEL_EXPORTER" envDefault:"stdout"`
	Endpoint       string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure       bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	SampleRatio    float64 `env:"OTEL_TRACES_SAMPLE_RATIO" envDefault:"1"`
}

// SeedConfig describes an installation registered at startup. It is ignored
// unless the OAuth key is set.
type SeedConfig struct {
	OAuthKey       string `env:"INSTALLATION_OAUTH_KEY"`
	OAuthSecret    string `env:"INSTALLATION_OAUTH_SECRET"`
	ProductID      string `env:"INSTALLATION_PRODUCT_ID"`
	InstallationID string `env:"INSTALLATION_ID"`
}

// Enabled reports whether an installation should be seeded.
func (s SeedConfig) Enabled() bool {
	return s.OAuthKey != ""
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
