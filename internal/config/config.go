package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// TokenSecretPath is where a container secret with the bot token is mounted.
var TokenSecretPath = "/run/secrets/telegram_bot_token"

// LogConfig is read from LOG_* variables.
type LogConfig struct {
	Level      string `envconfig:"LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	Format     string `envconfig:"FORMAT" default:"json" validate:"oneof=json console"`
	Output     string `envconfig:"OUTPUT" default:"stdout" validate:"oneof=stdout stderr file"`
	FilePath   string `envconfig:"FILE_PATH" default:"logs/weather-bot.log"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"rfc3339" validate:"oneof=rfc3339 unix iso8601"`
}

type AppConfig struct {
	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN" validate:"required"`

	OpenWeatherAPIKey  string `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	OpenWeatherBaseURL string `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org" validate:"url"`
	Lang               string `envconfig:"WEATHER_LANG" default:"ru"`
	Units              string `envconfig:"WEATHER_UNITS" default:"metric" validate:"oneof=metric imperial standard"`
	GoogleAPIKey       string `envconfig:"GOOGLE_GEOCODER_API_KEY"`

	// Optional fallback provider, asked when OpenWeatherMap is down.
	WeatherAPIKey     string `envconfig:"WEATHERAPI_API_KEY"`
	WeatherAPIBaseURL string `envconfig:"WEATHERAPI_BASE_URL" default:"https://api.weatherapi.com" validate:"url"`

	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"15s" validate:"gt=0"`
	FreshnessWindow time.Duration `envconfig:"FRESHNESS_WINDOW" default:"24h" validate:"gt=0"`
	StaleFallback   bool          `envconfig:"STALE_FALLBACK" default:"false"`
	ForecastDays    int           `envconfig:"FORECAST_DAYS" default:"7" validate:"min=1,max=16"`

	// Where weather records live between requests.
	CacheBackend string `envconfig:"CACHE_BACKEND" default:"sqlite" validate:"oneof=memory sqlite redis"`
	DBPath       string `envconfig:"DB_PATH" default:"weather-bot.db"`
	RedisURL     string `envconfig:"REDIS_URL"`

	StateBackend string        `envconfig:"STATE_BACKEND" default:"memory" validate:"oneof=memory redis"`
	StateTTL     time.Duration `envconfig:"STATE_TTL" default:"1h" validate:"gt=0"`

	WarmCities      []string      `envconfig:"WARM_CITIES"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"3h" validate:"gt=0"`
	StoreRetention  time.Duration `envconfig:"STORE_RETENTION" default:"168h" validate:"gt=0"`

	Port string `envconfig:"PORT" default:"8080" validate:"required,numeric"`

	Log LogConfig `envconfig:"LOG"`
}

// Load reads configuration from .env and the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Err(err).Msg("no .env file loaded")
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	if cfg.TelegramToken == "" {
		token, err := readSecret(TokenSecretPath)
		if err != nil {
			return nil, err
		}
		cfg.TelegramToken = token
	}
	cfg.WarmCities = cleanList(cfg.WarmCities)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.RedisURL == "" && (c.CacheBackend == "redis" || c.StateBackend == "redis") {
		return errors.New("invalid configuration: REDIS_URL is required when a redis backend is selected")
	}
	return nil
}

func readSecret(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func cleanList(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
