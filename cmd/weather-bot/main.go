package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	httpapi "github.com/i474232898/weather-bot/internal/api/http"
	"github.com/i474232898/weather-bot/internal/bot"
	"github.com/i474232898/weather-bot/internal/config"
	"github.com/i474232898/weather-bot/internal/conversation"
	applog "github.com/i474232898/weather-bot/internal/logger"
	"github.com/i474232898/weather-bot/internal/scheduler"
	"github.com/i474232898/weather-bot/internal/store"
	"github.com/i474232898/weather-bot/internal/telegram"
	"github.com/i474232898/weather-bot/internal/weather"
	"github.com/i474232898/weather-bot/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	lg, err := applog.Init(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				lg.Warn().Err(err).Msg("close failed")
			}
		}
	}()

	cache, purger, closer, err := openCache(ctx, cfg)
	if err != nil {
		lg.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("failed to open cache")
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	tracker, closer, err := openTracker(ctx, cfg)
	if err != nil {
		lg.Fatal().Err(err).Str("backend", cfg.StateBackend).Msg("failed to open conversation state")
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	owm := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey,
		providers.WithBaseURL(cfg.OpenWeatherBaseURL),
		providers.WithLanguage(cfg.Lang),
		providers.WithUnits(cfg.Units),
	)
	var geocoder weather.Geocoder = owm
	if cfg.GoogleAPIKey != "" {
		geocoder = providers.NewGoogleGeocoder(cfg.GoogleAPIKey)
	}

	var provider weather.Provider = owm
	if cfg.WeatherAPIKey != "" {
		wa := providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey,
			providers.WithBaseURL(cfg.WeatherAPIBaseURL),
			providers.WithLanguage(cfg.Lang),
			providers.WithUnits(cfg.Units),
		)
		provider = weather.NewFailoverProvider(lg.With().Str("component", "providers").Logger(), owm, wa)
	}

	service := weather.NewService(cache, provider, geocoder, weather.ServiceConfig{
		ProviderTimeout: cfg.ProviderTimeout,
		ForecastDays:    cfg.ForecastDays,
		StaleFallback:   cfg.StaleFallback,
	}, lg.With().Str("component", "weather").Logger())

	sched := scheduler.New(scheduler.Config{
		Cities:          cfg.WarmCities,
		RefreshInterval: cfg.RefreshInterval,
		Retention:       cfg.StoreRetention,
	}, service, purger, lg)
	if err := sched.Start(); err != nil {
		lg.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := newApp(service, tracker)
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	gateway, err := telegram.New(cfg.TelegramToken, lg.With().Str("component", "telegram").Logger())
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to connect to telegram")
	}

	dispatcher := bot.NewDispatcher(service, tracker, gateway,
		lg.With().Str("component", "dispatcher").Logger(),
		bot.WithUnits(cfg.Units),
	)
	lg.Info().Str("cache", cfg.CacheBackend).Str("state", cfg.StateBackend).Msg("weather bot started")

	if err := dispatcher.Run(ctx, gateway); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error().Err(err).Msg("dispatcher stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("error during shutdown")
	}
	lg.Info().Msg("weather bot stopped")
}

func openCache(ctx context.Context, cfg *config.AppConfig) (weather.Cache, weather.Purger, io.Closer, error) {
	switch cfg.CacheBackend {
	case "memory":
		s := store.NewMemoryStore(cfg.FreshnessWindow, nil)
		return s, s, nil, nil
	case "redis":
		// Redis expires keys itself; no purge job needed.
		s, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.FreshnessWindow, cfg.StoreRetention, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, s, nil
	default:
		s, err := store.OpenSQLite(cfg.DBPath, cfg.FreshnessWindow, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s, nil
	}
}

func openTracker(ctx context.Context, cfg *config.AppConfig) (conversation.Tracker, io.Closer, error) {
	if cfg.StateBackend == "redis" {
		t, err := conversation.NewRedisTracker(ctx, cfg.RedisURL, cfg.StateTTL)
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	}
	return conversation.NewMemoryTracker(), nil, nil
}

func newApp(service httpapi.WeatherLookup, tracker httpapi.IntentReader) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-bot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-bot",
		})
	})

	httpapi.RegisterRoutes(app, service, tracker)
	return app
}
