package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-bot/internal/conversation"
	"github.com/i474232898/weather-bot/internal/weather"
)

var validate = validator.New()

// WeatherLookup is satisfied by *weather.Service.
type WeatherLookup interface {
	Lookup(ctx context.Context, city string, kind weather.Kind) (weather.Record, error)
}

// IntentReader is satisfied by every conversation.Tracker.
type IntentReader interface {
	PendingIntent(ctx context.Context, chatID int64) (conversation.Intent, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service WeatherLookup, intents IntentReader) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, err := service.Lookup(c.UserContext(), q.City, weather.KindCurrent)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(rec)
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		var req forecastQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, err := service.Lookup(c.UserContext(), req.City.City, weather.KindWeekly)
		if err != nil {
			return lookupError(err)
		}

		return c.JSON(fiber.Map{
			"city":       rec.City,
			"days":       req.Days,
			"fetched_at": rec.FetchedAt,
			"forecast":   rec.FirstDays(req.Days).Days,
		})
	})

	v1.Get("/chats/:id/intent", func(c *fiber.Ctx) error {
		chatID, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "chat id must be an integer")
		}

		intent, err := intents.PendingIntent(c.UserContext(), chatID)
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "conversation state unavailable")
		}
		return c.JSON(fiber.Map{
			"chat_id": chatID,
			"intent":  intent,
		})
	})
}

// lookupError maps a weather failure to an HTTP status.
func lookupError(err error) error {
	switch {
	case errors.Is(err, weather.ErrCityNotFound):
		return fiber.NewError(fiber.StatusNotFound, "city not found")
	case errors.Is(err, weather.ErrLocationNotResolved):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "location not resolved")
	case errors.Is(err, weather.ErrProviderMalformedResponse):
		return fiber.NewError(fiber.StatusBadGateway, "weather provider returned a malformed response")
	case errors.Is(err, weather.ErrProviderUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "weather provider unavailable")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}

type cityQuery struct {
	City string `validate:"required,max=100"`
}

func parseCityQuery(c *fiber.Ctx) (cityQuery, error) {
	q := cityQuery{City: c.Query("city")}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	City cityQuery
	Days int `validate:"required,min=1,max=7"`
}

func (f *forecastQuery) bind(c *fiber.Ctx) error {
	city, err := parseCityQuery(c)
	if err != nil {
		return err
	}
	f.City = city

	daysStr := c.Query("days")
	if daysStr == "" {
		return errors.New("days query parameter is required")
	}
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		return errors.New("days must be an integer")
	}
	f.Days = days
	return nil
}
