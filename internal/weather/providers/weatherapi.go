package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-bot/internal/weather"
)

const (
	defaultWeatherAPIBaseURL = "https://api.weatherapi.com"

	// WeatherAPI answers 400 with this code when q matches no location.
	weatherAPINoLocation = 1006
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	options
	name    string
	apiKey  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, opts ...Option) *WeatherAPIProvider {
	o := newOptions(defaultWeatherAPIBaseURL, opts)
	return &WeatherAPIProvider{
		options: o,
		name:    "weatherapi",
		apiKey:  apiKey,
		httpCfg: HTTPClientConfig{
			Client:         client,
			Backoff:        o.backoff,
			AnswerStatuses: []int{http.StatusBadRequest, http.StatusNotFound},
		},
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPICondition struct {
	Text string `json:"text"`
}

type weatherAPIError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchCurrent queries current conditions for a city.
func (p *WeatherAPIProvider) FetchCurrent(ctx context.Context, city string) (weather.Record, error) {
	resp, err := p.get(ctx, "/v1/current.json", p.cityQuery(city))
	if err != nil {
		return weather.Record{}, err
	}
	if err := p.checkAnswer(resp, city); err != nil {
		return weather.Record{}, err
	}

	var payload struct {
		Location struct {
			Name string `json:"name"`
		} `json:"location"`
		Current *struct {
			TempC      float64             `json:"temp_c"`
			TempF      float64             `json:"temp_f"`
			FeelsLikeC float64             `json:"feelslike_c"`
			FeelsLikeF float64             `json:"feelslike_f"`
			Humidity   int                 `json:"humidity"`
			WindKph    float64             `json:"wind_kph"`
			WindMph    float64             `json:"wind_mph"`
			Condition  weatherAPICondition `json:"condition"`
		} `json:"current"`
	}
	if err := decodeBody(resp, &payload); err != nil {
		return weather.Record{}, err
	}
	if payload.Current == nil {
		return weather.Record{}, fmt.Errorf("%w: current weather for %q lacks current block",
			weather.ErrProviderMalformedResponse, city)
	}

	c := payload.Current
	return weather.Record{
		City: firstNonEmpty(payload.Location.Name, city),
		Kind: weather.KindCurrent,
		Current: &weather.Conditions{
			Description: c.Condition.Text,
			Temperature: p.temperature(c.TempC, c.TempF),
			FeelsLike:   p.temperature(c.FeelsLikeC, c.FeelsLikeF),
			Humidity:    c.Humidity,
			WindSpeed:   p.wind(c.WindKph, c.WindMph),
		},
		FetchedAt: p.now().UTC(),
	}, nil
}

// FetchWeekly queries a daily forecast of the given length. WeatherAPI has no
// per-day feels-like value, so the average temperature is used for both.
func (p *WeatherAPIProvider) FetchWeekly(ctx context.Context, city string, days int) (weather.Record, error) {
	if days <= 0 {
		days = 7
	}
	values := p.cityQuery(city)
	values.Set("days", strconv.Itoa(days))

	resp, err := p.get(ctx, "/v1/forecast.json", values)
	if err != nil {
		return weather.Record{}, err
	}
	if err := p.checkAnswer(resp, city); err != nil {
		return weather.Record{}, err
	}

	var payload struct {
		Location struct {
			Name string `json:"name"`
		} `json:"location"`
		Forecast struct {
			ForecastDay []struct {
				DateEpoch int64 `json:"date_epoch"`
				Day       struct {
					AvgTempC    float64             `json:"avgtemp_c"`
					AvgTempF    float64             `json:"avgtemp_f"`
					AvgHumidity float64             `json:"avghumidity"`
					MaxWindKph  float64             `json:"maxwind_kph"`
					MaxWindMph  float64             `json:"maxwind_mph"`
					Condition   weatherAPICondition `json:"condition"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := decodeBody(resp, &payload); err != nil {
		return weather.Record{}, err
	}

	entries := payload.Forecast.ForecastDay
	if len(entries) < days {
		return weather.Record{}, fmt.Errorf("%w: forecast for %q has %d days, want %d",
			weather.ErrProviderMalformedResponse, city, len(entries), days)
	}
	entries = entries[:days]

	out := make([]weather.DayForecast, 0, len(entries))
	for _, d := range entries {
		temp := p.temperature(d.Day.AvgTempC, d.Day.AvgTempF)
		out = append(out, weather.DayForecast{
			Date: time.Unix(d.DateEpoch, 0).UTC(),
			Conditions: weather.Conditions{
				Description: d.Day.Condition.Text,
				Temperature: temp,
				FeelsLike:   temp,
				Humidity:    int(math.Round(d.Day.AvgHumidity)),
				WindSpeed:   p.wind(d.Day.MaxWindKph, d.Day.MaxWindMph),
			},
		})
	}

	return weather.Record{
		City:      firstNonEmpty(payload.Location.Name, city),
		Kind:      weather.KindWeekly,
		Days:      out,
		FetchedAt: p.now().UTC(),
	}, nil
}

// checkAnswer turns a 400/404 reply into a domain error and consumes its body.
func (p *WeatherAPIProvider) checkAnswer(resp *http.Response, city string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	status := resp.StatusCode

	var body weatherAPIError
	if err := decodeBody(resp, &body); err != nil {
		return err
	}
	if status == http.StatusNotFound || (body.Error != nil && body.Error.Code == weatherAPINoLocation) {
		return fmt.Errorf("%w: %s", weather.ErrCityNotFound, city)
	}
	msg := ""
	if body.Error != nil {
		msg = body.Error.Message
	}
	return fmt.Errorf("%w: weatherapi status %d: %s", weather.ErrProviderUnavailable, status, msg)
}

// temperature picks the value matching the configured unit system.
func (p *WeatherAPIProvider) temperature(c, f float64) float64 {
	switch p.units {
	case "imperial":
		return f
	case "standard":
		return c + 273.15
	default:
		return c
	}
}

// wind returns mph for imperial units and m/s otherwise.
func (p *WeatherAPIProvider) wind(kph, mph float64) float64 {
	if p.units == "imperial" {
		return mph
	}
	return kph / 3.6
}

func (p *WeatherAPIProvider) cityQuery(city string) url.Values {
	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", city)
	values.Set("lang", p.lang)
	return values
}

func (p *WeatherAPIProvider) get(ctx context.Context, path string, values url.Values) (*http.Response, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: weatherapi api key is not configured", weather.ErrProviderUnavailable)
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}
	return doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
}
