package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-bot/internal/weather"
)

const defaultOpenWeatherBaseURL = "https://api.openweathermap.org"

// OpenWeatherProvider implements weather.Provider and weather.Geocoder for OpenWeatherMap.
type OpenWeatherProvider struct {
	options
	name    string
	apiKey  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	o := newOptions(defaultOpenWeatherBaseURL, opts)
	return &OpenWeatherProvider{
		options: o,
		name:    "openweathermap",
		apiKey:  apiKey,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: o.backoff,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owmDescription struct {
	Description string `json:"description"`
}

// FetchCurrent queries current conditions for a city.
func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, city string) (weather.Record, error) {
	values := p.cityQuery(city)
	resp, err := p.get(ctx, "/data/2.5/weather", values)
	if err != nil {
		return weather.Record{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return weather.Record{}, fmt.Errorf("%w: %s", weather.ErrCityNotFound, city)
	}

	var payload struct {
		Name string `json:"name"`
		Main *struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []owmDescription `json:"weather"`
	}
	if err := decodeBody(resp, &payload); err != nil {
		return weather.Record{}, err
	}
	if payload.Main == nil || len(payload.Weather) == 0 {
		return weather.Record{}, fmt.Errorf("%w: current weather for %q lacks main or weather block",
			weather.ErrProviderMalformedResponse, city)
	}

	return weather.Record{
		City: firstNonEmpty(payload.Name, city),
		Kind: weather.KindCurrent,
		Current: &weather.Conditions{
			Description: payload.Weather[0].Description,
			Temperature: payload.Main.Temp,
			FeelsLike:   payload.Main.FeelsLike,
			Humidity:    payload.Main.Humidity,
			WindSpeed:   payload.Wind.Speed,
		},
		FetchedAt: p.now().UTC(),
	}, nil
}

// FetchWeekly queries a daily forecast of the given length.
func (p *OpenWeatherProvider) FetchWeekly(ctx context.Context, city string, days int) (weather.Record, error) {
	if days <= 0 {
		days = 7
	}
	values := p.cityQuery(city)
	values.Set("cnt", strconv.Itoa(days))

	resp, err := p.get(ctx, "/data/2.5/forecast/daily", values)
	if err != nil {
		return weather.Record{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return weather.Record{}, fmt.Errorf("%w: %s", weather.ErrCityNotFound, city)
	}

	var payload struct {
		City struct {
			Name string `json:"name"`
		} `json:"city"`
		List []struct {
			Dt   int64 `json:"dt"`
			Temp struct {
				Day float64 `json:"day"`
			} `json:"temp"`
			FeelsLike struct {
				Day float64 `json:"day"`
			} `json:"feels_like"`
			Humidity int              `json:"humidity"`
			Speed    float64          `json:"speed"`
			Weather  []owmDescription `json:"weather"`
		} `json:"list"`
	}
	if err := decodeBody(resp, &payload); err != nil {
		return weather.Record{}, err
	}
	if len(payload.List) < days {
		return weather.Record{}, fmt.Errorf("%w: forecast for %q has %d days, want %d",
			weather.ErrProviderMalformedResponse, city, len(payload.List), days)
	}

	entries := payload.List
	if len(entries) > days {
		entries = entries[:days]
	}
	out := make([]weather.DayForecast, 0, len(entries))
	for _, d := range entries {
		var desc string
		if len(d.Weather) > 0 {
			desc = d.Weather[0].Description
		}
		out = append(out, weather.DayForecast{
			Date: time.Unix(d.Dt, 0).UTC(),
			Conditions: weather.Conditions{
				Description: desc,
				Temperature: d.Temp.Day,
				FeelsLike:   d.FeelsLike.Day,
				Humidity:    d.Humidity,
				WindSpeed:   d.Speed,
			},
		})
	}

	return weather.Record{
		City:      firstNonEmpty(payload.City.Name, city),
		Kind:      weather.KindWeekly,
		Days:      out,
		FetchedAt: p.now().UTC(),
	}, nil
}

// ResolveCity reverse-geocodes coordinates to the nearest city name.
func (p *OpenWeatherProvider) ResolveCity(ctx context.Context, lat, lon float64) (string, error) {
	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	values.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	values.Set("limit", "1")

	resp, err := p.get(ctx, "/geo/1.0/reverse", values)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return "", fmt.Errorf("%w: %.4f,%.4f", weather.ErrLocationNotResolved, lat, lon)
	}

	var payload []struct {
		Name string `json:"name"`
	}
	if err := decodeBody(resp, &payload); err != nil {
		return "", err
	}
	if len(payload) == 0 || strings.TrimSpace(payload[0].Name) == "" {
		return "", fmt.Errorf("%w: %.4f,%.4f", weather.ErrLocationNotResolved, lat, lon)
	}
	return payload[0].Name, nil
}

func (p *OpenWeatherProvider) cityQuery(city string) url.Values {
	values := url.Values{}
	values.Set("q", city)
	values.Set("appid", p.apiKey)
	values.Set("units", p.units)
	values.Set("lang", p.lang)
	return values
}

func (p *OpenWeatherProvider) get(ctx context.Context, path string, values url.Values) (*http.Response, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: openweather api key is not configured", weather.ErrProviderUnavailable)
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}
	return doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
