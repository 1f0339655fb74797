package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-bot/internal/weather"
)

func newTestWeatherAPI(t *testing.T, h http.HandlerFunc, opts ...Option) *WeatherAPIProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithBackoff(BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewWeatherAPIProvider(srv.Client(), "wa-key", opts...)
}

func TestWeatherAPIFetchCurrent(t *testing.T) {
	p := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/current.json", r.URL.Path)
		assert.Equal(t, "wa-key", r.URL.Query().Get("key"))
		assert.Equal(t, "Moscow", r.URL.Query().Get("q"))
		assert.Equal(t, "ru", r.URL.Query().Get("lang"))
		_, _ = w.Write([]byte(`{
			"location": {"name": "Москва"},
			"current": {"temp_c": 5.0, "temp_f": 41.0, "feelslike_c": 2.0, "feelslike_f": 35.6,
				"humidity": 87, "wind_kph": 18.0, "wind_mph": 11.2, "condition": {"text": "Пасмурно"}}
		}`))
	})

	rec, err := p.FetchCurrent(context.Background(), "Moscow")
	require.NoError(t, err)
	require.NoError(t, rec.Validate())
	assert.Equal(t, "Москва", rec.City)
	assert.Equal(t, "Пасмурно", rec.Current.Description)
	assert.Equal(t, 5.0, rec.Current.Temperature)
	assert.Equal(t, 2.0, rec.Current.FeelsLike)
	assert.InDelta(t, 5.0, rec.Current.WindSpeed, 1e-9)
	assert.Equal(t, fixedNow, rec.FetchedAt)
}

func TestWeatherAPIImperialUnits(t *testing.T) {
	p := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"location": {"name": "Boston"},
			"current": {"temp_c": 5.0, "temp_f": 41.0, "wind_kph": 18.0, "wind_mph": 11.2, "condition": {"text": "Cloudy"}}}`))
	}, WithUnits("imperial"))

	rec, err := p.FetchCurrent(context.Background(), "Boston")
	require.NoError(t, err)
	assert.Equal(t, 41.0, rec.Current.Temperature)
	assert.Equal(t, 11.2, rec.Current.WindSpeed)
}

func TestWeatherAPINoMatchingLocation(t *testing.T) {
	var calls int
	p := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 1006, "message": "No matching location found."}}`))
	})

	_, err := p.FetchCurrent(context.Background(), "Atlantis")
	require.ErrorIs(t, err, weather.ErrCityNotFound)
	assert.Equal(t, 1, calls, "a domain answer is not retried")
}

func TestWeatherAPIOtherBadRequestIsUnavailable(t *testing.T) {
	p := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 1003, "message": "Parameter q is missing."}}`))
	})

	_, err := p.FetchCurrent(context.Background(), "")
	require.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestWeatherAPIFetchWeekly(t *testing.T) {
	p := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast.json", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(`{
			"location": {"name": "Sochi"},
			"forecast": {"forecastday": [
				{"date_epoch": 1760832000, "day": {"avgtemp_c": 17.5, "avghumidity": 71.6, "maxwind_kph": 10.8, "condition": {"text": "Солнечно"}}},
				{"date_epoch": 1760918400, "day": {"avgtemp_c": 16.0, "avghumidity": 80, "maxwind_kph": 7.2, "condition": {"text": "Дождь"}}}
			]}
		}`))
	})

	rec, err := p.FetchWeekly(context.Background(), "Sochi", 2)
	require.NoError(t, err)
	require.NoError(t, rec.Validate())
	require.Len(t, rec.Days, 2)
	assert.Equal(t, time.Unix(1760832000, 0).UTC(), rec.Days[0].Date)
	assert.Equal(t, 17.5, rec.Days[0].Temperature)
	assert.Equal(t, 72, rec.Days[0].Humidity)
	assert.InDelta(t, 3.0, rec.Days[0].WindSpeed, 1e-9)
	assert.Equal(t, "Дождь", rec.Days[1].Description)
}

func TestWeatherAPIShortForecastIsMalformed(t *testing.T) {
	p := newTestWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"location": {"name": "Sochi"}, "forecast": {"forecastday": [
			{"date_epoch": 1760832000, "day": {"avgtemp_c": 17.5}}]}}`))
	})

	_, err := p.FetchWeekly(context.Background(), "Sochi", 7)
	require.ErrorIs(t, err, weather.ErrProviderMalformedResponse)
}
