package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-bot/internal/weather"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestProvider(t *testing.T, h http.HandlerFunc) *OpenWeatherProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewOpenWeatherProvider(srv.Client(), "test-key",
		WithBaseURL(srv.URL),
		WithBackoff(BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestFetchCurrent(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "Moscow", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "ru", r.URL.Query().Get("lang"))
		_, _ = w.Write([]byte(`{
			"name": "Moscow",
			"weather": [{"description": "пасмурно"}],
			"main": {"temp": 3.51, "feels_like": -0.4, "humidity": 87},
			"wind": {"speed": 4.2}
		}`))
	})

	rec, err := p.FetchCurrent(context.Background(), "Moscow")
	require.NoError(t, err)
	require.NoError(t, rec.Validate())

	assert.Equal(t, "Moscow", rec.City)
	assert.Equal(t, weather.KindCurrent, rec.Kind)
	assert.Equal(t, fixedNow, rec.FetchedAt)
	require.NotNil(t, rec.Current)
	assert.Equal(t, "пасмурно", rec.Current.Description)
	assert.Equal(t, 3.51, rec.Current.Temperature)
	assert.Equal(t, -0.4, rec.Current.FeelsLike)
	assert.Equal(t, 87, rec.Current.Humidity)
	assert.Equal(t, 4.2, rec.Current.WindSpeed)
}

func TestFetchCurrentCityNotFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	})

	_, err := p.FetchCurrent(context.Background(), "Atlantis")
	require.ErrorIs(t, err, weather.ErrCityNotFound)
}

func TestFetchCurrentServerErrorRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.FetchCurrent(context.Background(), "Moscow")
	require.ErrorIs(t, err, weather.ErrProviderUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchCurrentUnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.FetchCurrent(context.Background(), "Moscow")
	require.ErrorIs(t, err, weather.ErrProviderUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchCurrentMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `<html>oops</html>`,
		"missing main":  `{"name":"Moscow","weather":[{"description":"x"}]}`,
		"empty weather": `{"name":"Moscow","main":{"temp":1},"weather":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := p.FetchCurrent(context.Background(), "Moscow")
			require.ErrorIs(t, err, weather.ErrProviderMalformedResponse)
		})
	}
}

func TestFetchWeekly(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/forecast/daily", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("cnt"))
		_, _ = w.Write([]byte(`{
			"city": {"name": "Sochi"},
			"list": [
				{"dt": 1760875200, "temp": {"day": 18.2}, "feels_like": {"day": 17.9}, "humidity": 70, "speed": 2.1, "weather": [{"description": "ясно"}]},
				{"dt": 1760961600, "temp": {"day": 17.0}, "feels_like": {"day": 16.5}, "humidity": 75, "speed": 3.0, "weather": [{"description": "дождь"}]},
				{"dt": 1761048000, "temp": {"day": 16.4}, "feels_like": {"day": 16.0}, "humidity": 80, "speed": 1.5, "weather": []},
				{"dt": 1761134400, "temp": {"day": 15.0}, "feels_like": {"day": 14.0}, "humidity": 81, "speed": 1.0, "weather": []}
			]
		}`))
	})

	rec, err := p.FetchWeekly(context.Background(), "Sochi", 3)
	require.NoError(t, err)
	require.NoError(t, rec.Validate())

	assert.Equal(t, "Sochi", rec.City)
	assert.Equal(t, weather.KindWeekly, rec.Kind)
	assert.Nil(t, rec.Current)
	require.Len(t, rec.Days, 3)
	assert.Equal(t, time.Unix(1760875200, 0).UTC(), rec.Days[0].Date)
	assert.Equal(t, "ясно", rec.Days[0].Description)
	assert.Equal(t, 17.9, rec.Days[0].FeelsLike)
	assert.Equal(t, "", rec.Days[2].Description)
}

func TestFetchWeeklyZeroDaysIsMalformed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"city":{"name":"Sochi"},"list":[]}`))
	})

	_, err := p.FetchWeekly(context.Background(), "Sochi", 7)
	require.ErrorIs(t, err, weather.ErrProviderMalformedResponse)
}

func TestFetchWeeklyShortForecastIsMalformed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"city": {"name": "Sochi"},
			"list": [
				{"dt": 1760875200, "temp": {"day": 18.2}, "weather": [{"description": "ясно"}]},
				{"dt": 1760961600, "temp": {"day": 17.0}, "weather": [{"description": "дождь"}]}
			]
		}`))
	})

	_, err := p.FetchWeekly(context.Background(), "Sochi", 7)
	require.ErrorIs(t, err, weather.ErrProviderMalformedResponse)
}

func TestResolveCity(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/reverse", r.URL.Path)
		assert.Equal(t, "43.585500", r.URL.Query().Get("lat"))
		assert.Equal(t, "39.723100", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(`[{"name":"Sochi","country":"RU"}]`))
	})

	city, err := p.ResolveCity(context.Background(), 43.5855, 39.7231)
	require.NoError(t, err)
	assert.Equal(t, "Sochi", city)
}

func TestResolveCityEmptyResult(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := p.ResolveCity(context.Background(), 0, 0)
	require.ErrorIs(t, err, weather.ErrLocationNotResolved)
}

func TestMissingAPIKey(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient, "")
	_, err := p.FetchCurrent(context.Background(), "Moscow")
	require.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestContextDeadlineIsUnavailable(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.FetchCurrent(ctx, "Moscow")
	require.ErrorIs(t, err, weather.ErrProviderUnavailable)
}
