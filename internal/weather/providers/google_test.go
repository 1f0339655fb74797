package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-bot/internal/weather"
)

func TestGoogleGeocoderResolveCity(t *testing.T) {
	g := NewGoogleGeocoder("google-key")
	g.reverse = func(loc geocoder.Location) ([]geocoder.Address, error) {
		assert.Equal(t, "google-key", geocoder.ApiKey)
		assert.Equal(t, 55.7558, loc.Latitude)
		return []geocoder.Address{{City: ""}, {City: "Moscow"}}, nil
	}

	city, err := g.ResolveCity(context.Background(), 55.7558, 37.6173)
	require.NoError(t, err)
	assert.Equal(t, "Moscow", city)
}

func TestGoogleGeocoderErrors(t *testing.T) {
	cases := []struct {
		name    string
		addrs   []geocoder.Address
		err     error
		wantErr error
	}{
		{name: "no city", addrs: []geocoder.Address{{Country: "RU"}}, wantErr: weather.ErrLocationNotResolved},
		{name: "zero results", err: errors.New("ZERO_RESULTS"), wantErr: weather.ErrLocationNotResolved},
		{name: "transport", err: errors.New("connection refused"), wantErr: weather.ErrProviderUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGoogleGeocoder("k")
			g.reverse = func(geocoder.Location) ([]geocoder.Address, error) { return tc.addrs, tc.err }

			_, err := g.ResolveCity(context.Background(), 1, 2)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestGoogleGeocoderHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	g := NewGoogleGeocoder("k")
	g.reverse = func(geocoder.Location) ([]geocoder.Address, error) {
		<-block
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.ResolveCity(ctx, 1, 2)
	require.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestGoogleGeocoderHungCallDoesNotBlockLaterLookups(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	hung := NewGoogleGeocoder("k")
	hung.reverse = func(geocoder.Location) ([]geocoder.Address, error) {
		<-block
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := hung.ResolveCity(ctx, 1, 2)
	require.ErrorIs(t, err, weather.ErrProviderUnavailable)

	fast := NewGoogleGeocoder("k")
	fast.reverse = func(geocoder.Location) ([]geocoder.Address, error) {
		return []geocoder.Address{{City: "Moscow"}}, nil
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()

	city, err := fast.ResolveCity(ctx2, 55.75, 37.61)
	require.NoError(t, err)
	assert.Equal(t, "Moscow", city)
}
