package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-bot/internal/common"
	"github.com/i474232898/weather-bot/internal/weather"
)

// geocoder keeps its API key in a package variable; it is written once per geocoder and never
// held across a request.
var googleKeyMu sync.Mutex

// GoogleGeocoder implements weather.Geocoder on top of the Google Geocoding API.
type GoogleGeocoder struct {
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	googleKeyMu.Lock()
	geocoder.ApiKey = apiKey
	googleKeyMu.Unlock()

	return &GoogleGeocoder{reverse: geocoder.GeocodingReverse}
}

// ResolveCity returns the city of the first address Google reports for the coordinates.
// The library call is not context aware, so the result is abandoned when ctx ends.
func (g *GoogleGeocoder) ResolveCity(ctx context.Context, lat, lon float64) (string, error) {
	type result struct {
		addrs []geocoder.Address
		err   error
	}
	done := make(chan result, 1)

	go func() {
		addrs, err := g.reverse(geocoder.Location{Latitude: lat, Longitude: lon})
		done <- result{addrs: addrs, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", weather.ErrProviderUnavailable, ctx.Err())
	case res := <-done:
		if res.err != nil {
			if common.HasAny(res.err.Error(), "ZERO_RESULTS", "NOT_FOUND") {
				return "", fmt.Errorf("%w: %.4f,%.4f", weather.ErrLocationNotResolved, lat, lon)
			}
			return "", fmt.Errorf("%w: google geocoding: %v", weather.ErrProviderUnavailable, res.err)
		}
		for _, a := range res.addrs {
			if city := strings.TrimSpace(a.City); city != "" {
				return city, nil
			}
		}
		return "", fmt.Errorf("%w: %.4f,%.4f", weather.ErrLocationNotResolved, lat, lon)
	}
}
